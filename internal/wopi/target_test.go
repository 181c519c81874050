package wopi

import (
	"errors"
	"testing"
)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name      string
		suggested string
		sourceDir string
		root      string
		want      string
		wantErr   error
	}{
		{
			name:      "plain name lands next to the source",
			suggested: "foo.odt",
			sourceDir: "a/b",
			root:      "home/bob",
			want:      "a/b/foo.odt",
		},
		{
			name:      "extension only becomes New File",
			suggested: ".odt",
			sourceDir: "a/b",
			root:      "home/bob",
			want:      "a/b/New File.odt",
		},
		{
			name:      "absolute path is rooted in the editor root",
			suggested: "/x/y.odt",
			sourceDir: "a/b",
			root:      "home/bob",
			want:      "home/bob/x/y.odt",
		},
		{
			name:      "empty suggestion is rejected",
			suggested: "",
			sourceDir: "a/b",
			root:      "home/bob",
			wantErr:   ErrEmptyTarget,
		},
		{
			name:      "absolute root with no editor root resolves empty",
			suggested: "/",
			sourceDir: "a/b",
			root:      "",
			wantErr:   ErrEmptyTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.suggested, tt.sourceDir, tt.root)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveTarget() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTarget() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{
		"a/b/foo.odt",
		"home/bob/New File.odt",
		"shared/report (2).ods",
	}
	for _, p := range valid {
		if err := ValidateName(p); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{
		"",
		"a/../b/foo.odt",
		"a//foo.odt",
		"a/./foo.odt",
		`a/fo:o.odt`,
		`a/what?.odt`,
		"a/foo\x00.odt",
		"a/pipe|name.odt",
	}
	for _, p := range invalid {
		if err := ValidateName(p); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", p, err)
		}
	}
}

func TestDecodeSuggestedTarget(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain ascii passes through", "report.odt", "report.odt"},
		{"literal plus", "a+-b.odt", "a+b.odt"},
		// "é" is U+00E9, base64(UTF-16BE 0x00E9) = "AOk"
		{"accented char", "r+AOk-sum+AOk-.odt", "résumé.odt"},
		// "日" U+65E5 "本" U+672C
		{"cjk run", "+ZeVnLA-.odt", "日本.odt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSuggestedTarget(tt.in)
			if err != nil {
				t.Fatalf("DecodeSuggestedTarget(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("DecodeSuggestedTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDisambiguate(t *testing.T) {
	taken := map[string]bool{
		"a/foo.odt":     true,
		"a/bar.odt":     true,
		"a/bar (2).odt": true,
	}
	exists := func(p string) (bool, error) { return taken[p], nil }

	got, err := Disambiguate(exists, "a/new.odt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a/new.odt" {
		t.Errorf("free path renamed to %q", got)
	}

	got, err = Disambiguate(exists, "a/foo.odt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a/foo (2).odt" {
		t.Errorf("Disambiguate() = %q, want %q", got, "a/foo (2).odt")
	}

	got, err = Disambiguate(exists, "a/bar.odt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a/bar (3).odt" {
		t.Errorf("Disambiguate() = %q, want %q", got, "a/bar (3).odt")
	}
}

func TestDisambiguatePropagatesErrors(t *testing.T) {
	boom := errors.New("backend down")
	_, err := Disambiguate(func(string) (bool, error) { return false, boom }, "a/foo.odt")
	if !errors.Is(err, boom) {
		t.Fatalf("Disambiguate() error = %v, want %v", err, boom)
	}
}
