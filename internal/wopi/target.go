package wopi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf16"
)

// ErrEmptyTarget is returned when target resolution yields no usable path.
var ErrEmptyTarget = errors.New("wopi: empty target path")

// ErrInvalidName is returned for target paths that violate storage naming
// rules.
var ErrInvalidName = errors.New("wopi: invalid file name")

// DecodeSuggestedTarget decodes the 7-bit-safe transport encoding (UTF-7) of
// the suggested-target header back to UTF-8. Plain ASCII values pass through
// unchanged.
//
// No library in use here ships a UTF-7 decoder, so the subset the protocol
// needs is implemented directly: '+' opens a base64 run of UTF-16BE code
// units, '-' closes it, and "+-" is a literal plus.
func DecodeSuggestedTarget(s string) (string, error) {
	if !strings.ContainsRune(s, '+') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c != '+' {
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(s) && isBase64Byte(s[j]) {
			j++
		}
		seg := s[i+1 : j]
		if j < len(s) && s[j] == '-' {
			j++
		}
		if seg == "" {
			b.WriteByte('+')
			i = j
			continue
		}
		raw, err := base64.RawStdEncoding.DecodeString(seg)
		if err != nil {
			return "", fmt.Errorf("decode suggested target: %w", err)
		}
		units := make([]uint16, 0, len(raw)/2)
		for k := 0; k+1 < len(raw); k += 2 {
			units = append(units, uint16(raw[k])<<8|uint16(raw[k+1]))
		}
		b.WriteString(string(utf16.Decode(units)))
		i = j
	}
	return b.String(), nil
}

func isBase64Byte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' ||
		c >= '0' && c <= '9' || c == '+' || c == '/'
}

// ResolveTarget computes the destination path for a save-as from the
// client-suggested name. First match wins:
//
//   - a name starting with "." is an extension: "<sourceDir>/New File<name>"
//   - a name without a leading "/" lands next to the source file
//   - an absolute name is rooted in the editor's personal root
func ResolveTarget(suggested, sourceDir, editorRoot string) (string, error) {
	if suggested == "" {
		return "", ErrEmptyTarget
	}
	var p string
	switch {
	case strings.HasPrefix(suggested, "."):
		p = sourceDir + "/New File" + suggested
	case !strings.HasPrefix(suggested, "/"):
		p = sourceDir + "/" + suggested
	default:
		p = editorRoot + suggested
	}
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ErrEmptyTarget
	}
	return p, nil
}

// invalidNameChars are bytes that storage rejects in any path segment.
const invalidNameChars = `\:*?"<>|`

// ValidateName checks a resolved destination path against storage naming
// rules: no traversal, no empty segments, no reserved characters.
func ValidateName(p string) error {
	if p == "" {
		return ErrInvalidName
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidName
		}
		if strings.ContainsAny(seg, invalidNameChars) {
			return ErrInvalidName
		}
		for _, r := range seg {
			if r < 0x20 {
				return ErrInvalidName
			}
		}
	}
	return nil
}

// Disambiguate returns p, or the first variant "name (2).ext",
// "name (3).ext", ... that exists reports as free.
func Disambiguate(exists func(string) (bool, error), p string) (string, error) {
	taken, err := exists(p)
	if err != nil {
		return "", err
	}
	if !taken {
		return p, nil
	}
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}
