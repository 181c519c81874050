package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestStaticLookup(t *testing.T) {
	s := NewStatic(User{ID: "alice", DisplayName: "Alice Doe", Email: "alice@example.com"})
	ctx := context.Background()

	u, err := s.Lookup(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if u.DisplayName != "Alice Doe" || u.Email != "alice@example.com" {
		t.Errorf("Lookup() = %+v", u)
	}

	if _, err := s.Lookup(ctx, "nobody"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Lookup(unknown) = %v, want ErrUnknownUser", err)
	}
}

func TestStaticAddReplaces(t *testing.T) {
	s := NewStatic(User{ID: "alice", DisplayName: "Alice"})
	s.Add(User{ID: "alice", DisplayName: "Alice Doe"})

	u, err := s.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if u.DisplayName != "Alice Doe" {
		t.Errorf("DisplayName = %q", u.DisplayName)
	}
}

// Logins register entries while protocol requests resolve them; both happen
// on live request goroutines at once.
func TestStaticConcurrentAddLookup(t *testing.T) {
	s := NewStatic(User{ID: "seed"})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				s.Add(User{ID: fmt.Sprintf("user-%d-%d", n, j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if _, err := s.Lookup(ctx, "seed"); err != nil {
					t.Errorf("Lookup(seed) = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
