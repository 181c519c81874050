package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// cleanInterval is the time between janitor sweeps of the in-memory store.
const cleanInterval = 1 * time.Hour

type memRef struct {
	rec Record
	exp time.Time
}

// MemStore is an in-memory Store for tests and single-node deployments
// without Redis.
type MemStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	recs map[string]*memRef
}

// NewMemStore creates a MemStore whose records expire after ttl.
func NewMemStore(ttl time.Duration) *MemStore {
	s := &MemStore{
		ttl:  ttl,
		recs: make(map[string]*memRef),
	}
	go s.cleaner()
	return s
}

func (s *MemStore) cleaner() {
	for range time.Tick(cleanInterval) {
		s.mu.Lock()
		now := time.Now()
		for tok, ref := range s.recs {
			if now.After(ref.exp) {
				delete(s.recs, tok)
			}
		}
		s.mu.Unlock()
	}
}

// Resolve implements Store.
func (s *MemStore) Resolve(ctx context.Context, token string) (*Record, error) {
	s.mu.RLock()
	ref, ok := s.recs[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(ref.exp) {
		return nil, ErrNotFound
	}
	rec := ref.rec
	return &rec, nil
}

// Mint implements Store.
func (s *MemStore) Mint(ctx context.Context, fileID string, version int64, attrs Attributes, serverHost, owner, editor string) (*Record, error) {
	rec := Record{
		Token:      newToken(),
		FileID:     fileID,
		Version:    version,
		Owner:      owner,
		Editor:     editor,
		Attributes: attrs,
		ServerHost: serverHost,
	}
	s.mu.Lock()
	s.recs[rec.Token] = &memRef{rec: rec, exp: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return &rec, nil
}

// newToken returns a fresh opaque token. Tokens carry no structure; they are
// only ever resolved by store lookup.
func newToken() string {
	return uuid.NewString()
}
