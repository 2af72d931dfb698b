package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("metadata store is closed")

// MetadataStore is the key-value collaborator holding cache records. A ttl
// of zero means the record never expires.
type MetadataStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names accepted by OpenStore.
const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// StoreOptions selects and configures a metadata backend.
type StoreOptions struct {
	Backend     string
	Root        string
	RedisURL    string
	RedisPrefix string
}

// OpenStore opens the configured backend. The bolt store is the default.
func OpenStore(opts StoreOptions) (MetadataStore, error) {
	switch opts.Backend {
	case "", BackendBolt:
		return OpenBoltStore(opts.Root)
	case BackendRedis:
		return NewRedisStore(opts.RedisURL, opts.RedisPrefix)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrStoreClosed
	}

	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}

	if !rec.expiresAt.IsZero() && !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return nil, false, nil
	}

	return append([]byte(nil), rec.value...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	rec := memoryRecord{value: append([]byte(nil), value...)}
	if ttl > 0 {
		rec.expiresAt = s.now().Add(ttl)
	}

	s.records[key] = rec

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.records, key)

	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.now()
	keys := make([]string, 0, len(s.records))

	for k, rec := range s.records {
		if !rec.expiresAt.IsZero() && !now.Before(rec.expiresAt) {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
