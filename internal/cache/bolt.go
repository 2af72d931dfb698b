package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"
)

const (
	// DatabaseFile is the bolt database kept in the cache root.
	DatabaseFile = "cache.db"

	// bucketName is the BoltDB bucket holding workspace records
	bucketName = "workspaces"

	// DefaultOpenTimeout bounds the wait for another process's file lock.
	DefaultOpenTimeout = 5 * time.Second

	readCacheSize = 256
)

// envelope wraps a stored value with its expiry.
type envelope struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (e envelope) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// BoltStore persists records in a BoltDB file with an LRU read cache in
// front of it. Bolt holds an exclusive file lock, so the read cache cannot
// go stale behind another process's back.
type BoltStore struct {
	db   *bbolt.DB
	read *lru.Cache[string, envelope]
	now  func() time.Time
}

// OpenBoltStore opens (or creates) cache.db under root.
func OpenBoltStore(root string) (*BoltStore, error) {
	return OpenBoltStoreTimeout(root, DefaultOpenTimeout)
}

// OpenBoltStoreTimeout is OpenBoltStore with an explicit lock timeout.
func OpenBoltStoreTimeout(root string, timeout time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(root, DatabaseFile)
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	read, err := lru.New[string, envelope](readCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create read cache: %w", err)
	}

	return &BoltStore{db: db, read: read, now: time.Now}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	env, ok := s.read.Get(key)
	if !ok {
		var data []byte

		err := s.db.View(func(tx *bbolt.Tx) error {
			if v := tx.Bucket([]byte(bucketName)).Get([]byte(key)); v != nil {
				data = append([]byte(nil), v...)
			}

			return nil
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to read cache record: %w", err)
		}

		if data == nil {
			return nil, false, nil
		}

		if err := json.Unmarshal(data, &env); err != nil {
			return nil, false, fmt.Errorf("failed to decode cache record: %w", err)
		}

		s.read.Add(key, env)
	}

	if env.expired(s.now()) {
		if err := s.Delete(context.Background(), key); err != nil {
			return nil, false, err
		}

		return nil, false, nil
	}

	return env.Value, true, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode cache record: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
	if err != nil {
		s.read.Remove(key)
		return fmt.Errorf("failed to store cache record: %w", err)
	}

	s.read.Add(key, env)

	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	s.read.Remove(key)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache record: %w", err)
	}

	return nil
}

// Keys lists live keys and purges expired records on the way.
func (s *BoltStore) Keys(_ context.Context) ([]string, error) {
	now := s.now()

	var keys, expired []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var env envelope
			if err := json.Unmarshal(v, &env); err == nil && env.expired(now) {
				expired = append(expired, string(k))
				return nil
			}

			keys = append(keys, string(k))

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache records: %w", err)
	}

	for _, k := range expired {
		if err := s.Delete(context.Background(), k); err != nil {
			return nil, err
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Close closes the cache database
func (s *BoltStore) Close() error {
	if s.db != nil {
		s.read.Purge()
		return s.db.Close()
	}

	return nil
}
