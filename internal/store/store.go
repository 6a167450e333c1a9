package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/novelshare/novelsync/internal/domain"
)

var bucketKV = []byte("kv")

const (
	// DefaultMaxBytes mirrors the 5MB budget of the storage the on-disk
	// format originated in.
	DefaultMaxBytes = 5 << 20

	// DefaultTrimKeep is how many entries the cleanup pass keeps per
	// trimmable key.
	DefaultTrimKeep = 20
)

// Options configures a Store.
type Options struct {
	Path      string // empty = memory-only mode (no persistence)
	MaxBytes  int64
	TrimKeep  int
	Trimmable []string
	Logger    *slog.Logger
}

// Store implements domain.Store on BoltDB with a full in-memory mirror.
// Values are small JSON blobs; the mirror keeps reads synchronous and makes
// budget accounting cheap.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger

	mu        sync.RWMutex
	mem       map[string]string
	bytes     int64
	maxBytes  int64
	trimKeep  int
	trimmable []string
}

// Open opens (or creates) a store at opts.Path. An empty path yields a
// memory-only store.
func Open(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.TrimKeep <= 0 {
		opts.TrimKeep = DefaultTrimKeep
	}
	if opts.Trimmable == nil {
		opts.Trimmable = TrimmableKeys
	}

	s := &Store{
		logger:    opts.Logger,
		mem:       make(map[string]string),
		maxBytes:  opts.MaxBytes,
		trimKeep:  opts.TrimKeep,
		trimmable: opts.Trimmable,
	}

	if opts.Path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketKV)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			key, val := string(k), string(v)
			s.mem[key] = val
			s.bytes += int64(len(key) + len(val))
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.mem[key]
	return v, ok
}

// Set writes a value, running one bounded cleanup-and-retry pass when the
// budget would be exceeded. Returns false when the value was not persisted.
func (s *Store) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bytes+s.deltaLocked(key, value) > s.maxBytes {
		s.cleanupLocked()
		if s.bytes+s.deltaLocked(key, value) > s.maxBytes {
			s.logger.Warn("storage budget exhausted, value not saved",
				"key", key, "size", len(value), "used", s.bytes, "budget", s.maxBytes)
			return false
		}
	}

	if err := s.putLocked(key, value); err != nil {
		s.cleanupLocked()
		if err := s.putLocked(key, value); err != nil {
			s.logger.Warn("local write failed after cleanup", "key", key, "error", err)
			return false
		}
	}
	return true
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.mem[key]
	if !ok {
		return
	}
	delete(s.mem, key)
	s.bytes -= int64(len(key) + len(old))

	if s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		s.logger.Warn("failed to remove key", "key", key, "error", err)
	}
}

// GetJSON unmarshals the value at key into dest. A missing key or malformed
// value returns false and leaves dest as the caller set it.
func (s *Store) GetJSON(key string, dest any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if !json.Valid([]byte(raw)) {
		s.logger.Warn("malformed JSON in store, using caller default", "key", key)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.Warn("failed to decode stored JSON, using caller default", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) SetJSON(key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode JSON", "key", key, "error", err)
		return false
	}
	return s.Set(key, string(data))
}

// Usage reports bytes used and percent of the configured budget.
func (s *Store) Usage() domain.Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Usage{
		BytesUsed:   s.bytes,
		PercentUsed: float64(s.bytes) / float64(s.maxBytes) * 100,
	}
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.mem))
	for k := range s.mem {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- internals ---

// deltaLocked returns the budget delta of writing value at key.
func (s *Store) deltaLocked(key, value string) int64 {
	old, ok := s.mem[key]
	d := int64(len(value) - len(old))
	if !ok {
		d += int64(len(key))
	}
	return d
}

// putLocked writes through to BoltDB (when present) and the mirror.
func (s *Store) putLocked(key, value string) error {
	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketKV).Put([]byte(key), []byte(value))
		})
		if err != nil {
			return err
		}
	}
	s.bytes += s.deltaLocked(key, value)
	s.mem[key] = value
	return nil
}

// cleanupLocked trims list-shaped trimmable keys to their last trimKeep
// entries. Non-list values are left alone.
func (s *Store) cleanupLocked() {
	for _, key := range s.trimmable {
		raw, ok := s.mem[key]
		if !ok {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			continue
		}
		if len(entries) <= s.trimKeep {
			continue
		}
		trimmed, err := json.Marshal(entries[len(entries)-s.trimKeep:])
		if err != nil {
			continue
		}
		if err := s.putLocked(key, string(trimmed)); err != nil {
			s.logger.Warn("cleanup trim failed", "key", key, "error", err)
			continue
		}
		s.logger.Info("trimmed key to reclaim storage", "key", key, "kept", s.trimKeep)
	}
}
