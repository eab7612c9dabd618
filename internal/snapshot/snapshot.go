// Package snapshot persists the engine's full database image to a
// capacity-limited local blob store.
//
// Snapshots are whole-image serializations, compressed with snappy and
// stored in a Bolt bucket under the key {namespace}:{schemaVersion}. The
// version lives in the key on purpose: bumping the schema version without a
// migration path intentionally invalidates old snapshots.
//
// Save never overwrites in place. The new key is written and the superseded
// keys deleted in one atomic Bolt transaction, so a reader observes either
// the old snapshot or the new one, never a partial write and never neither.
//
// Multi-process policy: Bolt takes an exclusive file lock on open, so a
// second process fails fast at Open instead of racing the first. There is
// no leader election; one writer owns the store.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
)

// DefaultQuota is the store capacity in bytes. Mirrors the ~50 MB budget of
// the persistence substrate this adapter models.
const DefaultQuota = 50 << 20

var bucketName = []byte("snapshots")

// Store is a capacity-limited snapshot store for one namespace.
type Store struct {
	db        *bolt.DB
	namespace string
	quota     int64
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithQuota sets the capacity in bytes. Defaults to DefaultQuota.
func WithQuota(n int64) Option {
	return func(s *Store) { s.quota = n }
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (or creates) the snapshot store at path for the given
// namespace. The 1s lock timeout makes a second process fail fast rather
// than block forever on the exclusive file lock.
func Open(path, namespace string, opts ...Option) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("snapshot: empty namespace")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: create bucket: %w", err)
	}

	s := &Store{db: db, namespace: namespace, quota: DefaultQuota, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the store and its file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes h's full image and stores it under the key for version.
//
// Failure semantics: a capacity or store failure marks the handle degraded
// and returns the error - the handle keeps operating in-memory, accepting
// durability loss, and the previous snapshot stays intact byte for byte.
// A successful save clears the degraded flag.
func (s *Store) Save(ctx context.Context, h *engine.Handle, version int) error {
	f, err := os.CreateTemp("", "versebase-snap-*.db")
	if err != nil {
		return fmt.Errorf("snapshot save: temp file: %w", err)
	}
	tmp := f.Name()
	f.Close()
	defer os.Remove(tmp)

	if err := h.SerializeTo(ctx, tmp); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	raw, err := os.ReadFile(tmp)
	if err != nil {
		return fmt.Errorf("snapshot save: read image: %w", err)
	}

	compressed := snappy.Encode(nil, raw)
	if int64(len(compressed)) > s.quota {
		err := engine.NewQuotaError(int64(len(compressed)), s.quota)
		h.MarkDegraded(err.Error())
		return err
	}

	key := s.key(version)
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put([]byte(key), compressed); err != nil {
			return err
		}
		// Drop superseded keys in the same atomic transaction: write new,
		// then delete old, never leave only a partial snapshot visible.
		c := b.Cursor()
		prefix := []byte(s.namespace + ":")
		var stale [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if string(k) != key {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.MarkDegraded(err.Error())
		return fmt.Errorf("snapshot save: %w", err)
	}

	h.ClearDegraded()
	s.logger.Info("snapshot saved",
		zap.String("key", key),
		zap.Int("image_bytes", len(raw)),
		zap.Int("stored_bytes", len(compressed)))
	return nil
}

// Load returns the latest snapshot image for the namespace, or ok=false if
// none exists. A snappy decode failure is a SNAPSHOT_CORRUPT error, never
// silently discarded; the caller's explicit decision is a fresh bootstrap.
func (s *Store) Load(_ context.Context) (image []byte, version int, ok bool, err error) {
	var key string
	var stored []byte

	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		prefix := []byte(s.namespace + ":")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			kv, perr := s.parseVersion(string(k))
			if perr != nil {
				continue // foreign key shape; not ours to interpret
			}
			if key == "" || kv > version {
				key = string(k)
				version = kv
				stored = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, false, fmt.Errorf("snapshot load: %w", err)
	}
	if key == "" {
		return nil, 0, false, nil
	}

	image, err = snappy.Decode(nil, stored)
	if err != nil {
		return nil, 0, false, engine.NewCorruptSnapshotError(key, err)
	}
	return image, version, true, nil
}

// Latest reports the current snapshot key and stored size for status
// output, without decoding the image.
func (s *Store) Latest(_ context.Context) (key string, size int64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		prefix := []byte(s.namespace + ":")
		best := -1
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			kv, perr := s.parseVersion(string(k))
			if perr != nil {
				continue
			}
			if kv > best {
				best = kv
				key = string(k)
				size = int64(len(v))
				ok = true
			}
		}
		return nil
	})
	if err != nil {
		return "", 0, false, fmt.Errorf("snapshot latest: %w", err)
	}
	return key, size, ok, nil
}

// Reset deletes every snapshot in the namespace. Part of the explicit
// teardown path; nothing else removes snapshots wholesale.
func (s *Store) Reset(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		prefix := []byte(s.namespace + ":")
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("snapshot reset: %w", err)
	}
	return nil
}

func (s *Store) key(version int) string {
	return fmt.Sprintf("%s:%d", s.namespace, version)
}

func (s *Store) parseVersion(key string) (int, error) {
	rest := strings.TrimPrefix(key, s.namespace+":")
	return strconv.Atoi(rest)
}
