// Package store adapts the C1 blob-store contract (spec §4.1) onto an
// embedded B-tree file: go.etcd.io/bbolt, in the same spirit as the
// teacher's libs/database package wrapping database/sql — here the
// "connection" is a single bbolt.DB file per trading symbol.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tradedb/internal/retry"
	"tradedb/internal/xerrors"

	"go.etcd.io/bbolt"
)

var (
	candlesBucket = []byte("candles")
	ticksBucket   = []byte("ticks")
	metaBucket    = []byte("meta")
)

// Config controls how a Store opens its underlying file.
type Config struct {
	Path       string
	ReadOnly   bool
	BusyTimeout time.Duration
}

// DefaultConfig returns the busy-timeout and access-mode defaults a symbol
// engine opens a store with.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		ReadOnly:    false,
		BusyTimeout: 50 * time.Millisecond,
	}
}

// Store is the C1 adapter: candles/ticks/meta tables over one bbolt file.
type Store struct {
	db       *bbolt.DB
	readOnly bool
	breaker  *retry.Breaker
}

// Open initializes the three logical tables under path (spec §4.1). In
// read-only mode, buckets are expected to already exist; a missing bucket
// degrades to NotFound rather than being created.
func Open(cfg Config) (*Store, error) {
	opts := &bbolt.Options{
		Timeout:  cfg.BusyTimeout,
		ReadOnly: cfg.ReadOnly,
	}
	db, err := bbolt.Open(cfg.Path, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("store: Open: %w: %v", xerrors.ErrFatal, err)
	}

	s := &Store{
		db:       db,
		readOnly: cfg.ReadOnly,
		breaker:  retry.New(retry.DefaultConfig(cfg.Path)),
	}

	if !cfg.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			for _, name := range [][]byte{candlesBucket, ticksBucket, metaBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("store: Open: %w: %v", xerrors.ErrFatal, err)
		}
	}

	return s, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadOnly reports whether mutating calls are refused.
func (s *Store) ReadOnly() bool { return s.readOnly }

func isBusy(err error) bool {
	return errors.Is(err, bbolt.ErrTimeout) || errors.Is(err, bbolt.ErrDatabaseNotOpen)
}

func keyBytes(k uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	return buf
}

func keyUint(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// --- candles table ---

// ReadCandle returns the blob stored at key, or (nil, false, nil) if absent.
func (s *Store) ReadCandle(key uint64) ([]byte, bool, error) {
	return s.read(candlesBucket, key)
}

// WriteCandles atomically stores entries into the candles table.
func (s *Store) WriteCandles(ctx context.Context, entries map[uint64][]byte) error {
	return s.writeMany(ctx, candlesBucket, entries)
}

// RemoveCandle deletes the blob at key, a no-op if absent.
func (s *Store) RemoveCandle(ctx context.Context, key uint64) error {
	return s.remove(ctx, candlesBucket, key)
}

// RemoveAllCandles clears the candles table.
func (s *Store) RemoveAllCandles(ctx context.Context) error {
	return s.removeAll(ctx, candlesBucket)
}

// MinMaxCandleKey returns the smallest/largest stored key, ok=false if empty.
func (s *Store) MinMaxCandleKey() (min, max uint64, ok bool) {
	return s.minMax(candlesBucket)
}

// --- ticks table ---

// ReadTick returns the blob stored at key, or (nil, false, nil) if absent.
func (s *Store) ReadTick(key uint64) ([]byte, bool, error) {
	return s.read(ticksBucket, key)
}

// WriteTicks atomically stores entries into the ticks table.
func (s *Store) WriteTicks(ctx context.Context, entries map[uint64][]byte) error {
	return s.writeMany(ctx, ticksBucket, entries)
}

// RemoveTick deletes the blob at key, a no-op if absent.
func (s *Store) RemoveTick(ctx context.Context, key uint64) error {
	return s.remove(ctx, ticksBucket, key)
}

// RemoveAllTicks clears the ticks table.
func (s *Store) RemoveAllTicks(ctx context.Context) error {
	return s.removeAll(ctx, ticksBucket)
}

// MinMaxTickKey returns the smallest/largest stored key, ok=false if empty.
func (s *Store) MinMaxTickKey() (min, max uint64, ok bool) {
	return s.minMax(ticksBucket)
}

// --- meta table ---

// GetStr returns a string metadata value, or ("", false) if unset.
func (s *Store) GetStr(key string) (string, bool) {
	var v string
	var ok bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw != nil {
			v, ok = string(raw), true
		}
		return nil
	})
	return v, ok
}

// SetStr sets a string metadata value.
func (s *Store) SetStr(ctx context.Context, key, value string) error {
	return s.setMeta(ctx, key, []byte(value))
}

// GetInt returns an integer metadata value, or (0, false) if unset.
func (s *Store) GetInt(key string) (int64, bool) {
	raw, ok := s.GetStr(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SetInt sets an integer metadata value.
func (s *Store) SetInt(ctx context.Context, key string, value int64) error {
	return s.setMeta(ctx, key, []byte(strconv.FormatInt(value, 10)))
}

func (s *Store) setMeta(ctx context.Context, key string, value []byte) error {
	if s.readOnly {
		return fmt.Errorf("store: SetMeta(%s): %w", key, xerrors.ErrReadOnly)
	}
	_, err := s.breaker.Do(ctx, isBusy, func() (any, error) {
		return nil, s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(metaBucket).Put([]byte(key), value)
		})
	})
	if err != nil {
		return fmt.Errorf("store: SetMeta(%s): %w: %v", key, xerrors.ErrFatal, err)
	}
	return nil
}

// --- shared table plumbing ---

func (s *Store) read(bucket []byte, key uint64) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		raw := b.Get(keyBytes(key))
		if raw != nil {
			out = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: read: %w: %v", xerrors.ErrCorrupt, err)
	}
	return out, out != nil, nil
}

func (s *Store) writeMany(ctx context.Context, bucket []byte, entries map[uint64][]byte) error {
	if s.readOnly {
		return fmt.Errorf("store: writeMany: %w", xerrors.ErrReadOnly)
	}
	_, err := s.breaker.Do(ctx, isBusy, func() (any, error) {
		return nil, s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucket)
			for k, v := range entries {
				if err := b.Put(keyBytes(k), v); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("store: writeMany: %w: %v", xerrors.ErrFatal, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, bucket []byte, key uint64) error {
	if s.readOnly {
		return fmt.Errorf("store: remove: %w", xerrors.ErrReadOnly)
	}
	_, err := s.breaker.Do(ctx, isBusy, func() (any, error) {
		return nil, s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucket).Delete(keyBytes(key))
		})
	})
	if err != nil {
		return fmt.Errorf("store: remove: %w: %v", xerrors.ErrFatal, err)
	}
	return nil
}

func (s *Store) removeAll(ctx context.Context, bucket []byte) error {
	if s.readOnly {
		return fmt.Errorf("store: removeAll: %w", xerrors.ErrReadOnly)
	}
	_, err := s.breaker.Do(ctx, isBusy, func() (any, error) {
		return nil, s.db.Update(func(tx *bbolt.Tx) error {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			_, err := tx.CreateBucket(bucket)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("store: removeAll: %w: %v", xerrors.ErrFatal, err)
	}
	return nil
}

func (s *Store) minMax(bucket []byte) (min, max uint64, ok bool) {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		firstK, _ := c.First()
		if firstK == nil {
			return nil
		}
		lastK, _ := c.Last()
		min = keyUint(firstK)
		max = keyUint(lastK)
		ok = true
		return nil
	})
	return min, max, ok
}
