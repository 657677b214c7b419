// Package boltstore implements store.Store on a single bbolt file. Each
// collection is a bucket; each secondary index is a bucket of
// "value\x00key" entries.
package boltstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

const indexSep = 0x00

type envelope struct {
	Indexes map[string]string `json:"i,omitempty"`
	Data    []byte            `json:"d"`
}

type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *bbolt.DB
}

func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With("component", "boltstore"),
	}
}

// Initialize opens the database file and creates every collection and
// index bucket. Calling it on an open store only re-checks the schema.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("%w: create store directory: %w", domain.ErrStoreUnavailable, err)
		}
		db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			return fmt.Errorf("%w: open %s: %w", domain.ErrStoreUnavailable, s.path, err)
		}
		s.db = db
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, schema := range store.Schemas {
			if _, err := tx.CreateBucketIfNotExists(dataBucket(schema.Collection)); err != nil {
				return err
			}
			for _, idx := range schema.Indexes {
				if _, err := tx.CreateBucketIfNotExists(indexBucket(schema.Collection, idx.Name)); err != nil {
					return err
				}
			}
		}

		version, err := storedVersion(tx)
		if err != nil {
			return err
		}
		if version >= store.SchemaVersion {
			return nil
		}

		s.logger.Info("upgrading store schema", "from", version, "to", store.SchemaVersion)
		for _, schema := range store.Schemas {
			if err := reindex(tx, schema); err != nil {
				return fmt.Errorf("reindex %s: %w", schema.Collection, err)
			}
		}
		meta := tx.Bucket(dataBucket(store.Metadata))
		return putEnvelope(meta, domain.MetaSchemaVersion, envelope{Data: []byte(strconv.Itoa(store.SchemaVersion))})
	})
	if err != nil {
		_ = s.db.Close()
		s.db = nil
		return fmt.Errorf("%w: initialize schema: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Get(ctx context.Context, c store.Collection, key string) (store.Record, error) {
	var rec store.Record
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		env, ok, err := getEnvelope(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		rec = toRecord(key, env)
		return nil
	})
	return rec, err
}

func (s *Store) GetByIndex(ctx context.Context, c store.Collection, index, value string) (store.Record, error) {
	var rec store.Record
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		ib, err := idxBucket(tx, c, index)
		if err != nil {
			return err
		}
		prefix := append([]byte(value), indexSep)
		k, _ := ib.Cursor().Seek(prefix)
		if k == nil || !bytes.HasPrefix(k, prefix) {
			return domain.ErrNotFound
		}
		key := string(k[len(prefix):])
		env, ok, err := getEnvelope(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s/%s: dangling index entry %q", c, index, key)
		}
		rec = toRecord(key, env)
		return nil
	})
	return rec, err
}

func (s *Store) Put(ctx context.Context, c store.Collection, rec store.Record) error {
	return s.PutMany(ctx, c, []store.Record{rec})
}

func (s *Store) PutMany(ctx context.Context, c store.Collection, recs []store.Record) error {
	if len(recs) == 0 {
		return nil
	}
	schema, err := store.SchemaFor(c)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := store.ValidateRecord(schema, rec); err != nil {
			return err
		}
	}

	return s.update(ctx, func(tx *bbolt.Tx) error {
		for _, rec := range recs {
			if err := put(tx, schema, rec); err != nil {
				return fmt.Errorf("put %s/%s: %w", c, rec.Key, err)
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, c store.Collection, key string) error {
	schema, err := store.SchemaFor(c)
	if err != nil {
		return err
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		return remove(tx, schema, key)
	})
}

func (s *Store) Scan(ctx context.Context, c store.Collection, index string, r store.Range, limit int) ([]store.Record, error) {
	var out []store.Record
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		ib, err := idxBucket(tx, c, index)
		if err != nil {
			return err
		}

		emit := func(k []byte) (bool, error) {
			value, key, ok := splitIndexKey(k)
			if !ok {
				return true, nil
			}
			if !r.Contains(value) {
				return false, nil
			}
			env, found, err := getEnvelope(b, key)
			if err != nil {
				return false, err
			}
			if found {
				out = append(out, toRecord(key, env))
			}
			return limit <= 0 || len(out) < limit, nil
		}

		cur := ib.Cursor()
		if !r.Reverse {
			var k []byte
			if r.Lower != "" {
				k, _ = cur.Seek([]byte(r.Lower))
			} else {
				k, _ = cur.First()
			}
			for ; k != nil; k, _ = cur.Next() {
				more, err := emit(k)
				if err != nil || !more {
					return err
				}
			}
			return nil
		}

		var k []byte
		if r.Upper != "" {
			k, _ = cur.Seek([]byte(r.Upper))
			if k == nil {
				k, _ = cur.Last()
			} else {
				k, _ = cur.Prev()
			}
		} else {
			k, _ = cur.Last()
		}
		for ; k != nil; k, _ = cur.Prev() {
			value, _, _ := splitIndexKey(k)
			if r.Upper != "" && value >= r.Upper {
				continue
			}
			more, err := emit(k)
			if err != nil || !more {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) Count(ctx context.Context, c store.Collection) (int, error) {
	var n int
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) NextSequence(ctx context.Context, c store.Collection) (uint64, error) {
	var seq uint64
	err := s.update(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		return err
	})
	return seq, err
}

func (s *Store) Clear(ctx context.Context, c store.Collection) error {
	schema, err := store.SchemaFor(c)
	if err != nil {
		return err
	}
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b, err := bucket(tx, c)
		if err != nil {
			return err
		}
		seq := b.Sequence()
		if err := tx.DeleteBucket(dataBucket(c)); err != nil {
			return err
		}
		nb, err := tx.CreateBucket(dataBucket(c))
		if err != nil {
			return err
		}
		// Sequences survive a clear so queue ids stay monotonic.
		if err := nb.SetSequence(seq); err != nil {
			return err
		}
		for _, idx := range schema.Indexes {
			if err := tx.DeleteBucket(indexBucket(c, idx.Name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(indexBucket(c, idx.Name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.ErrStoreUnavailable
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.ErrStoreUnavailable
	}
	return s.db.Update(fn)
}

func put(tx *bbolt.Tx, schema store.Schema, rec store.Record) error {
	c := schema.Collection
	b, err := bucket(tx, c)
	if err != nil {
		return err
	}

	for _, idx := range schema.Indexes {
		value := rec.Indexes[idx.Name]
		if !idx.Unique || value == "" {
			continue
		}
		holder, err := indexHolder(tx, c, idx.Name, value)
		if err != nil {
			return err
		}
		if holder != "" && holder != rec.Key {
			if err := remove(tx, schema, holder); err != nil {
				return fmt.Errorf("replace %s holder %q: %w", idx.Name, holder, err)
			}
		}
	}

	old, exists, err := getEnvelope(b, rec.Key)
	if err != nil {
		return err
	}
	if exists {
		if err := unindex(tx, c, rec.Key, old.Indexes); err != nil {
			return err
		}
	}

	env := envelope{Indexes: nonEmpty(rec.Indexes), Data: rec.Data}
	if err := putEnvelope(b, rec.Key, env); err != nil {
		return err
	}
	return index(tx, c, rec.Key, env.Indexes)
}

func remove(tx *bbolt.Tx, schema store.Schema, key string) error {
	b, err := bucket(tx, schema.Collection)
	if err != nil {
		return err
	}
	env, exists, err := getEnvelope(b, key)
	if err != nil || !exists {
		return err
	}
	if err := unindex(tx, schema.Collection, key, env.Indexes); err != nil {
		return err
	}
	return b.Delete([]byte(key))
}

func reindex(tx *bbolt.Tx, schema store.Schema) error {
	for _, idx := range schema.Indexes {
		if err := tx.DeleteBucket(indexBucket(schema.Collection, idx.Name)); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(indexBucket(schema.Collection, idx.Name)); err != nil {
			return err
		}
	}
	b := tx.Bucket(dataBucket(schema.Collection))
	return b.ForEach(func(k, v []byte) error {
		var env envelope
		if err := store.Decode(v, &env); err != nil {
			return err
		}
		kept := make(map[string]string, len(env.Indexes))
		for name, value := range env.Indexes {
			if _, ok := schema.Index(name); ok {
				kept[name] = value
			}
		}
		return index(tx, schema.Collection, string(k), kept)
	})
}

func index(tx *bbolt.Tx, c store.Collection, key string, values map[string]string) error {
	for name, value := range values {
		ib, err := idxBucket(tx, c, name)
		if err != nil {
			return err
		}
		if err := ib.Put(indexKey(value, key), nil); err != nil {
			return err
		}
	}
	return nil
}

func unindex(tx *bbolt.Tx, c store.Collection, key string, values map[string]string) error {
	for name, value := range values {
		ib := tx.Bucket(indexBucket(c, name))
		if ib == nil {
			continue
		}
		if err := ib.Delete(indexKey(value, key)); err != nil {
			return err
		}
	}
	return nil
}

func indexHolder(tx *bbolt.Tx, c store.Collection, name, value string) (string, error) {
	ib, err := idxBucket(tx, c, name)
	if err != nil {
		return "", err
	}
	prefix := append([]byte(value), indexSep)
	k, _ := ib.Cursor().Seek(prefix)
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return "", nil
	}
	return string(k[len(prefix):]), nil
}

func storedVersion(tx *bbolt.Tx) (int, error) {
	env, ok, err := getEnvelope(tx.Bucket(dataBucket(store.Metadata)), domain.MetaSchemaVersion)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.Atoi(string(env.Data))
	if err != nil {
		return 0, fmt.Errorf("parse schema version: %w", err)
	}
	return v, nil
}

func getEnvelope(b *bbolt.Bucket, key string) (envelope, bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return envelope{}, false, nil
	}
	var env envelope
	if err := store.Decode(raw, &env); err != nil {
		return envelope{}, false, err
	}
	return env, true, nil
}

func putEnvelope(b *bbolt.Bucket, key string, env envelope) error {
	raw, err := store.Encode(env)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), raw)
}

func toRecord(key string, env envelope) store.Record {
	return store.Record{Key: key, Indexes: env.Indexes, Data: env.Data}
}

func nonEmpty(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func bucket(tx *bbolt.Tx, c store.Collection) (*bbolt.Bucket, error) {
	b := tx.Bucket(dataBucket(c))
	if b == nil {
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return b, nil
}

func idxBucket(tx *bbolt.Tx, c store.Collection, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket(indexBucket(c, name))
	if b == nil {
		return nil, fmt.Errorf("%s: unknown index %q", c, name)
	}
	return b, nil
}

func dataBucket(c store.Collection) []byte {
	return []byte(c)
}

func indexBucket(c store.Collection, name string) []byte {
	return []byte(string(c) + "/idx/" + name)
}

func indexKey(value, key string) []byte {
	k := make([]byte, 0, len(value)+1+len(key))
	k = append(k, value...)
	k = append(k, indexSep)
	return append(k, key...)
}

func splitIndexKey(k []byte) (value, key string, ok bool) {
	i := bytes.IndexByte(k, indexSep)
	if i < 0 {
		return "", "", false
	}
	return string(k[:i]), string(k[i+1:]), true
}

var _ store.Store = (*Store)(nil)
