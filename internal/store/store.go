// Package store defines the persistent local store: named collections of
// keyed records with secondary indexes, implemented by boltstore and sqlstore.
//
// Every operation is transactional within a single collection. Operations
// spanning collections are not atomic; callers keep such sequences idempotent.
package store

import (
	"context"
	"fmt"
)

// SchemaVersion is bumped whenever a collection or index is added.
// Initialize upgrades stores created with an older version.
const SchemaVersion = 2

type Collection string

const (
	News       Collection = "news"
	Players    Collection = "players"
	Categories Collection = "categories"
	Favorites  Collection = "favorites"
	SyncQueue  Collection = "syncQueue"
	Metadata   Collection = "metadata"
)

// Index names.
const (
	IndexSlug     = "slug"
	IndexCachedAt = "cachedAt"
	IndexCategory = "category"
	IndexTeam     = "team"
	IndexRank     = "rank"
	IndexOrder    = "order"
	IndexPending  = "pending"
)

type Index struct {
	Name   string
	Unique bool
}

type Schema struct {
	Collection Collection
	Indexes    []Index
	// Since is the schema version that introduced the collection.
	Since int
}

func (s Schema) Index(name string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// Schemas lists every collection the store manages.
var Schemas = []Schema{
	{Collection: News, Since: 1, Indexes: []Index{
		{Name: IndexSlug, Unique: true},
		{Name: IndexCachedAt},
		{Name: IndexCategory},
		{Name: IndexRank},
	}},
	{Collection: Players, Since: 1, Indexes: []Index{
		{Name: IndexSlug, Unique: true},
		{Name: IndexCachedAt},
		{Name: IndexTeam},
		{Name: IndexRank},
	}},
	{Collection: Categories, Since: 1, Indexes: []Index{
		{Name: IndexSlug, Unique: true},
		{Name: IndexCachedAt},
	}},
	{Collection: Favorites, Since: 1, Indexes: []Index{
		{Name: IndexCachedAt},
		{Name: IndexPending},
	}},
	{Collection: SyncQueue, Since: 1, Indexes: []Index{
		{Name: IndexOrder},
	}},
	{Collection: Metadata, Since: 2},
}

func SchemaFor(c Collection) (Schema, error) {
	for _, s := range Schemas {
		if s.Collection == c {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("unknown collection %q", c)
}

// Record is a stored document. An empty index value leaves the record out
// of that index.
type Record struct {
	Key     string
	Indexes map[string]string
	Data    []byte
}

// Range bounds a scan over index values. Lower is inclusive, Upper is
// exclusive, and an empty bound is unbounded.
type Range struct {
	Lower   string
	Upper   string
	Reverse bool
}

// All scans the whole index.
var All = Range{}

func (r Range) Contains(v string) bool {
	if r.Lower != "" && v < r.Lower {
		return false
	}
	if r.Upper != "" && v >= r.Upper {
		return false
	}
	return true
}

type Store interface {
	Initialize(ctx context.Context) error
	Close() error

	Get(ctx context.Context, c Collection, key string) (Record, error)
	GetByIndex(ctx context.Context, c Collection, index, value string) (Record, error)
	Put(ctx context.Context, c Collection, rec Record) error
	PutMany(ctx context.Context, c Collection, recs []Record) error
	Delete(ctx context.Context, c Collection, key string) error
	Scan(ctx context.Context, c Collection, index string, r Range, limit int) ([]Record, error)
	Count(ctx context.Context, c Collection) (int, error)
	NextSequence(ctx context.Context, c Collection) (uint64, error)
	Clear(ctx context.Context, c Collection) error
}

// ValidateRecord checks a record against its collection schema.
func ValidateRecord(s Schema, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("%s: empty record key", s.Collection)
	}
	for name := range rec.Indexes {
		if _, ok := s.Index(name); !ok {
			return fmt.Errorf("%s: unknown index %q", s.Collection, name)
		}
	}
	return nil
}
