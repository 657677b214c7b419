// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

// Suite runs against a fresh, initialized store per test.
type Suite struct {
	suite.Suite
	ctx   context.Context
	store store.Store

	// Open returns an uninitialized store. It is called once per test.
	Open func(t *testing.T) store.Store
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.Open(s.T())
	s.Require().NoError(s.store.Initialize(s.ctx))
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func newsRecord(id int, slug string, rank int64) store.Record {
	return store.Record{
		Key: fmt.Sprint(id),
		Indexes: map[string]string{
			store.IndexSlug: slug,
			store.IndexRank: store.IntKey(rank),
		},
		Data: []byte(fmt.Sprintf(`{"id":%d}`, id)),
	}
}

func keys(recs []store.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func (s *Suite) TestInitialize_Idempotent() {
	s.NoError(s.store.Initialize(s.ctx))

	rec, err := s.store.Get(s.ctx, store.Metadata, domain.MetaSchemaVersion)
	s.Require().NoError(err)
	s.Equal(fmt.Sprint(store.SchemaVersion), string(rec.Data))
}

func (s *Suite) TestGet_Missing() {
	_, err := s.store.Get(s.ctx, store.News, "404")
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *Suite) TestPut_GetAndGetByIndex() {
	s.Require().NoError(s.store.Put(s.ctx, store.News, newsRecord(1, "derby-day", 10)))

	rec, err := s.store.Get(s.ctx, store.News, "1")
	s.Require().NoError(err)
	s.Equal(`{"id":1}`, string(rec.Data))
	s.Equal("derby-day", rec.Indexes[store.IndexSlug])

	rec, err = s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "derby-day")
	s.Require().NoError(err)
	s.Equal("1", rec.Key)
}

func (s *Suite) TestPut_OverwriteReindexes() {
	s.Require().NoError(s.store.Put(s.ctx, store.News, newsRecord(1, "old-slug", 1)))
	s.Require().NoError(s.store.Put(s.ctx, store.News, newsRecord(1, "new-slug", 2)))

	_, err := s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "old-slug")
	s.ErrorIs(err, domain.ErrNotFound)

	rec, err := s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "new-slug")
	s.Require().NoError(err)
	s.Equal("1", rec.Key)

	n, err := s.store.Count(s.ctx, store.News)
	s.NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestPut_UniqueIndexReplacesHolder() {
	s.Require().NoError(s.store.Put(s.ctx, store.News, newsRecord(1, "shared", 1)))
	s.Require().NoError(s.store.Put(s.ctx, store.News, newsRecord(2, "shared", 2)))

	_, err := s.store.Get(s.ctx, store.News, "1")
	s.ErrorIs(err, domain.ErrNotFound)

	rec, err := s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "shared")
	s.Require().NoError(err)
	s.Equal("2", rec.Key)

	n, err := s.store.Count(s.ctx, store.News)
	s.NoError(err)
	s.Equal(1, n)
}

func (s *Suite) TestPut_UnknownIndex() {
	err := s.store.Put(s.ctx, store.News, store.Record{
		Key:     "1",
		Indexes: map[string]string{"nope": "x"},
		Data:    []byte(`{}`),
	})
	s.Error(err)
}

func (s *Suite) TestScan_OrderedByIndex() {
	recs := []store.Record{
		newsRecord(1, "a", 30),
		newsRecord(2, "b", 10),
		newsRecord(3, "c", 20),
		newsRecord(4, "d", -5),
	}
	s.Require().NoError(s.store.PutMany(s.ctx, store.News, recs))

	got, err := s.store.Scan(s.ctx, store.News, store.IndexRank, store.All, 0)
	s.Require().NoError(err)
	s.Equal([]string{"4", "2", "3", "1"}, keys(got))

	got, err = s.store.Scan(s.ctx, store.News, store.IndexRank, store.Range{Reverse: true}, 2)
	s.Require().NoError(err)
	s.Equal([]string{"1", "3"}, keys(got))

	got, err = s.store.Scan(s.ctx, store.News, store.IndexRank, store.Range{
		Lower: store.IntKey(10),
		Upper: store.IntKey(30),
	}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"2", "3"}, keys(got))

	got, err = s.store.Scan(s.ctx, store.News, store.IndexRank, store.Range{
		Lower:   store.IntKey(10),
		Upper:   store.IntKey(30),
		Reverse: true,
	}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"3", "2"}, keys(got))
}

func (s *Suite) TestScan_CompositePrefix() {
	put := func(id int, category, published int64) {
		s.Require().NoError(s.store.Put(s.ctx, store.News, store.Record{
			Key: fmt.Sprint(id),
			Indexes: map[string]string{
				store.IndexCategory: store.Compose(store.IntKey(category), store.IntKey(published)),
			},
			Data: []byte(`{}`),
		}))
	}
	put(1, 7, 300)
	put(2, 8, 100)
	put(3, 7, 100)
	put(4, 7, 200)
	put(5, 70, 50)

	got, err := s.store.Scan(s.ctx, store.News, store.IndexCategory, store.Prefix(store.IntKey(7)), 0)
	s.Require().NoError(err)
	s.Equal([]string{"3", "4", "1"}, keys(got))

	r := store.Prefix(store.IntKey(7))
	r.Reverse = true
	got, err = s.store.Scan(s.ctx, store.News, store.IndexCategory, r, 2)
	s.Require().NoError(err)
	s.Equal([]string{"1", "4"}, keys(got))
}

func (s *Suite) TestScan_EmptyIndexValueNotIndexed() {
	s.Require().NoError(s.store.Put(s.ctx, store.Favorites, store.Record{
		Key:     "news:1",
		Indexes: map[string]string{store.IndexCachedAt: ""},
		Data:    []byte(`{}`),
	}))
	s.Require().NoError(s.store.Put(s.ctx, store.Favorites, store.Record{
		Key:     "news:2",
		Indexes: map[string]string{store.IndexCachedAt: store.IntKey(1)},
		Data:    []byte(`{}`),
	}))

	got, err := s.store.Scan(s.ctx, store.Favorites, store.IndexCachedAt, store.All, 0)
	s.Require().NoError(err)
	s.Equal([]string{"news:2"}, keys(got))

	_, err = s.store.Get(s.ctx, store.Favorites, "news:1")
	s.NoError(err)
}

func (s *Suite) TestDeleteAndClear() {
	s.Require().NoError(s.store.PutMany(s.ctx, store.News, []store.Record{
		newsRecord(1, "a", 1),
		newsRecord(2, "b", 2),
		newsRecord(3, "c", 3),
	}))

	s.Require().NoError(s.store.Delete(s.ctx, store.News, "2"))
	s.NoError(s.store.Delete(s.ctx, store.News, "missing"))

	_, err := s.store.GetByIndex(s.ctx, store.News, store.IndexSlug, "b")
	s.ErrorIs(err, domain.ErrNotFound)

	n, err := s.store.Count(s.ctx, store.News)
	s.NoError(err)
	s.Equal(2, n)

	s.Require().NoError(s.store.Clear(s.ctx, store.News))
	n, err = s.store.Count(s.ctx, store.News)
	s.NoError(err)
	s.Equal(0, n)

	got, err := s.store.Scan(s.ctx, store.News, store.IndexRank, store.All, 0)
	s.NoError(err)
	s.Empty(got)
}

func (s *Suite) TestNextSequence_Monotonic() {
	first, err := s.store.NextSequence(s.ctx, store.SyncQueue)
	s.Require().NoError(err)
	second, err := s.store.NextSequence(s.ctx, store.SyncQueue)
	s.Require().NoError(err)
	s.Greater(second, first)

	s.Require().NoError(s.store.Clear(s.ctx, store.SyncQueue))
	third, err := s.store.NextSequence(s.ctx, store.SyncQueue)
	s.Require().NoError(err)
	s.Greater(third, second)
}

func (s *Suite) TestClosedStore_Unavailable() {
	s.Require().NoError(s.store.Close())
	_, err := s.store.Get(s.ctx, store.News, "1")
	s.ErrorIs(err, domain.ErrStoreUnavailable)
	s.store = nil
}
