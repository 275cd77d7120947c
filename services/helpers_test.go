package services

import (
	"context"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-frontend/config"
	"arxiv-frontend/providers"
	"arxiv-frontend/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		DBDriver: config.DriverSQLite,
		DBName:   filepath.Join(t.TempDir(), "arxiv.db"),
	}
	db, err := storage.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func record(id, title, published string, authors ...string) *providers.Record {
	return &providers.Record{
		ArxivID:         id,
		Title:           title,
		Abstract:        "Abstract of " + title,
		PublishedDate:   day(published),
		PrimaryCategory: "math.CO",
		Authors:         authors,
	}
}

// fakeProvider liefert feste Datensätze und optional danach einen Fehler.
type fakeProvider struct {
	records []*providers.Record
	err     error
	lookup  map[string]*providers.Record
	queries []providers.Query
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, q providers.Query) iter.Seq2[*providers.Record, error] {
	f.queries = append(f.queries, q)
	return func(yield func(*providers.Record, error) bool) {
		for _, rec := range f.records {
			if !yield(rec, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func (f *fakeProvider) Lookup(_ context.Context, id string) (*providers.Record, error) {
	if rec, ok := f.lookup[id]; ok {
		return rec, nil
	}
	return nil, providers.ErrNotFound
}

// seed schreibt Datensätze über den normalen Ingestion-Pfad.
func seed(t *testing.T, db *gorm.DB, records ...*providers.Record) {
	t.Helper()
	svc := NewIngestService(&config.Config{ArxivCategory: "math.CO"}, db, zap.NewNop(), &fakeProvider{records: records})
	result, err := svc.RunRange(context.Background(), day("2000-01-01"), day("2030-01-01"))
	require.NoError(t, err)
	require.Empty(t, result.Errors)
}

func authorNames(t *testing.T, db *gorm.DB, arxivID string) []string {
	t.Helper()
	var names []string
	err := db.Table("paper_authors").
		Joins("JOIN authors ON authors.id = paper_authors.author_id").
		Joins("JOIN papers ON papers.id = paper_authors.paper_id").
		Where("papers.arxiv_id = ?", arxivID).
		Order("paper_authors.author_order").
		Pluck("authors.name", &names).Error
	require.NoError(t, err)
	return names
}
