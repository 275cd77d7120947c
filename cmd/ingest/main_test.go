package main

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-frontend/config"
	"arxiv-frontend/providers"
	"arxiv-frontend/services"
	"arxiv-frontend/storage"
)

type recordingProvider struct {
	queries []providers.Query
	lookups []string
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Search(_ context.Context, q providers.Query) iter.Seq2[*providers.Record, error] {
	p.queries = append(p.queries, q)
	return func(yield func(*providers.Record, error) bool) {
		yield(&providers.Record{
			ArxivID:       "2401.00001v1",
			Title:         "Graphs",
			PublishedDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			Authors:       []string{"Jane Doe"},
		}, nil)
	}
}

func (p *recordingProvider) Lookup(_ context.Context, id string) (*providers.Record, error) {
	p.lookups = append(p.lookups, id)
	return nil, fmt.Errorf("%w: %s", providers.ErrNotFound, id)
}

func newService(t *testing.T) (*services.IngestService, *recordingProvider) {
	t.Helper()
	cfg := &config.Config{
		DBDriver:      config.DriverSQLite,
		DBName:        filepath.Join(t.TempDir(), "ingest.db"),
		ArxivCategory: "math.CO",
	}
	db, err := storage.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = storage.Close(db) })

	p := &recordingProvider{}
	svc := services.NewIngestService(cfg, db, zap.NewNop(), p)
	svc.Now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, p
}

func TestRunOnceDefaultsToRecentWindow(t *testing.T) {
	svc, p := newService(t)

	result, err := runOnce(context.Background(), svc, options{days: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	require.Len(t, p.queries, 1)
	assert.Equal(t, "2024-01-08", p.queries[0].From.Format(services.DateLayout))
	assert.Equal(t, services.RecentMaxResults, p.queries[0].MaxResults)
}

func TestRunOnceDateRange(t *testing.T) {
	svc, p := newService(t)

	_, err := runOnce(context.Background(), svc, options{days: 2, startDate: "2024-01-01", endDate: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, p.queries, 1)
	assert.Equal(t, "2024-01-01", p.queries[0].From.Format(services.DateLayout))
	assert.Equal(t, "2024-01-31", p.queries[0].Until.Format(services.DateLayout))
	assert.Equal(t, services.BackfillMaxResults, p.queries[0].MaxResults)
}

func TestRunOnceRejectsBadRanges(t *testing.T) {
	svc, p := newService(t)
	ctx := context.Background()

	_, err := runOnce(ctx, svc, options{startDate: "2024-01-01"})
	assert.Error(t, err)

	_, err = runOnce(ctx, svc, options{startDate: "01/01/2024", endDate: "2024-01-31"})
	assert.ErrorContains(t, err, "expected YYYY-MM-DD")

	_, err = runOnce(ctx, svc, options{startDate: "2024-02-01", endDate: "2024-01-01"})
	assert.ErrorIs(t, err, services.ErrInvalidDateRange)

	assert.Empty(t, p.queries)
}

func TestRunOnceSingleIDNotFoundIsNotAnError(t *testing.T) {
	svc, p := newService(t)

	result, err := runOnce(context.Background(), svc, options{days: 2, arxivID: "2401.99999"})
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, []string{"2401.99999"}, p.lookups)
	assert.Empty(t, p.queries)
}

func TestRunScheduledRejectsInvalidSchedule(t *testing.T) {
	svc, _ := newService(t)
	err := runScheduled(context.Background(), svc, options{days: 1, schedule: "every now and then"}, zap.NewNop())
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRunScheduledStopsWithContext(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runScheduled(ctx, svc, options{days: 1, schedule: "@daily"}, zap.NewNop()))
}
