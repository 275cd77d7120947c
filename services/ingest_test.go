package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-frontend/config"
	"arxiv-frontend/models"
	"arxiv-frontend/providers"
)

func newIngest(t *testing.T, p *fakeProvider) (*IngestService, *fakeProvider) {
	t.Helper()
	cfg := &config.Config{ArxivCategory: "math.CO"}
	return NewIngestService(cfg, newTestDB(t), zap.NewNop(), p), p
}

func countRows(t *testing.T, svc *IngestService, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.DB.Model(model).Count(&n).Error)
	return n
}

func TestRunRangeInsertsPapersWithOrderedAuthors(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "Jane Doe", "John Smith"),
		record("2401.00002v2", "Trees", "2024-01-06", "John Smith"),
	}})

	result, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Inserted)
	assert.Zero(t, result.Updated)
	assert.Empty(t, result.Errors)

	assert.Equal(t, int64(2), countRows(t, svc, &models.Paper{}))
	assert.Equal(t, int64(2), countRows(t, svc, &models.Author{}), "same name must map to the same author")
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, authorNames(t, svc.DB, "2401.00001v1"))
}

func TestUpsertIsIdempotent(t *testing.T) {
	rec := record("2401.00001v1", "Graphs", "2024-01-05", "Jane Doe", "John Smith")
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{rec}})

	_, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	result, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Inserted)
	assert.Equal(t, int64(1), countRows(t, svc, &models.Paper{}))
	assert.Equal(t, int64(2), countRows(t, svc, &models.PaperAuthor{}))
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, authorNames(t, svc.DB, "2401.00001v1"))
}

func TestReingestReplacesAuthorsAndFields(t *testing.T) {
	provider := &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "A", "B", "C"),
	}}
	svc, _ := newIngest(t, provider)
	_, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	revised := record("2401.00001v1", "Graphs, revised", "2024-01-05", "C", "A")
	revised.DOI = strPtr("10.1000/xyz")
	provider.records = []*providers.Record{revised}
	_, err = svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "A"}, authorNames(t, svc.DB, "2401.00001v1"))

	var paper models.Paper
	require.NoError(t, svc.DB.Where("arxiv_id = ?", "2401.00001v1").First(&paper).Error)
	assert.Equal(t, "Graphs, revised", paper.Title)
	require.NotNil(t, paper.DOI)
	assert.Equal(t, "10.1000/xyz", *paper.DOI)
}

func TestDuplicateAuthorKeepsFirstPosition(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "A", "B", "A"),
	}})

	result, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	var links []models.PaperAuthor
	require.NoError(t, svc.DB.Order("author_order").Find(&links).Error)
	require.Len(t, links, 2)
	assert.Equal(t, 1, links[0].AuthorOrder)
	assert.Equal(t, 2, links[1].AuthorOrder)
}

func TestMalformedRecordIsSkipped(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "A"),
		{ArxivID: "2401.00002v1", PublishedDate: day("2024-01-05")},
		{Title: "No id", PublishedDate: day("2024-01-05")},
		record("2401.00003v1", "Trees", "2024-01-06", "B"),
	}})

	result, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "2401.00002v1", result.Errors[0].ArxivID)
	assert.Equal(t, "unknown", result.Errors[1].ArxivID)
	assert.Equal(t, int64(2), countRows(t, svc, &models.Paper{}))
}

func TestUpstreamErrorRollsBackBatch(t *testing.T) {
	boom := errors.New("connection reset")
	svc, _ := newIngest(t, &fakeProvider{
		records: []*providers.Record{record("2401.00001v1", "Graphs", "2024-01-05", "A")},
		err:     boom,
	})

	_, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.ErrorIs(t, err, boom)

	assert.Zero(t, countRows(t, svc, &models.Paper{}))
	assert.Zero(t, countRows(t, svc, &models.PaperAuthor{}))
}

func TestRunRangeRejectsInvertedRange(t *testing.T) {
	svc, provider := newIngest(t, &fakeProvider{})

	_, err := svc.RunRange(context.Background(), day("2024-02-01"), day("2024-01-01"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
	assert.Empty(t, provider.queries)
}

func TestRunRecentBuildsWindow(t *testing.T) {
	svc, provider := newIngest(t, &fakeProvider{})
	svc.Now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	_, err := svc.RunRecent(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, provider.queries, 1)
	q := provider.queries[0]
	assert.Equal(t, "math.CO", q.Category)
	assert.Equal(t, RecentMaxResults, q.MaxResults)
	assert.Equal(t, "2024-03-08", q.From.Format(DateLayout))
	assert.Equal(t, "2024-03-10", q.Until.Format(DateLayout))

	_, err = svc.RunRecent(context.Background(), 0)
	assert.Error(t, err)
}

func TestRunByID(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{lookup: map[string]*providers.Record{
		"2401.00001": record("2401.00001v3", "Graphs", "2024-01-05", "A"),
	}})

	result, err := svc.RunByID(context.Background(), "2401.00001")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	result, err = svc.RunByID(context.Background(), "9999.99999")
	require.NoError(t, err, "unknown ids only warn")
	assert.Zero(t, result.Processed)
	assert.Equal(t, int64(1), countRows(t, svc, &models.Paper{}))
}

func TestEmptyAuthorNameIsRejected(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "Jane Doe"),
		record("2401.00002v1", "Trees", "2024-01-06", "John Smith", " "),
	}})

	result, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "2401.00002v1", result.Errors[0].ArxivID)
	assert.Equal(t, int64(1), countRows(t, svc, &models.Author{}))
}

func TestLinkAuthorsMatchesExactName(t *testing.T) {
	svc, _ := newIngest(t, &fakeProvider{records: []*providers.Record{
		record("2401.00001v1", "Graphs", "2024-01-05", "Jane Doe"),
	}})
	_, err := svc.RunRange(context.Background(), day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)

	var jane models.Author
	require.NoError(t, svc.DB.Where("name = ?", "Jane Doe").First(&jane).Error)

	require.NoError(t, linkAuthors(svc.DB, 999, []string{""}))

	var links []models.PaperAuthor
	require.NoError(t, svc.DB.Where("paper_id = ?", 999).Find(&links).Error)
	require.Len(t, links, 1)
	assert.NotEqual(t, jane.ID, links[0].AuthorID, "empty name must not resolve to a stored author")
}
