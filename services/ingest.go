package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-frontend/config"
	"arxiv-frontend/models"
	"arxiv-frontend/providers"
)

// Obergrenzen pro Lauf.
const (
	RecentMaxResults   = 500
	BackfillMaxResults = 5000
)

const recordSavepoint = "ingest_record"

// RecordError beschreibt einen einzelnen Datensatz, der übersprungen wurde.
type RecordError struct {
	ArxivID string
	Err     error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.ArxivID, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// BatchResult fasst einen Ingestion-Lauf zusammen.
type BatchResult struct {
	Processed int
	Inserted  int
	Updated   int
	Errors    []RecordError
}

// IngestService holt Metadaten von einem Provider und schreibt sie per Upsert in die Datenbank.
type IngestService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Provider providers.Provider
	Now      func() time.Time
}

// NewIngestService erstellt eine neue Instanz des IngestService.
func NewIngestService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, provider providers.Provider) *IngestService {
	return &IngestService{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Provider: provider,
		Now:      time.Now,
	}
}

// RunRecent lädt alle Einreichungen der letzten days Tage.
func (s *IngestService) RunRecent(ctx context.Context, days int) (*BatchResult, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	end := s.Now().UTC()
	start := end.AddDate(0, 0, -days)
	s.Logger.Info("Fetching recent papers", zap.Int("days", days))
	return s.runQuery(ctx, providers.Query{
		Category:   s.Config.ArxivCategory,
		From:       start,
		Until:      end,
		MaxResults: RecentMaxResults,
	})
}

// RunRange lädt alle Einreichungen zwischen start und end (jeweils inklusive).
func (s *IngestService) RunRange(ctx context.Context, start, end time.Time) (*BatchResult, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	s.Logger.Info("Fetching papers in date range",
		zap.String("start", start.Format(DateLayout)),
		zap.String("end", end.Format(DateLayout)))
	return s.runQuery(ctx, providers.Query{
		Category:   s.Config.ArxivCategory,
		From:       start,
		Until:      end,
		MaxResults: BackfillMaxResults,
	})
}

// RunByID lädt genau ein Paper. Kennt die Quelle die ID nicht, wird nur gewarnt.
func (s *IngestService) RunByID(ctx context.Context, arxivID string) (*BatchResult, error) {
	log := s.Logger.With(zap.String("arxiv_id", arxivID))
	log.Info("Fetching single paper")

	rec, err := s.Provider.Lookup(ctx, arxivID)
	if errors.Is(err, providers.ErrNotFound) {
		log.Warn("Paper not found upstream")
		return &BatchResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", arxivID, err)
	}

	result := &BatchResult{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action, err := s.upsertRecord(tx, rec)
		if err != nil {
			return err
		}
		result.count(action)
		return nil
	})
	if err != nil {
		ingestRecordErrors.Inc()
		log.Error("Failed to store paper", zap.Error(err))
		return nil, err
	}
	log.Info("Stored paper", zap.Int("inserted", result.Inserted), zap.Int("updated", result.Updated))
	return result, nil
}

// runQuery schreibt alle Treffer einer Suche in einer Transaktion.
// Jeder Datensatz läuft in einem eigenen Savepoint.
func (s *IngestService) runQuery(ctx context.Context, q providers.Query) (*BatchResult, error) {
	result := &BatchResult{}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for rec, err := range s.Provider.Search(ctx, q) {
			if err != nil {
				return fmt.Errorf("fetch from %s: %w", s.Provider.Name(), err)
			}
			if err := s.processRecord(tx, rec, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("Ingestion failed, batch rolled back", zap.Error(err))
		return result, err
	}

	s.Logger.Info("Ingestion finished",
		zap.Int("processed", result.Processed),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// processRecord kapselt einen Datensatz in einen Savepoint. Nur Fehler beim
// Savepoint-Handling selbst brechen den Batch ab.
func (s *IngestService) processRecord(tx *gorm.DB, rec *providers.Record, result *BatchResult) error {
	if err := tx.SavePoint(recordSavepoint).Error; err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	action, err := s.upsertRecord(tx, rec)
	if err != nil {
		if rbErr := tx.RollbackTo(recordSavepoint).Error; rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		id := rec.ArxivID
		if id == "" {
			id = "unknown"
		}
		ingestRecordErrors.Inc()
		result.Errors = append(result.Errors, RecordError{ArxivID: id, Err: err})
		s.Logger.Warn("Skipping paper", zap.String("arxiv_id", id), zap.Error(err))
	} else {
		result.count(action)
		s.Logger.Info("Stored paper",
			zap.String("arxiv_id", rec.ArxivID),
			zap.String("action", action),
			zap.String("title", truncate(rec.Title, 60)))
	}

	if err := tx.Exec("RELEASE SAVEPOINT " + recordSavepoint).Error; err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (r *BatchResult) count(action string) {
	r.Processed++
	switch action {
	case actionInserted:
		r.Inserted++
	case actionUpdated:
		r.Updated++
	}
	papersUpserted.WithLabelValues(action).Inc()
}

const (
	actionInserted = "inserted"
	actionUpdated  = "updated"
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func validateRecord(rec *providers.Record) error {
	switch {
	case rec.ArxivID == "":
		return errors.New("missing arXiv id")
	case rec.Title == "":
		return errors.New("missing title")
	case rec.PublishedDate.IsZero():
		return errors.New("missing published date")
	}
	for i, name := range rec.Authors {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty author name at position %d", i+1)
		}
	}
	return nil
}

// upsertRecord legt das Paper an oder aktualisiert es und baut die Autorenliste neu auf.
func (s *IngestService) upsertRecord(tx *gorm.DB, rec *providers.Record) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}

	var paper models.Paper
	var action string
	err := tx.Where("arxiv_id = ?", rec.ArxivID).First(&paper).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"title":            rec.Title,
			"abstract":         rec.Abstract,
			"published_date":   rec.PublishedDate,
			"updated_date":     rec.UpdatedDate,
			"comment":          rec.Comment,
			"journal_ref":      rec.JournalRef,
			"doi":              rec.DOI,
			"primary_category": rec.PrimaryCategory,
		}
		if err := tx.Model(&paper).Updates(updates).Error; err != nil {
			return "", fmt.Errorf("update paper: %w", err)
		}
		if err := tx.Where("paper_id = ?", paper.ID).Delete(&models.PaperAuthor{}).Error; err != nil {
			return "", fmt.Errorf("clear authors: %w", err)
		}
		action = actionUpdated
	case errors.Is(err, gorm.ErrRecordNotFound):
		paper = models.Paper{
			ArxivID:         rec.ArxivID,
			Title:           rec.Title,
			Abstract:        rec.Abstract,
			PublishedDate:   rec.PublishedDate,
			UpdatedDate:     rec.UpdatedDate,
			Comment:         rec.Comment,
			JournalRef:      rec.JournalRef,
			DOI:             rec.DOI,
			PrimaryCategory: rec.PrimaryCategory,
		}
		if err := tx.Create(&paper).Error; err != nil {
			return "", fmt.Errorf("insert paper: %w", err)
		}
		action = actionInserted
	default:
		return "", fmt.Errorf("lookup paper: %w", err)
	}

	if err := linkAuthors(tx, paper.ID, rec.Authors); err != nil {
		return "", err
	}
	return action, nil
}

// linkAuthors verknüpft die Autoren in Quellreihenfolge. Ein doppelt
// genannter Name behält seine erste Position.
func linkAuthors(tx *gorm.DB, paperID uint, names []string) error {
	seen := make(map[uint]bool, len(names))
	for i, name := range names {
		var author models.Author
		err := tx.Where("name = ?", name).Attrs(models.Author{Name: name}).FirstOrCreate(&author).Error
		if err != nil {
			return fmt.Errorf("resolve author %q: %w", name, err)
		}
		if seen[author.ID] {
			continue
		}
		seen[author.ID] = true

		link := models.PaperAuthor{PaperID: paperID, AuthorID: author.ID, AuthorOrder: i + 1}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("link author %q: %w", name, err)
		}
	}
	return nil
}
