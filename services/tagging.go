package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arxiv-frontend/models"
)

// Standard-Limits der Abfragen.
const (
	DefaultTagSearchLimit = 100
	DefaultFullTextLimit  = 50
)

// TagCount ist ein Tag mit der Anzahl verknüpfter Papers.
type TagCount struct {
	models.Tag
	PaperCount int64 `json:"paper_count"`
}

// TaggedPaper ist ein Treffer der Tag-Suche.
type TaggedPaper struct {
	ArxivID       string    `json:"arxiv_id"`
	Title         string    `json:"title"`
	PublishedDate time.Time `json:"published_date"`
}

// FullTextResult ist ein Treffer der Volltextsuche mit Relevanzwert.
type FullTextResult struct {
	ArxivID       string    `json:"arxiv_id"`
	Title         string    `json:"title"`
	Abstract      string    `json:"abstract"`
	PublishedDate time.Time `json:"published_date"`
	Relevance     float64   `json:"relevance"`
}

// TagService verwaltet Tags und ihre Verknüpfung mit Papers.
type TagService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewTagService erstellt einen neuen TagService.
func NewTagService(db *gorm.DB, logger *zap.Logger) *TagService {
	return &TagService{DB: db, Logger: logger}
}

func checkTagType(t models.TagType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTagType, t)
	}
	return nil
}

func findPaperID(tx *gorm.DB, arxivID string) (uint, error) {
	var paper models.Paper
	err := tx.Select("id").Where("arxiv_id = ?", arxivID).First(&paper).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrPaperNotFound, arxivID)
	}
	return paper.ID, err
}

// AddTag hängt ein Tag an ein Paper und legt das Tag bei Bedarf an.
// Ist das Tag bereits verknüpft, passiert nichts.
func (s *TagService) AddTag(ctx context.Context, arxivID, name string, tagType models.TagType, description *string) error {
	if err := checkTagType(tagType); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyTagName
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paperID, err := findPaperID(tx, arxivID)
		if err != nil {
			return err
		}

		var tag models.Tag
		err = tx.Where("name = ? AND tag_type = ?", name, tagType).
			Attrs(models.Tag{Name: name, TagType: tagType, Description: description}).
			FirstOrCreate(&tag).Error
		if err != nil {
			return fmt.Errorf("get or create tag: %w", err)
		}

		link := models.PaperTag{PaperID: paperID, TagID: tag.ID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	})
	if err != nil {
		return err
	}

	s.Logger.Info("Added tag", zap.String("arxiv_id", arxivID), zap.String("tag", name), zap.String("tag_type", string(tagType)))
	return nil
}

// RemoveTag löst die Verknüpfung. Das Tag selbst bleibt bestehen.
func (s *TagService) RemoveTag(ctx context.Context, arxivID, name string, tagType models.TagType) error {
	if err := checkTagType(tagType); err != nil {
		return err
	}

	db := s.DB.WithContext(ctx)
	paperID, err := findPaperID(db, arxivID)
	if err != nil {
		return err
	}

	var tag models.Tag
	err = db.Where("name = ? AND tag_type = ?", name, tagType).First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: [%s] %s", ErrTagNotFound, tagType, name)
	}
	if err != nil {
		return err
	}

	res := db.Where("paper_id = ? AND tag_id = ?", paperID, tag.ID).Delete(&models.PaperTag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: [%s] %s on %s", ErrLinkNotFound, tagType, name, arxivID)
	}

	s.Logger.Info("Removed tag", zap.String("arxiv_id", arxivID), zap.String("tag", name), zap.String("tag_type", string(tagType)))
	return nil
}

// PaperTags liefert die Tags eines Papers, sortiert nach Typ und Name.
func (s *TagService) PaperTags(ctx context.Context, arxivID string) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.DB.WithContext(ctx).
		Joins("JOIN paper_tags ON paper_tags.tag_id = tags.id").
		Joins("JOIN papers ON papers.id = paper_tags.paper_id").
		Where("papers.arxiv_id = ?", arxivID).
		Order("tags.tag_type, tags.name").
		Find(&tags).Error
	return tags, err
}

// PapersByTag sucht Papers mit exakt diesem Tag-Namen. Ein leerer tagType passt auf jeden Typ.
func (s *TagService) PapersByTag(ctx context.Context, name string, tagType models.TagType, limit int) ([]TaggedPaper, error) {
	if limit <= 0 {
		limit = DefaultTagSearchLimit
	}

	q := s.DB.WithContext(ctx).Table("papers").
		Select("papers.arxiv_id, papers.title, papers.published_date").
		Joins("JOIN paper_tags ON paper_tags.paper_id = papers.id").
		Joins("JOIN tags ON tags.id = paper_tags.tag_id").
		Where("tags.name = ?", name)
	if tagType != "" {
		if err := checkTagType(tagType); err != nil {
			return nil, err
		}
		q = q.Where("tags.tag_type = ?", tagType)
	}

	var papers []TaggedPaper
	err := q.Order("papers.published_date DESC").Limit(limit).Scan(&papers).Error
	return papers, err
}

// AllTags listet alle Tags mit Paper-Anzahl, optional gefiltert nach Typ.
func (s *TagService) AllTags(ctx context.Context, tagType models.TagType) ([]TagCount, error) {
	q := s.DB.WithContext(ctx).Table("tags").
		Select("tags.id, tags.name, tags.tag_type, tags.description, COUNT(paper_tags.paper_id) AS paper_count").
		Joins("LEFT JOIN paper_tags ON paper_tags.tag_id = tags.id").
		Group("tags.id, tags.name, tags.tag_type, tags.description")

	if tagType != "" {
		if err := checkTagType(tagType); err != nil {
			return nil, err
		}
		q = q.Where("tags.tag_type = ?", tagType).Order("tags.name")
	} else {
		q = q.Order("tags.tag_type, tags.name")
	}

	var tags []TagCount
	err := q.Scan(&tags).Error
	return tags, err
}

// FullText durchsucht Titel und Abstract mit der Relevanzbewertung der Datenbank.
// Sortiert nach Relevanz, bei Gleichstand nach Veröffentlichungsdatum.
func (s *TagService) FullText(ctx context.Context, query string, limit int) ([]FullTextResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultFullTextLimit
	}

	db := s.DB.WithContext(ctx)
	var (
		sql  string
		args []any
	)
	switch db.Dialector.Name() {
	case "mysql":
		const match = "MATCH(title, abstract) AGAINST(? IN NATURAL LANGUAGE MODE)"
		sql = "SELECT arxiv_id, title, abstract, published_date, " + match + " AS relevance" +
			" FROM papers WHERE " + match +
			" ORDER BY relevance DESC, published_date DESC LIMIT ?"
		args = []any{query, query, limit}
	case "postgres":
		const doc = "to_tsvector('english', title || ' ' || coalesce(abstract, ''))"
		const tsq = "plainto_tsquery('english', ?)"
		sql = "SELECT arxiv_id, title, abstract, published_date, ts_rank(" + doc + ", " + tsq + ") AS relevance" +
			" FROM papers WHERE " + doc + " @@ " + tsq +
			" ORDER BY relevance DESC, published_date DESC LIMIT ?"
		args = []any{query, query, limit}
	default:
		score, scoreArgs := termScore(query)
		sql = "SELECT arxiv_id, title, abstract, published_date, " + score + " AS relevance" +
			" FROM papers WHERE " + score + " > 0" +
			" ORDER BY relevance DESC, published_date DESC LIMIT ?"
		args = append(append(append(args, scoreArgs...), scoreArgs...), limit)
	}

	var results []FullTextResult
	if err := db.Raw(sql, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	return results, nil
}

// termScore baut den Relevanz-Ausdruck für Datenbanken ohne Volltextindex:
// pro Suchbegriff 2 Punkte für einen Treffer im Titel, 1 für das Abstract.
func termScore(query string) (string, []any) {
	terms := strings.Fields(strings.ToLower(query))
	parts := make([]string, 0, len(terms))
	args := make([]any, 0, 2*len(terms))
	for _, term := range terms {
		parts = append(parts, "(CASE WHEN instr(lower(title), ?) > 0 THEN 2 ELSE 0 END"+
			" + CASE WHEN instr(lower(abstract), ?) > 0 THEN 1 ELSE 0 END)")
		args = append(args, term, term)
	}
	return "(" + strings.Join(parts, " + ") + ")", args
}
