package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-frontend/models"
)

// PaperPage ist eine Seite einer Paper-Liste.
type PaperPage struct {
	Papers     []models.Paper `json:"papers"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int64          `json:"total"`
}

// Stats sind die Kennzahlen für die Startseite.
type Stats struct {
	Papers     int64      `json:"papers"`
	Authors    int64      `json:"authors"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
}

// Catalog kapselt alle lesenden Abfragen der Weboberfläche.
type Catalog struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewCatalog erstellt einen neuen Catalog.
func NewCatalog(db *gorm.DB, logger *zap.Logger) *Catalog {
	return &Catalog{DB: db, Logger: logger}
}

// Stats zählt Papers und Autoren und ermittelt das jüngste Veröffentlichungsdatum.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	db := c.DB.WithContext(ctx)
	var s Stats
	if err := db.Model(&models.Paper{}).Count(&s.Papers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Author{}).Count(&s.Authors).Error; err != nil {
		return nil, err
	}

	var latest models.Paper
	err := db.Select("published_date").Order("published_date DESC").Take(&latest).Error
	switch {
	case err == nil:
		s.LatestDate = &latest.PublishedDate
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return &s, nil
}

// RecentPapers listet alle Papers, neueste zuerst.
func (c *Catalog) RecentPapers(ctx context.Context, page int) (*PaperPage, error) {
	return c.listPage(ctx, c.DB.WithContext(ctx).Model(&models.Paper{}), page)
}

// Paper lädt ein Paper samt Autoren über die gespeicherte arXiv-ID.
func (c *Catalog) Paper(ctx context.Context, arxivID string) (*models.Paper, error) {
	var paper models.Paper
	err := c.DB.WithContext(ctx).Where("arxiv_id = ?", arxivID).First(&paper).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaperNotFound
	}
	if err != nil {
		return nil, err
	}

	papers := []models.Paper{paper}
	if err := c.attachAuthors(ctx, papers); err != nil {
		return nil, err
	}
	return &papers[0], nil
}

// Search sucht per LIKE in Titel, Abstract und Autorennamen.
func (c *Catalog) Search(ctx context.Context, query string, page int) (*PaperPage, error) {
	if query == "" {
		return &PaperPage{Page: NormalizePage(page)}, nil
	}

	db := c.DB.WithContext(ctx)
	term := "%" + query + "%"
	like := likeOperator(db)
	matching := db.Table("papers").
		Select("papers.id").
		Joins("LEFT JOIN paper_authors ON paper_authors.paper_id = papers.id").
		Joins("LEFT JOIN authors ON authors.id = paper_authors.author_id").
		Where(fmt.Sprintf("papers.title %[1]s ? OR papers.abstract %[1]s ? OR authors.name %[1]s ?", like), term, term, term)

	return c.listPage(ctx, db.Model(&models.Paper{}).Where("id IN (?)", matching), page)
}

// AuthorPapers listet die Papers eines Autors, exakt über den Namen.
func (c *Catalog) AuthorPapers(ctx context.Context, name string, page int) (*models.Author, *PaperPage, error) {
	db := c.DB.WithContext(ctx)
	var author models.Author
	err := db.Where("name = ?", name).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrAuthorNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	authored := db.Model(&models.PaperAuthor{}).Select("paper_id").Where("author_id = ?", author.ID)
	result, err := c.listPage(ctx, db.Model(&models.Paper{}).Where("id IN (?)", authored), page)
	if err != nil {
		return nil, nil, err
	}
	return &author, result, nil
}

// PapersOnDate listet die an einem Kalendertag veröffentlichten Papers.
func (c *Catalog) PapersOnDate(ctx context.Context, day time.Time) ([]models.Paper, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var papers []models.Paper
	err := c.DB.WithContext(ctx).
		Where("published_date >= ? AND published_date < ?", start, start.AddDate(0, 0, 1)).
		Order("id DESC").
		Find(&papers).Error
	if err != nil {
		return nil, err
	}
	if err := c.attachAuthors(ctx, papers); err != nil {
		return nil, err
	}
	return papers, nil
}

// DayCounts zählt die Papers pro Tag eines Jahres, indiziert nach YYYY-MM-DD.
func (c *Catalog) DayCounts(ctx context.Context, year int) (map[string]int64, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	var dates []time.Time
	err := c.DB.WithContext(ctx).Model(&models.Paper{}).
		Where("published_date >= ? AND published_date < ?", start, start.AddDate(1, 0, 0)).
		Pluck("published_date", &dates).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, d := range dates {
		counts[d.UTC().Format(DateLayout)]++
	}
	return counts, nil
}

// YearCounts liefert alle Jahre mit Papers, absteigend.
func (c *Catalog) YearCounts(ctx context.Context) ([]YearCount, error) {
	db := c.DB.WithContext(ctx)
	expr := yearExpression(db)
	var years []YearCount
	err := db.Model(&models.Paper{}).
		Select(expr + " AS year, COUNT(*) AS count").
		Group(expr).
		Order("year DESC").
		Scan(&years).Error
	return years, err
}

// EachPaper ruft fn für jedes Paper samt Autoren auf, in Batches nach ID.
func (c *Catalog) EachPaper(ctx context.Context, fn func(*models.Paper) error) error {
	var batch []models.Paper
	return c.DB.WithContext(ctx).FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
		if err := c.attachAuthors(ctx, batch); err != nil {
			return err
		}
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	}).Error
}

// listPage zählt die Treffer von base und lädt die angeforderte Seite.
func (c *Catalog) listPage(ctx context.Context, base *gorm.DB, page int) (*PaperPage, error) {
	page = NormalizePage(page)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var papers []models.Paper
	err := base.Session(&gorm.Session{}).
		Order("published_date DESC, id DESC").
		Scopes(paginate(page)).
		Find(&papers).Error
	if err != nil {
		return nil, err
	}
	if err := c.attachAuthors(ctx, papers); err != nil {
		return nil, err
	}

	return &PaperPage{
		Papers:     papers,
		Page:       page,
		TotalPages: TotalPages(total),
		Total:      total,
	}, nil
}

type authorRow struct {
	PaperID uint
	Name    string
}

// attachAuthors befüllt Paper.Authors für alle übergebenen Papers mit einer Abfrage.
func (c *Catalog) attachAuthors(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	ids := make([]uint, len(papers))
	for i := range papers {
		ids[i] = papers[i].ID
	}

	var rows []authorRow
	err := c.DB.WithContext(ctx).Table("paper_authors").
		Select("paper_authors.paper_id, authors.name").
		Joins("JOIN authors ON authors.id = paper_authors.author_id").
		Where("paper_authors.paper_id IN ?", ids).
		Order("paper_authors.paper_id, paper_authors.author_order").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	byPaper := make(map[uint][]string, len(papers))
	for _, r := range rows {
		byPaper[r.PaperID] = append(byPaper[r.PaperID], r.Name)
	}
	for i := range papers {
		papers[i].Authors = byPaper[papers[i].ID]
		if papers[i].Authors == nil {
			papers[i].Authors = []string{}
		}
	}
	return nil
}

func likeOperator(db *gorm.DB) string {
	// PostgreSQL vergleicht bei LIKE case-sensitiv, MySQL und SQLite nicht.
	if db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

func yearExpression(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "CAST(EXTRACT(YEAR FROM published_date) AS INTEGER)"
	case "sqlite":
		return "CAST(strftime('%Y', published_date) AS INTEGER)"
	default:
		return "YEAR(published_date)"
	}
}
