package models

import (
	"time"
)

// Paper repräsentiert einen arXiv-Eintrag und dessen Metadaten.
type Paper struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	// ArxivID wie von arXiv geliefert, inklusive Versions-Suffix (z.B. "2401.12345v2")
	ArxivID         string     `json:"arxiv_id" gorm:"column:arxiv_id;size:64;uniqueIndex;not null"`
	Title           string     `json:"title" gorm:"type:text;not null"`
	Abstract        string     `json:"abstract,omitempty" gorm:"type:text"`
	PublishedDate   time.Time  `json:"published_date" gorm:"type:date;index;not null"`
	UpdatedDate     *time.Time `json:"updated_date,omitempty" gorm:"type:date"`
	Comment         *string    `json:"comment,omitempty" gorm:"type:text"`
	JournalRef      *string    `json:"journal_ref,omitempty" gorm:"type:text"`
	DOI             *string    `json:"doi,omitempty" gorm:"column:doi;size:255"`
	PrimaryCategory string     `json:"primary_category" gorm:"size:32;index"`

	// Authors wird nicht persistiert, sondern beim Lesen aus paper_authors befüllt.
	Authors []string `json:"authors" gorm:"-"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}

// Author repräsentiert einen Autor, identifiziert über den Anzeigenamen.
type Author struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:255;uniqueIndex;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Author) TableName() string {
	return "authors"
}

// PaperAuthor verknüpft Paper und Autor mit der Position in der Autorenliste (1-basiert).
type PaperAuthor struct {
	PaperID     uint `gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_paper_author_order,priority:1"`
	AuthorID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	AuthorOrder int  `gorm:"not null;uniqueIndex:idx_paper_author_order,priority:2"`
}

// TableName gibt explizit den Tabellennamen an.
func (PaperAuthor) TableName() string {
	return "paper_authors"
}
