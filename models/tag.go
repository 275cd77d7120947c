package models

// TagType beschreibt Herkunft bzw. Zweck eines Tags.
type TagType string

const (
	TagTypeMSC      TagType = "msc"      // MSC-Klassifikation, z.B. "05A15"
	TagTypePersonal TagType = "personal" // freie, persönliche Labels
	TagTypeArxiv    TagType = "arxiv"    // von arXiv gelieferte Kategorien
	TagTypeOther    TagType = "other"
)

// TagTypes listet alle erlaubten Tag-Typen.
var TagTypes = []TagType{TagTypeMSC, TagTypePersonal, TagTypeArxiv, TagTypeOther}

// Valid meldet, ob t zur geschlossenen Menge der Tag-Typen gehört.
func (t TagType) Valid() bool {
	for _, known := range TagTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Tag ist über das Paar (Name, TagType) eindeutig.
type Tag struct {
	ID          uint    `json:"-" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"size:255;not null;uniqueIndex:idx_tags_name_type,priority:1"`
	TagType     TagType `json:"tag_type" gorm:"column:tag_type;size:16;not null;uniqueIndex:idx_tags_name_type,priority:2"`
	Description *string `json:"description,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (Tag) TableName() string {
	return "tags"
}

// PaperTag ist die n:m-Verknüpfung zwischen Paper und Tag.
type PaperTag struct {
	PaperID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID   uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (PaperTag) TableName() string {
	return "paper_tags"
}
