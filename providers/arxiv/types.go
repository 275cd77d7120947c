package arxiv

import (
	"strings"
	"time"

	"arxiv-frontend/providers"

	"golang.org/x/text/unicode/norm"
)

// Feed ist die Top-Level-Struktur der arXiv-Atom-Antwort.
type Feed struct {
	TotalResults int     `xml:"totalResults"`
	StartIndex   int     `xml:"startIndex"`
	Entries      []Entry `xml:"entry"`
}

// Entry repräsentiert einen einzelnen Eintrag im Atom-Feed.
type Entry struct {
	ID              string     `xml:"id"`
	Title           string     `xml:"title"`
	Summary         string     `xml:"summary"`
	Published       string     `xml:"published"`
	Updated         string     `xml:"updated"`
	Authors         []Author   `xml:"author"`
	Comment         string     `xml:"comment"`
	JournalRef      string     `xml:"journal_ref"`
	DOI             string     `xml:"doi"`
	PrimaryCategory Category   `xml:"primary_category"`
	Categories      []Category `xml:"category"`
}

// Author ist ein Autor-Element im Atom-Feed.
type Author struct {
	Name string `xml:"name"`
}

// Category trägt den Kategorie-Code im term-Attribut.
type Category struct {
	Term string `xml:"term,attr"`
}

// isError erkennt die Fehler-Einträge, die arXiv bei ungültigen IDs liefert.
func (e *Entry) isError() bool {
	return strings.Contains(e.ID, "/api/errors")
}

// entryID schneidet die ID aus der abs-URL (http://arxiv.org/abs/2401.12345v1 -> 2401.12345v1).
func entryID(rawURL string) string {
	const marker = "/abs/"
	idx := strings.LastIndex(rawURL, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(rawURL[idx+len(marker):])
}

// toRecord normalisiert einen Atom-Eintrag. Fehlende Pflichtfelder bleiben leer
// und werden beim Upsert als fehlerhafter Datensatz gezählt.
func toRecord(e *Entry) *providers.Record {
	rec := &providers.Record{
		ArxivID:         entryID(e.ID),
		Title:           collapseSpace(e.Title),
		Abstract:        collapseSpace(e.Summary),
		Comment:         optional(e.Comment),
		JournalRef:      optional(e.JournalRef),
		DOI:             optional(e.DOI),
		PrimaryCategory: strings.TrimSpace(e.PrimaryCategory.Term),
	}
	if rec.PrimaryCategory == "" && len(e.Categories) > 0 {
		rec.PrimaryCategory = strings.TrimSpace(e.Categories[0].Term)
	}
	if t, ok := parseDay(e.Published); ok {
		rec.PublishedDate = t
	}
	if t, ok := parseDay(e.Updated); ok {
		rec.UpdatedDate = &t
	}
	for _, a := range e.Authors {
		if name := collapseSpace(a.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	return rec
}

// parseDay parst einen RFC3339-Zeitstempel und kürzt ihn auf den UTC-Kalendertag.
func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// collapseSpace fasst Whitespace zusammen und bringt den Text in NFC-Form,
// damit derselbe Autorenname immer auf dieselbe Zeile in authors fällt.
func collapseSpace(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func optional(s string) *string {
	s = collapseSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
