package providers

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound wird zurückgegeben, wenn die Quelle zu einer ID keinen Eintrag kennt.
var ErrNotFound = errors.New("paper not found upstream")

// Record ist ein normalisierter Metadaten-Datensatz einer Quelle, bereit zum Upsert.
type Record struct {
	ArxivID         string
	Title           string
	Abstract        string
	PublishedDate   time.Time
	UpdatedDate     *time.Time
	Comment         *string
	JournalRef      *string
	DOI             *string
	PrimaryCategory string
	// Authors in Quellreihenfolge; die Position wird zur author_order.
	Authors []string
}

// Query beschreibt eine Auswahl nach Kategorie und Einreichungszeitraum.
type Query struct {
	Category   string
	From       time.Time
	Until      time.Time
	MaxResults int
}

// Provider ist das Interface, das jede Metadaten-Quelle implementieren muss.
type Provider interface {
	// Search liefert die Treffer lazy; ein Fehler beendet die Sequenz.
	Search(ctx context.Context, q Query) iter.Seq2[*Record, error]

	// Lookup holt genau einen Eintrag anhand seiner ID.
	Lookup(ctx context.Context, id string) (*Record, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "arxiv").
	Name() string
}
