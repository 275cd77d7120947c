package services

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"arxiv-frontend/models"
)

// SnapshotPrefix ist allen Snapshot-Objekten gemeinsam.
const SnapshotPrefix = "snapshot-"

// SnapshotKey ist der Objektname eines Katalog-Snapshots.
func SnapshotKey(now time.Time) string {
	return fmt.Sprintf("%s%s.bib.gz", SnapshotPrefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

// WriteSnapshot schreibt den gesamten Katalog als gzip-komprimierte BibTeX-Datei
// nach w und gibt die Anzahl der Einträge zurück.
func WriteSnapshot(ctx context.Context, c *Catalog, w io.Writer) (int, error) {
	gz := gzip.NewWriter(w)
	n := 0
	err := c.EachPaper(ctx, func(p *models.Paper) error {
		if n > 0 {
			if _, err := io.WriteString(gz, "\n\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(gz, BibTeX(p)); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("render snapshot: %w", err)
	}
	if n > 0 {
		if _, err := io.WriteString(gz, "\n"); err != nil {
			return n, err
		}
	}
	if err := gz.Close(); err != nil {
		return n, err
	}
	return n, nil
}
