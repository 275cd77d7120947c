package doi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"arxiv-frontend/config"

	"go.uber.org/zap"
)

const bibtexMediaType = "application/x-bibtex"

// Fetcher holt BibTeX-Einträge per DOI Content Negotiation.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt einen neuen DOI-Fetcher mit dem konfigurierten Timeout.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.DOITimeout},
	}
}

// BibTeX gibt den BibTeX-Text des Verlags unverändert zurück.
func (f *Fetcher) BibTeX(ctx context.Context, doi string) (string, error) {
	reqURL := strings.TrimRight(f.Config.DOIBaseURL, "/") + "/" + escapeDOI(doi)
	log := f.Logger.With(zap.String("doi", doi), zap.String("url", reqURL))
	log.Debug("Requesting BibTeX via DOI content negotiation")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", bibtexMediaType)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), reqURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// escapeDOI maskiert jedes Pfadsegment, die Schrägstriche der DOI bleiben erhalten.
func escapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
