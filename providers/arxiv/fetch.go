package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"arxiv-frontend/config"
	"arxiv-frontend/providers"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// maxRetries begrenzt die Wiederholungen pro Seite.
const maxRetries = 3

// Fetcher implementiert das Provider-Interface für die arXiv-API.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher erstellt einen neuen arXiv Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	// arXiv bittet um mindestens drei Sekunden Abstand zwischen API-Aufrufen.
	limit := rate.Inf
	if cfg.ArxivRequestDelay > 0 {
		limit = rate.Every(cfg.ArxivRequestDelay)
	}
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		client:  httpClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "arxiv"
}

// SearchQuery baut den arXiv-Suchausdruck für Kategorie und Einreichungszeitraum.
func SearchQuery(q providers.Query) string {
	return fmt.Sprintf("cat:%s AND submittedDate:[%s0000 TO %s2359]",
		q.Category, q.From.Format("20060102"), q.Until.Format("20060102"))
}

// Search fragt arXiv seitenweise ab und liefert die Einträge einzeln aus.
func (f *Fetcher) Search(ctx context.Context, q providers.Query) iter.Seq2[*providers.Record, error] {
	return func(yield func(*providers.Record, error) bool) {
		query := SearchQuery(q)
		log := f.Logger.With(zap.String("query", query))
		log.Info("Starting arXiv search", zap.Int("max_results", q.MaxResults))

		pageSize := f.Config.ArxivPageSize
		for start := 0; q.MaxResults <= 0 || start < q.MaxResults; {
			size := pageSize
			if q.MaxResults > 0 && q.MaxResults-start < size {
				size = q.MaxResults - start
			}

			params := url.Values{}
			params.Set("search_query", query)
			params.Set("start", strconv.Itoa(start))
			params.Set("max_results", strconv.Itoa(size))
			params.Set("sortBy", "submittedDate")
			params.Set("sortOrder", "descending")

			feed, err := f.fetchFeed(ctx, params)
			// arXiv liefert gelegentlich leere Seiten, obwohl noch Treffer ausstehen.
			for retry := 1; err == nil && len(feed.Entries) == 0 && start < feed.TotalResults && retry <= maxRetries; retry++ {
				log.Warn("arXiv returned an empty page, retrying", zap.Int("start", start), zap.Int("retry", retry))
				feed, err = f.fetchFeed(ctx, params)
			}
			if err != nil {
				yield(nil, err)
				return
			}
			log.Debug("Fetched arXiv page", zap.Int("start", start), zap.Int("entries", len(feed.Entries)), zap.Int("total", feed.TotalResults))

			entries := feed.Entries
			if len(entries) > size {
				entries = entries[:size]
			}
			for i := range entries {
				if !yield(toRecord(&entries[i]), nil) {
					return
				}
			}

			start += len(entries)
			if len(entries) < size || (feed.TotalResults > 0 && start >= feed.TotalResults) {
				return
			}
		}
	}
}

// Lookup holt einen einzelnen Eintrag über id_list.
func (f *Fetcher) Lookup(ctx context.Context, id string) (*providers.Record, error) {
	params := url.Values{}
	params.Set("id_list", id)
	params.Set("max_results", "1")

	feed, err := f.fetchFeed(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 || feed.Entries[0].isError() || entryID(feed.Entries[0].ID) == "" {
		return nil, fmt.Errorf("%w: %s", providers.ErrNotFound, id)
	}
	return toRecord(&feed.Entries[0]), nil
}

// fetchFeed ruft die API auf und parst den Atom-Feed. Netzwerkfehler, 429 und
// 5xx werden bis zu maxRetries Mal wiederholt, jeweils im Takt des Limiters.
func (f *Fetcher) fetchFeed(ctx context.Context, params url.Values) (*Feed, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			f.Logger.Warn("Retrying arXiv request", zap.Int("retry", attempt), zap.Error(lastErr))
		}
		feed, retryable, err := f.fetchOnce(ctx, params)
		if err == nil {
			return feed, nil
		}
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, params url.Values) (*Feed, bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	reqURL := f.Config.ArxivAPIURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		f.Logger.Error("arXiv API returned non-200 status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed Feed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, false, fmt.Errorf("parse arXiv feed: %w", err)
	}
	return &feed, false, nil
}
