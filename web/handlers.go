package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-frontend/models"
	"arxiv-frontend/services"
)

type handler struct {
	db      *gorm.DB
	catalog *services.Catalog
	tags    *services.TagService
	doi     BibTeXFetcher
	log     *zap.Logger
	now     func() time.Time
}

func (h *handler) logger(c *gin.Context) *zap.Logger {
	return h.log.With(zap.String("request_id", c.GetString(requestIDKey)))
}

// render ergänzt die Felder, die das Layout auf jeder Seite erwartet.
func (h *handler) render(c *gin.Context, status int, name string, data gin.H) {
	if _, ok := data["Title"]; !ok {
		data["Title"] = ""
	}
	if _, ok := data["Query"]; !ok {
		data["Query"] = ""
	}
	if _, ok := data["LatestDate"]; !ok {
		data["LatestDate"] = (*time.Time)(nil)
	}
	c.HTML(status, name, data)
}

func (h *handler) notFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "error.html", gin.H{
		"Title":   "Not found",
		"Status":  http.StatusNotFound,
		"Message": "The requested page does not exist.",
	})
}

// fail bildet Service-Fehler auf 404 oder 500 ab.
func (h *handler) fail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrPaperNotFound) || errors.Is(err, services.ErrAuthorNotFound) {
		h.notFound(c)
		return
	}
	h.logger(c).Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	h.render(c, http.StatusInternalServerError, "error.html", gin.H{
		"Title":   "Error",
		"Status":  http.StatusInternalServerError,
		"Message": "Something went wrong while loading this page.",
	})
}

func pageParam(c *gin.Context) int {
	page, _ := strconv.Atoi(c.Query("page"))
	return services.NormalizePage(page)
}

// idParam liest den Catch-all-Parameter ohne führenden Slash.
func idParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("arxiv_id"), "/")
}

func (h *handler) index(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	list, err := h.catalog.RecentPapers(ctx, pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "index.html", gin.H{
		"Papers":       list.Papers,
		"Page":         list.Page,
		"TotalPages":   list.TotalPages,
		"Total":        stats.Papers,
		"TotalAuthors": stats.Authors,
		"LatestDate":   stats.LatestDate,
		"PagerBase":    "/?page=",
	})
}

func (h *handler) paperDetail(c *gin.Context) {
	ctx := c.Request.Context()
	paper, err := h.catalog.Paper(ctx, idParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	tags, err := h.tags.PaperTags(ctx, paper.ArxivID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "paper.html", gin.H{
		"Title":  paper.Title,
		"Paper":  paper,
		"Tags":   tags,
		"BibTeX": services.BibTeX(paper),
	})
}

func (h *handler) search(c *gin.Context) {
	ctx := c.Request.Context()
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		h.render(c, http.StatusOK, "search.html", gin.H{
			"Title": "Search", "Papers": []models.Paper{}, "Total": 0, "Page": 1, "TotalPages": 0,
		})
		return
	}

	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	result, err := h.catalog.Search(ctx, query, pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "search.html", gin.H{
		"Title":      "Search: " + query,
		"Query":      query,
		"Papers":     result.Papers,
		"Page":       result.Page,
		"TotalPages": result.TotalPages,
		"Total":      result.Total,
		"LatestDate": stats.LatestDate,
		"PagerBase":  "/search?q=" + url.QueryEscape(query) + "&page=",
	})
}

func (h *handler) authorPapers(c *gin.Context) {
	ctx := c.Request.Context()
	name := strings.TrimPrefix(c.Param("name"), "/")
	author, result, err := h.catalog.AuthorPapers(ctx, name, pageParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "author.html", gin.H{
		"Title":      author.Name,
		"Author":     author,
		"Papers":     result.Papers,
		"Page":       result.Page,
		"TotalPages": result.TotalPages,
		"Total":      result.Total,
		"LatestDate": stats.LatestDate,
		"PagerBase":  "/author/" + url.PathEscape(author.Name) + "?page=",
	})
}

func (h *handler) browse(c *gin.Context) {
	ctx := c.Request.Context()
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 1 {
		year = h.now().Year()
	}

	counts, err := h.catalog.DayCounts(ctx, year)
	if err != nil {
		h.fail(c, err)
		return
	}
	years, err := h.catalog.YearCounts(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "browse.html", gin.H{
		"Title":  "Browse " + strconv.Itoa(year),
		"Year":   year,
		"Months": services.BuildCalendar(year, counts),
		"Years":  years,
	})
}

func (h *handler) papersOnDate(c *gin.Context) {
	day, err := services.ParseDate(c.Param("date"))
	if err != nil {
		h.notFound(c)
		return
	}
	papers, err := h.catalog.PapersOnDate(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "date.html", gin.H{
		"Title":  day.Format(services.DateLayout),
		"Date":   day,
		"Papers": papers,
	})
}

func (h *handler) bibtex(c *gin.Context) {
	paper, err := h.catalog.Paper(c.Request.Context(), idParam(c))
	if errors.Is(err, services.ErrPaperNotFound) {
		c.String(http.StatusNotFound, "Paper not found")
		return
	}
	if err != nil {
		h.logger(c).Error("BibTeX export failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.String(http.StatusOK, "%s", services.BibTeX(paper))
}

func (h *handler) doiBibtex(c *gin.Context) {
	ctx := c.Request.Context()
	paper, err := h.catalog.Paper(ctx, idParam(c))
	if errors.Is(err, services.ErrPaperNotFound) || (err == nil && (paper.DOI == nil || *paper.DOI == "")) {
		c.String(http.StatusNotFound, "Paper or DOI not found")
		return
	}
	if err != nil {
		h.logger(c).Error("DOI lookup failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	text, err := h.doi.BibTeX(ctx, *paper.DOI)
	if err != nil {
		h.logger(c).Warn("DOI BibTeX fetch failed", zap.String("doi", *paper.DOI), zap.Error(err))
		c.String(http.StatusInternalServerError, "Error fetching DOI BibTeX: %s", err.Error())
		return
	}
	c.String(http.StatusOK, "%s", text)
}

func (h *handler) listTags(c *gin.Context) {
	tags, err := h.tags.AllTags(c.Request.Context(), models.TagType(c.Query("type")))
	if h.jsonError(c, err) {
		return
	}
	if tags == nil {
		tags = []services.TagCount{}
	}
	c.JSON(http.StatusOK, tags)
}

func (h *handler) papersByTag(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	papers, err := h.tags.PapersByTag(c.Request.Context(), c.Param("name"), models.TagType(c.Query("type")), limit)
	if h.jsonError(c, err) {
		return
	}
	if papers == nil {
		papers = []services.TaggedPaper{}
	}
	c.JSON(http.StatusOK, papers)
}

func (h *handler) fullText(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	results, err := h.tags.FullText(c.Request.Context(), c.Query("q"), limit)
	if h.jsonError(c, err) {
		return
	}
	if results == nil {
		results = []services.FullTextResult{}
	}
	c.JSON(http.StatusOK, results)
}

// jsonError schreibt eine JSON-Fehlerantwort und meldet, ob ein Fehler vorlag.
func (h *handler) jsonError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrInvalidTagType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger(c).Error("Tag query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
	return true
}

func (h *handler) healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger(c).Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
