package web

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arxiv-frontend/config"
	"arxiv-frontend/providers/doi"
	"arxiv-frontend/services"
)

// BibTeXFetcher liefert den BibTeX-Eintrag des Verlags zu einer DOI.
type BibTeXFetcher interface {
	BibTeX(ctx context.Context, doi string) (string, error)
}

// Options bündelt die Abhängigkeiten des Routers.
type Options struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
	// DOI ist optional, ohne Angabe wird doi.org direkt angefragt.
	DOI BibTeXFetcher
	Now func() time.Time
}

// NewRouter baut die gin-Engine mit allen Routen der Weboberfläche.
func NewRouter(opts Options) (*gin.Engine, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if opts.DOI == nil {
		opts.DOI = doi.NewFetcher(opts.Config, opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := &handler{
		db:      opts.DB,
		catalog: services.NewCatalog(opts.DB, opts.Logger),
		tags:    services.NewTagService(opts.DB, opts.Logger),
		doi:     opts.DOI,
		log:     opts.Logger,
		now:     opts.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(opts.Logger))
	router.SetHTMLTemplate(tmpl)
	router.NoRoute(h.notFound)

	router.GET("/metrics", apiKeyAuth(opts.Config.SecretKey), gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", h.healthz)

	setupPageRoutes(router, h)
	setupExportRoutes(router, h)
	setupTagRoutes(router, h)

	return router, nil
}

func setupPageRoutes(router *gin.Engine, h *handler) {
	router.GET("/", h.index)
	// Catch-all, damit alte IDs wie math/0601001v1 funktionieren
	router.GET("/paper/*arxiv_id", h.paperDetail)
	router.GET("/search", h.search)
	router.GET("/author/*name", h.authorPapers)
	router.GET("/browse", h.browse)
	router.GET("/date/:date", h.papersOnDate)
}

func setupExportRoutes(router *gin.Engine, h *handler) {
	rg := router.Group("/api")
	rg.GET("/bibtex/*arxiv_id", h.bibtex)
	rg.GET("/doi-bibtex/*arxiv_id", h.doiBibtex)
}

func setupTagRoutes(router *gin.Engine, h *handler) {
	rg := router.Group("/api")
	rg.GET("/tags", h.listTags)
	rg.GET("/tags/:name/papers", h.papersByTag)
	rg.GET("/fulltext", h.fullText)
}
