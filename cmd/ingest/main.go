package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arxiv-frontend/config"
	"arxiv-frontend/logging"
	"arxiv-frontend/providers/arxiv"
	"arxiv-frontend/services"
	"arxiv-frontend/storage"
)

// options sammelt die Flags eines Laufs.
type options struct {
	days        int
	startDate   string
	endDate     string
	arxivID     string
	schedule    string
	metricsAddr string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch paper metadata from the arXiv API into the database",
	Long: `ingest pulls submissions of the configured arXiv category and upserts
them together with their ordered author lists.

Without flags the submissions of the last two days are fetched.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&opts.days, "days", 2, "fetch papers from the last N days")
	f.StringVar(&opts.startDate, "start-date", "", "start date (YYYY-MM-DD), requires --end-date")
	f.StringVar(&opts.endDate, "end-date", "", "end date (YYYY-MM-DD), requires --start-date")
	f.StringVar(&opts.arxivID, "arxiv-id", "", "fetch a single paper by arXiv id")
	f.StringVar(&opts.schedule, "schedule", "", "keep running and fetch recent papers on this cron schedule")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "expose prometheus metrics on this address, e.g. :9101")

	rootCmd.MarkFlagsRequiredTogether("start-date", "end-date")
	rootCmd.MarkFlagsMutuallyExclusive("days", "start-date", "arxiv-id")
	rootCmd.MarkFlagsMutuallyExclusive("schedule", "start-date")
	rootCmd.MarkFlagsMutuallyExclusive("schedule", "arxiv-id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.NewCLI(cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	db, err := storage.Open(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	defer storage.Close(db)
	if err := storage.Migrate(db); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return err
	}

	svc := services.NewIngestService(cfg, db, log, arxiv.NewFetcher(cfg, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		go serveMetrics(ctx, opts.metricsAddr, log)
	}

	if opts.schedule != "" {
		return runScheduled(ctx, svc, opts, log)
	}

	result, err := runOnce(ctx, svc, opts)
	if err != nil {
		log.Error("Ingestion failed", zap.Error(err))
		return err
	}
	report(log, result)
	return nil
}

// runOnce wählt anhand der Flags genau einen Modus.
func runOnce(ctx context.Context, svc *services.IngestService, o options) (*services.BatchResult, error) {
	switch {
	case o.arxivID != "":
		return svc.RunByID(ctx, o.arxivID)
	case o.startDate != "" || o.endDate != "":
		if o.startDate == "" || o.endDate == "" {
			return nil, errors.New("--start-date and --end-date must be given together")
		}
		start, err := services.ParseDate(o.startDate)
		if err != nil {
			return nil, err
		}
		end, err := services.ParseDate(o.endDate)
		if err != nil {
			return nil, err
		}
		return svc.RunRange(ctx, start, end)
	default:
		return svc.RunRecent(ctx, o.days)
	}
}

func report(log *zap.Logger, r *services.BatchResult) {
	log.Info(fmt.Sprintf("Successfully processed %d papers.", r.Processed),
		zap.Int("inserted", r.Inserted),
		zap.Int("updated", r.Updated))
	if len(r.Errors) > 0 {
		log.Warn(fmt.Sprintf("Encountered %d errors (skipped those papers).", len(r.Errors)))
	}
}

// runScheduled blockiert bis ctx endet. Ein Lauf, der noch nicht fertig ist,
// lässt den nächsten Termin ausfallen.
func runScheduled(ctx context.Context, svc *services.IngestService, o options, log *zap.Logger) error {
	cl := cronLogger{log.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(o.schedule, func() {
		log.Info("Running scheduled ingestion...")
		result, err := svc.RunRecent(ctx, o.days)
		if err != nil {
			log.Error("Scheduled ingestion failed", zap.Error(err))
			return
		}
		report(log, result)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", o.schedule, err)
	}

	log.Info("Scheduler started", zap.String("schedule", o.schedule), zap.Int("days", o.days))
	c.Start()
	<-ctx.Done()
	log.Info("Stopping scheduler, waiting for running job...")
	<-c.Stop().Done()
	return nil
}

func serveMetrics(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 15 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server failed", zap.Error(err))
	}
}

// cronLogger leitet die Meldungen des Schedulers an zap weiter.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
