package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arxiv-frontend/config"
	"arxiv-frontend/logging"
	"arxiv-frontend/services"
	"arxiv-frontend/storage"
)

// BackupConfig enthält die Zugangsdaten für das Backup-Ziel.
type BackupConfig struct {
	storage.S3Config
	KeepBackups int `envconfig:"KEEP_BACKUPS" default:"4"`
}

// Validate stellt sicher, dass die Rotation den neuen Snapshot behält.
func (c BackupConfig) Validate() error {
	if c.KeepBackups < 1 {
		return fmt.Errorf("KEEP_BACKUPS must be at least 1, got %d", c.KeepBackups)
	}
	return nil
}

var outputPath string

var rootCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export the catalogue as gzipped BibTeX and upload it to S3",
	Long: `backup renders every stored paper with the same BibTeX formatter as the
web export, uploads the snapshot to the configured bucket and keeps only the
newest KEEP_BACKUPS snapshots.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the snapshot to this file instead of uploading it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBackup(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

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
	catalog := services.NewCatalog(db, log)

	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		n, err := services.WriteSnapshot(ctx, catalog, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		log.Info("Snapshot written", zap.String("path", outputPath), zap.Int("papers", n))
		return nil
	}

	var bcfg BackupConfig
	if err := envconfig.Process("", &bcfg); err != nil {
		return fmt.Errorf("load backup config: %w", err)
	}
	if err := bcfg.Validate(); err != nil {
		return err
	}
	client, err := storage.NewS3Client(ctx, bcfg.S3Config)
	if err != nil {
		return err
	}

	log.Info("Starting backup...")
	if err := backup(ctx, catalog, client, bcfg, time.Now(), log); err != nil {
		log.Error("Backup failed", zap.Error(err))
		return err
	}
	log.Info("Backup finished")
	return nil
}

// backup lädt einen neuen Snapshot hoch und rotiert danach die alten.
func backup(ctx context.Context, catalog *services.Catalog, client storage.S3API, cfg BackupConfig, now time.Time, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	n, err := services.WriteSnapshot(ctx, catalog, &buf)
	if err != nil {
		return err
	}

	key := services.SnapshotKey(now)
	if err := storage.Upload(ctx, client, cfg.Bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
		return err
	}
	log.Info("Snapshot uploaded",
		zap.String("location", fmt.Sprintf("s3://%s/%s", cfg.Bucket, key)),
		zap.Int("papers", n),
		zap.Int("bytes", buf.Len()))

	if _, err := storage.Rotate(ctx, client, cfg.Bucket, services.SnapshotPrefix, cfg.KeepBackups, log); err != nil {
		return fmt.Errorf("rotate snapshots: %w", err)
	}
	return nil
}
