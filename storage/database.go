package storage

import (
	"fmt"

	"arxiv-frontend/config"
	"arxiv-frontend/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const fullTextIndexName = "ft_papers_title_abstract"

// Open öffnet die Datenbankverbindung für den konfigurierten Treiber.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dialector = mysql.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite erlaubt nur einen Schreiber; ein einziger Pool-Eintrag vermeidet "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Connected to database", zap.String("driver", cfg.DBDriver), zap.String("database", cfg.DBName))
	return db, nil
}

// Migrate legt das Schema an und erzeugt den Volltext-Index passend zum Dialekt.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Paper{},
		&models.Author{},
		&models.PaperAuthor{},
		&models.Tag{},
		&models.PaperTag{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Volltext-Indizes sind dialektspezifisch und laufen deshalb über Raw-SQL.
	switch db.Dialector.Name() {
	case "mysql":
		if db.Migrator().HasIndex(&models.Paper{}, fullTextIndexName) {
			return nil
		}
		return db.Exec("CREATE FULLTEXT INDEX " + fullTextIndexName + " ON papers (title, abstract)").Error
	case "postgres":
		return db.Exec("CREATE INDEX IF NOT EXISTS " + fullTextIndexName +
			" ON papers USING GIN (to_tsvector('english', title || ' ' || coalesce(abstract, '')))").Error
	}
	return nil
}

// Close schließt den zugrunde liegenden Verbindungspool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
