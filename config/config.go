package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Unterstützte Datenbank-Treiber.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"0"`
	DBUser     string `envconfig:"DB_USER" default:"arxiv_user"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"arxiv_frontend"`
	DBCharset  string `envconfig:"DB_CHARSET" default:"utf8mb4"`

	SecretKey string `envconfig:"SECRET_KEY" default:"dev-secret-key-change-in-production"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	HTTPPort  string `envconfig:"HTTP_PORT" default:"5000"`

	// arXiv-API für die Ingestion
	ArxivAPIURL       string        `envconfig:"ARXIV_API_URL" default:"https://export.arxiv.org/api/query"`
	ArxivCategory     string        `envconfig:"ARXIV_CATEGORY" default:"math.CO"`
	ArxivPageSize     int           `envconfig:"ARXIV_PAGE_SIZE" default:"100"`
	ArxivRequestDelay time.Duration `envconfig:"ARXIV_REQUEST_DELAY" default:"3s"`

	// DOI Content Negotiation für BibTeX vom Verlag
	DOIBaseURL string        `envconfig:"DOI_BASE_URL" default:"https://doi.org"`
	DOITimeout time.Duration `envconfig:"DOI_TIMEOUT" default:"10s"`
}

// DSN gibt den Data Source Name für den konfigurierten Treiber zurück.
func (c *Config) DSN() (string, error) {
	switch c.DBDriver {
	case DriverMySQL:
		port := c.DBPort
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, port, c.DBName, c.DBCharset), nil
	case DriverPostgres:
		port := c.DBPort
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, port), nil
	case DriverSQLite:
		return c.DBName + "?_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
}

// Validate prüft Werte, die envconfig selbst nicht prüfen kann.
func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD not set, create a .env file based on .env.example")
	}
	if _, err := c.DSN(); err != nil {
		return err
	}
	if c.ArxivPageSize <= 0 {
		return fmt.Errorf("ARXIV_PAGE_SIZE must be positive, got %d", c.ArxivPageSize)
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
