package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings. DatabaseURL wins over DatabasePath when set.
	DatabaseURL  string
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Portal settings
	PortalBaseURL string
	UserAgent     string
	DetailToken   string

	// Scraper settings
	ScraperTimeout time.Duration
	ScraperRetries int
	SessionTTL     time.Duration

	// Pacing between upstream calls
	LoginDelay      time.Duration
	RequestDelay    time.Duration
	PageDelay       time.Duration
	CompetencyDelay time.Duration
	RoleDelay       time.Duration

	// Spreadsheet mirror
	SheetsExportPath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/ojv.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		PortalBaseURL:    strings.TrimRight(getEnv("PORTAL_BASE_URL", "https://oficinajudicialvirtual.pjud.cl"), "/"),
		UserAgent:        getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		DetailToken:      getEnv("DETAIL_TOKEN", "b36b9879b04415acb1868ce4df9fc422"),
		SheetsExportPath: getEnv("SHEETS_EXPORT_PATH", "./data/causas.csv"),
	}

	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", "30", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ScraperTimeout, err = durationEnv("SCRAPER_TIMEOUT", "30", time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", "30", time.Minute); err != nil {
		return nil, err
	}

	cfg.ScraperRetries, err = strconv.Atoi(getEnv("SCRAPER_RETRIES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_RETRIES: %w", err)
	}

	delays := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"LOGIN_DELAY_MS", "2000", &cfg.LoginDelay},
		{"REQUEST_DELAY_MS", "1000", &cfg.RequestDelay},
		{"PAGE_DELAY_MS", "1000", &cfg.PageDelay},
		{"COMPETENCY_DELAY_MS", "2000", &cfg.CompetencyDelay},
		{"ROLE_DELAY_MS", "3000", &cfg.RoleDelay},
	}
	for _, d := range delays {
		if *d.dst, err = durationEnv(d.key, d.def, time.Millisecond); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// UsesPostgres reports whether DatabaseURL points at a postgres server.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func durationEnv(key, defaultValue string, unit time.Duration) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(n) * unit, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
