// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Detector backends.
const (
	DetectorHTTP   = "http"
	DetectorVision = "vision"
	DetectorText   = "text"
)

// Catalog drivers.
const (
	CatalogMemory   = "memory"
	CatalogSQLite   = "sqlite"
	CatalogPostgres = "postgres"
)

// Config holds every setting the server reads at startup.
type Config struct {
	LogLevel string
	LogFile  string

	WorkDir  string
	FontPath string
	FontSize float64

	Detector     string
	InferenceURL string
	LabelsPath   string
	OCRLanguage  string

	CatalogDriver string
	CatalogDSN    string

	MaxImageSize int
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:      "info",
		WorkDir:       "uploads",
		FontSize:      20,
		Detector:      DetectorHTTP,
		InferenceURL:  "http://localhost:8000",
		OCRLanguage:   "eng",
		CatalogDriver: CatalogMemory,
		MaxImageSize:  1024,
	}
}

// Load reads envFiles (".env" when none are given) into the environment and
// builds a Config from it. Missing env files are ignored; variables already
// set in the environment take precedence over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Default()

	str(&cfg.LogLevel, "PRODUCT_OVERLAY_LOG_LEVEL")
	str(&cfg.LogFile, "LOG_FILE")
	str(&cfg.WorkDir, "WORK_DIR")
	str(&cfg.FontPath, "FONT_PATH")
	str(&cfg.InferenceURL, "INFERENCE_URL")
	str(&cfg.LabelsPath, "LABELS_PATH")
	str(&cfg.OCRLanguage, "OCR_LANGUAGE")
	str(&cfg.CatalogDSN, "CATALOG_DSN")

	if v, ok := lookup("DETECTOR"); ok {
		cfg.Detector = strings.ToLower(v)
	}
	if v, ok := lookup("CATALOG_DRIVER"); ok {
		cfg.CatalogDriver = strings.ToLower(v)
	}

	if v, ok := lookup("FONT_SIZE"); ok {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil || size <= 0 {
			return Config{}, fmt.Errorf("invalid FONT_SIZE %q", v)
		}
		cfg.FontSize = size
	}
	if v, ok := lookup("MAX_IMAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_IMAGE_SIZE %q", v)
		}
		cfg.MaxImageSize = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings and their dependencies.
func (c Config) Validate() error {
	switch c.Detector {
	case DetectorHTTP:
		if c.InferenceURL == "" {
			return errors.New("INFERENCE_URL is required for the http detector")
		}
	case DetectorVision, DetectorText:
	default:
		return fmt.Errorf("unknown DETECTOR %q (want http, vision or text)", c.Detector)
	}

	switch c.CatalogDriver {
	case CatalogMemory:
	case CatalogSQLite, CatalogPostgres:
		if c.CatalogDSN == "" {
			return fmt.Errorf("CATALOG_DSN is required for the %s catalog", c.CatalogDriver)
		}
	default:
		return fmt.Errorf("unknown CATALOG_DRIVER %q (want memory, sqlite or postgres)", c.CatalogDriver)
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func str(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
