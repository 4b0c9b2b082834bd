package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/product-overlay/internal/catalog"
	"github.com/ironsheep/product-overlay/internal/config"
	"github.com/ironsheep/product-overlay/internal/detect"
	"github.com/ironsheep/product-overlay/internal/logging"
	"github.com/ironsheep/product-overlay/internal/overlay"
	"github.com/ironsheep/product-overlay/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("product-overlay %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	logger.WithFields(logrus.Fields{
		"version":  Version,
		"commit":   GitCommit,
		"detector": cfg.Detector,
		"catalog":  cfg.CatalogDriver,
	}).Debug("starting product-overlay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("Catalog error: %v", err)
	}

	detector, closeDetector, err := openDetector(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Detector error: %v", err)
	}
	defer closeDetector()

	text, err := overlay.LoadTextDrawer(cfg.FontPath, cfg.FontSize)
	if err != nil {
		logger.WithError(err).Warn("using fallback label font")
	}

	srv := server.New(
		server.WithStore(store),
		server.WithDetector(detector),
		server.WithRenderer(overlay.NewRenderer(cfg.WorkDir, text)),
		server.WithLogger(logger),
		server.WithMaxImageSize(cfg.MaxImageSize),
	)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatalf("Server error: %v", err)
	}
}

func openStore(cfg config.Config) (catalog.Store, error) {
	if cfg.CatalogDriver == config.CatalogMemory {
		return catalog.NewMemory(), nil
	}
	db, err := catalog.OpenDB(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return nil, err
	}
	return catalog.NewGormStore(db)
}

// openDetector builds the configured backend. The returned close function is
// never nil.
func openDetector(ctx context.Context, cfg config.Config, logger *logrus.Logger) (detect.Detector, func(), error) {
	noop := func() {}

	switch cfg.Detector {
	case config.DetectorVision:
		v, err := detect.NewVisionDetector(ctx)
		if err != nil {
			return nil, noop, err
		}
		return v, func() {
			if err := v.Close(); err != nil {
				logger.WithError(err).Warn("failed to close vision client")
			}
		}, nil

	case config.DetectorText:
		return detect.NewTextDetector(cfg.OCRLanguage), noop, nil

	default:
		labels := detect.COCOLabels
		if cfg.LabelsPath != "" {
			l, err := detect.LoadLabels(cfg.LabelsPath)
			if err != nil {
				return nil, noop, err
			}
			labels = l
		}
		model := detect.NewHTTPModel(cfg.InferenceURL, labels, nil)

		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := model.CheckHealth(hctx); err != nil {
			logger.WithError(err).WithField("url", cfg.InferenceURL).Warn("inference service not reachable yet")
		}
		return detect.NewModelAdapter(model), noop, nil
	}
}

func printHelp() {
	fmt.Println("product-overlay - MCP server that annotates photos with catalog prices")
	fmt.Println()
	fmt.Println("Usage: product-overlay [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  PRODUCT_OVERLAY_LOG_LEVEL   Log level (default info)")
	fmt.Println("  LOG_FILE                    Also write logs to this rotating file")
	fmt.Println("  WORK_DIR                    Directory for annotated images (default uploads)")
	fmt.Println("  FONT_PATH, FONT_SIZE        Label font (default bundled Go Regular, 20)")
	fmt.Println("  DETECTOR                    http, vision or text (default http)")
	fmt.Println("  INFERENCE_URL               Detection service for the http detector")
	fmt.Println("  LABELS_PATH                 Class names, one per line (default COCO)")
	fmt.Println("  OCR_LANGUAGE                Tesseract language for the text detector (default eng)")
	fmt.Println("  CATALOG_DRIVER, CATALOG_DSN memory, sqlite or postgres catalog")
	fmt.Println("  MAX_IMAGE_SIZE              Longest side of prepared images (default 1024)")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
