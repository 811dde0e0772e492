package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/postings-report/internal/bootstrap"
	"github.com/cuongbtq/postings-report/internal/config"
	"github.com/cuongbtq/postings-report/internal/report"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("NORMALIZER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/normalizer/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "", "Dataset CSV to process (overrides analysis.input_path)")
	outputDir := flag.String("output", "", "Directory for the cleaned CSV and charts (overrides analysis.output_dir)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *inputPath != "" {
		cfg.Analysis.InputPath = *inputPath
	}
	if *outputDir != "" {
		cfg.Analysis.OutputDir = *outputDir
	}

	if err := cfg.ValidateAnalysisConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Analysis.InputPath == "" {
		return fmt.Errorf("invalid config: analysis.input_path is required")
	}

	// Initialize logger
	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting normalizer",
		slog.String("app", cfg.App.Name),
		slog.String("input", cfg.Analysis.InputPath),
		slog.String("output_dir", cfg.Analysis.OutputDir),
	)

	// Stop between stages on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := report.NewPipeline(appLogger.Logger).Run(ctx, report.Request{
		InputPath: cfg.Analysis.InputPath,
		OutputDir: cfg.Analysis.OutputDir,
		Options:   report.NewOptions(cfg.Analysis),
	})
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}
