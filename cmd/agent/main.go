package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/abhorkarpet/deadline-agent/internal/agent"
	"github.com/abhorkarpet/deadline-agent/internal/extractor"
	"github.com/abhorkarpet/deadline-agent/internal/feedback"
	"github.com/abhorkarpet/deadline-agent/internal/source"
	"github.com/abhorkarpet/deadline-agent/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}
	if cfg.Debug {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}

	// Initialize the feedback log
	var fbLog feedback.Log
	if cfg.Feedback.UseDatabase {
		logger.Info("Using PostgreSQL feedback log")
		fbLog, err = feedback.NewPostgresLog(feedback.PostgresConfig{
			Host:     cfg.Feedback.Database.Host,
			Port:     cfg.Feedback.Database.Port,
			User:     cfg.Feedback.Database.User,
			Password: cfg.Feedback.Database.Password,
			DBName:   cfg.Feedback.Database.DBName,
			SSLMode:  cfg.Feedback.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize feedback log", zap.Error(err))
		}
	} else {
		logger.Info("Using feedback log file", zap.String("path", cfg.Feedback.File))
		fbLog = feedback.NewFileLog(cfg.Feedback.File)
	}
	defer fbLog.Close()

	learner := feedback.NewLearner(fbLog, logger)

	// Initialize extractors
	pattern := extractor.NewPatternExtractor()
	var ai extractor.Extractor
	if cfg.OpenAI.Enabled {
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("AI extraction enabled but no API key provided, continuing with pattern extraction only")
		} else {
			ai = extractor.NewOpenAIExtractor(
				cfg.OpenAI.APIKey,
				cfg.OpenAI.Model,
				cfg.OpenAI.MaxTokens,
				cfg.OpenAI.Temperature,
				logger,
			)
		}
	}

	src := source.NewFileSource(cfg.Source.MessagesFile)
	a := agent.New(src, pattern, ai, learner, logger)

	window := source.Window{Days: cfg.Source.SinceDays}
	if cfg.Source.StartDate != "" {
		since, _ := time.Parse("2006-01-02", cfg.Source.StartDate)
		window = source.Window{Since: since}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, stats, err := a.CollectDeadlines(ctx, agent.Options{
		Window:      window,
		MaxMessages: cfg.Source.MaxMessages,
		Progress: func(message string, fraction float64) {
			logger.Info(message, zap.Float64("progress", fraction))
		},
	})
	if err != nil {
		if extractor.IsInsufficientFunds(err) {
			logger.Fatal("AI service billing failure, add funds or fix billing to continue", zap.Error(err))
		}
		logger.Fatal("Scan failed", zap.Error(err))
	}

	logger.Info("Scan finished",
		zap.Int("emails_fetched", stats.EmailsFetched),
		zap.Int("emails_processed", stats.EmailsProcessed),
		zap.Int("deadlines_found", stats.DeadlinesFound),
		zap.Int("unique_senders", stats.UniqueSenders),
		zap.Strings("sample_subjects", stats.SampleSubjects))

	for _, item := range items {
		fmt.Printf("%s  [%-12s]  %s (confidence %.2f)\n",
			item.DeadlineAt.Format("2006-01-02"), item.Category, item.Title, item.Confidence)
	}
}
