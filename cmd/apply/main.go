package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kweiss/applyflow/internal/automator"
	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/filler"
	"github.com/kweiss/applyflow/internal/llm"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/repository"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetDefaultLogger(logger.NewFromEnv(nil))
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	repo := repository.NewJobRepository(db)

	client := llm.NewOpenAIClient(&llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})

	audit := filler.NewLocatorLog(cfg.Automator.LocatorLogPath)

	session := browser.NewSessionManager(&cfg.Browser)
	defer session.Close()

	auto := automator.New(
		repo,
		session,
		filler.NewConsoleDecisionChannel(),
		client,
		audit,
		&cfg.Automator,
		&cfg.Profile,
	)

	// Stop after the current job on SIGINT/SIGTERM; a half-filled form must
	// not be abandoned mid-submit
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Warn("Shutdown requested, finishing current job...")
		cancel()
	}()

	if err := auto.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Application run failed: %v", err)
	}

	logger.Info("Done")
}
