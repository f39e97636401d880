// Package cmd defines the aide command line interface.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lmoretti/aide/adapters"
	"github.com/lmoretti/aide/assistant"
	"github.com/lmoretti/aide/config"
	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/embeddings"
	"github.com/lmoretti/aide/llm"
	"github.com/lmoretti/aide/rag"
)

var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "aide is a personal assistant for mail, code, calendar, documents and files",
	Long: `aide routes natural-language queries to the right service: email,
source control, calendar, file storage or an indexed document collection
you can upload files into and ask questions about.

Run without arguments to start an interactive session.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// Execute runs the CLI.
func Execute() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app bundles everything the commands need.
type app struct {
	cfg       config.Config
	store     *docstore.Store
	engine    *rag.Engine
	assistant *assistant.Assistant
	logger    *log.Logger
}

// buildApp wires the services from configuration. External adapters are
// only constructed when their credentials are configured.
func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := log.New(os.Stderr, "aide: ", log.LstdFlags)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	var provider docstore.IndexProvider
	switch cfg.Index.Provider {
	case config.IndexPgvector:
		provider, err = docstore.NewPgvectorProvider(ctx, cfg.Index.PostgresDSN, embedder, cfg.Embeddings.Dimension)
		if err != nil {
			return nil, fmt.Errorf("create pgvector index provider: %w", err)
		}
	default:
		provider = docstore.NewChromemProvider(embedder)
	}

	store, err := docstore.New(docstore.Config{
		Dir:           cfg.Storage.Dir,
		MaxFileSizeMB: cfg.Storage.MaxFileSizeMB,
		ChunkSize:     cfg.Storage.ChunkSize,
		ChunkOverlap:  cfg.Storage.ChunkOverlap,
	}, provider, logger)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	engine := rag.NewEngine(store, client, rag.Config{
		RelevanceThreshold: cfg.Workflow.RelevanceThreshold,
		MaxRewrites:        cfg.Workflow.MaxRewrites,
	}, logger)

	deps := assistant.Deps{
		Store:          store,
		Engine:         engine,
		LLM:            client,
		Logger:         logger,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	}

	if cfg.Google.AccessToken != "" {
		if email, err := adapters.NewEmail(ctx, cfg.Google.AccessToken, logger); err != nil {
			logger.Printf("email adapter unavailable: %v", err)
		} else {
			deps.Email = email
		}
		if cal, err := adapters.NewCalendar(ctx, cfg.Google.AccessToken, logger); err != nil {
			logger.Printf("calendar adapter unavailable: %v", err)
		} else {
			deps.Calendar = cal
		}
		if files, err := adapters.NewFileStorage(ctx, cfg.Google.AccessToken, logger); err != nil {
			logger.Printf("file storage adapter unavailable: %v", err)
		} else {
			deps.FileStorage = files
		}
	}

	if cfg.GitHub.Token != "" && cfg.GitHub.Repo != "" {
		if sources, err := adapters.NewSourceControl(cfg.GitHub.Token, cfg.GitHub.Repo, logger); err != nil {
			logger.Printf("source control adapter unavailable: %v", err)
		} else {
			deps.SourceControl = sources
		}
	}

	return &app{
		cfg:       cfg,
		store:     store,
		engine:    engine,
		assistant: assistant.New(deps),
		logger:    logger,
	}, nil
}
