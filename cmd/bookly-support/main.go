// Command bookly-support runs the Bookly customer support agent: a
// WebSocket chat service backed by LLM providers with tool access to
// the bookstore database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookly/bookly-support/internal/agent"
	"github.com/bookly/bookly-support/internal/analytics"
	"github.com/bookly/bookly-support/internal/api"
	"github.com/bookly/bookly-support/internal/buildinfo"
	"github.com/bookly/bookly-support/internal/config"
	"github.com/bookly/bookly-support/internal/events"
	"github.com/bookly/bookly-support/internal/llm"
	"github.com/bookly/bookly-support/internal/session"
	"github.com/bookly/bookly-support/internal/store"
	"github.com/bookly/bookly-support/internal/tools"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("bookly-support", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	seed := fs.Bool("seed", false, "seed the database with demo data and exit")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.APIKeysFromEnv()

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "build", buildinfo.String(), "config", path)

	backend, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer backend.Close()

	if *seed {
		if err := backend.Seed(ctx); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
		fmt.Fprintln(stdout, "database seeded")
		return nil
	}

	var primary, secondary llm.Client
	if cfg.Anthropic.APIKey != "" {
		primary = llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)
	} else {
		logger.Warn("no anthropic api key, primary provider disabled")
	}
	if cfg.OpenAI.APIKey != "" {
		secondary = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	} else {
		logger.Warn("no openai api key, fallback provider disabled")
	}

	fallback, err := agent.NewFallbackPolicy(cfg.Fallback.On)
	if err != nil {
		return fmt.Errorf("fallback config: %w", err)
	}

	registry, err := tools.NewRegistry(logger)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}

	bus := events.New()
	collector := analytics.New(backend, bus, logger)
	defer collector.Close()

	ag := agent.New(agent.Config{
		Primary:    primary,
		Secondary:  secondary,
		Registry:   registry,
		Analytics:  collector,
		Bus:        bus,
		Logger:     logger,
		MaxTurns:   cfg.Agent.MaxTurns,
		MaxHistory: cfg.Agent.MaxHistory,
		Fallback:   fallback,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.New(addr, ag, backend, session.NewManager(), collector, logger)
	return server.Run(ctx)
}
