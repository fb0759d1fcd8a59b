// Tutord is the project-tutoring daemon: capability agents behind a
// central orchestrator, a conflict-gated project context, and a hybrid
// knowledge store.
//
// Configuration comes from a YAML file plus TUTORD_* environment
// overrides.
//
// Usage:
//
//	# Start with defaults
//	tutord
//
//	# Start with a config file
//	tutord -config /etc/tutord/config.yaml
//
//	# Environment override
//	TUTORD_SERVER_PORT=9999 tutord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/agent"
	"github.com/fyrsmithlabs/tutord/internal/config"
	"github.com/fyrsmithlabs/tutord/internal/conflict"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/httpapi"
	"github.com/fyrsmithlabs/tutord/internal/knowledge"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/logging"
	"github.com/fyrsmithlabs/tutord/internal/orchestrator"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/usage"
	"github.com/fyrsmithlabs/tutord/internal/vectorindex"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tutord %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("tutord: %v", err)
	}
	log.Println("shutdown complete")
}

// run wires every component, starts the servers, and blocks until the
// context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting tutord",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	idx, err := vectorindex.New(vectorindex.Config{
		Path:      cfg.Index.Path,
		Dimension: cfg.Index.Dimension,
	}, logger)
	if err != nil {
		return fmt.Errorf("opening semantic index: %w", err)
	}

	bus, err := events.New(logger)
	if err != nil {
		return fmt.Errorf("starting event bus: %w", err)
	}
	defer bus.Close()

	llmCfg := llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
		Timeout:        cfg.LLM.Timeout,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
	}
	completer, err := llm.NewCompleter(llmCfg)
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	rules, err := conflict.LoadRules(cfg.Conflicts.RulesPath)
	if err != nil {
		return fmt.Errorf("loading conflict rules: %w", err)
	}
	registry, err := conflict.DefaultRegistry(rules)
	if err != nil {
		return fmt.Errorf("building conflict registry: %w", err)
	}

	ks := knowledge.New(st, idx, embedder, bus, cfg.Knowledge, logger)
	recorder := usage.NewRecorder(st, bus, cfg.LLM.Pricing, logger)

	orch, err := orchestrator.New(st, registry, bus, []agent.Agent{
		agent.NewProjectAgent(st, logger),
		agent.NewUserAgent(st, logger),
		agent.NewDialogueAgent(st, ks, completer, recorder, logger),
		agent.NewAnalysisAgent(st, completer, recorder, logger),
		agent.NewCodegenAgent(st, ks, completer, recorder, logger),
		agent.NewConflictAgent(st, registry, logger),
		agent.NewIngestAgent(ks, logger),
		agent.NewMonitorAgent(st, idx, recorder, logger),
	}, logger)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}
	if err := orch.Start(); err != nil {
		return err
	}
	logger.Info("capabilities registered", zap.Strings("capabilities", orch.Capabilities()))

	srv, err := httpapi.NewServer(st, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}
