// Agentmemd is the hierarchical-memory-core daemon: it serves the chat
// HTTP surface (internal/httpapi) over an Agent Facade wired to the
// Fractal Memory / Hybrid Retriever / Reasoning Bank stack.
//
// Configuration is loaded from a YAML file (if given) with environment
// overrides. See internal/config for the recognised keys.
//
// Usage:
//
//	# Start with defaults, config from $AGENTMEM_CONFIG (or
//	# ~/.config/agentmem/config.yaml when unset) if present
//	agentmemd
//
//	# Configure via environment
//	GRAPH_URI=localhost:6334 VOLATILE_URL=redis://localhost:6379/0 agentmemd
//
//	agentmemd version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/agent"
	"github.com/fractalcore/agentmem/internal/completion"
	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/embedding"
	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/httpapi"
	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/retrieval"
	"github.com/fractalcore/agentmem/internal/volatile"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  agentmemd           Start the agentmem daemon\n")
			fmt.Fprintf(os.Stderr, "  agentmemd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("agentmemd: %v", err)
	}
	log.Println("agentmemd: shutdown complete")
}

func printVersion() {
	fmt.Printf("agentmemd\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit:  %s\n", gitCommit)
}

// run loads configuration, wires the memory core's dependency stack, and
// serves the chat HTTP surface until ctx is cancelled.
func run(ctx context.Context) error {
	configPath := os.Getenv("AGENTMEM_CONFIG")
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	ctx = logging.WithLogger(ctx, logger)

	logger.Info(ctx, "starting agentmemd",
		zap.String("user_id", cfg.UserID),
		zap.String("graph_uri", cfg.GraphURI),
		zap.Int("http_port", cfg.HTTPPort),
	)

	deps, err := initMemoryStack(ctx, *cfg, logger)
	if err != nil {
		return fmt.Errorf("init memory stack: %w", err)
	}

	a, err := agent.New(*cfg, agent.Deps{
		Memory:     deps.memory,
		OwnsMemory: true,
		Graph:      deps.graph,
		Completion: deps.completion,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn(ctx, "agent close failed", zap.Error(err))
		}
	}()

	srv, err := httpapi.NewServer(a, logger, httpapi.Config{
		Host:           cfg.HTTPHost,
		Port:           cfg.HTTPPort,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("construct http server: %w", err)
	}

	return srv.Start(ctx)
}

// memoryStack holds the constructed tier adapters and orchestrator. It has
// no Close of its own: run hands memory to the Agent with OwnsMemory set,
// so Agent.Close releases it and the stores it owns.
type memoryStack struct {
	volatile   volatile.Store
	graph      graphstore.Store
	memory     *fractalmemory.Memory
	completion completion.Provider
}

// initMemoryStack constructs the Volatile Store, Graph Store (vector index
// + keyword index + relation graph), optional embedder, completion
// provider, Hybrid Retriever, and Fractal Memory orchestrator, in that
// order, mirroring cmd/contextd/main.go's initDependencies layering.
func initMemoryStack(ctx context.Context, cfg config.Config, logger *logging.Logger) (*memoryStack, error) {
	volatileStore, err := volatile.NewStoreFromURL(cfg.VolatileURL, logger)
	if err != nil {
		return nil, fmt.Errorf("volatile store: %w", err)
	}

	vectorIndex, err := graphstore.NewVectorIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	graphStore := graphstore.NewStore(vectorIndex, logger)

	var embedder embedding.Embedder
	if cfg.EmbeddingBaseURL != "" {
		e, err := embedding.NewLangchainEmbedder(embedding.LangchainConfig{
			BaseURL: cfg.EmbeddingBaseURL,
			Model:   cfg.EmbeddingModel,
			APIKey:  cfg.EmbeddingAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		embedder = e
		logger.Info(ctx, "embedder configured", zap.String("model", cfg.EmbeddingModel))
	} else {
		logger.Info(ctx, "no embedding_base_url configured; embeddings disabled")
	}

	completionProvider := completion.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.CompletionModel, logger)

	retriever := retrieval.New(graphStore, embedder, cfg.RetrievalWeights)

	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile:     volatileStore,
		OwnsVolatile: true,
		Graph:        graphStore,
		OwnsGraph:    true,
		Retriever:    retriever,
		Embedder:     embedder,
		Completion:   completionProvider,
		Logger:       logger,
	})

	return &memoryStack{
		volatile:   volatileStore,
		graph:      graphStore,
		memory:     memory,
		completion: completionProvider,
	}, nil
}
