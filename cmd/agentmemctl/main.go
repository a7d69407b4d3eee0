// Package main implements agentmemctl, the operator CLI for the memory
// core: migrate, smoke-test, reset, inspect. Grounded on the teacher's
// cmd/ctxd cobra structure, generalized from an HTTP client (ctxd talks
// to a running contextd over HTTP) to a direct-to-store CLI, since
// migrate/reset/inspect need to run before or independent of agentmemd.
//
// Exit codes, exactly per spec.md §6.5:
//
//	0  success
//	1  validation failure
//	2  dependency unavailable
//	3  internal error
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/migrate"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/retrieval"
	"github.com/fractalcore/agentmem/internal/volatile"
)

const (
	exitSuccess           = 0
	exitValidationFailure = 1
	exitDependencyUnavail = 2
	exitInternalError     = 3
)

var (
	configPath string
	userID     string
	confirm    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return exitSuccess
}

var rootCmd = &cobra.Command{
	Use:           "agentmemctl",
	Short:         "Operator CLI for the hierarchical memory core",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (env overrides apply on top)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id to operate on (defaults to config's user_id)")
	rootCmd.AddCommand(migrateCmd, smokeTestCmd, resetCmd, inspectCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, graph, _, closeFn, err := wireStores(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		applied, err := migrate.Run(ctx, graph, resolveUser(cfg))
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		if len(applied) == 0 {
			fmt.Println("no pending migrations")
			return nil
		}
		for _, m := range applied {
			fmt.Printf("applied migration %d: %s\n", m.Version, m.Name)
		}
		return nil
	},
}

var smokeTestCmd = &cobra.Command{
	Use:   "smoke-test",
	Short: "Round-trip remember -> recall -> consolidate -> garbage_collect",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, graph, volatileStore, closeFn, err := wireStores(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		retriever := retrieval.New(graph, nil, cfg.RetrievalWeights)
		memory := fractalmemory.New(cfg, fractalmemory.Deps{
			Volatile:  volatileStore,
			Graph:     graph,
			Retriever: retriever,
		})

		user := resolveUser(cfg)
		fmt.Println("remember...")
		id, err := memory.Remember(ctx, "agentmemctl smoke-test probe", 0.9, nil)
		if err != nil {
			return fmt.Errorf("%w: remember: %v", model.ErrStoreUnavailable, err)
		}
		fmt.Printf("  ok (id=%s)\n", id)

		fmt.Println("recall...")
		results, err := memory.Recall(ctx, "smoke-test probe", 5)
		if err != nil {
			return fmt.Errorf("%w: recall: %v", model.ErrStoreUnavailable, err)
		}
		fmt.Printf("  ok (%d results)\n", len(results))

		fmt.Println("consolidate...")
		counters, err := memory.Consolidate(ctx)
		if err != nil {
			return fmt.Errorf("%w: consolidate: %v", model.ErrStoreUnavailable, err)
		}
		fmt.Printf("  ok (l0_to_l1=%d, l1_to_l2=%d, decayed=%d, forgotten=%d)\n",
			counters.L0ToL1, counters.L1ToL2, counters.Decayed, counters.Forgotten)

		fmt.Println("garbage_collect...")
		if _, err := memory.GarbageCollect(ctx, 0); err != nil {
			return fmt.Errorf("%w: garbage_collect: %v", model.ErrStoreUnavailable, err)
		}
		fmt.Println("  ok")

		fmt.Printf("all checks passed for user %q\n", user)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Destructively flush the volatile store and delete all graph nodes for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm {
			return fmt.Errorf("%w: reset is destructive; pass --confirm", model.ErrValidation)
		}
		ctx := cmd.Context()
		cfg, graph, volatileStore, closeFn, err := wireStores(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		user := resolveUser(cfg)

		drained := 0
		for {
			episodes, err := volatileStore.L0RangePop(ctx, user, 1000)
			if err != nil {
				return fmt.Errorf("%w: drain l0: %v", model.ErrStoreUnavailable, err)
			}
			drained += len(episodes)
			if len(episodes) < 1000 {
				break
			}
		}
		sessions, err := volatileStore.L1List(ctx, user, 0)
		if err != nil {
			return fmt.Errorf("%w: list l1: %v", model.ErrStoreUnavailable, err)
		}
		for _, s := range sessions {
			if err := volatileStore.L1Delete(ctx, user, s.SessionID); err != nil {
				return fmt.Errorf("%w: delete l1 session %s: %v", model.ErrStoreUnavailable, s.SessionID, err)
			}
		}

		episodes, err := graph.ListEpisodes(ctx, user, nil)
		if err != nil {
			return fmt.Errorf("%w: list graph episodes: %v", model.ErrStoreUnavailable, err)
		}
		for _, ep := range episodes {
			if err := graph.SoftDelete(ctx, user, ep.ID); err != nil {
				return fmt.Errorf("%w: soft delete %s: %v", model.ErrStoreUnavailable, ep.ID, err)
			}
		}
		removed, err := graph.HardDeleteExpired(ctx, user, 0, len(episodes)+1)
		if err != nil {
			return fmt.Errorf("%w: hard delete: %v", model.ErrStoreUnavailable, err)
		}

		fmt.Printf("reset complete for user %q: drained %d l0 episodes, %d l1 sessions, removed %d graph nodes\n",
			user, drained, len(sessions), removed)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump per-tier counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, graph, volatileStore, closeFn, err := wireStores(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		retriever := retrieval.New(graph, nil, cfg.RetrievalWeights)
		memory := fractalmemory.New(cfg, fractalmemory.Deps{
			Volatile:  volatileStore,
			Graph:     graph,
			Retriever: retriever,
		})

		stats, err := memory.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("%w: get_stats: %v", model.ErrStoreUnavailable, err)
		}

		fmt.Printf("user:              %s\n", resolveUser(cfg))
		fmt.Printf("l0_count:          %d\n", stats.L0Size)
		fmt.Printf("l1_count:          %d\n", stats.L1Size)
		fmt.Printf("l2_count:          %d\n", stats.L2Size)
		fmt.Printf("l3_count:          %d\n", stats.L3Size)
		if !stats.LastConsolidationAt.IsZero() {
			fmt.Printf("last_consolidation: %s\n", stats.LastConsolidationAt.UTC().Format(time.RFC3339))
		} else {
			fmt.Printf("last_consolidation: never\n")
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&confirm, "confirm", false, "required to actually perform the destructive reset")
}

// wireStores loads configuration and connects to the volatile and graph
// stores, returning a close function the caller must defer.
func wireStores(ctx context.Context) (config.Config, graphstore.Store, volatile.Store, func(), error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("%w: load config: %v", model.ErrValidation, err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	log := logging.FromContext(ctx)

	volatileStore, err := volatile.NewStoreFromURL(cfg.VolatileURL, log)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("%w: volatile store: %v", model.ErrStoreUnavailable, err)
	}

	vectorIndex, err := graphstore.NewVectorIndex(ctx, *cfg, log)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("%w: vector index: %v", model.ErrStoreUnavailable, err)
	}
	graph := graphstore.NewStore(vectorIndex, log)

	closeFn := func() {
		_ = volatileStore.Close()
		_ = graph.Close()
	}
	return *cfg, graph, volatileStore, closeFn, nil
}

func resolveUser(cfg config.Config) string {
	if userID != "" {
		return userID
	}
	return cfg.UserID
}

// exitCodeFor maps a command error to spec.md §6.5's exit codes.
func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, "agentmemctl:", err)
	switch {
	case errors.Is(err, model.ErrValidation):
		return exitValidationFailure
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, model.ErrRetrieverUnavailable):
		return exitDependencyUnavail
	default:
		return exitInternalError
	}
}
