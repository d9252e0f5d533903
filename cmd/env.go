package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/llm"
	"github.com/courseforge/courseforge/internal/resilience"
	"github.com/courseforge/courseforge/internal/store"
)

// runtimeEnv holds the long-lived collaborators shared by subcommands.
type runtimeEnv struct {
	Store    store.Store
	Models   []catalog.ModelDescriptor
	Breakers *resilience.BreakerSet
	Stats    *llm.Stats
	Scorer   *llm.Scorer
	Clients  map[string]llm.Client
}

// initEnv opens the store, loads the model catalog, and wires the selection
// machinery from config.
func initEnv(ctx context.Context) (*runtimeEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	models := catalog.Default()
	if cfg.Models.CatalogPath != "" {
		models, err = catalog.LoadFile(cfg.Models.CatalogPath)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	breakers := resilience.NewBreakerSet(resilience.FromCircuitConfig(
		cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs))
	stats := llm.NewStats()
	scorer := llm.NewScorer(models, nil, breakers, stats)

	return &runtimeEnv{
		Store:    st,
		Models:   models,
		Breakers: breakers,
		Stats:    stats,
		Scorer:   scorer,
		Clients:  llm.NewClients(cfg.OpenAI.Key, cfg.Anthropic.Key),
	}, nil
}

func (e *runtimeEnv) Close() {
	e.Store.Close()
}

// openStore connects to the configured backend, retrying transient startup
// failures, and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var st store.Store
	err := resilience.Do(ctx, resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		ShouldRetry:    func(error) bool { return true },
		OnRetry:        resilience.RetryLogger("store", "connect"),
	}, func(ctx context.Context) error {
		var err error
		if cfg.Store.Driver == "sqlite" {
			dsn := cfg.Store.DatabaseURL
			if dsn == "" {
				dsn = "courseforge.db"
			}
			st, err = store.NewSQLite(dsn)
		} else {
			st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
