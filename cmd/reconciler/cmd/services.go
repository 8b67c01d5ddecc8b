package cmd

import (
	"context"
	"io"

	"invoice-reconciliation-service/cmd/reconciler/config"
	"invoice-reconciliation-service/internal/metrics"
	"invoice-reconciliation-service/internal/narrative"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/internal/store"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// services holds everything a command needs to reconcile invoices
type services struct {
	db           *store.Database
	orchestrator *reconciler.ReconciliationOrchestrator
	metrics      *metrics.Metrics
	cache        *narrative.RedisCache
	closers      []io.Closer
}

// Close releases the cache and database connections
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// openDatabase connects to the configured store
func openDatabase(cfg *config.AppConfig) (*store.Database, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, errors.StoreError(errors.CodeStoreUnavailable, "connect", err)
	}
	return db, nil
}

// buildServices opens the store and assembles the orchestrator with the
// optional narrative client. m may be nil.
func buildServices(ctx context.Context, cfg *config.AppConfig, m *metrics.Metrics) (*services, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	svc := &services{db: db, metrics: m, closers: []io.Closer{db}}

	narrator, err := buildNarrator(ctx, cfg, m, svc)
	if err != nil {
		svc.Close()
		return nil, err
	}

	orchestrator, err := reconciler.NewReconciliationOrchestrator(store.NewGormStore(db.DB), narrator, &cfg.Reconciler)
	if err != nil {
		svc.Close()
		return nil, err
	}
	orchestrator.SetMetrics(m)
	svc.orchestrator = orchestrator

	return svc, nil
}

// buildNarrator returns nil when no narrative service is configured. An
// unreachable Redis only disables caching.
func buildNarrator(ctx context.Context, cfg *config.AppConfig, m *metrics.Metrics, svc *services) (reconciler.Narrator, error) {
	if !cfg.Narrative.Enabled() {
		return nil, nil
	}

	client, err := narrative.NewHTTPNarrator(&cfg.Narrative)
	if err != nil {
		return nil, err
	}
	if !cfg.CacheEnabled() {
		return client, nil
	}

	log := logger.GetGlobalLogger().WithComponent("cli").WithField("redis_addr", cfg.Redis.Addr)
	cache, err := narrative.NewRedisCache(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Narrative cache disabled")
		return client, nil
	}
	svc.cache = cache
	svc.closers = append(svc.closers, cache)
	log.Info("Narrative cache enabled")

	cached := narrative.NewCachedNarrator(client, cache, cfg.Narrative.CacheTTL)
	cached.SetMetrics(m)
	return cached, nil
}
