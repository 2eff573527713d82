// Package engine is the public face of the compliance engine: it assembles
// the jurisdiction resolver, knowledge store, rule engine and aggregator from
// a configuration and exposes the validation pipeline to embedders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codecheck/internal/config"
	"codecheck/internal/domain"
	"codecheck/internal/domain/aggregate"
	domengine "codecheck/internal/domain/engine"
	"codecheck/internal/domain/jurisdiction"
	"codecheck/internal/infrastructure/jsonlogic"
	"codecheck/internal/infrastructure/knowledge"
	"codecheck/internal/infrastructure/yamlstore"
	"codecheck/internal/interfaces"
	"codecheck/internal/usecase"
)

// Re-exported domain types, so embedders do not import internal packages.
type (
	BuildingModel     = domain.BuildingModel
	BuildingObject    = domain.BuildingObject
	Location          = domain.Location
	ComplianceReport  = domain.ComplianceReport
	ValidationResult  = domain.ValidationResult
	JurisdictionMatch = domain.JurisdictionMatch
	CodeStandard      = domain.CodeStandard
	CrossReference    = domain.CrossReference
	SearchHit         = knowledge.SearchHit
	SearchFilter      = knowledge.SearchFilter
)

// Engine bundles the assembled service with its owned resources.
type Engine struct {
	Service interfaces.ComplianceService
	store   *knowledge.SQLiteStore
}

// Open builds an engine from configuration. With a data directory configured
// the YAML reference data is parsed and, if a database path is also set,
// persisted for the next start. With only a database path configured the
// knowledge base reloads from the database instead.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var sqlStore *knowledge.SQLiteStore
	if cfg.Knowledge.DBPath != "" {
		var err error
		sqlStore, err = knowledge.NewSQLiteStore(cfg.Knowledge.DBPath, log)
		if err != nil {
			return nil, err
		}
	}

	store, resolver, err := loadKnowledge(ctx, cfg, sqlStore, log)
	if err != nil {
		if sqlStore != nil {
			sqlStore.Close()
		}
		return nil, err
	}

	evaluator := domengine.NewEngine(jsonlogic.NewExecutor(), cfg.Engine.Workers, log)
	aggregator := aggregate.NewAggregator(aggregate.WithThresholds(aggregate.Thresholds{
		Compliant: cfg.Scoring.CompliantThreshold,
		Partial:   cfg.Scoring.PartialThreshold,
	}))
	svc := usecase.NewService(resolver, store, evaluator, aggregator, cfg.Engine.Timeout, log)

	return &Engine{Service: svc, store: sqlStore}, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// loadKnowledge sources the reference data. The YAML bundle is authoritative
// when a data directory is configured; without one the database must already
// hold a published knowledge base.
func loadKnowledge(ctx context.Context, cfg *config.Config, sqlStore *knowledge.SQLiteStore, log *slog.Logger) (*knowledge.MemoryStore, *jurisdiction.Resolver, error) {
	if cfg.Knowledge.DataDir == "" {
		store, err := sqlStore.Load(ctx)
		if err != nil {
			return nil, nil, err
		}
		if len(store.Snapshot().Packages()) == 0 {
			return nil, nil, fmt.Errorf("%w: database %s holds no published code packages", domain.ErrMissingReferenceData, cfg.Knowledge.DBPath)
		}
		jurs, err := sqlStore.LoadJurisdictions(ctx)
		if err != nil {
			return nil, nil, err
		}
		resolver, err := jurisdiction.NewResolver(jurs)
		if err != nil {
			return nil, nil, err
		}
		log.Info("knowledge base loaded from database", "path", cfg.Knowledge.DBPath, "jurisdictions", len(jurs))
		return store, resolver, nil
	}

	bundle, err := yamlstore.Load(cfg.Knowledge.DataDir, log)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := jurisdiction.NewResolver(bundle.Jurisdictions)
	if err != nil {
		return nil, nil, err
	}

	store := knowledge.NewMemoryStore()
	for _, pf := range bundle.Packs {
		if err := store.PutVersion(pf.Pack, pf.Requirements); err != nil {
			return nil, nil, fmt.Errorf("load pack %s@%s: %w", pf.Pack.Standard, pf.Pack.Version, err)
		}
	}
	if err := store.AddAmendments(bundle.Amendments); err != nil {
		return nil, nil, err
	}
	store.AddCrossReferences(bundle.CrossReferences)

	if sqlStore != nil {
		if err := persist(ctx, sqlStore, bundle); err != nil {
			log.Warn("knowledge base not persisted", "error", err)
		}
	}
	return store, resolver, nil
}

func persist(ctx context.Context, sqlStore *knowledge.SQLiteStore, bundle *yamlstore.Bundle) error {
	for _, pf := range bundle.Packs {
		// A rerun over an already-persisted bundle is the steady state,
		// not a failure; anything else aborts the persist.
		if err := sqlStore.SaveVersion(ctx, pf.Pack, pf.Requirements); err != nil && !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	if err := sqlStore.SaveJurisdictions(ctx, bundle.Jurisdictions); err != nil {
		return err
	}
	if err := sqlStore.SaveAmendments(ctx, bundle.Amendments); err != nil {
		return err
	}
	return sqlStore.SaveCrossReferences(ctx, bundle.CrossReferences)
}
