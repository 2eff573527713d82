package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codecheck/internal/domain"
	"codecheck/internal/domain/aggregate"
	"codecheck/internal/domain/engine"
	"codecheck/internal/domain/jurisdiction"
	"codecheck/internal/infrastructure/knowledge"
	"codecheck/internal/interfaces"
)

// Service wires resolver, knowledge store, rule engine and aggregator into
// the compliance pipeline. It implements interfaces.ComplianceService.
type Service struct {
	resolver   *jurisdiction.Resolver
	overlay    *jurisdiction.Overlay
	store      *knowledge.MemoryStore
	evaluator  interfaces.RuleEvaluator
	aggregator *aggregate.Aggregator
	timeout    time.Duration
	log        *slog.Logger
}

// NewService builds the pipeline. A zero timeout disables the per-run
// deadline.
func NewService(
	resolver *jurisdiction.Resolver,
	store *knowledge.MemoryStore,
	evaluator interfaces.RuleEvaluator,
	aggregator *aggregate.Aggregator,
	timeout time.Duration,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		resolver:   resolver,
		overlay:    jurisdiction.NewOverlay(log),
		store:      store,
		evaluator:  evaluator,
		aggregator: aggregator,
		timeout:    timeout,
		log:        log,
	}
}

// Validate runs the full pipeline: resolve the location, snapshot the
// knowledge base, apply amendments per package, evaluate, aggregate. A
// deadline expiry still produces a report, marked incomplete, and the
// returned error wraps domain.ErrIncompleteEvaluation so callers can tell the
// two outcomes apart.
func (s *Service) Validate(ctx context.Context, model *domain.BuildingModel) (domain.ComplianceReport, error) {
	if err := engine.ValidateModel(model); err != nil {
		return domain.ComplianceReport{}, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	matches := s.resolver.Resolve(model.Location)
	snap := s.store.Snapshot()

	var packages []domain.CodePackage
	for _, base := range snap.Packages() {
		pkg, err := s.overlay.Apply(base, matches, snap.Amendments())
		if err != nil {
			return domain.ComplianceReport{}, fmt.Errorf("resolve %s package: %w", base.Standard, err)
		}
		packages = append(packages, pkg)
	}

	results, evalErr := s.evaluator.Evaluate(ctx, model, packages)
	incomplete := errors.Is(evalErr, domain.ErrIncompleteEvaluation)
	if evalErr != nil && !incomplete {
		return domain.ComplianceReport{}, evalErr
	}

	report := s.aggregator.Build(model, matches, packages, results, incomplete)
	s.log.Info("validation finished",
		"building_id", model.BuildingID,
		"status", report.OverallStatus,
		"score", report.OverallScore,
		"results", len(report.Results),
		"duration", time.Since(started))
	if incomplete {
		return report, evalErr
	}
	return report, nil
}

// ResolveJurisdictions exposes the resolver for explainability queries.
func (s *Service) ResolveJurisdictions(loc *domain.Location) []domain.JurisdictionMatch {
	return s.resolver.Resolve(loc)
}

// SearchRequirements runs a keyword query over the active requirements,
// narrowed by whatever facets the filter sets.
func (s *Service) SearchRequirements(query string, filter knowledge.SearchFilter, limit int) []knowledge.SearchHit {
	return s.store.Snapshot().Search(query, filter, limit)
}

// Requirement looks up a single section, pinned to a version when one is
// given and the active version otherwise.
func (s *Service) Requirement(standard domain.CodeStandard, sectionID, version string) (domain.CodeRequirement, error) {
	return s.store.Requirement(standard, sectionID, version)
}

// CrossReferences returns the links out of one section, empty when the index
// has nothing for it.
func (s *Service) CrossReferences(standard domain.CodeStandard, sectionID string) []domain.CrossReference {
	return s.store.Snapshot().CrossReferences(standard, sectionID)
}

// Versions lists the published versions of one standard.
func (s *Service) Versions(standard domain.CodeStandard) ([]string, string, error) {
	return s.store.Versions(standard)
}
