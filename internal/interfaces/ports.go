package interfaces

import (
	"context"

	"codecheck/internal/domain"
	"codecheck/internal/infrastructure/knowledge"
)

// ComplianceService is the application boundary: everything a transport
// (HTTP, CLI) can ask of the engine.
type ComplianceService interface {
	// Validate resolves jurisdictions, evaluates every active code package
	// against the model and returns the full report. On deadline expiry the
	// report is marked incomplete and err wraps domain.ErrIncompleteEvaluation.
	Validate(ctx context.Context, model *domain.BuildingModel) (domain.ComplianceReport, error)

	// ResolveJurisdictions explains which jurisdictions a location maps to.
	ResolveJurisdictions(loc *domain.Location) []domain.JurisdictionMatch

	// SearchRequirements runs a keyword query over the active requirements,
	// narrowed by the filter's facets.
	SearchRequirements(query string, filter knowledge.SearchFilter, limit int) []knowledge.SearchHit

	// Requirement looks up one section, pinned to a version when given and
	// the active version otherwise.
	Requirement(standard domain.CodeStandard, sectionID, version string) (domain.CodeRequirement, error)

	// CrossReferences returns the "see also" links out of one code section.
	CrossReferences(standard domain.CodeStandard, sectionID string) []domain.CrossReference

	// Versions lists the published versions of one standard and which is active.
	Versions(standard domain.CodeStandard) (versions []string, active string, err error)
}

// RuleEvaluator runs rules against a model. The engine package provides the
// production implementation.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, model *domain.BuildingModel, packages []domain.CodePackage) ([]domain.ValidationResult, error)
}
