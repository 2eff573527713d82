package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"codecheck/internal/domain"
)

// Engine evaluates the rules of resolved code packages against a building
// model. It holds no per-run state; one Engine serves concurrent callers.
type Engine struct {
	eval    *ConditionEvaluator
	workers int
	log     *slog.Logger
}

// NewEngine builds an engine with the given parallelism. Worker counts below
// one fall back to serial evaluation.
func NewEngine(logic LogicExecutor, workers int, log *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		eval:    NewConditionEvaluator(logic),
		workers: workers,
		log:     log,
	}
}

// ValidateModel rejects models the engine cannot evaluate deterministically.
func ValidateModel(model *domain.BuildingModel) error {
	if model == nil {
		return fmt.Errorf("%w: nil model", domain.ErrMalformedModel)
	}
	if model.BuildingID == "" {
		return fmt.Errorf("%w: missing building id", domain.ErrMalformedModel)
	}
	seen := make(map[string]struct{}, len(model.Objects))
	for _, obj := range model.Objects {
		if obj.ObjectID == "" {
			return fmt.Errorf("%w: object with empty id", domain.ErrMalformedModel)
		}
		if _, dup := seen[obj.ObjectID]; dup {
			return fmt.Errorf("%w: duplicate object id %q", domain.ErrMalformedModel, obj.ObjectID)
		}
		seen[obj.ObjectID] = struct{}{}
	}
	return nil
}

// Evaluate runs every rule of every package against the model and returns the
// results sorted by (standard, section, object id, rule id). When the context
// deadline expires mid-run it returns the results gathered so far together
// with domain.ErrIncompleteEvaluation; already-finished rules keep their
// outcomes.
func (e *Engine) Evaluate(ctx context.Context, model *domain.BuildingModel, packages []domain.CodePackage) ([]domain.ValidationResult, error) {
	if err := ValidateModel(model); err != nil {
		return nil, err
	}

	var rules []domain.Rule
	for _, pkg := range packages {
		rules = append(rules, pkg.Rules...)
	}

	jobs := make(chan domain.Rule)
	perRule := make(chan []domain.ValidationResult, len(rules))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rule := range jobs {
				perRule <- e.evaluateRule(rule, model)
			}
		}()
	}

	incomplete := false
feed:
	for _, rule := range rules {
		select {
		case <-ctx.Done():
			incomplete = true
			break feed
		default:
		}
		select {
		case jobs <- rule:
		case <-ctx.Done():
			incomplete = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(perRule)

	var results []domain.ValidationResult
	for batch := range perRule {
		results = append(results, batch...)
	}
	SortResults(results)

	if incomplete {
		e.log.Warn("evaluation deadline expired",
			"building_id", model.BuildingID,
			"rules_total", len(rules),
			"results", len(results))
		return results, domain.ErrIncompleteEvaluation
	}
	return results, nil
}

// evaluateRule produces every result for one rule: a single not-applicable
// result when nothing matches the selector, otherwise one outcome per matched
// object. Evaluation errors become error results and never abort the batch.
func (e *Engine) evaluateRule(rule domain.Rule, model *domain.BuildingModel) []domain.ValidationResult {
	matched := SelectObjects(model, rule.Selector)
	if len(matched) == 0 {
		return []domain.ValidationResult{{
			RuleID:    rule.ID,
			Standard:  rule.Standard,
			SectionID: rule.SectionID,
			Status:    domain.StatusNotApplicable,
			Severity:  rule.Severity,
			Category:  rule.Category,
			Message:   fmt.Sprintf("no %s objects in model", rule.Selector.ObjectType),
		}}
	}

	var out []domain.ValidationResult
	for _, obj := range matched {
		ok, err := e.eval.Evaluate(rule.Condition, obj)
		switch {
		case err != nil:
			e.log.Warn("rule evaluation error",
				"rule_id", rule.ID, "object_id", obj.ObjectID, "error", err)
			out = append(out, domain.ValidationResult{
				RuleID:    rule.ID,
				Standard:  rule.Standard,
				SectionID: rule.SectionID,
				ObjectID:  obj.ObjectID,
				Status:    domain.StatusError,
				Severity:  rule.Severity,
				Category:  rule.Category,
				Message:   err.Error(),
			})
		case ok:
			out = append(out, domain.ValidationResult{
				RuleID:    rule.ID,
				Standard:  rule.Standard,
				SectionID: rule.SectionID,
				ObjectID:  obj.ObjectID,
				Status:    domain.StatusPassed,
				Severity:  rule.Severity,
				Category:  rule.Category,
			})
		default:
			out = append(out, fireActions(rule, obj)...)
		}
	}
	return out
}

// SortResults orders results canonically so identical inputs always serialize
// to identical reports, regardless of worker scheduling.
func SortResults(results []domain.ValidationResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Standard != b.Standard {
			return a.Standard < b.Standard
		}
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		if a.ObjectID != b.ObjectID {
			return a.ObjectID < b.ObjectID
		}
		return a.RuleID < b.RuleID
	})
}
