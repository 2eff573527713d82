package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"codecheck/internal/domain"
	"codecheck/internal/domain/engine"
)

// Thresholds holds the score cutoffs for the overall status.
type Thresholds struct {
	Compliant float64
	Partial   float64
}

// DefaultThresholds are the stock cutoffs: 90 and above is compliant, 70 and
// above is partial.
func DefaultThresholds() Thresholds {
	return Thresholds{Compliant: 90, Partial: 70}
}

// mandatoryWeight is how much heavier a mandatory package counts in the
// overall score than an advisory one.
const mandatoryWeight = 2.0

// Aggregator turns raw validation results into a compliance report. The clock
// and id source are injectable so reports can be reproduced byte for byte.
type Aggregator struct {
	thresholds Thresholds
	now        func() time.Time
	newID      func() string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock fixes the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithIDSource fixes the report id source.
func WithIDSource(newID func() string) Option {
	return func(a *Aggregator) { a.newID = newID }
}

// WithThresholds overrides the status cutoffs.
func WithThresholds(t Thresholds) Option {
	return func(a *Aggregator) { a.thresholds = t }
}

// NewAggregator builds an aggregator with real time and random ids unless
// options say otherwise.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		thresholds: DefaultThresholds(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ruleTally classifies one rule from its per-object results.
type ruleTally struct {
	passed            bool
	violated          bool
	mandatoryViolated bool
	warned            bool
	errored           bool
	skipped           bool
	mandatory         bool
}

type pkgKey struct {
	standard domain.CodeStandard
	section  string
}

// Build assembles the report. Results are grouped by (standard, section),
// counted at rule granularity and scored; incomplete marks a
// deadline-truncated run.
func (a *Aggregator) Build(model *domain.BuildingModel, matches []domain.JurisdictionMatch, packages []domain.CodePackage, results []domain.ValidationResult, incomplete bool) domain.ComplianceReport {
	engine.SortResults(results)

	perPkg := make(map[pkgKey]map[string]*ruleTally)
	details := make(map[pkgKey]*domain.PackageReport)

	for _, res := range results {
		key := pkgKey{res.Standard, res.SectionID}
		if perPkg[key] == nil {
			perPkg[key] = make(map[string]*ruleTally)
			details[key] = &domain.PackageReport{
				Standard:      res.Standard,
				SectionID:     res.SectionID,
				SectionTitle:  sectionTitle(packages, res.Standard, res.SectionID),
				AmendmentsLog: sectionAmendments(packages, res.Standard, res.SectionID),
			}
		}
		tally := perPkg[key][res.RuleID]
		if tally == nil {
			tally = &ruleTally{}
			perPkg[key][res.RuleID] = tally
		}
		if res.Severity == domain.SeverityMandatory {
			tally.mandatory = true
		}
		d := details[key]
		switch res.Status {
		case domain.StatusPassed:
			tally.passed = true
		case domain.StatusViolation:
			tally.violated = true
			if res.Severity == domain.SeverityMandatory {
				tally.mandatoryViolated = true
			}
			d.Violations = append(d.Violations, res)
		case domain.StatusWarning:
			tally.warned = true
			d.Warnings = append(d.Warnings, res)
		case domain.StatusError:
			tally.errored = true
			d.Errors = append(d.Errors, res)
		case domain.StatusNotApplicable:
			tally.skipped = true
		}
	}

	var reports []domain.PackageReport
	for key, tallies := range perPkg {
		d := details[key]
		for _, t := range tallies {
			switch {
			case t.mandatoryViolated:
				d.FailedRules++
			case t.violated || t.warned:
				d.PartialRules++
			case t.errored:
				d.ErroredRules++
			case t.passed:
				d.PassedRules++
			default:
				d.SkippedRules++
			}
			if t.mandatory && !t.skipped && !t.errored {
				d.Mandatory = true
			}
		}
		d.TotalRules = d.PassedRules + d.FailedRules + d.PartialRules
		d.Score = packageScore(d)
		d.Status = packageStatus(d)
		reports = append(reports, *d)
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Standard != reports[j].Standard {
			return reports[i].Standard < reports[j].Standard
		}
		return reports[i].SectionID < reports[j].SectionID
	})

	report := domain.ComplianceReport{
		ReportID:       a.newID(),
		BuildingID:     model.BuildingID,
		BuildingName:   model.BuildingName,
		ValidationDate: a.now().UTC(),
		OverallScore:   overallScore(reports),
		Incomplete:     incomplete,
		Jurisdictions:  matches,
		Packages:       reports,
		Results:        results,
	}
	report.OverallStatus = a.overallStatus(report.OverallScore, incomplete)
	report.Recommendations = recommend(reports)
	report.Notes = notes(model, reports)
	return report
}

// sectionTitle prefers the requirement's own title, falling back to the pack
// title so amended and added sections still label their package.
func sectionTitle(packages []domain.CodePackage, standard domain.CodeStandard, sectionID string) string {
	for _, pkg := range packages {
		if pkg.Standard != standard {
			continue
		}
		if req, ok := pkg.Requirements[sectionID]; ok && req.Title != "" {
			return req.Title
		}
		return pkg.SectionTitle
	}
	return ""
}

func sectionAmendments(packages []domain.CodePackage, standard domain.CodeStandard, sectionID string) []domain.AppliedAmendment {
	for _, pkg := range packages {
		if pkg.Standard != standard {
			continue
		}
		var out []domain.AppliedAmendment
		for _, am := range pkg.Amendments {
			if am.SectionID == sectionID {
				out = append(out, am)
			}
		}
		return out
	}
	return nil
}

// packageScore is the passed share of countable rules. A package in which
// nothing applied scores a clean 100.
func packageScore(d *domain.PackageReport) float64 {
	if d.TotalRules == 0 {
		return 100
	}
	return float64(d.PassedRules) / float64(d.TotalRules) * 100
}

func packageStatus(d *domain.PackageReport) domain.PackageStatus {
	switch {
	case d.TotalRules == 0:
		return domain.PackageNotApplicable
	case d.FailedRules > 0:
		return domain.PackageFailed
	case d.PartialRules > 0:
		return domain.PackagePartial
	default:
		return domain.PackagePassed
	}
}

// overallScore is the weighted mean of package scores, with mandatory
// packages counting double. No packages at all means nothing applied, which
// is full compliance.
func overallScore(reports []domain.PackageReport) float64 {
	var sum, weight float64
	for _, r := range reports {
		w := 1.0
		if r.Mandatory {
			w = mandatoryWeight
		}
		sum += r.Score * w
		weight += w
	}
	if weight == 0 {
		return 100
	}
	return sum / weight
}

func (a *Aggregator) overallStatus(score float64, incomplete bool) domain.OverallStatus {
	if incomplete {
		return domain.OverallIncomplete
	}
	switch {
	case score >= a.thresholds.Compliant:
		return domain.OverallCompliant
	case score >= a.thresholds.Partial:
		return domain.OverallPartial
	default:
		return domain.OverallNonCompliant
	}
}

// categoryAdvice maps a discipline to the remediation hint attached when that
// discipline has violations.
var categoryAdvice = map[domain.Category]string{
	domain.CategoryStructural:    "review structural members against the cited sections",
	domain.CategoryFireSafety:    "review fire separation, egress and suppression provisions",
	domain.CategoryAccessibility: "review accessible route widths, clearances and fixtures",
	domain.CategoryEnergy:        "review envelope and systems against the energy standard",
	domain.CategoryMechanical:    "review ventilation and mechanical system sizing",
	domain.CategoryElectrical:    "review circuit, panel and clearance requirements",
	domain.CategoryPlumbing:      "review fixture counts and drainage provisions",
	domain.CategoryGeneral:       "review the cited general provisions",
}

func recommend(reports []domain.PackageReport) []string {
	seen := make(map[domain.Category]bool)
	var cats []domain.Category
	for _, r := range reports {
		for _, v := range r.Violations {
			if !seen[v.Category] {
				seen[v.Category] = true
				cats = append(cats, v.Category)
			}
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var out []string
	for _, c := range cats {
		advice := categoryAdvice[c]
		if advice == "" {
			advice = "review the cited sections"
		}
		out = append(out, fmt.Sprintf("%s: %s", c, advice))
	}
	return out
}

func notes(model *domain.BuildingModel, reports []domain.PackageReport) []string {
	var out []string
	if len(model.Objects) == 0 {
		out = append(out, "building model contains no objects; no rule applied")
	}
	for _, r := range reports {
		if r.ErroredRules > 0 {
			out = append(out, fmt.Sprintf("%s %s: %d rule(s) could not be evaluated",
				r.Standard, r.SectionID, r.ErroredRules))
		}
	}
	return out
}
