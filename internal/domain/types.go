package domain

import (
	"encoding/json"
	"time"
)

// CodeStandard identifies a family of building-code requirements.
type CodeStandard string

const (
	StandardIBC    CodeStandard = "IBC"     // International Building Code
	StandardNEC    CodeStandard = "NEC"     // National Electrical Code
	StandardIPC    CodeStandard = "IPC"     // International Plumbing Code
	StandardIMC    CodeStandard = "IMC"     // International Mechanical Code
	StandardADA    CodeStandard = "ADA"     // ADA Standards for Accessible Design
	StandardASHRAE CodeStandard = "ASHRAE"  // ASHRAE 90.1 energy standard
	StandardNFPA   CodeStandard = "NFPA101" // Life Safety Code
)

// Category classifies a requirement or rule by discipline.
type Category string

const (
	CategoryStructural    Category = "structural"
	CategoryFireSafety    Category = "fire_safety"
	CategoryAccessibility Category = "accessibility"
	CategoryEnergy        Category = "energy"
	CategoryMechanical    Category = "mechanical"
	CategoryElectrical    Category = "electrical"
	CategoryPlumbing      Category = "plumbing"
	CategoryGeneral       Category = "general"
)

// Severity distinguishes requirements that can fail a package from advisory ones.
type Severity string

const (
	SeverityMandatory Severity = "mandatory"
	SeverityAdvisory  Severity = "advisory"
)

// JurisdictionLevel orders jurisdictions from broadest to most local.
type JurisdictionLevel string

const (
	LevelNone    JurisdictionLevel = "none" // synthetic BASE match, unamended code
	LevelCountry JurisdictionLevel = "country"
	LevelState   JurisdictionLevel = "state"
	LevelCounty  JurisdictionLevel = "county"
	LevelCity    JurisdictionLevel = "city"
)

// Specificity returns the ranking weight for the level. County and city are
// siblings: both are more specific than state, and neither outranks the other
// by level alone.
func (l JurisdictionLevel) Specificity() int {
	switch l {
	case LevelCountry:
		return 1
	case LevelState:
		return 2
	case LevelCounty, LevelCity:
		return 3
	default:
		return 0
	}
}

// Jurisdiction is one node of the jurisdiction forest. Reference data, loaded
// once at startup and never mutated.
type Jurisdiction struct {
	ID       string            `json:"id" yaml:"id"`
	Level    JurisdictionLevel `json:"level" yaml:"level"`
	Name     string            `json:"name" yaml:"name"`
	ParentID string            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// Location is the partial address used to resolve jurisdictions. Any field may
// be empty; a fully empty location resolves to the synthetic BASE match.
type Location struct {
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	County  string `json:"county,omitempty" yaml:"county,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
}

// IsEmpty reports whether no address component is present.
func (l *Location) IsEmpty() bool {
	return l == nil || (l.Country == "" && l.State == "" && l.County == "" && l.City == "")
}

// BuildingObject is one element of the building graph: a typed discriminator
// plus a property bag. The engine never mutates it.
type BuildingObject struct {
	ObjectID   string         `json:"object_id"`
	ObjectType string         `json:"object_type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// BuildingModel is the caller-supplied input graph for one validation run.
type BuildingModel struct {
	BuildingID   string           `json:"building_id"`
	BuildingName string           `json:"building_name,omitempty"`
	Objects      []BuildingObject `json:"objects"`
	Location     *Location        `json:"location,omitempty"`
}

// CodeRequirement is one section of a code standard at one version. Identified
// by (Standard, Version, SectionID); never mutated, new content is a new version.
type CodeRequirement struct {
	Standard          CodeStandard `json:"standard" yaml:"standard"`
	SectionID         string       `json:"section_id" yaml:"section_id"`
	Version           string       `json:"version" yaml:"version"`
	Title             string       `json:"title" yaml:"title"`
	Description       string       `json:"description,omitempty" yaml:"description,omitempty"`
	Category          Category     `json:"category,omitempty" yaml:"category,omitempty"`
	IsMandatory       bool         `json:"is_mandatory" yaml:"is_mandatory"`
	JurisdictionScope string       `json:"jurisdiction_scope,omitempty" yaml:"jurisdiction_scope,omitempty"`
}

// AmendmentOp is the kind of change a jurisdiction applies to a base section.
type AmendmentOp string

const (
	AmendAdd     AmendmentOp = "ADD"
	AmendReplace AmendmentOp = "REPLACE"
	AmendRemove  AmendmentOp = "REMOVE"
)

// Amendment is a jurisdiction-scoped change to one base requirement. REPLACE
// payloads are JSON merge patches (RFC 7396) against the base requirement; ADD
// payloads are complete CodeRequirement documents; REMOVE carries no payload.
type Amendment struct {
	JurisdictionID string          `json:"jurisdiction_id" yaml:"jurisdiction_id"`
	Standard       CodeStandard    `json:"standard" yaml:"standard"`
	BaseSectionID  string          `json:"base_section_id" yaml:"base_section_id"`
	Operation      AmendmentOp     `json:"operation" yaml:"operation"`
	Payload        json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// ObjectSelector filters the building graph down to the objects a rule applies
// to: a type discriminator plus a capability check on required properties.
type ObjectSelector struct {
	ObjectType    string   `json:"object_type"`
	HasProperties []string `json:"has_properties,omitempty"`
}

// Condition is one node of a rule's boolean expression tree. Exactly one of
// the node kinds should be populated: All (AND), Any (OR), Not, a property
// comparison (Property/Operator/Value), or a raw JsonLogic expression.
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
	Not *Condition  `json:"not,omitempty"`

	Property string `json:"property,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`

	Logic map[string]any `json:"logic,omitempty"`
}

// ActionType selects what a rule emits when its condition fails.
type ActionType string

const (
	ActionEmitViolation ActionType = "emit_violation"
	ActionEmitWarning   ActionType = "emit_warning"
)

// Action fires when a rule's condition is false for a matched object. Message
// is a template; {object_id}, {object_type} and {<property>} placeholders are
// filled from the failing object.
type Action struct {
	Type          ActionType `json:"type"`
	Message       string     `json:"message"`
	CodeReference string     `json:"code_reference,omitempty"`
}

// Rule is an executable check tied to one code requirement section.
type Rule struct {
	ID        string         `json:"id"`
	Standard  CodeStandard   `json:"standard"`
	SectionID string         `json:"section_id"`
	Severity  Severity       `json:"severity"`
	Category  Category       `json:"category"`
	Selector  ObjectSelector `json:"selector"`
	Condition *Condition     `json:"condition"`
	Actions   []Action       `json:"actions"`
}

// RulePack is one versioned bundle of rules for a code standard, loaded as
// reference data alongside the requirements of the same version.
type RulePack struct {
	Standard     CodeStandard `json:"standard" yaml:"standard"`
	Version      string       `json:"version" yaml:"version"`
	SectionTitle string       `json:"section_title,omitempty" yaml:"section_title,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Rules        []Rule       `json:"rules" yaml:"rules"`
}

// CodePackage is a rule pack after jurisdiction resolution: the base rules and
// requirements of the active version with the winning amendments applied.
type CodePackage struct {
	Standard     CodeStandard               `json:"standard"`
	Version      string                     `json:"version"`
	SectionTitle string                     `json:"section_title,omitempty"`
	Requirements map[string]CodeRequirement `json:"requirements"`
	Rules        []Rule                     `json:"rules"`
	Amendments   []AppliedAmendment         `json:"amendments,omitempty"`
}

// AppliedAmendment records which amendment won for a section, for traceability.
type AppliedAmendment struct {
	JurisdictionID string      `json:"jurisdiction_id"`
	SectionID      string      `json:"section_id"`
	Operation      AmendmentOp `json:"operation"`
}

// CrossReference is a "see also" link between code sections. Read-only index
// data, never a live reference between rules.
type CrossReference struct {
	Standard     CodeStandard `json:"standard" yaml:"standard"`
	SectionID    string       `json:"section_id" yaml:"section_id"`
	RefStandard  CodeStandard `json:"ref_standard" yaml:"ref_standard"`
	RefSectionID string       `json:"ref_section_id" yaml:"ref_section_id"`
	Note         string       `json:"note,omitempty" yaml:"note,omitempty"`
}

// ResultStatus is the outcome of evaluating one rule, or one (rule, object) pair.
type ResultStatus string

const (
	StatusPassed        ResultStatus = "passed"
	StatusViolation     ResultStatus = "violation"
	StatusWarning       ResultStatus = "warning"
	StatusNotApplicable ResultStatus = "not_applicable"
	StatusError         ResultStatus = "error"
)

// ValidationResult is one evaluation outcome. Rule-level outcomes
// (not_applicable) carry an empty ObjectID. Immutable once produced; it holds
// enough context to render independently of the aggregator.
type ValidationResult struct {
	RuleID        string       `json:"rule_id"`
	Standard      CodeStandard `json:"standard"`
	SectionID     string       `json:"section_id"`
	ObjectID      string       `json:"object_id,omitempty"`
	Status        ResultStatus `json:"status"`
	Severity      Severity     `json:"severity"`
	Category      Category     `json:"category"`
	Message       string       `json:"message,omitempty"`
	CodeReference string       `json:"code_reference,omitempty"`
}

// OverallStatus summarizes a report.
type OverallStatus string

const (
	OverallCompliant    OverallStatus = "COMPLIANT"
	OverallPartial      OverallStatus = "PARTIAL"
	OverallNonCompliant OverallStatus = "NON_COMPLIANT"
	OverallIncomplete   OverallStatus = "INCOMPLETE"
)

// PackageStatus summarizes one code package within a report.
type PackageStatus string

const (
	PackagePassed        PackageStatus = "passed"
	PackageFailed        PackageStatus = "failed"
	PackagePartial       PackageStatus = "partial"
	PackageNotApplicable PackageStatus = "not_applicable"
)

// PackageReport is the per-(standard, section) rollup. The counting invariant
// holds for every package: PassedRules + FailedRules + PartialRules == TotalRules.
// Errored and not-applicable rules sit outside TotalRules but stay enumerable
// in the detail lists.
type PackageReport struct {
	Standard      CodeStandard       `json:"standard"`
	SectionID     string             `json:"section_id"`
	SectionTitle  string             `json:"section_title,omitempty"`
	Status        PackageStatus      `json:"status"`
	Score         float64            `json:"score"`
	Mandatory     bool               `json:"mandatory"`
	TotalRules    int                `json:"total_rules"`
	PassedRules   int                `json:"passed_rules"`
	FailedRules   int                `json:"failed_rules"`
	PartialRules  int                `json:"partial_rules"`
	SkippedRules  int                `json:"skipped_rules"`
	ErroredRules  int                `json:"errored_rules"`
	Violations    []ValidationResult `json:"violations,omitempty"`
	Warnings      []ValidationResult `json:"warnings,omitempty"`
	Errors        []ValidationResult `json:"errors,omitempty"`
	AmendmentsLog []AppliedAmendment `json:"amendments,omitempty"`
}

// JurisdictionMatch is the resolver output: one matched jurisdiction, its
// specificity, the location fields that matched, and a reasoning string for
// explainability.
type JurisdictionMatch struct {
	Jurisdiction  Jurisdiction `json:"jurisdiction"`
	Specificity   int          `json:"specificity"`
	MatchedFields []string     `json:"matched_fields,omitempty"`
	Reasoning     string       `json:"reasoning,omitempty"`
}

// ComplianceReport is the engine's sole output, built once and handed to the
// caller as an immutable value. Detail lists are sorted by (standard, section,
// object_id, rule_id) so that identical inputs serialize byte-identically.
type ComplianceReport struct {
	ReportID        string              `json:"report_id"`
	BuildingID      string              `json:"building_id"`
	BuildingName    string              `json:"building_name,omitempty"`
	ValidationDate  time.Time           `json:"validation_date"`
	OverallStatus   OverallStatus       `json:"overall_status"`
	OverallScore    float64             `json:"overall_score"`
	Incomplete      bool                `json:"incomplete,omitempty"`
	Jurisdictions   []JurisdictionMatch `json:"jurisdictions,omitempty"`
	Packages        []PackageReport     `json:"packages"`
	Results         []ValidationResult  `json:"results"`
	Recommendations []string            `json:"recommendations,omitempty"`
	Notes           []string            `json:"notes,omitempty"`
}
