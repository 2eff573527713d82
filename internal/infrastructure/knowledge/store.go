package knowledge

import (
	"fmt"
	"sort"
	"sync"

	"codecheck/internal/domain"
)

// versionData is everything one standard ships at one version.
type versionData struct {
	pack         domain.RulePack
	requirements map[string]domain.CodeRequirement
}

// MemoryStore holds the code knowledge: versioned requirements and rule packs
// per standard, jurisdiction amendments, and the cross-reference index. At
// most one version per standard is active at a time; evaluation always reads
// from an immutable Snapshot so a run never observes a half-applied update.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[domain.CodeStandard]map[string]*versionData
	active   map[domain.CodeStandard]string
	amends   []domain.Amendment
	crossr   crossIndex
}

type crossIndex map[string][]domain.CrossReference

func crossKey(std domain.CodeStandard, section string) string {
	return string(std) + "\x00" + section
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[domain.CodeStandard]map[string]*versionData),
		active:   make(map[domain.CodeStandard]string),
		crossr:   make(crossIndex),
	}
}

// PutVersion stores one standard version: its rule pack and the requirements
// the rules reference. The first version stored for a standard becomes active.
// Storing an existing version again is a conflict; published versions are
// immutable.
func (s *MemoryStore) PutVersion(pack domain.RulePack, requirements []domain.CodeRequirement) error {
	if pack.Standard == "" || pack.Version == "" {
		return fmt.Errorf("%w: rule pack without standard or version", domain.ErrConfiguration)
	}
	if err := validatePack(pack); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byVersion := s.versions[pack.Standard]
	if byVersion == nil {
		byVersion = make(map[string]*versionData)
		s.versions[pack.Standard] = byVersion
	}
	if _, exists := byVersion[pack.Version]; exists {
		return fmt.Errorf("%w: %s@%s already published", domain.ErrVersionConflict, pack.Standard, pack.Version)
	}

	reqs := make(map[string]domain.CodeRequirement, len(requirements))
	for _, r := range requirements {
		if r.SectionID == "" {
			return fmt.Errorf("%w: requirement without section id in %s@%s",
				domain.ErrConfiguration, pack.Standard, pack.Version)
		}
		reqs[r.SectionID] = r
	}
	byVersion[pack.Version] = &versionData{pack: pack, requirements: reqs}

	if _, hasActive := s.active[pack.Standard]; !hasActive {
		s.active[pack.Standard] = pack.Version
	}
	return nil
}

// SetActive switches the active version of a standard. The target version
// must already be published; the previous active version stays queryable.
func (s *MemoryStore) SetActive(standard domain.CodeStandard, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVersion := s.versions[standard]
	if byVersion == nil {
		return fmt.Errorf("%w: no versions for %s", domain.ErrMissingReferenceData, standard)
	}
	if _, ok := byVersion[version]; !ok {
		return fmt.Errorf("%w: %s@%s not published", domain.ErrMissingReferenceData, standard, version)
	}
	s.active[standard] = version
	return nil
}

// AddAmendments appends jurisdiction amendments to the store.
func (s *MemoryStore) AddAmendments(amendments []domain.Amendment) error {
	for _, am := range amendments {
		if am.JurisdictionID == "" || am.Standard == "" || am.BaseSectionID == "" {
			return fmt.Errorf("%w: amendment missing jurisdiction, standard or section", domain.ErrConfiguration)
		}
		switch am.Operation {
		case domain.AmendAdd, domain.AmendReplace, domain.AmendRemove:
		default:
			return fmt.Errorf("%w: amendment with unknown operation %q", domain.ErrConfiguration, am.Operation)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amends = append(s.amends, amendments...)
	return nil
}

// AddCrossReferences appends links to the cross-reference index.
func (s *MemoryStore) AddCrossReferences(refs []domain.CrossReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		key := crossKey(ref.Standard, ref.SectionID)
		s.crossr[key] = append(s.crossr[key], ref)
	}
}

// Snapshot captures the active version of every standard plus amendments and
// cross-references. The snapshot shares no mutable state with the store.
func (s *MemoryStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		packages: make(map[domain.CodeStandard]domain.CodePackage, len(s.active)),
		crossr:   make(crossIndex, len(s.crossr)),
	}
	for standard, version := range s.active {
		data := s.versions[standard][version]
		pkg := domain.CodePackage{
			Standard:     standard,
			Version:      version,
			SectionTitle: data.pack.SectionTitle,
			Requirements: make(map[string]domain.CodeRequirement, len(data.requirements)),
			Rules:        append([]domain.Rule(nil), data.pack.Rules...),
		}
		for id, req := range data.requirements {
			pkg.Requirements[id] = req
		}
		snap.packages[standard] = pkg
	}
	snap.amendments = append([]domain.Amendment(nil), s.amends...)
	for k, v := range s.crossr {
		snap.crossr[k] = append([]domain.CrossReference(nil), v...)
	}
	return snap
}

// Requirement returns one section of a standard. An empty version reads the
// active version; a named version reads that published version, so callers
// can pin a historical version after the active one has moved on.
func (s *MemoryStore) Requirement(standard domain.CodeStandard, sectionID, version string) (domain.CodeRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byVersion := s.versions[standard]
	if byVersion == nil {
		return domain.CodeRequirement{}, fmt.Errorf("%w: no versions for %s", domain.ErrMissingReferenceData, standard)
	}
	if version == "" {
		version = s.active[standard]
	}
	data, ok := byVersion[version]
	if !ok {
		return domain.CodeRequirement{}, fmt.Errorf("%w: %s@%s not published", domain.ErrMissingReferenceData, standard, version)
	}
	req, ok := data.requirements[sectionID]
	if !ok {
		return domain.CodeRequirement{}, fmt.Errorf("%w: %s@%s has no section %s",
			domain.ErrMissingReferenceData, standard, version, sectionID)
	}
	return req, nil
}

// Versions lists the published versions of a standard, active one flagged.
func (s *MemoryStore) Versions(standard domain.CodeStandard) (versions []string, active string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byVersion := s.versions[standard]
	if byVersion == nil {
		return nil, "", fmt.Errorf("%w: no versions for %s", domain.ErrMissingReferenceData, standard)
	}
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, s.active[standard], nil
}

// Snapshot is an immutable read view over the store, as of one point in time.
type Snapshot struct {
	packages   map[domain.CodeStandard]domain.CodePackage
	amendments []domain.Amendment
	crossr     crossIndex
}

// Packages returns the active code packages sorted by standard.
func (s *Snapshot) Packages() []domain.CodePackage {
	out := make([]domain.CodePackage, 0, len(s.packages))
	for _, pkg := range s.packages {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Standard < out[j].Standard })
	return out
}

// Package returns the active package of one standard.
func (s *Snapshot) Package(standard domain.CodeStandard) (domain.CodePackage, error) {
	pkg, ok := s.packages[standard]
	if !ok {
		return domain.CodePackage{}, fmt.Errorf("%w: %s", domain.ErrMissingReferenceData, standard)
	}
	return pkg, nil
}

// Amendments returns every stored amendment.
func (s *Snapshot) Amendments() []domain.Amendment {
	return s.amendments
}

// CrossReferences returns the links out of one section. A section with no
// entry, or a store with no index at all, yields an empty list rather than an
// error; missing cross-reference data never blocks validation.
func (s *Snapshot) CrossReferences(standard domain.CodeStandard, sectionID string) []domain.CrossReference {
	refs := s.crossr[crossKey(standard, sectionID)]
	out := append([]domain.CrossReference(nil), refs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RefStandard != out[j].RefStandard {
			return out[i].RefStandard < out[j].RefStandard
		}
		return out[i].RefSectionID < out[j].RefSectionID
	})
	return out
}

// validatePack rejects rule packs the engine could not evaluate, so bad packs
// fail at load time rather than per run.
func validatePack(pack domain.RulePack) error {
	seen := make(map[string]struct{}, len(pack.Rules))
	for _, rule := range pack.Rules {
		if rule.ID == "" {
			return fmt.Errorf("%w: rule without id in %s@%s", domain.ErrConfiguration, pack.Standard, pack.Version)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("%w: duplicate rule id %q in %s@%s",
				domain.ErrConfiguration, rule.ID, pack.Standard, pack.Version)
		}
		seen[rule.ID] = struct{}{}
		if rule.Selector.ObjectType == "" {
			return fmt.Errorf("%w: rule %q has no object selector", domain.ErrConfiguration, rule.ID)
		}
		if err := validateCondition(rule.Condition, rule.ID); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(cond *domain.Condition, ruleID string) error {
	if cond == nil {
		return nil
	}
	populated := 0
	if len(cond.All) > 0 {
		populated++
		for i := range cond.All {
			if err := validateCondition(&cond.All[i], ruleID); err != nil {
				return err
			}
		}
	}
	if len(cond.Any) > 0 {
		populated++
		for i := range cond.Any {
			if err := validateCondition(&cond.Any[i], ruleID); err != nil {
				return err
			}
		}
	}
	if cond.Not != nil {
		populated++
		if err := validateCondition(cond.Not, ruleID); err != nil {
			return err
		}
	}
	if len(cond.Logic) > 0 {
		populated++
	}
	if cond.Operator != "" {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("%w: rule %q has a condition node with %d kinds set",
			domain.ErrConfiguration, ruleID, populated)
	}
	return nil
}
