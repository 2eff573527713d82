package jurisdiction

import (
	"fmt"
	"sort"
	"strings"

	"codecheck/internal/domain"
)

// BaseJurisdictionID names the synthetic match returned for locations that
// resolve to no jurisdiction at all. It selects the unamended base code.
const BaseJurisdictionID = "BASE"

// Resolver matches partial locations against a fixed jurisdiction forest.
// Built once from reference data; safe for concurrent use.
type Resolver struct {
	byID map[string]domain.Jurisdiction
	all  []domain.Jurisdiction
}

// NewResolver indexes the jurisdiction set. It rejects nodes with dangling
// parent references so chain walks cannot fail later.
func NewResolver(jurisdictions []domain.Jurisdiction) (*Resolver, error) {
	byID := make(map[string]domain.Jurisdiction, len(jurisdictions))
	for _, j := range jurisdictions {
		if j.ID == "" {
			return nil, fmt.Errorf("%w: jurisdiction with empty id", domain.ErrConfiguration)
		}
		if _, dup := byID[j.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate jurisdiction id %q", domain.ErrConfiguration, j.ID)
		}
		byID[j.ID] = j
	}
	for _, j := range jurisdictions {
		if j.ParentID != "" {
			if _, ok := byID[j.ParentID]; !ok {
				return nil, fmt.Errorf("%w: jurisdiction %q references unknown parent %q",
					domain.ErrConfiguration, j.ID, j.ParentID)
			}
		}
	}
	all := make([]domain.Jurisdiction, len(jurisdictions))
	copy(all, jurisdictions)
	return &Resolver{byID: byID, all: all}, nil
}

// Get returns one jurisdiction by id.
func (r *Resolver) Get(id string) (domain.Jurisdiction, bool) {
	j, ok := r.byID[id]
	return j, ok
}

// All returns the jurisdiction set sorted by id.
func (r *Resolver) All() []domain.Jurisdiction {
	out := make([]domain.Jurisdiction, len(r.all))
	copy(out, r.all)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Chain walks from a jurisdiction up to its root, most local first.
func (r *Resolver) Chain(id string) []domain.Jurisdiction {
	var chain []domain.Jurisdiction
	for id != "" {
		j, ok := r.byID[id]
		if !ok {
			break
		}
		chain = append(chain, j)
		id = j.ParentID
	}
	return chain
}

// Resolve matches the location against the forest. A jurisdiction matches
// when every named location field agrees with some node in its ancestor
// chain; extra location fields the chain does not mention do not disqualify
// it. Matches come back sorted by specificity descending, then by how many
// location fields matched, then by jurisdiction id. An empty location yields
// the single synthetic BASE match.
func (r *Resolver) Resolve(loc *domain.Location) []domain.JurisdictionMatch {
	if loc.IsEmpty() {
		return []domain.JurisdictionMatch{baseMatch()}
	}

	var matches []domain.JurisdictionMatch
	for _, j := range r.all {
		fields, ok := r.matchChain(j, loc)
		if !ok {
			continue
		}
		matches = append(matches, domain.JurisdictionMatch{
			Jurisdiction:  j,
			Specificity:   j.Level.Specificity(),
			MatchedFields: fields,
			Reasoning: fmt.Sprintf("%s %q matched on %s",
				j.Level, j.Name, strings.Join(fields, ", ")),
		})
	}

	if len(matches) == 0 {
		return []domain.JurisdictionMatch{baseMatch()}
	}

	sort.Slice(matches, func(i, k int) bool {
		a, b := matches[i], matches[k]
		if a.Specificity != b.Specificity {
			return a.Specificity > b.Specificity
		}
		if len(a.MatchedFields) != len(b.MatchedFields) {
			return len(a.MatchedFields) > len(b.MatchedFields)
		}
		return a.Jurisdiction.ID < b.Jurisdiction.ID
	})
	return matches
}

// matchChain checks the jurisdiction's ancestor chain against the location.
// Every location field for a level present in the chain must agree; the
// jurisdiction's own level must be named in the location, otherwise a state
// would "match" a location that only gives a country.
func (r *Resolver) matchChain(j domain.Jurisdiction, loc *domain.Location) ([]string, bool) {
	if locField(loc, j.Level) == "" {
		return nil, false
	}

	var fields []string
	for _, node := range r.Chain(j.ID) {
		want := locField(loc, node.Level)
		if want == "" {
			continue
		}
		if !strings.EqualFold(want, node.Name) {
			return nil, false
		}
		fields = append(fields, string(node.Level))
	}
	if len(fields) == 0 {
		return nil, false
	}
	sort.Strings(fields)
	return fields, true
}

func locField(loc *domain.Location, level domain.JurisdictionLevel) string {
	switch level {
	case domain.LevelCountry:
		return loc.Country
	case domain.LevelState:
		return loc.State
	case domain.LevelCounty:
		return loc.County
	case domain.LevelCity:
		return loc.City
	default:
		return ""
	}
}

func baseMatch() domain.JurisdictionMatch {
	return domain.JurisdictionMatch{
		Jurisdiction: domain.Jurisdiction{
			ID:    BaseJurisdictionID,
			Level: domain.LevelNone,
			Name:  "Base code",
		},
		Specificity: 0,
		Reasoning:   "no jurisdiction matched; using unamended base code",
	}
}
