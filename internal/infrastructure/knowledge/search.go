package knowledge

import (
	"sort"
	"strings"

	"codecheck/internal/domain"
)

// SearchHit is one requirement matching a keyword query, with its relevance.
type SearchHit struct {
	Requirement domain.CodeRequirement `json:"requirement"`
	Score       int                    `json:"score"`
}

// SearchFilter narrows a keyword query to facets of the corpus. Zero-value
// fields do not filter; Mandatory is a tri-state, nil meaning "either".
type SearchFilter struct {
	Standard  domain.CodeStandard
	Category  domain.Category
	Mandatory *bool
}

func (f SearchFilter) admits(req domain.CodeRequirement) bool {
	if f.Standard != "" && req.Standard != f.Standard {
		return false
	}
	if f.Category != "" && req.Category != f.Category {
		return false
	}
	if f.Mandatory != nil && req.IsMandatory != *f.Mandatory {
		return false
	}
	return true
}

// titleWeight makes a keyword found in a title count more than one found in a
// description.
const (
	titleWeight       = 3
	descriptionWeight = 1
)

// Search runs a keyword query over the requirements of every active version,
// restricted to the filter's facets. Scoring is purely lexical: each query
// term found in a title scores higher than one found in a description. Ties
// break by standard then section id, so the same query over the same snapshot
// always returns the same order.
func (s *Snapshot) Search(query string, filter SearchFilter, limit int) []SearchHit {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	var hits []SearchHit
	for _, pkg := range s.Packages() {
		for _, req := range pkg.Requirements {
			if !filter.admits(req) {
				continue
			}
			score := scoreRequirement(req, terms)
			if score > 0 {
				hits = append(hits, SearchHit{Requirement: req, Score: score})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Requirement.Standard != b.Requirement.Standard {
			return a.Requirement.Standard < b.Requirement.Standard
		}
		return a.Requirement.SectionID < b.Requirement.SectionID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func scoreRequirement(req domain.CodeRequirement, terms []string) int {
	title := strings.ToLower(req.Title)
	desc := strings.ToLower(req.Description)
	score := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += titleWeight
		}
		if strings.Contains(desc, term) {
			score += descriptionWeight
		}
	}
	return score
}
