package jurisdiction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"codecheck/internal/domain"
)

// Overlay applies jurisdiction amendments to a base code package. The base
// package is never mutated; the overlay builds a fresh requirement map and
// rule list for each call.
type Overlay struct {
	log *slog.Logger
}

// NewOverlay builds an amendment overlay.
func NewOverlay(log *slog.Logger) *Overlay {
	if log == nil {
		log = slog.Default()
	}
	return &Overlay{log: log}
}

// Apply resolves the amendments of the matched jurisdictions against one base
// package. When several matched jurisdictions amend the same section, the one
// with the highest specificity wins; ties fall to the lexicographically
// smallest jurisdiction id, and the ambiguity is logged.
func (o *Overlay) Apply(base domain.CodePackage, matches []domain.JurisdictionMatch, amendments []domain.Amendment) (domain.CodePackage, error) {
	specificity := make(map[string]int, len(matches))
	for _, m := range matches {
		specificity[m.Jurisdiction.ID] = m.Specificity
	}

	// Winner per section among amendments from matched jurisdictions.
	winners := make(map[string]domain.Amendment)
	for _, am := range amendments {
		if am.Standard != base.Standard {
			continue
		}
		spec, matched := specificity[am.JurisdictionID]
		if !matched {
			continue
		}
		cur, taken := winners[am.BaseSectionID]
		if !taken {
			winners[am.BaseSectionID] = am
			continue
		}
		curSpec := specificity[cur.JurisdictionID]
		switch {
		case spec > curSpec:
			winners[am.BaseSectionID] = am
		case spec == curSpec && cur.JurisdictionID != am.JurisdictionID:
			o.log.Warn("ambiguous amendments for section",
				"standard", base.Standard,
				"section_id", am.BaseSectionID,
				"jurisdictions", []string{cur.JurisdictionID, am.JurisdictionID})
			if am.JurisdictionID < cur.JurisdictionID {
				winners[am.BaseSectionID] = am
			}
		}
	}

	out := domain.CodePackage{
		Standard:     base.Standard,
		Version:      base.Version,
		SectionTitle: base.SectionTitle,
		Requirements: make(map[string]domain.CodeRequirement, len(base.Requirements)),
	}
	for id, req := range base.Requirements {
		out.Requirements[id] = req
	}

	removed := make(map[string]bool)
	sections := make([]string, 0, len(winners))
	for s := range winners {
		sections = append(sections, s)
	}
	sort.Strings(sections)

	for _, section := range sections {
		am := winners[section]
		switch am.Operation {
		case domain.AmendRemove:
			delete(out.Requirements, section)
			removed[section] = true

		case domain.AmendAdd:
			var req domain.CodeRequirement
			if err := json.Unmarshal(am.Payload, &req); err != nil {
				return domain.CodePackage{}, fmt.Errorf("%w: amendment %s/%s ADD payload: %v",
					domain.ErrConfiguration, am.JurisdictionID, section, err)
			}
			if req.Standard == "" {
				req.Standard = base.Standard
			}
			if req.SectionID == "" {
				req.SectionID = section
			}
			out.Requirements[req.SectionID] = req

		case domain.AmendReplace:
			baseReq, ok := out.Requirements[section]
			if !ok {
				return domain.CodePackage{}, fmt.Errorf("%w: amendment %s/%s replaces unknown section",
					domain.ErrConfiguration, am.JurisdictionID, section)
			}
			patched, err := mergeRequirement(baseReq, am.Payload)
			if err != nil {
				return domain.CodePackage{}, fmt.Errorf("amendment %s/%s: %w",
					am.JurisdictionID, section, err)
			}
			out.Requirements[section] = patched

		default:
			return domain.CodePackage{}, fmt.Errorf("%w: amendment %s/%s has unknown operation %q",
				domain.ErrConfiguration, am.JurisdictionID, section, am.Operation)
		}

		out.Amendments = append(out.Amendments, domain.AppliedAmendment{
			JurisdictionID: am.JurisdictionID,
			SectionID:      section,
			Operation:      am.Operation,
		})
	}

	// Rules tied to removed sections drop out with their requirement.
	for _, rule := range base.Rules {
		if removed[rule.SectionID] {
			continue
		}
		out.Rules = append(out.Rules, rule)
	}
	return out, nil
}

// mergeRequirement applies an RFC 7396 merge patch to one requirement.
func mergeRequirement(base domain.CodeRequirement, patch json.RawMessage) (domain.CodeRequirement, error) {
	doc, err := json.Marshal(base)
	if err != nil {
		return domain.CodeRequirement{}, err
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return domain.CodeRequirement{}, fmt.Errorf("%w: bad merge patch: %v", domain.ErrConfiguration, err)
	}
	var out domain.CodeRequirement
	if err := json.Unmarshal(merged, &out); err != nil {
		return domain.CodeRequirement{}, fmt.Errorf("%w: merged requirement: %v", domain.ErrConfiguration, err)
	}
	return out, nil
}
