package jurisdiction

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/domain"
)

func basePackage() domain.CodePackage {
	return domain.CodePackage{
		Standard: domain.StandardIBC,
		Version:  "2021",
		Requirements: map[string]domain.CodeRequirement{
			"1208.2": {
				Standard:    domain.StandardIBC,
				SectionID:   "1208.2",
				Version:     "2021",
				Title:       "Minimum ceiling height",
				Description: "Not less than 7 feet 6 inches.",
			},
			"903.2": {
				Standard:    domain.StandardIBC,
				SectionID:   "903.2",
				Version:     "2021",
				Title:       "Sprinklers",
				IsMandatory: true,
			},
		},
		Rules: []domain.Rule{
			{ID: "r-ceiling", Standard: domain.StandardIBC, SectionID: "1208.2"},
			{ID: "r-sprinkler", Standard: domain.StandardIBC, SectionID: "903.2"},
		},
	}
}

func matchesFor(ids map[string]int) []domain.JurisdictionMatch {
	var out []domain.JurisdictionMatch
	for id, spec := range ids {
		out = append(out, domain.JurisdictionMatch{
			Jurisdiction: domain.Jurisdiction{ID: id},
			Specificity:  spec,
		})
	}
	return out
}

func newTestOverlay() *Overlay {
	return NewOverlay(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestApplyReplaceMergePatch(t *testing.T) {
	o := newTestOverlay()
	am := domain.Amendment{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{"description":"Not less than 8 feet.","is_mandatory":true}`),
	}

	out, err := o.Apply(basePackage(), matchesFor(map[string]int{"us-ca": 2}), []domain.Amendment{am})
	require.NoError(t, err)

	req := out.Requirements["1208.2"]
	assert.Equal(t, "Minimum ceiling height", req.Title, "unpatched fields survive")
	assert.Equal(t, "Not less than 8 feet.", req.Description)
	assert.True(t, req.IsMandatory)

	require.Len(t, out.Amendments, 1)
	assert.Equal(t, domain.AmendReplace, out.Amendments[0].Operation)
}

func TestApplyRemoveDropsSectionAndRules(t *testing.T) {
	o := newTestOverlay()
	am := domain.Amendment{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendRemove,
	}

	out, err := o.Apply(basePackage(), matchesFor(map[string]int{"us-ca": 2}), []domain.Amendment{am})
	require.NoError(t, err)

	_, exists := out.Requirements["1208.2"]
	assert.False(t, exists)
	require.Len(t, out.Rules, 1)
	assert.Equal(t, "r-sprinkler", out.Rules[0].ID)
}

func TestApplyAdd(t *testing.T) {
	o := newTestOverlay()
	am := domain.Amendment{
		JurisdictionID: "us-ca-la",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.3",
		Operation:      domain.AmendAdd,
		Payload:        json.RawMessage(`{"section_id":"1208.3","version":"2021","title":"Local height rule","is_mandatory":true}`),
	}

	out, err := o.Apply(basePackage(), matchesFor(map[string]int{"us-ca-la": 3}), []domain.Amendment{am})
	require.NoError(t, err)

	req, exists := out.Requirements["1208.3"]
	require.True(t, exists)
	assert.Equal(t, domain.StandardIBC, req.Standard, "standard inherited from the package")
	assert.Equal(t, "Local height rule", req.Title)
}

func TestApplyHigherSpecificityWins(t *testing.T) {
	o := newTestOverlay()
	state := domain.Amendment{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{"description":"state version"}`),
	}
	city := domain.Amendment{
		JurisdictionID: "us-ca-la",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{"description":"city version"}`),
	}

	matches := matchesFor(map[string]int{"us-ca": 2, "us-ca-la": 3})
	out, err := o.Apply(basePackage(), matches, []domain.Amendment{state, city})
	require.NoError(t, err)
	assert.Equal(t, "city version", out.Requirements["1208.2"].Description)
}

func TestApplyTieBreaksOnJurisdictionID(t *testing.T) {
	o := newTestOverlay()
	a := domain.Amendment{
		JurisdictionID: "us-ca-la",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{"description":"city a"}`),
	}
	b := domain.Amendment{
		JurisdictionID: "us-ca-la-county",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{"description":"county b"}`),
	}

	matches := matchesFor(map[string]int{"us-ca-la": 3, "us-ca-la-county": 3})

	// Same winner regardless of input order.
	out1, err := o.Apply(basePackage(), matches, []domain.Amendment{a, b})
	require.NoError(t, err)
	out2, err := o.Apply(basePackage(), matches, []domain.Amendment{b, a})
	require.NoError(t, err)

	assert.Equal(t, "city a", out1.Requirements["1208.2"].Description)
	assert.Equal(t, out1.Requirements["1208.2"], out2.Requirements["1208.2"])
}

func TestApplyIgnoresUnmatchedJurisdictions(t *testing.T) {
	o := newTestOverlay()
	am := domain.Amendment{
		JurisdictionID: "us-ny",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendRemove,
	}

	out, err := o.Apply(basePackage(), matchesFor(map[string]int{"us-ca": 2}), []domain.Amendment{am})
	require.NoError(t, err)
	_, exists := out.Requirements["1208.2"]
	assert.True(t, exists, "amendments from unmatched jurisdictions never apply")
	assert.Empty(t, out.Amendments)
}

func TestApplyDoesNotMutateBase(t *testing.T) {
	o := newTestOverlay()
	base := basePackage()
	am := domain.Amendment{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1208.2",
		Operation:      domain.AmendRemove,
	}

	_, err := o.Apply(base, matchesFor(map[string]int{"us-ca": 2}), []domain.Amendment{am})
	require.NoError(t, err)

	_, exists := base.Requirements["1208.2"]
	assert.True(t, exists)
	assert.Len(t, base.Rules, 2)
}

func TestApplyReplaceUnknownSectionFails(t *testing.T) {
	o := newTestOverlay()
	am := domain.Amendment{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "9999",
		Operation:      domain.AmendReplace,
		Payload:        json.RawMessage(`{}`),
	}
	_, err := o.Apply(basePackage(), matchesFor(map[string]int{"us-ca": 2}), []domain.Amendment{am})
	assert.Error(t, err)
}
