package yamlstore

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/domain"
)

func TestLoadBundle(t *testing.T) {
	bundle, err := Load(filepath.Join("testdata", "bundle"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	require.Len(t, bundle.Jurisdictions, 2)
	assert.Equal(t, "us-ca", bundle.Jurisdictions[1].ID)
	assert.Equal(t, domain.LevelState, bundle.Jurisdictions[1].Level)
	assert.Equal(t, "us", bundle.Jurisdictions[1].ParentID)

	require.Len(t, bundle.Packs, 1)
	pack := bundle.Packs[0].Pack
	assert.Equal(t, domain.StandardIBC, pack.Standard)
	assert.Equal(t, "2021", pack.Version)
	require.Len(t, pack.Rules, 1)

	rule := pack.Rules[0]
	assert.Equal(t, "ibc-door-width", rule.ID)
	assert.Equal(t, "door", rule.Selector.ObjectType)
	assert.Equal(t, []string{"width_in"}, rule.Selector.HasProperties)
	require.NotNil(t, rule.Condition)
	assert.Equal(t, "gte", rule.Condition.Operator)
	assert.Equal(t, "width_in", rule.Condition.Property)
	require.Len(t, rule.Actions, 1)
	assert.Equal(t, domain.ActionEmitViolation, rule.Actions[0].Type)

	require.Len(t, bundle.Packs[0].Requirements, 1)
	assert.True(t, bundle.Packs[0].Requirements[0].IsMandatory)

	require.Len(t, bundle.Amendments, 1)
	am := bundle.Amendments[0]
	assert.Equal(t, domain.AmendReplace, am.Operation)

	// The YAML payload must come through as a JSON document a merge patch
	// can consume.
	var patch map[string]any
	require.NoError(t, json.Unmarshal(am.Payload, &patch))
	assert.Contains(t, patch["description"], "36 inches")

	assert.Empty(t, bundle.CrossReferences, "missing crossrefs.yaml degrades to empty")
}

func TestLoadMissingJurisdictions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packs"), 0o755))
	_, err := Load(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestLoadNoPacks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jurisdictions.yaml"), []byte("[]"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packs"), 0o755))
	_, err := Load(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestLoadMalformedPack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jurisdictions.yaml"), []byte("[]"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packs", "bad.yaml"), []byte("pack: {standard: IBC}"), 0o644))
	_, err := Load(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err, "pack without a version is rejected")
}
