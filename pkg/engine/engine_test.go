package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/config"
	"codecheck/internal/domain"
)

const testJurisdictions = `
- id: us
  level: country
  name: United States

- id: us-ca
  level: state
  name: California
  parent_id: us
`

const testPack = `
pack:
  standard: IBC
  version: "2021"
  section_title: International Building Code 2021
  rules:
    - id: ibc-door-width
      standard: IBC
      section_id: "1010.1.1"
      severity: mandatory
      category: fire_safety
      selector:
        object_type: door
        has_properties: [width_in]
      condition:
        property: width_in
        operator: gte
        value: 32
      actions:
        - type: emit_violation
          message: "door {object_id} below minimum width"
          code_reference: "IBC 1010.1.1"

requirements:
  - standard: IBC
    section_id: "1010.1.1"
    version: "2021"
    title: Door clear width
    description: Egress doors shall provide 32 inches clear width.
    is_mandatory: true
`

const testAmendments = `
- jurisdiction_id: us-ca
  standard: IBC
  base_section_id: "1010.1.1"
  operation: REPLACE
  payload:
    title: Door clear width (California)
`

func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "packs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jurisdictions.yaml"), []byte(testJurisdictions), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packs", "ibc.yaml"), []byte(testPack), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "amendments.yaml"), []byte(testAmendments), 0o644))
	return dir
}

func testConfig(dataDir, dbPath string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Knowledge.DataDir = dataDir
	cfg.Knowledge.DBPath = dbPath
	cfg.Engine.Workers = 2
	cfg.Engine.Timeout = 5 * time.Second
	return cfg
}

func caModel() *BuildingModel {
	return &BuildingModel{
		BuildingID: "bldg-1",
		Location:   &Location{Country: "United States", State: "California"},
		Objects: []BuildingObject{
			{ObjectID: "door-1", ObjectType: "door", Properties: map[string]any{"width_in": 28.0}},
		},
	}
}

func TestOpenFromYAMLThenReloadFromDatabase(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dbPath := filepath.Join(t.TempDir(), "knowledge.db")

	// First start: YAML bundle is authoritative and lands in the database.
	eng, err := Open(ctx, testConfig(writeBundle(t), dbPath), log)
	require.NoError(t, err)
	report, err := eng.Service.Validate(ctx, caModel())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.StatusViolation, report.Results[0].Status)
	require.NoError(t, eng.Close())

	// Second start: no data directory, the database alone feeds the engine.
	eng, err = Open(ctx, testConfig("", dbPath), log)
	require.NoError(t, err)
	defer eng.Close()

	matches := eng.Service.ResolveJurisdictions(&Location{Country: "United States", State: "California"})
	require.Len(t, matches, 3)
	assert.Equal(t, "us-ca", matches[0].Jurisdiction.ID)

	report, err = eng.Service.Validate(ctx, caModel())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.StatusViolation, report.Results[0].Status)
	require.Len(t, report.Packages, 1)
	assert.Len(t, report.Packages[0].AmendmentsLog, 1, "amendments survive the database round trip")

	hits := eng.Service.SearchRequirements("door width", SearchFilter{}, 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "1010.1.1", hits[0].Requirement.SectionID)

	versions, active, err := eng.Service.Versions(domain.StandardIBC)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021"}, versions)
	assert.Equal(t, "2021", active)
}

func TestRestartedEngineDoesNotDuplicateAmendments(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := writeBundle(t)
	dbPath := filepath.Join(t.TempDir(), "knowledge.db")

	for i := 0; i < 3; i++ {
		eng, err := Open(ctx, testConfig(dataDir, dbPath), log)
		require.NoError(t, err)
		require.NoError(t, eng.Close())
	}

	eng, err := Open(ctx, testConfig("", dbPath), log)
	require.NoError(t, err)
	defer eng.Close()

	report, err := eng.Service.Validate(ctx, caModel())
	require.NoError(t, err)
	require.Len(t, report.Packages, 1)
	assert.Len(t, report.Packages[0].AmendmentsLog, 1)
}

func TestOpenEmptyDatabaseFails(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "knowledge.db")

	_, err := Open(ctx, testConfig("", dbPath), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingReferenceData)
}
