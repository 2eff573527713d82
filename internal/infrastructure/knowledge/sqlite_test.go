package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecheck/internal/domain"
)

func newTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "knowledge.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.SaveVersion(ctx, ibcPack("2021"), ibcRequirements("2021")))
	require.NoError(t, db.SaveVersion(ctx, ibcPack("2024"), ibcRequirements("2024")))
	require.NoError(t, db.SetActive(ctx, domain.StandardIBC, "2024"))

	amendments := []domain.Amendment{{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1010.1.1",
		Operation:      domain.AmendRemove,
	}}
	require.NoError(t, db.SaveAmendments(ctx, amendments))

	refs := []domain.CrossReference{{
		Standard: domain.StandardIBC, SectionID: "1010.1.1",
		RefStandard: domain.StandardADA, RefSectionID: "404.2.3",
		Note: "same clear width",
	}}
	require.NoError(t, db.SaveCrossReferences(ctx, refs))

	store, err := db.Load(ctx)
	require.NoError(t, err)

	versions, active, err := store.Versions(domain.StandardIBC)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021", "2024"}, versions)
	assert.Equal(t, "2024", active)

	snap := store.Snapshot()
	pkg, err := snap.Package(domain.StandardIBC)
	require.NoError(t, err)
	assert.Equal(t, "2024", pkg.Version)
	assert.Len(t, pkg.Rules, 1)
	assert.Len(t, pkg.Requirements, 2)
	assert.Equal(t, "Door clear width", pkg.Requirements["1010.1.1"].Title)

	assert.Equal(t, amendments, snap.Amendments())
	assert.Equal(t, refs, snap.CrossReferences(domain.StandardIBC, "1010.1.1"))
}

func TestSQLiteDuplicateVersionFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.SaveVersion(ctx, ibcPack("2021"), nil))
	err := db.SaveVersion(ctx, ibcPack("2021"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict),
		"republishing must be distinguishable from a real database failure")
}

func TestSQLiteAmendmentsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.SaveVersion(ctx, ibcPack("2021"), ibcRequirements("2021")))

	amendments := []domain.Amendment{{
		JurisdictionID: "us-ca",
		Standard:       domain.StandardIBC,
		BaseSectionID:  "1010.1.1",
		Operation:      domain.AmendRemove,
	}}
	require.NoError(t, db.SaveAmendments(ctx, amendments))
	require.NoError(t, db.SaveAmendments(ctx, amendments))

	store, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, store.Snapshot().Amendments(), 1, "a rerun over the same bundle must not duplicate amendments")
}

func TestSQLiteJurisdictionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	jurs := []domain.Jurisdiction{
		{ID: "us", Level: domain.LevelCountry, Name: "United States"},
		{ID: "us-ca", Level: domain.LevelState, Name: "California", ParentID: "us"},
	}
	require.NoError(t, db.SaveJurisdictions(ctx, jurs))
	require.NoError(t, db.SaveJurisdictions(ctx, jurs))

	got, err := db.LoadJurisdictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, jurs, got)
}

func TestSQLiteSetActiveUnknownVersion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	err := db.SetActive(ctx, domain.StandardIBC, "2030")
	assert.Error(t, err)
}

func TestSQLiteCrossReferenceDuplicatesIgnored(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ref := domain.CrossReference{
		Standard: domain.StandardIBC, SectionID: "a",
		RefStandard: domain.StandardADA, RefSectionID: "b",
	}
	require.NoError(t, db.SaveCrossReferences(ctx, []domain.CrossReference{ref, ref}))

	store, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, store.Snapshot().CrossReferences(domain.StandardIBC, "a"), 1)
}
