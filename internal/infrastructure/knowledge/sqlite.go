package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"codecheck/internal/domain"
)

// SQLiteStore persists the code knowledge base in a single SQLite file. The
// in-memory store remains the evaluation path; this backend exists so packs,
// amendments and cross-references survive restarts and can be inspected with
// plain SQL.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS jurisdictions (
	id        TEXT PRIMARY KEY,
	level     TEXT NOT NULL,
	name      TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS code_versions (
	standard     TEXT NOT NULL,
	version      TEXT NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	pack         TEXT NOT NULL,
	PRIMARY KEY (standard, version)
);

CREATE TABLE IF NOT EXISTS requirements (
	standard     TEXT NOT NULL,
	version      TEXT NOT NULL,
	section_id   TEXT NOT NULL,
	title        TEXT NOT NULL,
	is_mandatory INTEGER NOT NULL DEFAULT 0,
	data         TEXT NOT NULL,
	PRIMARY KEY (standard, version, section_id)
);

CREATE TABLE IF NOT EXISTS amendments (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	jurisdiction_id TEXT NOT NULL,
	standard        TEXT NOT NULL,
	base_section_id TEXT NOT NULL,
	operation       TEXT NOT NULL,
	data            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cross_references (
	standard       TEXT NOT NULL,
	section_id     TEXT NOT NULL,
	ref_standard   TEXT NOT NULL,
	ref_section_id TEXT NOT NULL,
	note           TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (standard, section_id, ref_standard, ref_section_id)
);

CREATE INDEX IF NOT EXISTS idx_amendments_standard ON amendments (standard, base_section_id);
`

// NewSQLiteStore opens or creates the database at path and ensures the
// schema. WAL keeps readers unblocked while packs are being published.
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init knowledge schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveVersion persists one published standard version in a single
// transaction. The first version saved for a standard is marked active.
// Saving a version that is already in the database returns
// domain.ErrVersionConflict, which callers reloading an unchanged bundle can
// treat as the steady state.
func (s *SQLiteStore) SaveVersion(ctx context.Context, pack domain.RulePack, requirements []domain.CodeRequirement) error {
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("marshal rule pack: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing, dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(CASE WHEN version = ? THEN 1 END) FROM code_versions WHERE standard = ?`,
		pack.Version, pack.Standard).Scan(&existing, &dup); err != nil {
		return err
	}
	if dup > 0 {
		return fmt.Errorf("%w: %s@%s already published", domain.ErrVersionConflict, pack.Standard, pack.Version)
	}
	active := 0
	if existing == 0 {
		active = 1
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO code_versions (standard, version, active, pack) VALUES (?, ?, ?, ?)`,
		pack.Standard, pack.Version, active, string(packJSON)); err != nil {
		return fmt.Errorf("save %s@%s: %w", pack.Standard, pack.Version, err)
	}

	for _, req := range requirements {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal requirement %s: %w", req.SectionID, err)
		}
		mandatory := 0
		if req.IsMandatory {
			mandatory = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO requirements (standard, version, section_id, title, is_mandatory, data)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			pack.Standard, pack.Version, req.SectionID, req.Title, mandatory, string(data)); err != nil {
			return fmt.Errorf("save requirement %s/%s: %w", pack.Standard, req.SectionID, err)
		}
	}
	return tx.Commit()
}

// SetActive flips the active flag of a standard to the given version.
func (s *SQLiteStore) SetActive(ctx context.Context, standard domain.CodeStandard, version string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE code_versions SET active = 1 WHERE standard = ? AND version = ?`, standard, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s@%s not published", domain.ErrMissingReferenceData, standard, version)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE code_versions SET active = 0 WHERE standard = ? AND version != ?`, standard, version); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveJurisdictions replaces the persisted jurisdiction forest. Replace
// semantics keep the table a mirror of the reference data, so repeated saves
// of the same bundle are idempotent.
func (s *SQLiteStore) SaveJurisdictions(ctx context.Context, jurisdictions []domain.Jurisdiction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jurisdictions`); err != nil {
		return err
	}
	for _, j := range jurisdictions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jurisdictions (id, level, name, parent_id) VALUES (?, ?, ?, ?)`,
			j.ID, j.Level, j.Name, j.ParentID); err != nil {
			return fmt.Errorf("save jurisdiction %s: %w", j.ID, err)
		}
	}
	return tx.Commit()
}

// LoadJurisdictions returns the persisted jurisdiction forest sorted by id.
func (s *SQLiteStore) LoadJurisdictions(ctx context.Context) ([]domain.Jurisdiction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, name, parent_id FROM jurisdictions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load jurisdictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Jurisdiction
	for rows.Next() {
		var j domain.Jurisdiction
		if err := rows.Scan(&j.ID, &j.Level, &j.Name, &j.ParentID); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SaveAmendments replaces the persisted amendment list. Amendments carry no
// natural key, so replace semantics are what keeps repeated bundle loads from
// duplicating rows.
func (s *SQLiteStore) SaveAmendments(ctx context.Context, amendments []domain.Amendment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM amendments`); err != nil {
		return err
	}
	for _, am := range amendments {
		data, err := json.Marshal(am)
		if err != nil {
			return fmt.Errorf("marshal amendment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO amendments (jurisdiction_id, standard, base_section_id, operation, data)
			 VALUES (?, ?, ?, ?, ?)`,
			am.JurisdictionID, am.Standard, am.BaseSectionID, am.Operation, string(data)); err != nil {
			return fmt.Errorf("save amendment %s/%s: %w", am.JurisdictionID, am.BaseSectionID, err)
		}
	}
	return tx.Commit()
}

// SaveCrossReferences appends cross-reference links, ignoring duplicates.
func (s *SQLiteStore) SaveCrossReferences(ctx context.Context, refs []domain.CrossReference) error {
	for _, ref := range refs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO cross_references (standard, section_id, ref_standard, ref_section_id, note)
			 VALUES (?, ?, ?, ?, ?)`,
			ref.Standard, ref.SectionID, ref.RefStandard, ref.RefSectionID, ref.Note); err != nil {
			return fmt.Errorf("save cross reference %s/%s: %w", ref.Standard, ref.SectionID, err)
		}
	}
	return nil
}

// Load rebuilds an in-memory store from the database: every published
// version, the recorded active flags, all amendments and the cross-reference
// index.
func (s *SQLiteStore) Load(ctx context.Context) (*MemoryStore, error) {
	store := NewMemoryStore()

	rows, err := s.db.QueryContext(ctx,
		`SELECT standard, version, active, pack FROM code_versions ORDER BY standard, version`)
	if err != nil {
		return nil, fmt.Errorf("load versions: %w", err)
	}
	defer rows.Close()

	type activation struct {
		standard domain.CodeStandard
		version  string
	}
	var activations []activation
	for rows.Next() {
		var standard, version, packJSON string
		var active int
		if err := rows.Scan(&standard, &version, &active, &packJSON); err != nil {
			return nil, err
		}
		var pack domain.RulePack
		if err := json.Unmarshal([]byte(packJSON), &pack); err != nil {
			return nil, fmt.Errorf("decode pack %s@%s: %w", standard, version, err)
		}
		reqs, err := s.loadRequirements(ctx, standard, version)
		if err != nil {
			return nil, err
		}
		if err := store.PutVersion(pack, reqs); err != nil {
			return nil, err
		}
		if active == 1 {
			activations = append(activations, activation{domain.CodeStandard(standard), version})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, act := range activations {
		if err := store.SetActive(act.standard, act.version); err != nil {
			return nil, err
		}
	}

	amendments, err := s.loadAmendments(ctx)
	if err != nil {
		return nil, err
	}
	if len(amendments) > 0 {
		if err := store.AddAmendments(amendments); err != nil {
			return nil, err
		}
	}

	refs, err := s.loadCrossReferences(ctx)
	if err != nil {
		return nil, err
	}
	store.AddCrossReferences(refs)

	s.log.Info("knowledge base loaded",
		"amendments", len(amendments), "cross_references", len(refs))
	return store, nil
}

func (s *SQLiteStore) loadRequirements(ctx context.Context, standard, version string) ([]domain.CodeRequirement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM requirements WHERE standard = ? AND version = ? ORDER BY section_id`,
		standard, version)
	if err != nil {
		return nil, fmt.Errorf("load requirements %s@%s: %w", standard, version, err)
	}
	defer rows.Close()

	var out []domain.CodeRequirement
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var req domain.CodeRequirement
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return nil, fmt.Errorf("decode requirement in %s@%s: %w", standard, version, err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadAmendments(ctx context.Context) ([]domain.Amendment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM amendments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load amendments: %w", err)
	}
	defer rows.Close()

	var out []domain.Amendment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var am domain.Amendment
		if err := json.Unmarshal([]byte(data), &am); err != nil {
			return nil, fmt.Errorf("decode amendment: %w", err)
		}
		out = append(out, am)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadCrossReferences(ctx context.Context) ([]domain.CrossReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT standard, section_id, ref_standard, ref_section_id, note FROM cross_references`)
	if err != nil {
		return nil, fmt.Errorf("load cross references: %w", err)
	}
	defer rows.Close()

	var out []domain.CrossReference
	for rows.Next() {
		var ref domain.CrossReference
		if err := rows.Scan(&ref.Standard, &ref.SectionID, &ref.RefStandard, &ref.RefSectionID, &ref.Note); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
