package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a SQLite database through the pure-Go
// modernc driver.
type SQLiteStore struct {
	notifier
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{notifier: newNotifier(), db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------- Schema setup ----------

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fait (
	id TEXT PRIMARY KEY,
	tag TEXT NOT NULL DEFAULT '',
	live INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS us (
	id TEXT PRIMARY KEY,
	tag TEXT NOT NULL DEFAULT '',
	parent_fait_id TEXT NOT NULL DEFAULT '',
	live INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS relation (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	anterior_us_id TEXT NOT NULL DEFAULT '',
	anterior_fait_id TEXT NOT NULL DEFAULT '',
	posterior_us_id TEXT NOT NULL DEFAULT '',
	posterior_fait_id TEXT NOT NULL DEFAULT '',
	is_contemporaneous INTEGER NOT NULL DEFAULT 0,
	relation_type_id INTEGER NOT NULL DEFAULT 0,
	live INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_us_parent ON us(parent_fait_id);
`

// InitSchema creates the tables if they do not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

// ---------- Write operations ----------

// PutFait upserts a Fait.
func (s *SQLiteStore) PutFait(ctx context.Context, f strata.Fait) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fait (id, tag, live) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tag = excluded.tag, live = excluded.live`,
		f.ID, f.Tag, f.Live)
	if err != nil {
		return fmt.Errorf("sqlite: put fait %s: %w", f.ID, err)
	}
	s.emit(Change{Kind: ChangeEntity, ID: f.ID})
	return nil
}

// PutUS upserts a US.
func (s *SQLiteStore) PutUS(ctx context.Context, us strata.US) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO us (id, tag, parent_fait_id, live) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tag = excluded.tag,
			parent_fait_id = excluded.parent_fait_id,
			live = excluded.live`,
		us.ID, us.Tag, us.ParentFaitID, us.Live)
	if err != nil {
		return fmt.Errorf("sqlite: put us %s: %w", us.ID, err)
	}
	s.emit(Change{Kind: ChangeEntity, ID: us.ID})
	return nil
}

// PutRelation upserts a relation, keeping the original insertion position.
func (s *SQLiteStore) PutRelation(ctx context.Context, r strata.Relation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relation (id, anterior_us_id, anterior_fait_id, posterior_us_id,
			posterior_fait_id, is_contemporaneous, relation_type_id, live)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			anterior_us_id = excluded.anterior_us_id,
			anterior_fait_id = excluded.anterior_fait_id,
			posterior_us_id = excluded.posterior_us_id,
			posterior_fait_id = excluded.posterior_fait_id,
			is_contemporaneous = excluded.is_contemporaneous,
			relation_type_id = excluded.relation_type_id,
			live = excluded.live`,
		r.ID, r.AnteriorUsID, r.AnteriorFaitID, r.PosteriorUsID, r.PosteriorFaitID,
		r.IsContemporaneous, r.RelationTypeID, r.Live)
	if err != nil {
		return fmt.Errorf("sqlite: put relation %s: %w", r.ID, err)
	}
	s.emit(Change{Kind: ChangeRelation, ID: r.ID})
	return nil
}

// SoftDeleteRelation clears the live flag.
func (s *SQLiteStore) SoftDeleteRelation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE relation SET live = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete relation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	s.emit(Change{Kind: ChangeRelation, ID: id})
	return nil
}

// ---------- Read operations ----------

// GetFait returns the Fait with the given ID, or nil if not found.
func (s *SQLiteStore) GetFait(ctx context.Context, id string) (*strata.Fait, error) {
	var f strata.Fait
	err := s.db.QueryRowContext(ctx, `SELECT id, tag, live FROM fait WHERE id = ?`, id).
		Scan(&f.ID, &f.Tag, &f.Live)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get fait %s: %w", id, err)
	}
	return &f, nil
}

// GetUS returns the US with the given ID, or nil if not found.
func (s *SQLiteStore) GetUS(ctx context.Context, id string) (*strata.US, error) {
	var us strata.US
	err := s.db.QueryRowContext(ctx, `SELECT id, tag, parent_fait_id, live FROM us WHERE id = ?`, id).
		Scan(&us.ID, &us.Tag, &us.ParentFaitID, &us.Live)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get us %s: %w", id, err)
	}
	return &us, nil
}

const relationColumns = `id, anterior_us_id, anterior_fait_id, posterior_us_id,
	posterior_fait_id, is_contemporaneous, relation_type_id, live`

type scanner interface {
	Scan(dest ...any) error
}

func scanRelation(row scanner) (strata.Relation, error) {
	var r strata.Relation
	err := row.Scan(&r.ID, &r.AnteriorUsID, &r.AnteriorFaitID, &r.PosteriorUsID,
		&r.PosteriorFaitID, &r.IsContemporaneous, &r.RelationTypeID, &r.Live)
	return r, err
}

// GetRelation returns the relation with the given ID, or nil if not found.
func (s *SQLiteStore) GetRelation(ctx context.Context, id string) (*strata.Relation, error) {
	r, err := scanRelation(s.db.QueryRowContext(ctx,
		`SELECT `+relationColumns+` FROM relation WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get relation %s: %w", id, err)
	}
	return &r, nil
}

// FaitMembers returns the live US whose parent is faitID, sorted by ID.
func (s *SQLiteStore) FaitMembers(ctx context.Context, faitID string) ([]strata.US, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, parent_fait_id, live FROM us
		WHERE parent_fait_id = ? AND live = 1 ORDER BY id`, faitID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fait members %s: %w", faitID, err)
	}
	defer rows.Close()
	var out []strata.US
	for rows.Next() {
		var us strata.US
		if err := rows.Scan(&us.ID, &us.Tag, &us.ParentFaitID, &us.Live); err != nil {
			return nil, fmt.Errorf("sqlite: scan us: %w", err)
		}
		out = append(out, us)
	}
	return out, rows.Err()
}

// Relations returns every relation in insertion order.
func (s *SQLiteStore) Relations(ctx context.Context) ([]strata.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationColumns+` FROM relation ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list relations: %w", err)
	}
	defer rows.Close()
	var out []strata.Relation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan relation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dataset reads the whole site.
func (s *SQLiteStore) Dataset(ctx context.Context) (*Dataset, error) {
	d := &Dataset{}

	frows, err := s.db.QueryContext(ctx, `SELECT id, tag, live FROM fait ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list faits: %w", err)
	}
	for frows.Next() {
		var f strata.Fait
		if err := frows.Scan(&f.ID, &f.Tag, &f.Live); err != nil {
			frows.Close()
			return nil, fmt.Errorf("sqlite: scan fait: %w", err)
		}
		d.Faits = append(d.Faits, f)
	}
	frows.Close()

	urows, err := s.db.QueryContext(ctx, `SELECT id, tag, parent_fait_id, live FROM us ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list us: %w", err)
	}
	for urows.Next() {
		var us strata.US
		if err := urows.Scan(&us.ID, &us.Tag, &us.ParentFaitID, &us.Live); err != nil {
			urows.Close()
			return nil, fmt.Errorf("sqlite: scan us: %w", err)
		}
		d.US = append(d.US, us)
	}
	urows.Close()

	if d.Relations, err = s.Relations(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Stats returns record counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM fait),
			(SELECT count(*) FROM us),
			(SELECT count(*) FROM relation),
			(SELECT count(*) FROM relation WHERE live = 1)`).
		Scan(&st.FaitCount, &st.USCount, &st.RelationCount, &st.LiveRelationCount)
	if err != nil {
		return nil, fmt.Errorf("sqlite: stats: %w", err)
	}
	return &st, nil
}
