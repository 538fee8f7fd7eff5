//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// Faits, US and relation records are nodes and containment is a BELONGS_TO
// edge, so the site can also be explored with Cypher. It requires CGO because
// the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	notifier
	db   *kuzu.Database
	conn *kuzu.Connection

	// mu serializes writers; seq gives relations a stable order.
	mu  sync.Mutex
	seq int64
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{notifier: newNotifier(), db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables. Relation records live in their
// own node table so that a relation may name an endpoint not registered yet.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Fait(
		id STRING,
		tag STRING,
		live BOOLEAN,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS US(
		id STRING,
		tag STRING,
		parent_fait_id STRING,
		live BOOLEAN,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Relation(
		id STRING,
		seq INT64,
		anterior_us_id STRING,
		anterior_fait_id STRING,
		posterior_us_id STRING,
		posterior_fait_id STRING,
		is_contemporaneous BOOLEAN,
		relation_type_id INT64,
		live BOOLEAN,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS BELONGS_TO(FROM US TO Fait)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	rows, err := s.query("MATCH (r:Relation) RETURN max(r.seq)", nil)
	if err != nil {
		return err
	}
	if len(rows) > 0 && rows[0][0] != nil {
		s.seq = int64(toInt(rows[0][0]))
	}
	return nil
}

// ---------- Write operations ----------

// PutFait upserts a Fait node.
func (s *KuzuStore) PutFait(_ context.Context, f strata.Fait) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.exec(
		"MERGE (f:Fait {id: $id}) SET f.tag = $tag, f.live = $live",
		map[string]any{"id": f.ID, "tag": f.Tag, "live": f.Live},
	)
	if err != nil {
		return err
	}
	s.emit(Change{Kind: ChangeEntity, ID: f.ID})
	return nil
}

// PutUS upserts a US node and its BELONGS_TO edge.
func (s *KuzuStore) PutUS(_ context.Context, us strata.US) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.exec(
		"MERGE (u:US {id: $id}) SET u.tag = $tag, u.parent_fait_id = $fait, u.live = $live",
		map[string]any{"id": us.ID, "tag": us.Tag, "fait": us.ParentFaitID, "live": us.Live},
	)
	if err != nil {
		return err
	}
	if err := s.exec("MATCH (u:US {id: $id})-[b:BELONGS_TO]->(:Fait) DELETE b", map[string]any{"id": us.ID}); err != nil {
		return err
	}
	if us.ParentFaitID != "" {
		err = s.exec(
			`MATCH (u:US {id: $id}), (f:Fait {id: $fait}) CREATE (u)-[:BELONGS_TO]->(f)`,
			map[string]any{"id": us.ID, "fait": us.ParentFaitID},
		)
		if err != nil {
			return err
		}
	}
	s.emit(Change{Kind: ChangeEntity, ID: us.ID})
	return nil
}

// PutRelation upserts a Relation node. A new relation takes the next sequence
// number; an update keeps its position.
func (s *KuzuStore) PutRelation(_ context.Context, r strata.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.query("MATCH (r:Relation {id: $id}) RETURN r.seq", map[string]any{"id": r.ID})
	if err != nil {
		return err
	}
	seq := s.seq + 1
	if len(existing) > 0 {
		seq = int64(toInt(existing[0][0]))
	} else {
		s.seq = seq
	}
	err = s.exec(
		`MERGE (r:Relation {id: $id}) SET
			r.seq = $seq,
			r.anterior_us_id = $aus,
			r.anterior_fait_id = $afait,
			r.posterior_us_id = $pus,
			r.posterior_fait_id = $pfait,
			r.is_contemporaneous = $contemp,
			r.relation_type_id = $type,
			r.live = $live`,
		map[string]any{
			"id":      r.ID,
			"seq":     seq,
			"aus":     r.AnteriorUsID,
			"afait":   r.AnteriorFaitID,
			"pus":     r.PosteriorUsID,
			"pfait":   r.PosteriorFaitID,
			"contemp": r.IsContemporaneous,
			"type":    int64(r.RelationTypeID),
			"live":    r.Live,
		},
	)
	if err != nil {
		return err
	}
	s.emit(Change{Kind: ChangeRelation, ID: r.ID})
	return nil
}

// SoftDeleteRelation clears the live flag.
func (s *KuzuStore) SoftDeleteRelation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query("MATCH (r:Relation {id: $id}) SET r.live = false RETURN r.id", map[string]any{"id": id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("relation %s: %w", id, ErrNotFound)
	}
	s.emit(Change{Kind: ChangeRelation, ID: id})
	return nil
}

// ---------- Read operations ----------

// GetFait retrieves a Fait by ID, or returns nil if not found.
func (s *KuzuStore) GetFait(_ context.Context, id string) (*strata.Fait, error) {
	rows, err := s.query("MATCH (f:Fait {id: $id}) RETURN f.id, f.tag, f.live", map[string]any{"id": id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	f := rowToFait(rows[0])
	return &f, nil
}

// GetUS retrieves a US by ID, or returns nil if not found.
func (s *KuzuStore) GetUS(_ context.Context, id string) (*strata.US, error) {
	rows, err := s.query(
		"MATCH (u:US {id: $id}) RETURN u.id, u.tag, u.parent_fait_id, u.live",
		map[string]any{"id": id},
	)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	us := rowToUS(rows[0])
	return &us, nil
}

const relationReturn = `RETURN r.id, r.anterior_us_id, r.anterior_fait_id, r.posterior_us_id,
	r.posterior_fait_id, r.is_contemporaneous, r.relation_type_id, r.live`

// GetRelation retrieves a relation by ID, or returns nil if not found.
func (s *KuzuStore) GetRelation(_ context.Context, id string) (*strata.Relation, error) {
	rows, err := s.query("MATCH (r:Relation {id: $id}) "+relationReturn, map[string]any{"id": id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	r := rowToRelation(rows[0])
	return &r, nil
}

// FaitMembers follows BELONGS_TO edges into faitID.
func (s *KuzuStore) FaitMembers(_ context.Context, faitID string) ([]strata.US, error) {
	rows, err := s.query(
		`MATCH (u:US)-[:BELONGS_TO]->(f:Fait {id: $id}) WHERE u.live = true
		 RETURN u.id, u.tag, u.parent_fait_id, u.live ORDER BY u.id`,
		map[string]any{"id": faitID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]strata.US, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToUS(r))
	}
	return out, nil
}

// Relations returns every relation in insertion order.
func (s *KuzuStore) Relations(_ context.Context) ([]strata.Relation, error) {
	rows, err := s.query("MATCH (r:Relation) "+relationReturn+" ORDER BY r.seq", nil)
	if err != nil {
		return nil, err
	}
	out := make([]strata.Relation, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRelation(r))
	}
	return out, nil
}

// Dataset reads the whole site.
func (s *KuzuStore) Dataset(ctx context.Context) (*Dataset, error) {
	d := &Dataset{}
	frows, err := s.query("MATCH (f:Fait) RETURN f.id, f.tag, f.live ORDER BY f.id", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range frows {
		d.Faits = append(d.Faits, rowToFait(r))
	}
	urows, err := s.query("MATCH (u:US) RETURN u.id, u.tag, u.parent_fait_id, u.live ORDER BY u.id", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range urows {
		d.US = append(d.US, rowToUS(r))
	}
	if d.Relations, err = s.Relations(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Stats returns record counts.
func (s *KuzuStore) Stats(ctx context.Context) (*Stats, error) {
	d, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return d.stats(), nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// Column order: id, tag, live.
func rowToFait(r []any) strata.Fait {
	return strata.Fait{ID: toString(r[0]), Tag: toString(r[1]), Live: toBool(r[2])}
}

// Column order: id, tag, parent_fait_id, live.
func rowToUS(r []any) strata.US {
	return strata.US{
		ID:           toString(r[0]),
		Tag:          toString(r[1]),
		ParentFaitID: toString(r[2]),
		Live:         toBool(r[3]),
	}
}

// Column order follows relationReturn.
func rowToRelation(r []any) strata.Relation {
	return strata.Relation{
		ID:                toString(r[0]),
		AnteriorUsID:      toString(r[1]),
		AnteriorFaitID:    toString(r[2]),
		PosteriorUsID:     toString(r[3]),
		PosteriorFaitID:   toString(r[4]),
		IsContemporaneous: toBool(r[5]),
		RelationTypeID:    toInt(r[6]),
		Live:              toBool(r[7]),
	}
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, bool, string, nil for NULL).

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
