package main

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrEdgeNotFound   = errors.New("edge not found")
	ErrDuplicateEdge  = errors.New("edge already exists")
	ErrSelfConnection = errors.New("cannot connect a node to itself")
)

// CreateEdgeRequest is the payload for creating an edge between two nodes.
type CreateEdgeRequest struct {
	FromNodeID  string
	ToNodeID    string
	Type        EdgeType
	Description string
}

// Enrichment is the AI-generated annotation for an edge.
type Enrichment struct {
	AISummary            string   `json:"ai_summary"`
	RelationshipStrength float64  `json:"relationship_strength"`
	Tags                 []string `json:"tags"`
	ConfidenceScore      float64  `json:"confidence_score"`
}

// Store persists nodes and edges per workspace. The interaction engine only
// calls CreateEdge and DeleteEdge; the editor uses the rest.
type Store interface {
	CreateNode(ctx context.Context, workspaceID, label string, x, y float64) (*Node, error)
	UpdateNodePosition(ctx context.Context, workspaceID, nodeID string, x, y float64) error
	UpdateNodeLabel(ctx context.Context, workspaceID, nodeID, label string) error
	DeleteNode(ctx context.Context, workspaceID, nodeID string) error
	ListNodes(ctx context.Context, workspaceID string) ([]Node, error)

	CreateEdge(ctx context.Context, workspaceID string, req CreateEdgeRequest) (*Edge, error)
	DeleteEdge(ctx context.Context, workspaceID, edgeID string) error
	ListEdges(ctx context.Context, workspaceID string) ([]Edge, error)
	UpdateEdgeEnrichment(ctx context.Context, workspaceID, edgeID string, e Enrichment) error

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS node (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	x REAL NOT NULL DEFAULT 0,
	y REAL NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	updated_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_node_workspace ON node (workspace_id);

CREATE TABLE IF NOT EXISTS edge (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	from_node_id TEXT NOT NULL,
	to_node_id TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'related',
	description TEXT NOT NULL DEFAULT '',
	ai_summary TEXT NOT NULL DEFAULT '',
	strength REAL NOT NULL DEFAULT 0,
	created_ts INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	UNIQUE (workspace_id, from_node_id, to_node_id, type)
);
CREATE INDEX IF NOT EXISTS idx_edge_workspace ON edge (workspace_id);
`

// SQLiteStore is the Store implementation backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and if needed initializes) the database at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// The TUI is single-threaded but commands run on their own goroutines;
	// a single connection sidesteps table-lock races in the sqlite driver.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateNode(ctx context.Context, workspaceID, label string, x, y float64) (*Node, error) {
	n := &Node{ID: uuid.NewString(), Label: label, X: x, Y: y}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO node (id, workspace_id, label, x, y) VALUES (?, ?, ?, ?, ?)",
		n.ID, workspaceID, n.Label, n.X, n.Y)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create node")
	}
	return n, nil
}

func (s *SQLiteStore) UpdateNodePosition(ctx context.Context, workspaceID, nodeID string, x, y float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE node SET x = ?, y = ?, updated_ts = strftime('%s', 'now') WHERE id = ? AND workspace_id = ?",
		x, y, nodeID, workspaceID)
	if err != nil {
		return errors.Wrap(err, "failed to update node position")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateNodeLabel(ctx context.Context, workspaceID, nodeID, label string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE node SET label = ?, updated_ts = strftime('%s', 'now') WHERE id = ? AND workspace_id = ?",
		label, nodeID, workspaceID)
	if err != nil {
		return errors.Wrap(err, "failed to update node label")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, workspaceID, nodeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM node WHERE id = ? AND workspace_id = ?", nodeID, workspaceID)
	if err != nil {
		return errors.Wrap(err, "failed to delete node")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNodeNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM edge WHERE workspace_id = ? AND (from_node_id = ? OR to_node_id = ?)",
		workspaceID, nodeID, nodeID); err != nil {
		return errors.Wrap(err, "failed to delete attached edges")
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListNodes(ctx context.Context, workspaceID string) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, label, x, y FROM node WHERE workspace_id = ? ORDER BY created_ts, id", workspaceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list nodes")
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Label, &n.X, &n.Y); err != nil {
			return nil, errors.Wrap(err, "failed to scan node")
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (s *SQLiteStore) CreateEdge(ctx context.Context, workspaceID string, req CreateEdgeRequest) (*Edge, error) {
	if req.FromNodeID == req.ToNodeID {
		return nil, ErrSelfConnection
	}
	for _, id := range []string{req.FromNodeID, req.ToNodeID} {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM node WHERE id = ? AND workspace_id = ?", id, workspaceID).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, ErrNodeNotFound
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to check node")
		}
	}
	if req.Type == "" {
		req.Type = EdgeTypeRelated
	}
	e := &Edge{
		ID:          uuid.NewString(),
		FromNodeID:  req.FromNodeID,
		ToNodeID:    req.ToNodeID,
		Type:        req.Type,
		Description: req.Description,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO edge (id, workspace_id, from_node_id, to_node_id, type, description) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, workspaceID, e.FromNodeID, e.ToNodeID, e.Type, e.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateEdge
		}
		return nil, errors.Wrap(err, "failed to create edge")
	}
	return e, nil
}

func (s *SQLiteStore) DeleteEdge(ctx context.Context, workspaceID, edgeID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM edge WHERE id = ? AND workspace_id = ?", edgeID, workspaceID)
	if err != nil {
		return errors.Wrap(err, "failed to delete edge")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

func (s *SQLiteStore) ListEdges(ctx context.Context, workspaceID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, from_node_id, to_node_id, type, description, ai_summary, strength FROM edge WHERE workspace_id = ? ORDER BY created_ts, id",
		workspaceID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list edges")
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.FromNodeID, &e.ToNodeID, &e.Type, &e.Description, &e.AISummary, &e.Strength); err != nil {
			return nil, errors.Wrap(err, "failed to scan edge")
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *SQLiteStore) UpdateEdgeEnrichment(ctx context.Context, workspaceID, edgeID string, e Enrichment) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE edge SET ai_summary = ?, strength = ? WHERE id = ? AND workspace_id = ?",
		e.AISummary, e.RelationshipStrength, edgeID, workspaceID)
	if err != nil {
		return errors.Wrap(err, "failed to update edge enrichment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEdgeNotFound
	}
	return nil
}
