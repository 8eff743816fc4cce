// Package export copies sidecar records into a SQLite database for ad-hoc
// querying. The table is a derived view and is rebuilt on every export.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/ctascan/internal/logger"
	"github.com/rewired-gh/ctascan/internal/models"
	"github.com/rewired-gh/ctascan/internal/relevant"
	"github.com/rewired-gh/ctascan/internal/storage"
	"github.com/rewired-gh/ctascan/internal/walker"
)

const schema = `
	DROP TABLE IF EXISTS cta_scores;

	CREATE TABLE cta_scores (
		sidecar_path TEXT PRIMARY KEY,
		analysis_kind TEXT NOT NULL,
		post_id TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		score REAL,
		response TEXT,
		analyzed_at DATETIME,
		checked BOOLEAN NOT NULL DEFAULT 0,
		error TEXT,
		exported_at DATETIME NOT NULL
	);

	CREATE INDEX idx_cta_scores_post ON cta_scores(post_id);
	CREATE INDEX idx_cta_scores_kind ON cta_scores(analysis_kind);
	`

// Store wraps the export database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Result summarizes one export.
type Result struct {
	Rows       int
	Unreadable int
	ByKind     map[models.AnalysisKind]int
}

// Export replaces the table contents with every readable sidecar under root
// whose post is in set. A nil set exports everything.
func (s *Store) Export(ctx context.Context, root string, set *relevant.Set, cache *storage.Cache) (*Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cta_scores (sidecar_path, analysis_kind, post_id, original_filename,
			score, response, analyzed_at, checked, error, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	res := &Result{ByKind: make(map[models.AnalysisKind]int)}
	exportedAt := time.Now().UTC()

	w := walker.New(walker.Options{Root: root, Relevant: set})
	for a, err := range w.Assets(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if a.Role != models.RoleSidecar {
			continue
		}

		rec, err := cache.LoadSidecar(a.Path, a.SidecarKind)
		if err != nil {
			logger.Warn("%s: %v", a.RelPath, err)
			res.Unreadable++
			continue
		}

		var analyzedAt any
		if !rec.AnalyzedAt.IsZero() {
			analyzedAt = rec.AnalyzedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			a.RelPath, string(a.SidecarKind), a.PostID, rec.OriginalFilename,
			rec.Score, rec.Response, analyzedAt, rec.Checked, nullString(rec.Error), exportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to insert %s: %w", a.RelPath, err)
		}
		res.Rows++
		res.ByKind[a.SidecarKind]++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit export: %w", err)
	}
	return res, nil
}

// Scores returns sidecar path to score for one kind, skipping records
// without a score.
func (s *Store) Scores(ctx context.Context, kind models.AnalysisKind) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sidecar_path, score FROM cta_scores
		WHERE analysis_kind = ? AND score IS NOT NULL
		ORDER BY sidecar_path
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var path string
		var score float64
		if err := rows.Scan(&path, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[path] = score
	}
	return scores, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
