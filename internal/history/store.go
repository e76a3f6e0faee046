// Package history persists completed analyses in a local SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/provet-dev/provet/internal/api"
)

// Store provides SQLite-backed persistence for analysis history.
type Store struct {
	db *sql.DB
}

// Record is one persisted analysis.
type Record struct {
	ThreadID   string
	Documents  []string
	Status     string
	Title      string
	Confidence float64
	GammaLink  string
	Findings   []api.Finding
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		thread_id TEXT PRIMARY KEY,
		documents TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		confidence REAL NOT NULL,
		gamma_link TEXT NOT NULL DEFAULT '',
		findings TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordVerdict upserts the verdict for a completed analysis.
func (s *Store) RecordVerdict(threadID string, documents []string, v api.Verdict) error {
	docs, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	findings, err := json.Marshal(v.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	now := time.Now()

	result, err := s.db.Exec(
		`UPDATE analyses SET documents = ?, status = ?, title = ?, confidence = ?, findings = ?, updated_at = ?
		 WHERE thread_id = ?`,
		string(docs), v.Status, v.Title, v.Confidence, string(findings), now, threadID,
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		_, err = s.db.Exec(
			`INSERT INTO analyses (thread_id, documents, status, title, confidence, findings, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			threadID, string(docs), v.Status, v.Title, v.Confidence, string(findings), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
	}

	return nil
}

// RecordArtifact stores the generated deck link for an analysis.
func (s *Store) RecordArtifact(threadID, link string) error {
	_, err := s.db.Exec(
		`UPDATE analyses SET gamma_link = ?, updated_at = ? WHERE thread_id = ?`,
		link, time.Now(), threadID,
	)
	if err != nil {
		return fmt.Errorf("update artifact link: %w", err)
	}
	return nil
}

// Get retrieves a single analysis by thread id. Returns nil when absent.
func (s *Store) Get(threadID string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT thread_id, documents, status, title, confidence, gamma_link, findings, created_at, updated_at
		 FROM analyses WHERE thread_id = ?`,
		threadID,
	)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the most recently updated analyses.
func (s *Store) List(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT thread_id, documents, status, title, confidence, gamma_link, findings, created_at, updated_at
		 FROM analyses
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var docs, findings string
	err := row.Scan(&rec.ThreadID, &docs, &rec.Status, &rec.Title, &rec.Confidence,
		&rec.GammaLink, &findings, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(docs), &rec.Documents); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	if err := json.Unmarshal([]byte(findings), &rec.Findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	return &rec, nil
}
