package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

type SQLiteStorage struct {
	db *sql.DB
}

var _ Interface = &SQLiteStorage{}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db at %s: %w", path, err)
	}

	if _, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS documents (
            id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            source TEXT NOT NULL,
            status TEXT NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            chunks INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (user_id, id)
        );
        CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id);
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, source, status, reason, chunks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, id) DO UPDATE SET
		    source = excluded.source,
		    status = excluded.status,
		    reason = excluded.reason,
		    chunks = excluded.chunks`,
		doc.ID, doc.UserID, doc.Source, doc.Status, doc.Reason, doc.Chunks,
		doc.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save document %s for user %s: %w", doc.ID, doc.UserID, err)
	}
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, userID, documentID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, source, status, reason, chunks, created_at
		 FROM documents
		 WHERE user_id = ? AND id = ?`,
		userID, documentID,
	)

	var doc Document
	var createdAt string
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Source, &doc.Status, &doc.Reason, &doc.Chunks, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &doc, nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context, userID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, source, status, reason, chunks, created_at
		 FROM documents
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var createdAt string
		if err = rows.Scan(&doc.ID, &doc.UserID, &doc.Source, &doc.Status, &doc.Reason, &doc.Chunks, &createdAt); err != nil {
			return nil, err
		}
		doc.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, userID, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE user_id = ? AND id = ?`,
		userID, documentID,
	)
	return err
}
