package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
)

// UpsertDocument inserts or replaces the document row for (session_id, id).
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, session_id, title, doc_type, size, page_count, chunk_count, status, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, id) DO UPDATE SET
			title = excluded.title, doc_type = excluded.doc_type, size = excluded.size,
			page_count = excluded.page_count, chunk_count = excluded.chunk_count,
			status = excluded.status, uploaded_at = excluded.uploaded_at`,
		doc.ID, doc.SessionID, doc.Title, doc.DocType, doc.Size, doc.PageCount, doc.ChunkCount, doc.Status, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetDocument returns one document of a session.
func (s *SQLiteStorage) GetDocument(ctx context.Context, sessionID, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, title, doc_type, size, page_count, chunk_count, status, uploaded_at
		 FROM documents WHERE session_id = ? AND id = ?`, sessionID, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, err
}

// ListDocuments returns the documents of a session in upload order.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, title, doc_type, size, page_count, chunk_count, status, uploaded_at
		 FROM documents WHERE session_id = ? ORDER BY uploaded_at, title`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes one document row.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, sessionID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return nil
}

// DeleteSessionDocuments removes every document row of a session.
func (s *SQLiteStorage) DeleteSessionDocuments(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.SessionID, &doc.Title, &doc.DocType, &doc.Size, &doc.PageCount,
		&doc.ChunkCount, &doc.Status, &doc.UploadedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}
