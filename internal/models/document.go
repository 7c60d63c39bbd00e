// Package models defines core data structures for interview sessions, documents, and rules.
package models

import "time"

// Document status values.
const (
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

// Document is an expert-uploaded file owned by one interview session.
type Document struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	Title      string    `json:"title" db:"title"`
	DocType    string    `json:"doc_type" db:"doc_type"`
	Size       int64     `json:"size" db:"size"`
	PageCount  int       `json:"page_count,omitempty" db:"page_count"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	Status     string    `json:"status" db:"status"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// DocumentChunk is a bounded passage of a document together with its embedding.
// PageNumber and SlideNumber are zero when the source format has no pages or slides.
type DocumentChunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	SessionID   string    `json:"session_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	Title       string    `json:"title"`
	DocType     string    `json:"doc_type"`
	ExpertName  string    `json:"expert_name,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	SlideNumber int       `json:"slide_number,omitempty"`
	FileSize    int64     `json:"file_size,omitempty"`
	UploadedAt  time.Time `json:"upload_date"`
	Embedding   []float32 `json:"-"`
}

// DocumentSummary is one entry of DocumentStats.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	DocType    string `json:"doc_type"`
	Chunks     int    `json:"chunks"`
}

// DocumentStats summarizes the chunks stored for a session.
type DocumentStats struct {
	SessionID   string            `json:"session_id"`
	TotalChunks int               `json:"total_chunks"`
	Documents   []DocumentSummary `json:"documents"`
}

// RetrievedChunk is a chunk returned by retrieval, with its similarity to the query.
// Similarity is zero for bulk context, which is not query scored.
type RetrievedChunk struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	Page          int     `json:"page,omitempty"`
	Slide         int     `json:"slide,omitempty"`
}
