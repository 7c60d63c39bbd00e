package vector

import (
	"strconv"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
)

// Chunk metadata keys.
const (
	MetaSessionID   = "session_id"
	MetaDocumentID  = "document_id"
	MetaTitle       = "title"
	MetaDocType     = "doc_type"
	MetaExpertName  = "expert_name"
	MetaChunkIndex  = "chunk_index"
	MetaUploadDate  = "upload_date"
	MetaFileSize    = "file_size"
	MetaPageNumber  = "page_number"
	MetaSlideNumber = "slide_number"
)

// SessionFilter scopes a query to one session.
func SessionFilter(sessionID string) Where {
	return Where{MetaSessionID: sessionID}
}

// DocumentFilter scopes a query to one document of a session.
func DocumentFilter(sessionID, documentID string) Where {
	return Where{MetaSessionID: sessionID, MetaDocumentID: documentID}
}

// RecordFromChunk flattens a chunk into a store record.
func RecordFromChunk(c *models.DocumentChunk) Record {
	md := map[string]string{
		MetaSessionID:  c.SessionID,
		MetaDocumentID: c.DocumentID,
		MetaTitle:      c.Title,
		MetaDocType:    c.DocType,
		MetaChunkIndex: strconv.Itoa(c.ChunkIndex),
		MetaUploadDate: c.UploadedAt.UTC().Format(time.RFC3339),
		MetaFileSize:   strconv.FormatInt(c.FileSize, 10),
	}
	if c.ExpertName != "" {
		md[MetaExpertName] = c.ExpertName
	}
	if c.PageNumber > 0 {
		md[MetaPageNumber] = strconv.Itoa(c.PageNumber)
	}
	if c.SlideNumber > 0 {
		md[MetaSlideNumber] = strconv.Itoa(c.SlideNumber)
	}
	return Record{ID: c.ID, Content: c.Content, Embedding: c.Embedding, Metadata: md}
}

// ChunkFromRecord rebuilds a chunk from a store record. Malformed numeric metadata reads as zero.
func ChunkFromRecord(r Record) *models.DocumentChunk {
	md := r.Metadata
	c := &models.DocumentChunk{
		ID:          r.ID,
		Content:     r.Content,
		Embedding:   r.Embedding,
		SessionID:   md[MetaSessionID],
		DocumentID:  md[MetaDocumentID],
		Title:       md[MetaTitle],
		DocType:     md[MetaDocType],
		ExpertName:  md[MetaExpertName],
		ChunkIndex:  atoi(md[MetaChunkIndex]),
		PageNumber:  atoi(md[MetaPageNumber]),
		SlideNumber: atoi(md[MetaSlideNumber]),
	}
	c.FileSize, _ = strconv.ParseInt(md[MetaFileSize], 10, 64)
	c.UploadedAt, _ = time.Parse(time.RFC3339, md[MetaUploadDate])
	return c
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
