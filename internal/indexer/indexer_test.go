package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/embedding"
	"github.com/hyperjump/interviewd/internal/extract"
	"github.com/hyperjump/interviewd/internal/fileid"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/storage"
	"github.com/hyperjump/interviewd/internal/vector"
	"github.com/xuri/excelize/v2"
)

const bedtime = "The child brushes teeth at eight. Parents read a story after bath. " +
	"Lights go out at nine sharp. A poison sentence appears here."

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{"txt", []string{"txt", "pdf"}, true},
		{"TXT", []string{"txt"}, true},
		{".pdf", []string{"txt", "pdf"}, true},
		{"pdf", []string{".pdf"}, true},
		{"exe", []string{"txt"}, false},
		{"", []string{"txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

type fixture struct {
	idx      *Indexer
	db       storage.Storage
	store    vector.Store
	embedder *embedding.MockEmbedder
	session  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store, err := vector.NewMemoryStore(8)
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(8)
	sess := &models.InterviewSession{
		Expert: models.ExpertInfo{Name: "Dr. Rivera", ExpertiseArea: "Sleep"},
		State:  models.StateGreeting,
	}
	if err := db.CreateSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	cfg := config.IngestionConfig{
		AllowedExtensions: []string{"txt", "xlsx"},
		MaxFileSize:       1 << 20,
		EmbedBatchSize:    2,
	}
	idx := NewIndexer(db, embedder, store, NewChunker(10), extract.NewExtractor(), cfg)
	return &fixture{idx: idx, db: db, store: store, embedder: embedder, session: sess.ID}
}

func TestIngest_storesEveryChunk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.idx.Ingest(ctx, []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.TotalChunks != 4 || res.ChunksProcessed != 4 {
		t.Errorf("processed %d of %d chunks, want 4 of 4", res.ChunksProcessed, res.TotalChunks)
	}
	if res.DocumentID != fileid.DocumentID(f.session, "routine.txt") {
		t.Errorf("document id = %q", res.DocumentID)
	}

	doc, err := f.db.GetDocument(ctx, f.session, res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.DocumentReady || doc.ChunkCount != 4 {
		t.Errorf("document = %+v, want ready with 4 chunks", doc)
	}

	records, err := f.store.List(ctx, vector.SessionFilter(f.session))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, r := range records {
		c := vector.ChunkFromRecord(r)
		seen[c.ChunkIndex] = true
		if c.ExpertName != "Dr. Rivera" {
			t.Errorf("chunk %s expert = %q, want session expert", c.ID, c.ExpertName)
		}
		if c.DocumentID != res.DocumentID {
			t.Errorf("chunk %s document = %q", c.ID, c.DocumentID)
		}
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Errorf("missing chunk index %d", i)
		}
	}
}

func TestIngest_reuploadSkipsExistingChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.idx.Ingest(ctx, []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{}); err != nil {
		t.Fatal(err)
	}
	calls := f.embedder.Calls()

	res, err := f.idx.Ingest(ctx, []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ChunksProcessed != 4 {
		t.Errorf("re-upload result = %+v", res)
	}
	if f.embedder.Calls() != calls {
		t.Errorf("re-upload embedded %d times, want none", f.embedder.Calls()-calls)
	}
	if f.store.Count() != 4 {
		t.Errorf("store count = %d, want 4", f.store.Count())
	}
}

func TestIngest_changedContentReplacesChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.idx.Ingest(ctx, []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{}); err != nil {
		t.Fatal(err)
	}
	res, err := f.idx.Ingest(ctx, []byte("Only one rule remains now."), "routine.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.TotalChunks != 1 {
		t.Fatalf("result = %+v", res)
	}
	records, err := f.store.List(ctx, vector.DocumentFilter(f.session, res.DocumentID))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Content != "Only one rule remains now." {
		t.Errorf("records after re-upload = %+v", records)
	}
}

func TestIngest_failingChunkIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.embedder.FailOn("poison")

	res, err := f.idx.Ingest(context.Background(), []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("one bad chunk should not fail the document: %q", res.Error)
	}
	if res.ChunksProcessed != 3 || res.TotalChunks != 4 {
		t.Errorf("processed %d of %d, want 3 of 4", res.ChunksProcessed, res.TotalChunks)
	}
}

func TestIngest_allChunksFail(t *testing.T) {
	f := newFixture(t)
	f.embedder.FailOn(" ")
	ctx := context.Background()

	res, err := f.idx.Ingest(ctx, []byte(bedtime), "routine.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.ChunksProcessed != 0 {
		t.Errorf("result = %+v, want failure", res)
	}
	if !strings.Contains(res.Error, "embed: mock embedding failure") {
		t.Errorf("error = %q, want the embedding cause", res.Error)
	}
	doc, err := f.db.GetDocument(ctx, f.session, res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.DocumentFailed {
		t.Errorf("status = %q, want failed", doc.Status)
	}
}

func TestIngest_blankDocument(t *testing.T) {
	f := newFixture(t)
	res, err := f.idx.Ingest(context.Background(), []byte("   \n "), "empty.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.TotalChunks != 0 {
		t.Errorf("result = %+v, want failure with no chunks", res)
	}
}

func TestIngest_validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.idx.Ingest(ctx, []byte("x"), "tool.exe", f.session, models.ExpertInfo{}); !errors.Is(err, ErrExtensionNotAllowed) {
		t.Errorf("exe: err = %v, want ErrExtensionNotAllowed", err)
	}
	big := bytes.Repeat([]byte("a"), (1<<20)+1)
	if _, err := f.idx.Ingest(ctx, big, "big.txt", f.session, models.ExpertInfo{}); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("big: err = %v, want ErrFileTooLarge", err)
	}
	if _, err := f.idx.Ingest(ctx, []byte("x"), "a.txt", "999", models.ExpertInfo{}); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("unknown session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestIngest_excelSheetsKeepPageNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	x := excelize.NewFile()
	defer x.Close()
	if err := x.SetCellValue("Sheet1", "A1", "Morning routine"); err != nil {
		t.Fatal(err)
	}
	if _, err := x.NewSheet("Rewards"); err != nil {
		t.Fatal(err)
	}
	if err := x.SetCellValue("Rewards", "A1", "Sticker chart"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := x.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	res, err := f.idx.Ingest(ctx, buf.Bytes(), "plan.xlsx", f.session, models.ExpertInfo{Name: "Uploader"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.TotalChunks != 2 {
		t.Fatalf("result = %+v", res)
	}
	records, err := f.store.List(ctx, vector.SessionFilter(f.session))
	if err != nil {
		t.Fatal(err)
	}
	pages := map[string]int{}
	for _, r := range records {
		c := vector.ChunkFromRecord(r)
		pages[c.Content] = c.PageNumber
		if c.ExpertName != "Uploader" {
			t.Errorf("expert = %q, want explicit uploader", c.ExpertName)
		}
	}
	if pages["Morning routine"] != 1 || pages["Sticker chart"] != 2 {
		t.Errorf("pages = %v", pages)
	}
}

func TestIngest_longPageSplitsAtDefaultBudget(t *testing.T) {
	f := newFixture(t)
	f.idx = NewIndexer(f.db, f.embedder, f.store, NewChunker(500), extract.NewExtractor(), config.IngestionConfig{
		AllowedExtensions: []string{"xlsx"},
		MaxFileSize:       1 << 20,
		EmbedBatchSize:    8,
	})
	ctx := context.Background()

	x := excelize.NewFile()
	defer x.Close()
	if err := x.SetCellValue("Sheet1", "A1", "Wake at seven. Brush teeth. Eat breakfast."); err != nil {
		t.Fatal(err)
	}
	if _, err := x.NewSheet("Evening"); err != nil {
		t.Fatal(err)
	}
	var evening strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&evening, "Step %d: after dinner the family clears the table and starts a quiet reading hour. ", i)
	}
	if err := x.SetCellValue("Evening", "A1", evening.String()); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := x.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	res, err := f.idx.Ingest(ctx, buf.Bytes(), "day.xlsx", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	records, err := f.store.List(ctx, vector.SessionFilter(f.session))
	if err != nil {
		t.Fatal(err)
	}
	perPage := map[int]int{}
	for _, r := range records {
		perPage[vector.ChunkFromRecord(r).PageNumber]++
	}
	if perPage[1] != 1 {
		t.Errorf("page 1 chunks = %d, want 1", perPage[1])
	}
	if perPage[2] < 2 {
		t.Errorf("page 2 chunks = %d, want at least 2", perPage[2])
	}
	if len(perPage) != 2 {
		t.Errorf("pages = %v, want only pages 1 and 2", perPage)
	}
}

func TestIngestFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Praise effort over outcome."), 0600); err != nil {
		t.Fatal(err)
	}
	res, err := f.idx.IngestFile(context.Background(), path, f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Filename != "notes.txt" {
		t.Errorf("result = %+v", res)
	}

	if _, err := f.idx.IngestFile(context.Background(), t.TempDir(), f.session, models.ExpertInfo{}); err == nil {
		t.Error("expected error for directory")
	}
}

func TestStatsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.idx.Ingest(ctx, []byte(bedtime), "a.txt", f.session, models.ExpertInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.idx.Ingest(ctx, []byte("Second file body."), "b.txt", f.session, models.ExpertInfo{}); err != nil {
		t.Fatal(err)
	}

	stats, err := f.idx.Stats(ctx, f.session)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalChunks != 5 || len(stats.Documents) != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Documents[0].Title != "a.txt" || stats.Documents[0].Chunks != 4 {
		t.Errorf("first document = %+v", stats.Documents[0])
	}

	n, err := f.idx.DeleteDocument(ctx, f.session, a.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("deleted %d chunks, want 4", n)
	}
	if _, err := f.db.GetDocument(ctx, f.session, a.DocumentID); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("document row should be gone, err = %v", err)
	}
	if _, err := f.idx.DeleteDocument(ctx, f.session, "doc:missing"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("missing document: err = %v", err)
	}

	n, err = f.idx.DeleteSession(ctx, f.session)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || f.store.Count() != 0 {
		t.Errorf("session delete removed %d, %d left", n, f.store.Count())
	}
	docs, err := f.db.ListDocuments(ctx, f.session)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("documents left: %d", len(docs))
	}
}

func TestStats_emptySession(t *testing.T) {
	f := newFixture(t)
	stats, err := f.idx.Stats(context.Background(), f.session)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalChunks != 0 || stats.Documents == nil {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SessionID != f.session {
		t.Errorf("session id = %q", stats.SessionID)
	}
}
