package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/interviewd/internal/indexer"
	"github.com/hyperjump/interviewd/internal/interview"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/rules"
	"github.com/hyperjump/interviewd/internal/storage"
)

const defaultPageSize = 50

type chatRequest struct {
	Message string `json:"message"`
}

type ruleStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var expert models.ExpertInfo
	if err := json.NewDecoder(r.Body).Decode(&expert); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.interviews.Start(r.Context(), expert)
	if err != nil {
		s.fail(w, "start session failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageSize)
	sessions, err := s.interviews.List(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, "list sessions failed", err)
		return
	}
	if sessions == nil {
		sessions = []*models.SessionSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "offset": offset, "limit": limit})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.interviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get session failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("chat request", zap.String("session_id", id), zap.Int("length", len(req.Message)))
	reply, err := s.interviews.Chat(r.Context(), id, req.Message)
	if err != nil {
		s.fail(w, "chat failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, reply)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	res, err := s.interviews.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "finalize failed", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.interviews.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.interviews.Rules(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "list session rules failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rules": nonNilRules(list), "count": len(list)})
}

func (s *Server) handleReextract(w http.ResponseWriter, r *http.Request) {
	res, err := s.interviews.Reextract(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("mode"))
	if err != nil {
		s.fail(w, "re-extraction failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		s.respondError(w, http.StatusNotImplemented, "retrieval not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetSession(r.Context(), id); err != nil {
		s.fail(w, "context lookup failed", err)
		return
	}
	q := r.URL.Query().Get("q")
	var chunks []models.RetrievedChunk
	if q == "" {
		chunks = s.retriever.BulkContext(r.Context(), id)
	} else {
		chunks = s.retriever.Retrieve(r.Context(), q, id, queryInt(r, "k", 0))
	}
	if chunks == nil {
		chunks = []models.RetrievedChunk{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "chunks": chunks})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.Server.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	s.logger.Debug("upload request", zap.String("session_id", id), zap.String("filename", header.Filename), zap.Int("size", len(content)))
	res, err := s.indexer.Ingest(r.Context(), content, header.Filename, id, models.ExpertInfo{})
	if err != nil {
		s.fail(w, "upload failed", err)
		return
	}
	if !res.Success {
		s.respondJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetSession(r.Context(), id); err != nil {
		s.fail(w, "document stats failed", err)
		return
	}
	stats, err := s.indexer.Stats(r.Context(), id)
	if err != nil {
		s.fail(w, "document stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteSessionDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetSession(r.Context(), id); err != nil {
		s.fail(w, "delete documents failed", err)
		return
	}
	n, err := s.indexer.DeleteSession(r.Context(), id)
	if err != nil {
		s.fail(w, "delete documents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "chunks_deleted": n})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, docID := chi.URLParam(r, "id"), chi.URLParam(r, "docID")
	n, err := s.indexer.DeleteDocument(r.Context(), id, docID)
	if err != nil {
		s.fail(w, "delete document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "document_id": docID, "chunks_deleted": n})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.storage.ListAllRules(r.Context())
	if err != nil {
		s.fail(w, "list rules failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"rules": nonNilRules(list), "count": len(list)})
}

func (s *Server) handleSearchRules(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.respondError(w, http.StatusNotImplemented, "rule search not enabled")
		return
	}
	query := &models.RuleSearchQuery{
		Query:     r.URL.Query().Get("q"),
		SessionID: r.URL.Query().Get("session_id"),
		Limit:     queryInt(r, "limit", 0),
	}
	resp, err := s.rules.Search(r.Context(), query)
	if err != nil {
		if query.Query == "" {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(w, "rule search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "ruleID")
	if err := s.storage.UpdateRuleStatus(r.Context(), id, req.Status); err != nil {
		s.fail(w, "update rule failed", err)
		return
	}
	rule, err := s.storage.GetRule(r.Context(), id)
	if err != nil {
		s.fail(w, "update rule failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.Stats(r.Context())
	if err != nil {
		s.fail(w, "stats failed", err)
		return
	}
	resp := map[string]interface{}{"rules": stats}
	usage, err := storage.MeasureDiskUsage(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorPath,
		s.config.Storage.RuleIndexPath,
		s.config.Extraction.OutputDir,
	)
	if err == nil {
		resp["disk_usage"] = usage
	} else {
		s.logger.Warn("stats disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound),
		errors.Is(err, storage.ErrDocumentNotFound),
		errors.Is(err, storage.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrEmptyMessage),
		errors.Is(err, indexer.ErrExtensionNotAllowed),
		errors.Is(err, storage.ErrInvalidRuleStatus),
		errors.Is(err, rules.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrConcurrentTurn),
		errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, indexer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, interview.ErrCompletionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func nonNilRules(list []*models.ExtractedRule) []*models.ExtractedRule {
	if list == nil {
		return []*models.ExtractedRule{}
	}
	return list
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
