package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ragchat/internal/domain"
	"ragchat/internal/loader"
	"ragchat/internal/logger"
	"ragchat/internal/rag"
	"ragchat/internal/service"
)

// ChatService is the document and query surface the handlers need.
type ChatService interface {
	Query(ctx context.Context, user string, req domain.QueryRequest) (*domain.QueryResponse, error)
	Upload(ctx context.Context, user, filename string, r io.Reader) (*service.IngestResult, error)
	ListDocuments(ctx context.Context, user string) ([]domain.DocumentInfo, error)
	DeleteDocument(ctx context.Context, user, name string) (bool, error)
	History(ctx context.Context, user string, limit int) ([]domain.HistoryEntry, error)
}

type RAGHandler struct {
	chat        ChatService
	maxUploadMB int
	log         *logger.Logger
}

// NewRAGHandler creates the handler for document and query routes.
func NewRAGHandler(chat ChatService, maxUploadMB int, log *logger.Logger) *RAGHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &RAGHandler{chat: chat, maxUploadMB: maxUploadMB, log: log.With("handler", "RAGHandler")}
}

// Query handles POST /rag/query.
func (h *RAGHandler) Query(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "question is required")
		return
	}
	resp, err := h.chat.Query(c.Request.Context(), currentUser(c), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch rag.KindOf(err) {
		case rag.ErrorInvalid:
			status = http.StatusBadRequest
		case rag.ErrorQuota:
			status = http.StatusTooManyRequests
		case rag.ErrorRetrieval, rag.ErrorCompletion:
			status = http.StatusBadGateway
		}
		h.log.Warn("query failed", "user", currentUser(c), "error", err, "request_id", c.GetString(ctxRequestID))
		respondFail(c, status, rag.UserMessage(err))
		return
	}
	respondOK(c, "", resp)
}

// Upload handles POST /rag/upload. Only PDF files are accepted.
func (h *RAGHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(h.maxUploadMB)<<20)
	header, err := c.FormFile("file")
	if err != nil {
		respondFail(c, http.StatusBadRequest, "file is required")
		return
	}
	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		respondFail(c, http.StatusBadRequest, "Only PDF files allowed")
		return
	}
	f, err := header.Open()
	if err != nil {
		respondFail(c, http.StatusBadRequest, "file is unreadable")
		return
	}
	defer f.Close()

	res, err := h.chat.Upload(c.Request.Context(), currentUser(c), name, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyDocument), errors.Is(err, service.ErrInvalidFilename):
			respondFail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, loader.ErrPDFToolNotFound):
			h.log.Error("upload failed", "error", err)
			respondFail(c, http.StatusServiceUnavailable, "PDF processing is unavailable")
		default:
			h.log.Error("upload failed", "user", currentUser(c), "error", err, "request_id", c.GetString(ctxRequestID))
			respondFail(c, http.StatusInternalServerError, "Upload failed")
		}
		return
	}
	respondOK(c, "Upload successful", res)
}

// ListDocuments handles GET /documents.
func (h *RAGHandler) ListDocuments(c *gin.Context) {
	docs, err := h.chat.ListDocuments(c.Request.Context(), currentUser(c))
	if err != nil {
		h.log.Error("list documents failed", "error", err)
		respondFail(c, http.StatusInternalServerError, "Failed to fetch documents")
		return
	}
	if docs == nil {
		docs = []domain.DocumentInfo{}
	}
	respondOK(c, "", gin.H{"documents": docs})
}

// DeleteDocument handles DELETE /documents/:doc.
func (h *RAGHandler) DeleteDocument(c *gin.Context) {
	removed, err := h.chat.DeleteDocument(c.Request.Context(), currentUser(c), c.Param("doc"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilename) {
			respondFail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("delete document failed", "error", err)
		respondFail(c, http.StatusInternalServerError, "Delete failed")
		return
	}
	if !removed {
		respondFail(c, http.StatusNotFound, "Delete failed")
		return
	}
	respondOK(c, "Document deleted", nil)
}

// History handles GET /history.
func (h *RAGHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondFail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := h.chat.History(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		h.log.Error("history failed", "error", err)
		respondFail(c, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	respondOK(c, "", gin.H{"history": entries})
}
