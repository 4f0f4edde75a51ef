package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/ingestion"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/services"
)

type DocumentHandler struct {
	log       *logger.Logger
	ingester  ingestion.Service
	rag       *services.RAGService
	uploadDir string
}

func NewDocumentHandler(log *logger.Logger, ingester ingestion.Service, rag *services.RAGService, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		log:       log.With("handler", "DocumentHandler"),
		ingester:  ingester,
		rag:       rag,
		uploadDir: uploadDir,
	}
}

type uploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
	Count   int      `json:"count"`
}

type questionRequest struct {
	Question string `json:"question" binding:"required"`
	ChatID   string `json:"chatId"`
}

type answerResponse struct {
	Response  string            `json:"response"`
	Citations []domain.Citation `json:"citations"`
}

// POST /api/upload
// Persists the uploaded files and rebuilds the whole index from the
// upload folder.
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_multipart", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("no files provided"))
		return
	}

	saved := make([]string, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			continue
		}
		if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
			RespondError(c, http.StatusInternalServerError, "save_failed", fmt.Errorf("save %s: %w", name, err))
			return
		}
		saved = append(saved, name)
	}
	if len(saved) == 0 {
		RespondError(c, http.StatusBadRequest, "no_valid_files", fmt.Errorf("no valid file names"))
		return
	}

	count, err := h.ingester.Rebuild(c.Request.Context(), h.uploadDir)
	if err != nil {
		h.log.Error("index rebuild failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "ingestion_failed", err)
		return
	}

	h.log.Info("upload ingested", "files", len(saved), "chunks", count)
	c.JSON(http.StatusCreated, uploadResponse{
		Message: "files uploaded and indexed",
		Files:   saved,
		Count:   len(saved),
	})
}

// POST /api/getdocuments
// Synchronous document-only answer. Fails closed: no matching
// documents is a 404, never a guessed answer.
func (h *DocumentHandler) GetDocuments(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	answer, citations, err := h.rag.Answer(c.Request.Context(), req.Question, req.ChatID)
	if errors.Is(err, services.ErrNoMatches) {
		RespondError(c, http.StatusNotFound, "no_documents", err)
		return
	}
	if err != nil {
		h.log.Error("document answer failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "answer_failed", err)
		return
	}

	RespondOK(c, answerResponse{Response: answer, Citations: citations})
}
