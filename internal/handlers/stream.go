package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/services"
)

type StreamHandler struct {
	log    *logger.Logger
	rag    *services.RAGService
	agent  *services.SearchAgent
	stocks *services.StocksAgent
}

func NewStreamHandler(log *logger.Logger, rag *services.RAGService, agent *services.SearchAgent, stocks *services.StocksAgent) *StreamHandler {
	return &StreamHandler{
		log:    log.With("handler", "StreamHandler"),
		rag:    rag,
		agent:  agent,
		stocks: stocks,
	}
}

// POST /api/rag/generate
// Streams the answer as SSE: data: {content} events, then one
// terminal data: {citations} or data: {error}.
func (h *StreamHandler) Generate(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	sink := newSSESink(c)
	// Client disconnect cancels c.Request.Context() and with it every
	// upstream call.
	if err := h.rag.StreamAnswer(c.Request.Context(), req.Question, req.ChatID, sink); err != nil {
		h.log.Error("rag stream failed", "chat_id", req.ChatID, "error", err)
	}
}

// POST /api/search
// Same SSE shape, web search only.
func (h *StreamHandler) Search(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	sink := newSSESink(c)
	if err := h.agent.StreamAnswer(c.Request.Context(), req.Question, req.ChatID, sink); err != nil {
		h.log.Error("search stream failed", "chat_id", req.ChatID, "error", err)
		_ = sink.Error("web search failed")
	}
}

// POST /api/stocks
// Market questions answered from live price and company data. Content
// events only.
func (h *StreamHandler) Stocks(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	sink := newSSESink(c)
	if err := h.stocks.StreamAnswer(c.Request.Context(), req.Question, req.ChatID, sink); err != nil {
		h.log.Error("stocks stream failed", "chat_id", req.ChatID, "error", err)
		_ = sink.Error("stock lookup failed")
	}
}

// sseSink writes stream events as server-sent events.
type sseSink struct {
	c        *gin.Context
	flusher  http.Flusher
	finished bool
}

func newSSESink(c *gin.Context) *sseSink {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	return &sseSink{c: c, flusher: flusher}
}

func (s *sseSink) emit(payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := s.c.Writer.Write([]byte("data: " + string(raw) + "\n\n")); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseSink) Content(delta string) error {
	if s.finished {
		return nil
	}
	return s.emit(gin.H{"content": delta})
}

func (s *sseSink) Citations(citations []domain.Citation) error {
	if s.finished {
		return nil
	}
	s.finished = true
	return s.emit(gin.H{"citations": citations})
}

func (s *sseSink) Error(message string) error {
	if s.finished {
		return nil
	}
	s.finished = true
	return s.emit(gin.H{"error": message})
}
