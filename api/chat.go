package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/campusq/campusq/internal/chatbot"
	"github.com/campusq/campusq/internal/log"
)

// MaxQueryLength bounds chat queries. Longer queries cost embedding tokens
// without improving retrieval.
const MaxQueryLength = 2000

// Answerer is the chatbot surface the handler needs. *chatbot.Engine
// satisfies it.
type Answerer interface {
	Answer(ctx context.Context, query string) (*chatbot.Reply, error)
}

// ChatHandler handles the knowledge chatbot endpoint.
type ChatHandler struct {
	engine  Answerer
	limiter *rate.Limiter
	logger  log.Logger
}

// NewChatHandler creates a new chat handler. ratePerMinute bounds requests
// across all callers; every request costs at least one embedding call.
func NewChatHandler(engine Answerer, ratePerMinute int, logger log.Logger) *ChatHandler {
	var limiter *rate.Limiter
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute)
	}
	return &ChatHandler{engine: engine, limiter: limiter, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.engine == nil {
		if h.logger != nil {
			h.logger.Warn("ChatHandler: engine is nil, chat endpoint not registered")
		}
		return
	}

	var handler http.Handler = http.HandlerFunc(h.ask)
	if h.limiter != nil {
		handler = rateLimitMiddleware(h.limiter)(handler)
	}
	mux.Handle("POST /api/chat", handler)
}

// ChatRequest is the request body for a chatbot query.
type ChatRequest struct {
	Query string `json:"query"`
}

func (h *ChatHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query too long (max 2000 characters)")
		return
	}

	reply, err := h.engine.Answer(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, chatbot.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "empty_query", "query is required")
			return
		}
		h.logger.Error("chat query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
