package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/log"
)

// Feed pagination bounds.
const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 500
	MaxFeedOffset    = 100000
)

// userIDHeader carries the caller's identity. Authentication itself is out
// of scope; the gateway in front of this service sets the header.
const userIDHeader = "X-User-ID"

// PostStore is the forum surface the handler needs. *forum.Store satisfies it.
type PostStore interface {
	CreatePost(ctx context.Context, np forum.NewPost) (*forum.Post, error)
	GetPost(ctx context.Context, id uuid.UUID) (*forum.Post, error)
	ListFeed(ctx context.Context, limit, offset int) ([]forum.Post, error)
	ListAnswers(ctx context.Context, questionID uuid.UUID) ([]forum.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID, authorID string) error
	ApplyVote(ctx context.Context, userID string, postID uuid.UUID, value int) (*forum.VoteResult, error)
}

// PromotionDispatcher starts knowledge promotion for a just-approved answer.
// *promoter.Promoter satisfies it.
type PromotionDispatcher interface {
	Dispatch(answerID, questionID uuid.UUID)
}

// PostHandler handles forum endpoints: posts, answers, and votes.
type PostHandler struct {
	store    PostStore
	dispatch PromotionDispatcher
	logger   log.Logger
}

// NewPostHandler creates a new post handler. dispatch may be nil, in which
// case approved answers are not promoted (used by tests).
func NewPostHandler(store PostStore, dispatch PromotionDispatcher, logger log.Logger) *PostHandler {
	return &PostHandler{store: store, dispatch: dispatch, logger: logger}
}

// RegisterRoutes registers forum routes on the given mux.
func (h *PostHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/posts", h.create)
	mux.HandleFunc("GET /api/posts", h.feed)
	mux.HandleFunc("GET /api/posts/{id}", h.get)
	mux.HandleFunc("GET /api/posts/{id}/answers", h.answers)
	mux.HandleFunc("DELETE /api/posts/{id}", h.delete)
	mux.HandleFunc("POST /api/posts/{id}/vote", h.vote)
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Content  string     `json:"content"`
	Type     string     `json:"type"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *PostHandler) create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	post, err := h.store.CreatePost(r.Context(), forum.NewPost{
		Content:  req.Content,
		AuthorID: userID,
		Type:     forum.PostType(req.Type),
		ParentID: req.ParentID,
	})
	if err != nil {
		h.forumError(w, err, "failed to create post")
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) feed(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	limit := parseIntParam(r, "limit", DefaultFeedLimit, 1, MaxFeedLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxFeedOffset)

	posts, err := h.store.ListFeed(r.Context(), limit, offset)
	if err != nil {
		h.forumError(w, err, "failed to list feed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts":  posts,
		"total":  len(posts),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *PostHandler) get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	post, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		h.forumError(w, err, "failed to load post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) answers(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	answers, err := h.store.ListAnswers(r.Context(), id)
	if err != nil {
		h.forumError(w, err, "failed to list answers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answers": answers,
		"total":   len(answers),
	})
}

func (h *PostHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeletePost(r.Context(), id, userID); err != nil {
		h.forumError(w, err, "failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VoteRequest is the request body for casting a vote. Value is +1 or -1;
// repeating the same value withdraws the vote, the opposite value switches it.
type VoteRequest struct {
	Value int `json:"value"`
}

func (h *PostHandler) vote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	result, err := h.store.ApplyVote(r.Context(), userID, id, req.Value)
	if err != nil {
		h.forumError(w, err, "failed to apply vote")
		return
	}

	// Promotion runs after the vote has committed so a slow LLM can never
	// hold up or fail the voter's request.
	if result.Promotable && h.dispatch != nil && result.ParentID != nil {
		h.dispatch.Dispatch(id, *result.ParentID)
	}

	writeJSON(w, http.StatusOK, result)
}

// ready reports whether the handler has a store, writing 500 otherwise.
func (h *PostHandler) ready(w http.ResponseWriter) bool {
	if h.store == nil {
		h.logger.Error("post store is nil")
		writeError(w, http.StatusInternalServerError, "internal", "post store not configured")
		return false
	}
	return true
}

// requireUser extracts the caller identity or writes 401.
func (h *PostHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

// pathID parses the {id} path segment or writes 400.
func (h *PostHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "post id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// forumError maps domain errors to HTTP status codes.
func (h *PostHandler) forumError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, forum.ErrPostNotFound),
		errors.Is(err, forum.ErrParentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, forum.ErrVotingClosed):
		writeError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, forum.ErrNotAuthor):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, forum.ErrQuestionNotVotable),
		errors.Is(err, forum.ErrInvalidVote),
		errors.Is(err, forum.ErrContentRequired),
		errors.Is(err, forum.ErrContentTooLong),
		errors.Is(err, forum.ErrInvalidPostType),
		errors.Is(err, forum.ErrParentRequired),
		errors.Is(err, forum.ErrParentNotAllowed),
		errors.Is(err, forum.ErrParentNotQuestion):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", fallback)
	}
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
