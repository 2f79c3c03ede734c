package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusq/campusq/internal/chatbot"
	"github.com/campusq/campusq/internal/log"
)

type fakeAnswerer struct {
	reply *chatbot.Reply
	err   error
	got   string
}

func (f *fakeAnswerer) Answer(_ context.Context, query string) (*chatbot.Reply, error) {
	f.got = query
	if strings.TrimSpace(query) == "" {
		return nil, chatbot.ErrEmptyQuery
	}
	return f.reply, f.err
}

func newChatMux(engine Answerer, ratePerMinute int) *http.ServeMux {
	mux := http.NewServeMux()
	NewChatHandler(engine, ratePerMinute, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func postChat(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestChat_Matched(t *testing.T) {
	engine := &fakeAnswerer{reply: &chatbot.Reply{
		Response:   "The library opens at 8am.",
		Matched:    true,
		Similarity: 0.91,
	}}
	mux := newChatMux(engine, 0)

	w := postChat(t, mux, `{"query": "when does the library open?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply chatbot.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.True(t, reply.Matched)
	assert.Equal(t, "The library opens at 8am.", reply.Response)
	assert.Equal(t, "when does the library open?", engine.got)
}

func TestChat_Fallback(t *testing.T) {
	engine := &fakeAnswerer{reply: &chatbot.Reply{
		Response: chatbot.FallbackMessage,
		Matched:  false,
	}}
	mux := newChatMux(engine, 0)

	w := postChat(t, mux, `{"query": "something obscure"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var reply chatbot.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.False(t, reply.Matched)
	assert.Equal(t, chatbot.FallbackMessage, reply.Response)
}

func TestChat_EmptyQuery(t *testing.T) {
	mux := newChatMux(&fakeAnswerer{}, 0)

	w := postChat(t, mux, `{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_InvalidBody(t *testing.T) {
	mux := newChatMux(&fakeAnswerer{}, 0)

	w := postChat(t, mux, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_QueryTooLong(t *testing.T) {
	mux := newChatMux(&fakeAnswerer{}, 0)

	long := strings.Repeat("a", MaxQueryLength+1)
	w := postChat(t, mux, `{"query": "`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_RateLimited(t *testing.T) {
	engine := &fakeAnswerer{reply: &chatbot.Reply{Response: "ok", Matched: true}}
	// 1 request per minute: the burst allows one, the second is rejected.
	mux := newChatMux(engine, 1)

	w := postChat(t, mux, `{"query": "first"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postChat(t, mux, `{"query": "second"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestChat_NilEngineNotRegistered(t *testing.T) {
	mux := newChatMux(nil, 0)

	w := postChat(t, mux, `{"query": "anything"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
