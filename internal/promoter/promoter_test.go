package promoter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/goleak"

	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/knowledge"
	"github.com/campusq/campusq/internal/log"
	"github.com/campusq/campusq/internal/testutil"
)

type stubPosts struct {
	posts map[uuid.UUID]*forum.Post
}

func (s *stubPosts) GetPost(_ context.Context, id uuid.UUID) (*forum.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, forum.ErrPostNotFound
	}
	return p, nil
}

type stubEntries struct {
	mu       sync.Mutex
	sources  map[uuid.UUID]bool
	contents map[string]bool
	inserted []knowledge.Entry

	hasSourceErr error
	insertErr    error
}

func newStubEntries() *stubEntries {
	return &stubEntries{
		sources:  make(map[uuid.UUID]bool),
		contents: make(map[string]bool),
	}
}

func (s *stubEntries) HasSource(_ context.Context, postID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSourceErr != nil {
		return false, s.hasSourceErr
	}
	return s.sources[postID], nil
}

func (s *stubEntries) HasContent(_ context.Context, raw string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contents[raw], nil
}

func (s *stubEntries) Insert(_ context.Context, e knowledge.Entry, _ pgvector.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, e)
	if e.SourcePostID != nil {
		s.sources[*e.SourcePostID] = true
	}
	s.contents[e.RawContent] = true
	return nil
}

func (s *stubEntries) insertedEntries() []knowledge.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]knowledge.Entry, len(s.inserted))
	copy(cp, s.inserted)
	return cp
}

type stubCleaner struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *stubCleaner) CleanQA(_ context.Context, question, answer string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("Q: %s A: %s", question, answer), nil
}

func (c *stubCleaner) CleanFact(_ context.Context, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "Fact: " + content, nil
}

func (c *stubCleaner) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testEmbedder(t *testing.T) ai.Embedder {
	t.Helper()
	g := genkit.Init(context.Background())
	return testutil.NewMockEmbedder(768).RegisterEmbedder(g)
}

func answerAndQuestion() (*forum.Post, *forum.Post) {
	question := &forum.Post{
		ID:      uuid.New(),
		Content: "Where is the registrar's office?",
		Type:    forum.TypeQuestion,
	}
	answer := &forum.Post{
		ID:       uuid.New(),
		Content:  "Building A, second floor, room 210.",
		Type:     forum.TypeAnswer,
		ParentID: &question.ID,
		Status:   forum.StatusApproved,
	}
	return answer, question
}

func TestPromote(t *testing.T) {
	answer, question := answerAndQuestion()
	posts := &stubPosts{posts: map[uuid.UUID]*forum.Post{
		answer.ID:   answer,
		question.ID: question,
	}}
	entries := newStubEntries()
	cleaner := &stubCleaner{}

	p, err := New(posts, entries, cleaner, testEmbedder(t), "test-embedder", log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := p.Promote(context.Background(), answer.ID, question.ID); err != nil {
		t.Fatalf("Promote() error: %v", err)
	}

	got := entries.insertedEntries()
	if len(got) != 1 {
		t.Fatalf("inserted %d entries, want 1", len(got))
	}
	e := got[0]
	if e.SourcePostID == nil || *e.SourcePostID != answer.ID {
		t.Errorf("SourcePostID = %v, want answer ID %v", e.SourcePostID, answer.ID)
	}
	wantRaw := "Question: " + question.Content + "\nAnswer: " + answer.Content
	if e.RawContent != wantRaw {
		t.Errorf("RawContent = %q, want %q", e.RawContent, wantRaw)
	}
	if !strings.Contains(e.CleanedContent, question.Content) {
		t.Errorf("CleanedContent = %q, missing question text", e.CleanedContent)
	}
	if e.EmbeddingModel != "test-embedder" {
		t.Errorf("EmbeddingModel = %q, want test-embedder", e.EmbeddingModel)
	}
}

func TestPromoteIdempotent(t *testing.T) {
	answer, question := answerAndQuestion()
	posts := &stubPosts{posts: map[uuid.UUID]*forum.Post{
		answer.ID:   answer,
		question.ID: question,
	}}
	entries := newStubEntries()
	cleaner := &stubCleaner{}

	p, err := New(posts, entries, cleaner, testEmbedder(t), "test-embedder", log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := context.Background()
	if err := p.Promote(ctx, answer.ID, question.ID); err != nil {
		t.Fatalf("first Promote() error: %v", err)
	}
	if err := p.Promote(ctx, answer.ID, question.ID); err != nil {
		t.Fatalf("second Promote() error: %v", err)
	}

	if got := entries.insertedEntries(); len(got) != 1 {
		t.Errorf("inserted %d entries after double promotion, want 1", len(got))
	}
	if cleaner.callCount() != 1 {
		t.Errorf("cleaner called %d times, want 1 (skip must happen before cleaning)", cleaner.callCount())
	}
}

func TestPromoteErrors(t *testing.T) {
	answer, question := answerAndQuestion()
	embedder := testEmbedder(t)

	tests := []struct {
		name    string
		posts   *stubPosts
		entries *stubEntries
		cleaner *stubCleaner
	}{
		{
			name:    "answer missing",
			posts:   &stubPosts{posts: map[uuid.UUID]*forum.Post{question.ID: question}},
			entries: newStubEntries(),
			cleaner: &stubCleaner{},
		},
		{
			name:    "question missing",
			posts:   &stubPosts{posts: map[uuid.UUID]*forum.Post{answer.ID: answer}},
			entries: newStubEntries(),
			cleaner: &stubCleaner{},
		},
		{
			name:    "cleaner fails",
			posts:   &stubPosts{posts: map[uuid.UUID]*forum.Post{answer.ID: answer, question.ID: question}},
			entries: newStubEntries(),
			cleaner: &stubCleaner{err: errors.New("model unavailable")},
		},
		{
			name:  "source check fails",
			posts: &stubPosts{posts: map[uuid.UUID]*forum.Post{answer.ID: answer, question.ID: question}},
			entries: func() *stubEntries {
				e := newStubEntries()
				e.hasSourceErr = errors.New("connection refused")
				return e
			}(),
			cleaner: &stubCleaner{},
		},
		{
			name:  "insert fails",
			posts: &stubPosts{posts: map[uuid.UUID]*forum.Post{answer.ID: answer, question.ID: question}},
			entries: func() *stubEntries {
				e := newStubEntries()
				e.insertErr = errors.New("constraint violation")
				return e
			}(),
			cleaner: &stubCleaner{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.posts, tt.entries, tt.cleaner, embedder, "test-embedder", log.NewNop())
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if err := p.Promote(context.Background(), answer.ID, question.ID); err == nil {
				t.Error("Promote() error = nil, want failure")
			}
		})
	}
}

func TestDispatchSwallowsErrors(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	)

	// No posts registered, so the dispatched promotion fails internally.
	p, err := New(&stubPosts{posts: map[uuid.UUID]*forum.Post{}}, newStubEntries(),
		&stubCleaner{}, testEmbedder(t), "test-embedder", log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	p.Dispatch(uuid.New(), uuid.New())
	p.Wait()
}

func TestDispatchPromotes(t *testing.T) {
	answer, question := answerAndQuestion()
	posts := &stubPosts{posts: map[uuid.UUID]*forum.Post{
		answer.ID:   answer,
		question.ID: question,
	}}
	entries := newStubEntries()

	p, err := New(posts, entries, &stubCleaner{}, testEmbedder(t), "test-embedder", log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	p.Dispatch(answer.ID, question.ID)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("dispatched promotion did not finish")
	}

	if got := entries.insertedEntries(); len(got) != 1 {
		t.Fatalf("inserted %d entries, want 1", len(got))
	}
}

func TestNewValidation(t *testing.T) {
	posts := &stubPosts{posts: map[uuid.UUID]*forum.Post{}}
	entries := newStubEntries()
	cleaner := &stubCleaner{}
	embedder := testEmbedder(t)

	if _, err := New(nil, entries, cleaner, embedder, "m", log.NewNop()); err == nil {
		t.Error("New() with nil posts should fail")
	}
	if _, err := New(posts, nil, cleaner, embedder, "m", log.NewNop()); err == nil {
		t.Error("New() with nil entries should fail")
	}
	if _, err := New(posts, entries, cleaner, embedder, "", log.NewNop()); err == nil {
		t.Error("New() with empty embedder model should fail")
	}
}
