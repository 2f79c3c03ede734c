// Package forum implements the campus Q&A post model, the vote ledger, and
// the approval state machine.
//
// Posts come in three kinds: standalone posts, questions, and answers.
// Answers and standalone posts are votable; a question is never voted on
// directly and inherits its status from the answer that wins. The vote ledger
// keeps one row per (user, post) and the post's vote_count is a derived
// aggregate that must always equal the sum over those rows; the ledger
// transaction in store.go is the only writer.
package forum

import (
	"time"

	"github.com/google/uuid"
)

// PostType discriminates the three kinds of posts.
type PostType string

const (
	// TypePost is a standalone statement on the feed.
	TypePost PostType = "post"

	// TypeQuestion asks the community; answers attach to it.
	TypeQuestion PostType = "question"

	// TypeAnswer replies to a question and is subject to voting.
	TypeAnswer PostType = "answer"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case TypePost, TypeQuestion, TypeAnswer:
		return true
	}
	return false
}

// Votable reports whether posts of this type accept votes.
// Questions are never voted on directly; they inherit status from their
// winning answer.
func (t PostType) Votable() bool {
	switch t {
	case TypeAnswer, TypePost:
		return true
	case TypeQuestion:
		return false
	}
	return false
}

// Status is a post's lifecycle state. pending is the initial state;
// approved and disapproved are terminal; no further votes are accepted.
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusDisapproved Status = "disapproved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDisapproved:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further votes.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDisapproved
}

// Post is a row in the posts table.
type Post struct {
	ID         uuid.UUID  `json:"id"`
	Content    string     `json:"content"`
	AuthorID   string     `json:"author_id"`
	Type       PostType   `json:"type"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	VoteCount  int        `json:"vote_count"`
	Status     Status     `json:"status"`
	ReplyCount int        `json:"reply_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewPost carries the caller-supplied fields for post creation.
type NewPost struct {
	Content  string
	AuthorID string
	Type     PostType
	ParentID *uuid.UUID
}

// VoteResult is what a vote returns to the caller: the authoritative count
// and status after the transaction, plus whether the vote just approved an
// answer (so the caller can dispatch knowledge promotion after commit).
type VoteResult struct {
	VoteCount int    `json:"voteCount"`
	Status    Status `json:"status"`

	// Promotable is true when this vote moved an answer to approved.
	// ParentID is the answer's question in that case.
	Promotable bool       `json:"-"`
	ParentID   *uuid.UUID `json:"-"`
}

// MaxContentLength bounds post content, matching the schema CHECK.
const MaxContentLength = 10000
