package forum

import "errors"

// Sentinel errors for forum operations. These are part of the Store's public
// API and map onto the four error classes the HTTP layer distinguishes:
// validation (caller's fault), not-found, conflict, and everything else
// (transient infrastructure).
var (
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrQuestionNotVotable indicates a vote targeted a question.
	// Questions inherit status from their winning answer and are never
	// voted on directly.
	ErrQuestionNotVotable = errors.New("questions cannot be voted on")

	// ErrVotingClosed indicates the post already reached a terminal status.
	ErrVotingClosed = errors.New("voting closed")

	// ErrInvalidVote indicates a vote value other than +1 or -1.
	ErrInvalidVote = errors.New("invalid vote value")

	// ErrContentRequired indicates empty post content.
	ErrContentRequired = errors.New("content is required")

	// ErrContentTooLong indicates post content over MaxContentLength.
	ErrContentTooLong = errors.New("content too long")

	// ErrInvalidPostType indicates an unknown post type.
	ErrInvalidPostType = errors.New("invalid post type")

	// ErrParentRequired indicates an answer without a parent question.
	ErrParentRequired = errors.New("answers require a parent question")

	// ErrParentNotAllowed indicates a parent on a non-answer post.
	ErrParentNotAllowed = errors.New("only answers may have a parent")

	// ErrParentNotFound indicates the referenced parent question does not exist.
	ErrParentNotFound = errors.New("parent question not found")

	// ErrParentNotQuestion indicates the parent post is not a question.
	ErrParentNotQuestion = errors.New("parent post is not a question")

	// ErrNotAuthor indicates a delete attempted by someone other than the author.
	ErrNotAuthor = errors.New("only the author may delete a post")
)
