package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postCols is the standard SELECT column list for scanPost.
const postCols = `id, content, author_id, post_type, parent_id, vote_count, status, reply_count, created_at`

// Store manages posts and the vote ledger, backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines; concurrent votes
// on the same post are linearized by the row lock taken inside ApplyVote.
type Store struct {
	pool      *pgxpool.Pool
	threshold int
	logger    *slog.Logger
}

// NewStore creates a forum Store. threshold is the vote count magnitude at
// which a pending post transitions to approved/disapproved.
func NewStore(pool *pgxpool.Pool, threshold int, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if threshold < 1 {
		return nil, fmt.Errorf("threshold must be positive, got %d", threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, threshold: threshold, logger: logger}, nil
}

// Threshold returns the configured approval threshold.
func (s *Store) Threshold() int {
	return s.threshold
}

// CreatePost validates and inserts a new post. Answers must reference an
// existing question and increment its reply_count in the same transaction.
func (s *Store) CreatePost(ctx context.Context, np NewPost) (*Post, error) {
	if err := validateNewPost(np); err != nil {
		return nil, err
	}

	if np.Type != TypeAnswer {
		row := s.pool.QueryRow(ctx,
			`INSERT INTO posts (content, author_id, post_type)
			 VALUES ($1, $2, $3)
			 RETURNING `+postCols,
			np.Content, np.AuthorID, np.Type)
		return scanPost(row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	// Lock the parent so a concurrent delete cannot orphan the answer.
	var parentType PostType
	err = tx.QueryRow(ctx,
		`SELECT post_type FROM posts WHERE id = $1 FOR UPDATE`,
		*np.ParentID).Scan(&parentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading parent post: %w", err)
	}
	if parentType != TypeQuestion {
		return nil, ErrParentNotQuestion
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO posts (content, author_id, post_type, parent_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+postCols,
		np.Content, np.AuthorID, np.Type, *np.ParentID)
	post, err := scanPost(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE posts SET reply_count = reply_count + 1 WHERE id = $1`,
		*np.ParentID); err != nil {
		return nil, fmt.Errorf("incrementing reply count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing post creation: %w", err)
	}

	s.logger.Debug("created answer", "id", post.ID, "parent_id", *np.ParentID)
	return post, nil
}

// GetPost retrieves a post by ID.
func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postCols+` FROM posts WHERE id = $1`, id)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return post, err
}

// ListFeed returns top-level posts (questions and standalone posts),
// newest first.
func (s *Store) ListFeed(ctx context.Context, limit, offset int) ([]Post, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postCols+` FROM posts
		 WHERE parent_id IS NULL
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListAnswers returns a question's answers, newest first.
func (s *Store) ListAnswers(ctx context.Context, questionID uuid.UUID) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postCols+` FROM posts
		 WHERE parent_id = $1
		 ORDER BY created_at DESC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// DeletePost removes a post owned by authorID. Votes and answers go with it
// via ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id uuid.UUID, authorID string) error {
	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT author_id FROM posts WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("loading post: %w", err)
	}
	if owner != authorID {
		return ErrNotAuthor
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	s.logger.Debug("deleted post", "id", id)
	return nil
}

// ApplyVote records a vote of value (+1 or -1) by userID on postID and
// returns the authoritative vote count and status.
//
// The whole operation is one transaction with the post row locked FOR
// UPDATE, so concurrent votes on the same post serialize. The ledger branch
// is three-way:
//
//   - no prior vote: insert the row, count += value
//   - same prior vote: delete the row (toggle off), count -= value
//   - opposite prior vote: flip the row, count += 2*value
//
// Each branch changes vote_count by exactly the delta it applies to the
// ledger, which preserves the invariant vote_count == Σ post_votes.value.
//
// When the new count crosses the threshold the status transition is applied
// inside the same transaction; an answer's approval also approves its parent
// question and disapproves all sibling answers. VoteResult.Promotable tells
// the caller to dispatch knowledge promotion strictly after this call
// returns, so promotion never extends the lock window.
func (s *Store) ApplyVote(ctx context.Context, userID string, postID uuid.UUID, value int) (*VoteResult, error) {
	if value != 1 && value != -1 {
		return nil, ErrInvalidVote
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidVote)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var (
		postType PostType
		status   Status
		parentID *uuid.UUID
	)
	err = tx.QueryRow(ctx,
		`SELECT post_type, status, parent_id FROM posts WHERE id = $1 FOR UPDATE`,
		postID).Scan(&postType, &status, &parentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading post for vote: %w", err)
	}

	if postType == TypeQuestion {
		return nil, ErrQuestionNotVotable
	}
	if status.Terminal() {
		return nil, ErrVotingClosed
	}

	var prev int16
	err = tx.QueryRow(ctx,
		`SELECT value FROM post_votes WHERE user_id = $1 AND post_id = $2`,
		userID, postID).Scan(&prev)

	var delta int
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First vote.
		if _, err := tx.Exec(ctx,
			`INSERT INTO post_votes (user_id, post_id, value) VALUES ($1, $2, $3)`,
			userID, postID, value); err != nil {
			return nil, fmt.Errorf("inserting vote: %w", err)
		}
		delta = value

	case err != nil:
		return nil, fmt.Errorf("loading existing vote: %w", err)

	case int(prev) == value:
		// Toggle off.
		if _, err := tx.Exec(ctx,
			`DELETE FROM post_votes WHERE user_id = $1 AND post_id = $2`,
			userID, postID); err != nil {
			return nil, fmt.Errorf("deleting vote: %w", err)
		}
		delta = -value

	default:
		// Switch: reverses the old contribution and applies the new one.
		if _, err := tx.Exec(ctx,
			`UPDATE post_votes SET value = $1 WHERE user_id = $2 AND post_id = $3`,
			value, userID, postID); err != nil {
			return nil, fmt.Errorf("switching vote: %w", err)
		}
		delta = 2 * value
	}

	var newCount int
	if err := tx.QueryRow(ctx,
		`UPDATE posts SET vote_count = vote_count + $1 WHERE id = $2 RETURNING vote_count`,
		delta, postID).Scan(&newCount); err != nil {
		return nil, fmt.Errorf("updating vote count: %w", err)
	}

	newStatus := StatusFor(newCount, s.threshold)
	result := &VoteResult{VoteCount: newCount, Status: newStatus}

	if newStatus != StatusPending {
		if _, err := tx.Exec(ctx,
			`UPDATE posts SET status = $1 WHERE id = $2`, newStatus, postID); err != nil {
			return nil, fmt.Errorf("updating post status: %w", err)
		}

		// Approval of an answer is exclusive: the parent question takes
		// approved and every sibling answer is disapproved.
		if postType == TypeAnswer && newStatus == StatusApproved && parentID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE posts SET status = $1 WHERE id = $2`,
				StatusApproved, *parentID); err != nil {
				return nil, fmt.Errorf("approving parent question: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`UPDATE posts SET status = $1 WHERE parent_id = $2 AND id <> $3`,
				StatusDisapproved, *parentID, postID); err != nil {
				return nil, fmt.Errorf("disapproving sibling answers: %w", err)
			}
			result.Promotable = true
			result.ParentID = parentID
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing vote transaction: %w", err)
	}

	s.logger.Debug("vote applied",
		"post_id", postID, "user_id", userID, "value", value,
		"vote_count", newCount, "status", newStatus)
	return result, nil
}

// validateNewPost checks caller-supplied post fields.
func validateNewPost(np NewPost) error {
	if strings.TrimSpace(np.Content) == "" {
		return ErrContentRequired
	}
	if len(np.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if !np.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPostType, np.Type)
	}
	if np.Type == TypeAnswer && np.ParentID == nil {
		return ErrParentRequired
	}
	if np.Type != TypeAnswer && np.ParentID != nil {
		return ErrParentNotAllowed
	}
	return nil
}

// scanPost scans a single post row.
func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.Content, &p.AuthorID, &p.Type, &p.ParentID,
		&p.VoteCount, &p.Status, &p.ReplyCount, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// scanPosts drains rows into a slice.
func scanPosts(rows pgx.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Content, &p.AuthorID, &p.Type, &p.ParentID,
			&p.VoteCount, &p.Status, &p.ReplyCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}
	return posts, nil
}
