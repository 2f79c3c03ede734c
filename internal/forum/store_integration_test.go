package forum_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusq/campusq/internal/forum"
	"github.com/campusq/campusq/internal/log"
	"github.com/campusq/campusq/internal/testutil"
)

const testThreshold = 5

func setupStore(t *testing.T) (*forum.Store, *testutil.TestDBContainer) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := forum.NewStore(db.Pool, testThreshold, log.NewNop())
	require.NoError(t, err)
	return store, db
}

// voteSum returns the ledger sum for a post, for checking the invariant
// vote_count == Σ post_votes.value.
func voteSum(t *testing.T, db *testutil.TestDBContainer, postID uuid.UUID) int {
	t.Helper()

	var sum int
	err := db.Pool.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(value), 0) FROM post_votes WHERE post_id = $1`,
		postID).Scan(&sum)
	require.NoError(t, err)
	return sum
}

func mustCreate(t *testing.T, store *forum.Store, np forum.NewPost) *forum.Post {
	t.Helper()
	post, err := store.CreatePost(context.Background(), np)
	require.NoError(t, err)
	return post
}

func createQA(t *testing.T, store *forum.Store) (question, answer *forum.Post) {
	t.Helper()
	question = mustCreate(t, store, forum.NewPost{
		Content: "Where can I print my thesis?", AuthorID: "asker", Type: forum.TypeQuestion,
	})
	answer = mustCreate(t, store, forum.NewPost{
		Content: "The copy shop in the student union building.",
		AuthorID: "helper", Type: forum.TypeAnswer, ParentID: &question.ID,
	})
	return question, answer
}

func TestCreatePost_Types(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	post := mustCreate(t, store, forum.NewPost{
		Content: "The cafeteria has a new menu.", AuthorID: "alice", Type: forum.TypePost,
	})
	assert.Equal(t, forum.StatusPending, post.Status)
	assert.Equal(t, 0, post.VoteCount)
	assert.Nil(t, post.ParentID)

	question, answer := createQA(t, store)
	assert.Equal(t, &question.ID, answer.ParentID)

	// Answer creation bumps the parent's reply count.
	reloaded, err := store.GetPost(ctx, question.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.ReplyCount)
}

func TestCreatePost_Validation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	someID := uuid.New()
	tests := []struct {
		name string
		np   forum.NewPost
		want error
	}{
		{"empty content", forum.NewPost{AuthorID: "a", Type: forum.TypePost}, forum.ErrContentRequired},
		{"bad type", forum.NewPost{Content: "x", AuthorID: "a", Type: "comment"}, forum.ErrInvalidPostType},
		{"answer without parent", forum.NewPost{Content: "x", AuthorID: "a", Type: forum.TypeAnswer}, forum.ErrParentRequired},
		{"post with parent", forum.NewPost{Content: "x", AuthorID: "a", Type: forum.TypePost, ParentID: &someID}, forum.ErrParentNotAllowed},
		{"answer to missing question", forum.NewPost{Content: "x", AuthorID: "a", Type: forum.TypeAnswer, ParentID: &someID}, forum.ErrParentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CreatePost(ctx, tt.np)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Answering an answer is rejected.
	_, answer := createQA(t, store)
	_, err := store.CreatePost(ctx, forum.NewPost{
		Content: "reply to a reply", AuthorID: "a", Type: forum.TypeAnswer, ParentID: &answer.ID,
	})
	assert.ErrorIs(t, err, forum.ErrParentNotQuestion)
}

func TestApplyVote_LedgerInvariant(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	post := mustCreate(t, store, forum.NewPost{
		Content: "Vote on me.", AuthorID: "alice", Type: forum.TypePost,
	})

	// Three users vote up, one down.
	for _, userID := range []string{"u1", "u2", "u3"} {
		_, err := store.ApplyVote(ctx, userID, post.ID, 1)
		require.NoError(t, err)
	}
	result, err := store.ApplyVote(ctx, "u4", post.ID, -1)
	require.NoError(t, err)

	assert.Equal(t, 2, result.VoteCount)
	assert.Equal(t, voteSum(t, db, post.ID), result.VoteCount)
	assert.Equal(t, forum.StatusPending, result.Status)
}

func TestApplyVote_ToggleWithdraws(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	post := mustCreate(t, store, forum.NewPost{
		Content: "Toggle target.", AuthorID: "alice", Type: forum.TypePost,
	})

	result, err := store.ApplyVote(ctx, "bob", post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.VoteCount)

	// Same vote again withdraws it.
	result, err = store.ApplyVote(ctx, "bob", post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.VoteCount)
	assert.Equal(t, 0, voteSum(t, db, post.ID))

	// And a third cast re-applies it.
	result, err = store.ApplyVote(ctx, "bob", post.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.VoteCount)
	assert.Equal(t, 1, voteSum(t, db, post.ID))
}

func TestApplyVote_SwitchMovesByTwo(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	post := mustCreate(t, store, forum.NewPost{
		Content: "Switch target.", AuthorID: "alice", Type: forum.TypePost,
	})

	_, err := store.ApplyVote(ctx, "bob", post.ID, 1)
	require.NoError(t, err)

	result, err := store.ApplyVote(ctx, "bob", post.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, result.VoteCount, "switch reverses the old vote and applies the new one")
	assert.Equal(t, -1, voteSum(t, db, post.ID))
}

func TestApplyVote_Rejections(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	question, _ := createQA(t, store)

	_, err := store.ApplyVote(ctx, "bob", question.ID, 1)
	assert.ErrorIs(t, err, forum.ErrQuestionNotVotable)

	_, err = store.ApplyVote(ctx, "bob", uuid.New(), 1)
	assert.ErrorIs(t, err, forum.ErrPostNotFound)

	post := mustCreate(t, store, forum.NewPost{
		Content: "target", AuthorID: "alice", Type: forum.TypePost,
	})
	_, err = store.ApplyVote(ctx, "bob", post.ID, 2)
	assert.ErrorIs(t, err, forum.ErrInvalidVote)
	_, err = store.ApplyVote(ctx, "bob", post.ID, 0)
	assert.ErrorIs(t, err, forum.ErrInvalidVote)
	_, err = store.ApplyVote(ctx, "  ", post.ID, 1)
	assert.ErrorIs(t, err, forum.ErrInvalidVote)
}

func TestApplyVote_ApprovalCascade(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	question := mustCreate(t, store, forum.NewPost{
		Content: "Where is lost and found?", AuthorID: "asker", Type: forum.TypeQuestion,
	})
	winner := mustCreate(t, store, forum.NewPost{
		Content: "Front desk of the main hall.", AuthorID: "h1",
		Type: forum.TypeAnswer, ParentID: &question.ID,
	})
	loser := mustCreate(t, store, forum.NewPost{
		Content: "Ask campus security.", AuthorID: "h2",
		Type: forum.TypeAnswer, ParentID: &question.ID,
	})

	// Four votes leave the answer pending.
	for i := 1; i <= testThreshold-1; i++ {
		result, err := store.ApplyVote(ctx, fmt.Sprintf("voter%d", i), winner.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, i, result.VoteCount)
		assert.Equal(t, forum.StatusPending, result.Status)
		assert.False(t, result.Promotable)
	}

	// The fifth crosses the threshold.
	result, err := store.ApplyVote(ctx, "voter5", winner.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, testThreshold, result.VoteCount)
	assert.Equal(t, forum.StatusApproved, result.Status)
	assert.True(t, result.Promotable)
	require.NotNil(t, result.ParentID)
	assert.Equal(t, question.ID, *result.ParentID)

	// Cascade: question approved, sibling disapproved.
	gotQuestion, err := store.GetPost(ctx, question.ID)
	require.NoError(t, err)
	assert.Equal(t, forum.StatusApproved, gotQuestion.Status)

	gotLoser, err := store.GetPost(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, forum.StatusDisapproved, gotLoser.Status)

	// Ledger still consistent on the winner.
	assert.Equal(t, testThreshold, voteSum(t, db, winner.ID))

	// Both answers are now terminal: no further votes on either.
	_, err = store.ApplyVote(ctx, "late", winner.ID, 1)
	assert.ErrorIs(t, err, forum.ErrVotingClosed)
	_, err = store.ApplyVote(ctx, "late", loser.ID, 1)
	assert.ErrorIs(t, err, forum.ErrVotingClosed)
}

func TestApplyVote_Disapproval(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, answer := createQA(t, store)

	for i := 1; i <= testThreshold; i++ {
		result, err := store.ApplyVote(ctx, fmt.Sprintf("voter%d", i), answer.ID, -1)
		require.NoError(t, err)
		if i < testThreshold {
			assert.Equal(t, forum.StatusPending, result.Status)
		} else {
			assert.Equal(t, forum.StatusDisapproved, result.Status)
			assert.False(t, result.Promotable, "disapproval never promotes")
		}
	}

	_, err := store.ApplyVote(ctx, "late", answer.ID, 1)
	assert.ErrorIs(t, err, forum.ErrVotingClosed)
}

func TestApplyVote_StandalonePostApproval(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	post := mustCreate(t, store, forum.NewPost{
		Content: "The pool is closed for maintenance this week.",
		AuthorID: "alice", Type: forum.TypePost,
	})

	var result *forum.VoteResult
	var err error
	for i := 1; i <= testThreshold; i++ {
		result, err = store.ApplyVote(ctx, fmt.Sprintf("voter%d", i), post.ID, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, forum.StatusApproved, result.Status)
	assert.False(t, result.Promotable, "only answers feed the knowledge store")
}

func TestListFeedAndAnswers(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	question, answer := createQA(t, store)
	standalone := mustCreate(t, store, forum.NewPost{
		Content: "Feed-only post.", AuthorID: "alice", Type: forum.TypePost,
	})

	feed, err := store.ListFeed(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2, "answers must not appear on the feed")

	ids := []uuid.UUID{feed[0].ID, feed[1].ID}
	assert.Contains(t, ids, question.ID)
	assert.Contains(t, ids, standalone.ID)

	answers, err := store.ListAnswers(ctx, question.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, answer.ID, answers[0].ID)
}

func TestDeletePost(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	question, answer := createQA(t, store)
	_, err := store.ApplyVote(ctx, "bob", answer.ID, 1)
	require.NoError(t, err)

	err = store.DeletePost(ctx, question.ID, "mallory")
	assert.ErrorIs(t, err, forum.ErrNotAuthor)

	err = store.DeletePost(ctx, question.ID, "asker")
	require.NoError(t, err)

	// Cascade removed the answer and its votes.
	_, err = store.GetPost(ctx, answer.ID)
	assert.True(t, errors.Is(err, forum.ErrPostNotFound))
	assert.Equal(t, 0, voteSum(t, db, answer.ID))

	err = store.DeletePost(ctx, question.ID, "asker")
	assert.ErrorIs(t, err, forum.ErrPostNotFound)
}
