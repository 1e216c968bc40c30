package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/healthapp/reviews/pkg/database"
	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// VoteRepository implements helpful-vote persistence using PostgreSQL.
type VoteRepository struct {
	pool database.DBTX
}

// NewVoteRepository creates a new PostgreSQL-backed vote repository.
func NewVoteRepository(pool database.DBTX) *VoteRepository {
	return &VoteRepository{pool: pool}
}

// Cast toggles a user's vote on a review and recomputes the review's
// counters from the votes table. The review row is locked for the duration
// of the transaction so concurrent votes on one review serialize.
func (r *VoteRepository) Cast(ctx context.Context, reviewID, userID string, vote domain.VoteType) (_ *domain.VoteResult, err error) {
	ctx, end := database.TraceQuery(ctx, "CastVote", "review_votes toggle")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM doctor_reviews WHERE id = $1 FOR UPDATE`, reviewID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("lock review: %w", err)
	}

	var existing string
	err = tx.QueryRow(ctx,
		`SELECT vote_type FROM review_votes WHERE review_id = $1 AND user_id = $2`,
		reviewID, userID).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get existing vote: %w", err)
	}

	result := &domain.VoteResult{ReviewID: reviewID, Vote: vote}
	switch {
	case existing == "":
		_, err = tx.Exec(ctx,
			`INSERT INTO review_votes (review_id, user_id, vote_type) VALUES ($1, $2, $3)`,
			reviewID, userID, string(vote))
		result.Action = domain.VoteAdded
	case domain.VoteType(existing) == vote:
		_, err = tx.Exec(ctx,
			`DELETE FROM review_votes WHERE review_id = $1 AND user_id = $2`,
			reviewID, userID)
		result.Action = domain.VoteRemoved
		result.Vote = ""
	default:
		_, err = tx.Exec(ctx,
			`UPDATE review_votes SET vote_type = $3, created_at = NOW() WHERE review_id = $1 AND user_id = $2`,
			reviewID, userID, string(vote))
		result.Action = domain.VoteSwitched
	}
	if err != nil {
		return nil, fmt.Errorf("write vote: %w", err)
	}

	recount := `
		UPDATE doctor_reviews SET
			helpful_count = (SELECT COUNT(*) FROM review_votes WHERE review_id = $1 AND vote_type = 'HELPFUL'),
			not_helpful_count = (SELECT COUNT(*) FROM review_votes WHERE review_id = $1 AND vote_type = 'NOT_HELPFUL'),
			updated_at = NOW()
		WHERE id = $1
		RETURNING helpful_count, not_helpful_count`
	if err = tx.QueryRow(ctx, recount, reviewID).Scan(&result.HelpfulCount, &result.NotHelpfulCount); err != nil {
		return nil, fmt.Errorf("recount votes: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return result, nil
}

// UserVotes returns the user's votes on the given reviews keyed by review ID.
func (r *VoteRepository) UserVotes(ctx context.Context, userID string, reviewIDs []string) (_ map[string]domain.VoteType, err error) {
	votes := make(map[string]domain.VoteType)
	if userID == "" || len(reviewIDs) == 0 {
		return votes, nil
	}

	query := `SELECT review_id, vote_type FROM review_votes WHERE user_id = $1 AND review_id = ANY($2)`

	ctx, end := database.TraceQuery(ctx, "UserVotes", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID, reviewIDs)
	if err != nil {
		return nil, fmt.Errorf("list user votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reviewID, vote string
		if err := rows.Scan(&reviewID, &vote); err != nil {
			return nil, fmt.Errorf("scan vote row: %w", err)
		}
		votes[reviewID] = domain.VoteType(vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote rows: %w", err)
	}
	return votes, nil
}
