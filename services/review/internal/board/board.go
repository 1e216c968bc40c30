// Package board holds the reviews a reader is looking at and applies their
// votes and reports. Votes are applied locally first and synced in the
// background; reports are sent fire-and-forget.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/logger"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/listing"
)

// VoteSender delivers a vote to the review service.
type VoteSender interface {
	Vote(ctx context.Context, reviewID string, vote domain.VoteType) error
}

// ReportSender delivers a report to the review service.
type ReportSender interface {
	Report(ctx context.Context, reviewID string, reason domain.ReportReason, description string) error
}

// VoteSyncError describes a vote the service did not accept.
type VoteSyncError struct {
	ReviewID string
	Vote     domain.VoteType
	// RolledBack is false when a later vote on the same review had already
	// been applied, in which case local state was left alone.
	RolledBack bool
	Err        error
}

func (e *VoteSyncError) Error() string {
	return fmt.Sprintf("sync %s vote on review %s: %v", e.Vote, e.ReviewID, e.Err)
}

func (e *VoteSyncError) Unwrap() error { return e.Err }

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the logger used for background failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// OnVoteSyncFailed registers a callback run after a vote failed to sync and
// any rollback was applied.
func OnVoteSyncFailed(fn func(*VoteSyncError)) Option {
	return func(b *Board) { b.onVoteFail = fn }
}

// WithClock replaces time.Now for report acknowledgements.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

type entry struct {
	review domain.Review
	// gen counts votes applied to this review; a failed sync only rolls
	// back if nothing newer was applied.
	gen uint64
	// tail is closed when the most recent vote sync for this review has
	// finished. Each sync waits on its predecessor, so sends leave in call
	// order.
	tail chan struct{}
}

type voteSnapshot struct {
	helpful, notHelpful int
	vote                domain.VoteType
}

// Board is the interactive state of one review listing.
type Board struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	summary domain.RatingDistribution

	votes      VoteSender
	reports    ReportSender
	logger     *slog.Logger
	onVoteFail func(*VoteSyncError)
	now        func() time.Time

	inflight sync.WaitGroup
}

// New builds a board over reviews. The slice is copied; later changes to it
// are not seen by the board.
func New(reviews []domain.Review, summary domain.RatingDistribution, votes VoteSender, reports ReportSender, opts ...Option) *Board {
	b := &Board{
		entries: make(map[string]*entry, len(reviews)),
		order:   make([]string, 0, len(reviews)),
		summary: summary,
		votes:   votes,
		reports: reports,
		logger:  logger.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, r := range reviews {
		if _, dup := b.entries[r.ID]; dup {
			continue
		}
		b.entries[r.ID] = &entry{review: r.Clone()}
		b.order = append(b.order, r.ID)
	}
	return b
}

// Len returns the number of reviews on the board.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Summary returns the distribution supplied with the reviews.
func (b *Board) Summary() domain.RatingDistribution {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary
}

// Review returns a copy of the review with id.
func (b *Board) Review(id string) (domain.Review, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return domain.Review{}, false
	}
	return e.review.Clone(), true
}

// Reviews returns copies of all reviews in their original order.
func (b *Board) Reviews() []domain.Review {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Review, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.entries[id].review.Clone())
	}
	return out
}

// View arranges the board's current reviews and returns one page.
func (b *Board) View(sort domain.SortCriterion, f domain.FilterCriterion, params pagination.Params) listing.Page {
	view := listing.Arrange(b.Reviews(), sort, f)
	return listing.NewPage(listing.Paginate(view, params), b.Summary())
}

// CastVote applies vote to the review locally and syncs it in the
// background. Syncs for one review are sent one at a time in call order.
// Repeating the current vote changes nothing and sends nothing.
// The returned review reflects the local state right after the vote.
func (b *Board) CastVote(ctx context.Context, reviewID string, vote domain.VoteType) (domain.Review, error) {
	if !vote.Valid() {
		return domain.Review{}, apperrors.InvalidInput(fmt.Sprintf("unknown vote type %q", vote))
	}

	b.mu.Lock()
	e, ok := b.entries[reviewID]
	if !ok {
		b.mu.Unlock()
		return domain.Review{}, apperrors.NotFound("review", reviewID)
	}
	prev := voteSnapshot{
		helpful:    e.review.HelpfulCount,
		notHelpful: e.review.NotHelpfulCount,
		vote:       e.review.CurrentUserVote,
	}
	if !e.review.ApplyVote(vote) {
		r := e.review.Clone()
		b.mu.Unlock()
		return r, nil
	}
	e.gen++
	gen := e.gen
	after, done := e.tail, make(chan struct{})
	e.tail = done
	updated := e.review.Clone()
	b.inflight.Add(1)
	b.mu.Unlock()

	go b.syncVote(ctx, reviewID, vote, gen, prev, after, done)
	return updated, nil
}

func (b *Board) syncVote(ctx context.Context, reviewID string, vote domain.VoteType, gen uint64, prev voteSnapshot, after <-chan struct{}, done chan struct{}) {
	defer b.inflight.Done()
	defer close(done)

	if after != nil {
		<-after
	}
	err := b.votes.Vote(ctx, reviewID, vote)
	if err == nil {
		return
	}

	syncErr := &VoteSyncError{ReviewID: reviewID, Vote: vote, Err: err}
	b.mu.Lock()
	if e, ok := b.entries[reviewID]; ok && e.gen == gen {
		e.review.HelpfulCount = prev.helpful
		e.review.NotHelpfulCount = prev.notHelpful
		e.review.CurrentUserVote = prev.vote
		e.gen++
		syncErr.RolledBack = true
	}
	b.mu.Unlock()

	b.logger.WarnContext(ctx, "vote sync failed",
		slog.String("review_id", reviewID),
		slog.String("vote", string(vote)),
		slog.Bool("rolled_back", syncErr.RolledBack),
		slog.String("error", err.Error()),
	)
	if b.onVoteFail != nil {
		b.onVoteFail(syncErr)
	}
}

// ReportReview sends a report in the background and acknowledges receipt
// immediately. Delivery failures are logged and never surface to the caller.
func (b *Board) ReportReview(ctx context.Context, reviewID string, reason domain.ReportReason, description string) (domain.ReportAck, error) {
	if !reason.Valid() {
		return domain.ReportAck{}, apperrors.InvalidInput(fmt.Sprintf("unknown report reason %q", reason))
	}
	if utf8.RuneCountInString(description) > domain.MaxReportDescription {
		return domain.ReportAck{}, apperrors.ValidationFailed("report description too long")
	}

	b.mu.Lock()
	_, ok := b.entries[reviewID]
	if ok {
		b.inflight.Add(1)
	}
	b.mu.Unlock()
	if !ok {
		return domain.ReportAck{}, apperrors.NotFound("review", reviewID)
	}

	go func() {
		defer b.inflight.Done()
		if err := b.reports.Report(ctx, reviewID, reason, description); err != nil {
			b.logger.WarnContext(ctx, "report dispatch failed",
				slog.String("review_id", reviewID),
				slog.String("reason", string(reason)),
				slog.String("error", err.Error()),
			)
		}
	}()

	return domain.ReportAck{ReviewID: reviewID, SubmittedAt: b.now().UTC()}, nil
}

// Wait blocks until every background vote and report has finished.
func (b *Board) Wait() {
	b.inflight.Wait()
}
