// Package service holds the review service's business logic.
package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/healthapp/reviews/services/review/internal/domain"
)

// EventPublisher publishes review domain events. Publishing failures never
// fail the operation that triggered them.
type EventPublisher interface {
	PublishReviewSubmitted(ctx context.Context, review *domain.Review) error
	PublishReviewVoted(ctx context.Context, userID string, result *domain.VoteResult) error
	PublishReviewReported(ctx context.Context, report *domain.Report, flagged bool) error
	PublishReviewResponded(ctx context.Context, review *domain.Review) error
	PublishReviewModerated(ctx context.Context, review *domain.Review, moderatorID string) error
	PublishRatingUpdated(ctx context.Context, rating *domain.DoctorRating) error
}

// SystemModeratorID marks status changes made by the service itself, such
// as auto-flagging after repeated reports.
const SystemModeratorID = "system"

// MaxResponseLength is the longest accepted doctor response, in characters.
const MaxResponseLength = 1000

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// sanitizeText strips HTML tags and surrounding whitespace.
func sanitizeText(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// AutoModerator decides the initial status of a new review.
type AutoModerator struct {
	Enabled   bool
	MinChars  int
	Profanity *regexp.Regexp
}

// Decide returns APPROVED for text that passes every check and PENDING with
// a note otherwise.
func (m AutoModerator) Decide(text string) (domain.ReviewStatus, string) {
	if !m.Enabled {
		return domain.StatusPending, "auto-approve disabled"
	}
	if utf8.RuneCountInString(text) < m.MinChars {
		return domain.StatusPending, "text below auto-approve length"
	}
	if m.Profanity != nil && m.Profanity.MatchString(text) {
		return domain.StatusPending, "profanity filter match"
	}
	return domain.StatusApproved, ""
}
