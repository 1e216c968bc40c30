package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/healthapp/reviews/pkg/errors"
)

// VoteType is a helpful/not-helpful vote on a review.
type VoteType string

const (
	VoteHelpful    VoteType = "HELPFUL"
	VoteNotHelpful VoteType = "NOT_HELPFUL"
)

// ParseVoteType accepts "helpful", "not_helpful" and "not-helpful" in any case.
func ParseVoteType(s string) (VoteType, error) {
	v := VoteType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !v.Valid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown vote type %q", s))
	}
	return v, nil
}

// Valid reports whether v is a known vote.
func (v VoteType) Valid() bool {
	return v == VoteHelpful || v == VoteNotHelpful
}

// VoteAction is what a server-side vote did to the voter's previous vote.
type VoteAction string

const (
	VoteAdded    VoteAction = "ADDED"
	VoteSwitched VoteAction = "SWITCHED"
	VoteRemoved  VoteAction = "REMOVED"
)

// VoteResult is the outcome of recording a vote.
type VoteResult struct {
	ReviewID        string     `json:"review_id"`
	Action          VoteAction `json:"action"`
	Vote            VoteType   `json:"vote,omitempty"`
	HelpfulCount    int        `json:"helpful_count"`
	NotHelpfulCount int        `json:"not_helpful_count"`
}

// ReportReason classifies a report.
type ReportReason string

const (
	ReasonSpam             ReportReason = "SPAM"
	ReasonFake             ReportReason = "FAKE"
	ReasonInappropriate    ReportReason = "INAPPROPRIATE"
	ReasonHarassment       ReportReason = "HARASSMENT"
	ReasonPrivacyViolation ReportReason = "PRIVACY_VIOLATION"
	ReasonOther            ReportReason = "OTHER"
)

// ReportReasons lists every reason in display order.
var ReportReasons = []ReportReason{
	ReasonSpam, ReasonFake, ReasonInappropriate, ReasonHarassment, ReasonPrivacyViolation, ReasonOther,
}

// MaxReportDescription is the longest accepted report description, in characters.
const MaxReportDescription = 500

// ParseReportReason accepts reason names case-insensitively, with '-' for '_'.
func ParseReportReason(s string) (ReportReason, error) {
	r := ReportReason(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !r.Valid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown report reason %q", s))
	}
	return r, nil
}

// Valid reports whether r is a known reason.
func (r ReportReason) Valid() bool {
	for _, known := range ReportReasons {
		if r == known {
			return true
		}
	}
	return false
}

// ReportStatus tracks moderator handling of a report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "PENDING"
	ReportReviewed  ReportStatus = "REVIEWED"
	ReportDismissed ReportStatus = "DISMISSED"
)

// Report is one user's complaint about a review.
type Report struct {
	ID          string       `json:"id"`
	ReviewID    string       `json:"review_id"`
	ReporterID  string       `json:"reporter_id"`
	Reason      ReportReason `json:"reason"`
	Description string       `json:"description,omitempty"`
	Status      ReportStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ReportAck is what a reporter gets back: receipt, not outcome.
type ReportAck struct {
	ReviewID    string    `json:"review_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ModerationStats summarises the moderation queues.
type ModerationStats struct {
	Pending        int `json:"pending_reviews"`
	Flagged        int `json:"flagged_reviews"`
	PendingReports int `json:"pending_reports"`
}
