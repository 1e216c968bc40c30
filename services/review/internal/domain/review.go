package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/healthapp/reviews/pkg/errors"
)

// AnonymousDisplayName replaces the author's name on anonymous reviews.
const AnonymousDisplayName = "Anonymous Patient"

// ConsultationChannel is the modality of the reviewed visit.
type ConsultationChannel string

const (
	ChannelVideo    ConsultationChannel = "VIDEO"
	ChannelInPerson ConsultationChannel = "IN_PERSON"
	ChannelAudio    ConsultationChannel = "AUDIO"
)

// Channels lists every consultation channel in display order.
var Channels = []ConsultationChannel{ChannelVideo, ChannelInPerson, ChannelAudio}

// ParseChannel accepts channel names case-insensitively, with '-' for '_'.
// The empty string parses to the zero channel ("any").
func ParseChannel(s string) (ConsultationChannel, error) {
	if s == "" {
		return "", nil
	}
	c := ConsultationChannel(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	if !c.Valid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown consultation channel %q", s))
	}
	return c, nil
}

// Valid reports whether c is a known channel.
func (c ConsultationChannel) Valid() bool {
	switch c {
	case ChannelVideo, ChannelInPerson, ChannelAudio:
		return true
	}
	return false
}

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
	StatusFlagged  ReviewStatus = "FLAGGED"
	StatusHidden   ReviewStatus = "HIDDEN"
)

// Valid reports whether s is a known status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFlagged, StatusHidden:
		return true
	}
	return false
}

// Public reports whether reviews in this status are shown in listings.
func (s ReviewStatus) Public() bool {
	return s == StatusApproved
}

// SubRatings are the optional per-aspect scores. Zero means "not rated".
type SubRatings struct {
	WaitTime      int `json:"wait_time,omitempty"`
	BedsideManner int `json:"bedside_manner,omitempty"`
	Explanation   int `json:"explanation,omitempty"`
}

// DoctorResponse is the reviewed doctor's public reply.
type DoctorResponse struct {
	Text        string    `json:"text"`
	RespondedAt time.Time `json:"responded_at"`
}

// Review is a patient's structured feedback on a consultation.
type Review struct {
	ID                string              `json:"id"`
	DoctorID          string              `json:"doctor_id"`
	PatientID         string              `json:"patient_id,omitempty"`
	ConsultationID    string              `json:"consultation_id"`
	AuthorDisplayName string              `json:"author_display_name,omitempty"`
	IsAnonymous       bool                `json:"is_anonymous"`
	OverallRating     int                 `json:"overall_rating"`
	SubRatings        SubRatings          `json:"sub_ratings"`
	Title             string              `json:"title,omitempty"`
	Body              string              `json:"review_text"`
	Channel           ConsultationChannel `json:"consultation_channel"`
	IsVerifiedPatient bool                `json:"is_verified_patient"`
	PositiveTags      TagSet              `json:"positive_tags"`
	ImprovementTags   TagSet              `json:"improvement_tags"`
	DoctorResponse    *DoctorResponse     `json:"doctor_response,omitempty"`
	HelpfulCount      int                 `json:"helpful_count"`
	NotHelpfulCount   int                 `json:"not_helpful_count"`
	ReportCount       int                 `json:"report_count,omitempty"`
	Status            ReviewStatus        `json:"status"`
	ModerationNotes   string              `json:"moderation_notes,omitempty"`
	CurrentUserVote   VoteType            `json:"current_user_vote,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// DisplayName is the name shown next to the review.
func (r Review) DisplayName() string {
	if r.IsAnonymous || r.AuthorDisplayName == "" {
		return AnonymousDisplayName
	}
	return r.AuthorDisplayName
}

// Clone returns a deep copy of r.
func (r Review) Clone() Review {
	c := r
	c.PositiveTags = r.PositiveTags.Clone()
	c.ImprovementTags = r.ImprovementTags.Clone()
	if r.DoctorResponse != nil {
		resp := *r.DoctorResponse
		c.DoctorResponse = &resp
	}
	return c
}

// Redact returns the copy of r that viewerID may see. Anonymous reviews lose
// their author identity for everyone but the author; moderation notes are
// stripped unless moderator is set.
func (r Review) Redact(viewerID string, moderator bool) Review {
	c := r.Clone()
	if c.IsAnonymous && viewerID != c.PatientID && !moderator {
		c.PatientID = ""
		c.AuthorDisplayName = ""
	}
	if !moderator {
		c.ModerationNotes = ""
		c.ReportCount = 0
	}
	return c
}

// ApplyVote records vote as the current user's vote, moving one count from
// the previous vote if there was one. Counts never drop below zero. It
// reports false, leaving r untouched, when vote repeats the current vote.
func (r *Review) ApplyVote(vote VoteType) bool {
	if r.CurrentUserVote == vote {
		return false
	}
	switch r.CurrentUserVote {
	case VoteHelpful:
		r.HelpfulCount = max(r.HelpfulCount-1, 0)
	case VoteNotHelpful:
		r.NotHelpfulCount = max(r.NotHelpfulCount-1, 0)
	}
	switch vote {
	case VoteHelpful:
		r.HelpfulCount++
	case VoteNotHelpful:
		r.NotHelpfulCount++
	}
	r.CurrentUserVote = vote
	return true
}
