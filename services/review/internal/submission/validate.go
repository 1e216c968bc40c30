// Package submission validates new reviews and drives the submit form.
package submission

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// Text limits, in characters.
const (
	MinBodyLength  = 20
	MaxBodyLength  = 2000
	MaxTitleLength = 200
)

// Submission is a patient's new review as sent to the service.
type Submission struct {
	DoctorID        string                     `json:"doctor_id"`
	ConsultationID  string                     `json:"consultation_id"`
	Channel         domain.ConsultationChannel `json:"consultation_channel,omitempty"`
	OverallRating   int                        `json:"overall_rating"`
	SubRatings      domain.SubRatings          `json:"sub_ratings"`
	Title           string                     `json:"title,omitempty"`
	Body            string                     `json:"review_text"`
	IsAnonymous     bool                       `json:"is_anonymous"`
	PositiveTags    domain.TagSet              `json:"positive_tags"`
	ImprovementTags domain.TagSet              `json:"improvement_tags"`
}

// Validate checks s and returns its normalized form: title and body trimmed,
// tag sets deduplicated. Rules run in a fixed order and the first violation
// is returned as a ValidationFailed error.
func Validate(s Submission) (Submission, error) {
	n := s
	n.Title = strings.TrimSpace(s.Title)
	n.Body = strings.TrimSpace(s.Body)
	n.PositiveTags = domain.NewTagSet(s.PositiveTags...)
	n.ImprovementTags = domain.NewTagSet(s.ImprovementTags...)

	if n.OverallRating < 1 || n.OverallRating > 5 {
		return s, apperrors.ValidationFailed("overall rating required")
	}
	bodyLen := utf8.RuneCountInString(n.Body)
	if bodyLen < MinBodyLength {
		return s, apperrors.ValidationFailed("review text too short")
	}
	if bodyLen > MaxBodyLength {
		return s, apperrors.ValidationFailed("review text too long")
	}
	if utf8.RuneCountInString(n.Title) > MaxTitleLength {
		return s, apperrors.ValidationFailed("title too long")
	}
	for _, sub := range []struct {
		name  string
		value int
	}{
		{"wait time", n.SubRatings.WaitTime},
		{"bedside manner", n.SubRatings.BedsideManner},
		{"explanation", n.SubRatings.Explanation},
	} {
		if sub.value != 0 && (sub.value < 1 || sub.value > 5) {
			return s, apperrors.ValidationFailed(sub.name + " rating must be between 1 and 5")
		}
	}
	for _, tag := range n.PositiveTags {
		if !domain.IsPositiveTag(tag) {
			return s, apperrors.ValidationFailed(fmt.Sprintf("unknown tag: %s", tag))
		}
	}
	for _, tag := range n.ImprovementTags {
		if !domain.IsImprovementTag(tag) {
			return s, apperrors.ValidationFailed(fmt.Sprintf("unknown tag: %s", tag))
		}
	}
	return n, nil
}
