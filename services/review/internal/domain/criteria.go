package domain

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/healthapp/reviews/pkg/errors"
)

// SortCriterion orders a review listing.
type SortCriterion string

const (
	SortRecent  SortCriterion = "RECENT"
	SortHelpful SortCriterion = "HELPFUL"
	SortRating  SortCriterion = "RATING"
)

// ParseSort accepts criterion names case-insensitively. The empty string
// means RECENT.
func ParseSort(s string) (SortCriterion, error) {
	if s == "" {
		return SortRecent, nil
	}
	c := SortCriterion(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case SortRecent, SortHelpful, SortRating:
		return c, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown sort %q", s))
}

// FilterCriterion restricts a listing to one overall star rating. The zero
// value means no filter.
type FilterCriterion int

// NoFilter lets every review through.
const NoFilter FilterCriterion = 0

// ParseFilter parses "" (no filter) or a star value 1..5.
func ParseFilter(s string) (FilterCriterion, error) {
	if s == "" {
		return NoFilter, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 5 {
		return NoFilter, apperrors.InvalidInput(fmt.Sprintf("rating filter must be between 1 and 5, got %q", s))
	}
	return FilterCriterion(n), nil
}

// Active reports whether f filters anything.
func (f FilterCriterion) Active() bool {
	return f != NoFilter
}

// Matches reports whether r passes the filter.
func (f FilterCriterion) Matches(r Review) bool {
	return !f.Active() || r.OverallRating == int(f)
}

// Toggle selects stars, or clears the filter when stars is already selected.
func (f FilterCriterion) Toggle(stars int) FilterCriterion {
	if int(f) == stars {
		return NoFilter
	}
	return FilterCriterion(stars)
}

func (f FilterCriterion) String() string {
	if !f.Active() {
		return "all"
	}
	return strconv.Itoa(int(f)) + "★"
}
