// Package listing turns a set of reviews into what a reader sees: filtered,
// ordered, paged and summarised.
package listing

import (
	"cmp"
	"slices"
	"time"

	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
)

// Page is one page of an arranged listing plus the doctor's distribution.
type Page struct {
	Reviews    []domain.Review           `json:"reviews"`
	Summary    domain.RatingDistribution `json:"summary"`
	TotalCount int                       `json:"total_count"`
	Page       int                       `json:"page"`
	PerPage    int                       `json:"per_page"`
	TotalPages int                       `json:"total_pages"`
}

// NewPage combines a paginated result with a summary.
func NewPage(res pagination.Result[domain.Review], summary domain.RatingDistribution) Page {
	return Page{
		Reviews:    res.Data,
		Summary:    summary,
		TotalCount: res.TotalCount,
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalPages: res.TotalPages,
	}
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool {
	return p.Page < p.TotalPages
}

// Arrange filters reviews by f and stably sorts the survivors by sort. The
// input slice is never modified; the result is a new, non-nil slice.
func Arrange(reviews []domain.Review, sort domain.SortCriterion, f domain.FilterCriterion) []domain.Review {
	out := make([]domain.Review, 0, len(reviews))
	for _, r := range reviews {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, comparator(sort))
	return out
}

// comparator orders reviews descending by the criterion's key. Unknown
// criteria fall back to RECENT.
func comparator(sort domain.SortCriterion) func(a, b domain.Review) int {
	switch sort {
	case domain.SortHelpful:
		return func(a, b domain.Review) int { return cmp.Compare(b.HelpfulCount, a.HelpfulCount) }
	case domain.SortRating:
		return func(a, b domain.Review) int { return cmp.Compare(b.OverallRating, a.OverallRating) }
	default:
		return func(a, b domain.Review) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

// Paginate cuts one page out of an arranged view.
func Paginate(view []domain.Review, params pagination.Params) pagination.Result[domain.Review] {
	start, end := params.Bounds(len(view))
	return pagination.NewResult(slices.Clone(view[start:end]), len(view), params)
}

// Summarize counts reviews per star. Ratings outside 1..5 are ignored.
func Summarize(reviews []domain.Review) domain.RatingDistribution {
	var (
		d   domain.RatingDistribution
		sum int
	)
	for _, r := range reviews {
		if r.OverallRating < 1 || r.OverallRating > 5 {
			continue
		}
		d.Counts[r.OverallRating-1]++
		d.Total++
		sum += r.OverallRating
	}
	if d.Total > 0 {
		d.Mean = domain.Round2(float64(sum) / float64(d.Total))
	}
	return d
}

// Rate computes a doctor's full aggregate from their approved reviews.
// Sub-rating averages only count reviews that rated that aspect; the
// recommendation rate is the share of four- and five-star reviews.
func Rate(doctorID string, reviews []domain.Review, now time.Time) *domain.DoctorRating {
	rating := domain.EmptyRating(doctorID)
	rating.Distribution = Summarize(reviews)
	rating.LastUpdated = now

	var wait, bedside, explain mean
	channels := make(map[domain.ConsultationChannel]*mean)
	for _, r := range reviews {
		if r.OverallRating < 1 || r.OverallRating > 5 {
			continue
		}
		wait.add(r.SubRatings.WaitTime)
		bedside.add(r.SubRatings.BedsideManner)
		explain.add(r.SubRatings.Explanation)
		if r.Channel.Valid() {
			m, ok := channels[r.Channel]
			if !ok {
				m = &mean{}
				channels[r.Channel] = m
			}
			m.add(r.OverallRating)
		}
	}
	rating.AvgWaitTime = wait.value()
	rating.AvgBedsideManner = bedside.value()
	rating.AvgExplanation = explain.value()
	for ch, m := range channels {
		rating.Channels[ch] = domain.ChannelRating{Average: m.value(), Count: m.n}
	}

	if d := rating.Distribution; d.Total > 0 {
		rating.RecommendationRate = domain.Round2(float64(d.Count(4)+d.Count(5)) * 100 / float64(d.Total))
	}
	return rating
}

// mean accumulates 1..5 scores; zero means "not rated" and is skipped.
type mean struct {
	sum, n int
}

func (m *mean) add(v int) {
	if v >= 1 && v <= 5 {
		m.sum += v
		m.n++
	}
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return domain.Round2(float64(m.sum) / float64(m.n))
}
