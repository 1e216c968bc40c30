package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/healthapp/reviews/services/review/internal/domain"
)

var (
	// ErrSubmissionInFlight is returned by Submit while an earlier call on
	// the same form has not finished.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrSubmissionFailed wraps every failure of the submit call itself. The
	// draft is kept so the user can retry.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrAlreadySubmitted is returned by Submit after a successful submit.
	ErrAlreadySubmitted = errors.New("review already submitted")
)

// Submitter sends a validated submission to the review service.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (domain.Review, error)
}

// Form is the draft state of one review being written. At most one Submit
// runs at a time.
type Form struct {
	mu        sync.Mutex
	draft     Submission
	submitted *domain.Review

	inFlight  atomic.Bool
	submitter Submitter
}

// NewForm starts an empty draft for a consultation with doctorID.
func NewForm(doctorID, consultationID string, submitter Submitter) *Form {
	return &Form{
		draft:     Submission{DoctorID: doctorID, ConsultationID: consultationID},
		submitter: submitter,
	}
}

func (f *Form) edit(fn func(d *Submission)) {
	f.mu.Lock()
	fn(&f.draft)
	f.mu.Unlock()
}

// SetOverallRating sets the overall score; 0 clears it.
func (f *Form) SetOverallRating(stars int) {
	f.edit(func(d *Submission) { d.OverallRating = stars })
}

// SetSubRatings sets the optional per-aspect scores.
func (f *Form) SetSubRatings(r domain.SubRatings) {
	f.edit(func(d *Submission) { d.SubRatings = r })
}

// SetTitle sets the optional title.
func (f *Form) SetTitle(title string) {
	f.edit(func(d *Submission) { d.Title = title })
}

// SetBody sets the review text.
func (f *Form) SetBody(body string) {
	f.edit(func(d *Submission) { d.Body = body })
}

// SetAnonymous controls whether the author's name is shown.
func (f *Form) SetAnonymous(anonymous bool) {
	f.edit(func(d *Submission) { d.IsAnonymous = anonymous })
}

// SetChannel records how the consultation took place.
func (f *Form) SetChannel(c domain.ConsultationChannel) {
	f.edit(func(d *Submission) { d.Channel = c })
}

// TogglePositiveTag selects tag, or deselects it if already selected.
func (f *Form) TogglePositiveTag(tag string) (selected bool) {
	f.edit(func(d *Submission) { selected = d.PositiveTags.Toggle(tag) })
	return selected
}

// ToggleImprovementTag selects tag, or deselects it if already selected.
func (f *Form) ToggleImprovementTag(tag string) (selected bool) {
	f.edit(func(d *Submission) { selected = d.ImprovementTags.Toggle(tag) })
	return selected
}

// Draft returns a copy of the current draft.
func (f *Form) Draft() Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.draft
	d.PositiveTags = f.draft.PositiveTags.Clone()
	d.ImprovementTags = f.draft.ImprovementTags.Clone()
	return d
}

// InFlight reports whether a Submit is running.
func (f *Form) InFlight() bool {
	return f.inFlight.Load()
}

// Submitted returns the created review once Submit has succeeded.
func (f *Form) Submitted() (domain.Review, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitted == nil {
		return domain.Review{}, false
	}
	return f.submitted.Clone(), true
}

// Submit validates the draft and sends it once. Validation failures are
// returned as is and never reach the service. A failed send returns an error
// wrapping ErrSubmissionFailed and leaves the draft untouched; nothing is
// retried automatically.
func (f *Form) Submit(ctx context.Context) (domain.Review, error) {
	if !f.inFlight.CompareAndSwap(false, true) {
		return domain.Review{}, ErrSubmissionInFlight
	}
	defer f.inFlight.Store(false)

	if _, done := f.Submitted(); done {
		return domain.Review{}, ErrAlreadySubmitted
	}

	normalized, err := Validate(f.Draft())
	if err != nil {
		return domain.Review{}, err
	}

	created, err := f.submitter.Submit(ctx, normalized)
	if err != nil {
		return domain.Review{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	f.mu.Lock()
	f.submitted = &created
	f.mu.Unlock()
	return created.Clone(), nil
}
