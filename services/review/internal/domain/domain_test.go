package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
)

func TestApplyVote_FreshHelpful(t *testing.T) {
	r := Review{HelpfulCount: 10, NotHelpfulCount: 2}

	changed := r.ApplyVote(VoteHelpful)

	assert.True(t, changed)
	assert.Equal(t, 11, r.HelpfulCount)
	assert.Equal(t, 2, r.NotHelpfulCount)
	assert.Equal(t, VoteHelpful, r.CurrentUserVote)
}

func TestApplyVote_Switch(t *testing.T) {
	r := Review{HelpfulCount: 10, NotHelpfulCount: 3, CurrentUserVote: VoteNotHelpful}

	changed := r.ApplyVote(VoteHelpful)

	assert.True(t, changed)
	assert.Equal(t, 11, r.HelpfulCount)
	assert.Equal(t, 2, r.NotHelpfulCount)
	assert.Equal(t, VoteHelpful, r.CurrentUserVote)
}

func TestApplyVote_RepeatIsNoop(t *testing.T) {
	r := Review{HelpfulCount: 4, CurrentUserVote: VoteHelpful}

	assert.False(t, r.ApplyVote(VoteHelpful))
	assert.Equal(t, 4, r.HelpfulCount)
	assert.Equal(t, VoteHelpful, r.CurrentUserVote)
}

func TestApplyVote_FloorsAtZero(t *testing.T) {
	r := Review{HelpfulCount: 0, NotHelpfulCount: 0, CurrentUserVote: VoteHelpful}

	r.ApplyVote(VoteNotHelpful)

	assert.Equal(t, 0, r.HelpfulCount)
	assert.Equal(t, 1, r.NotHelpfulCount)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dana K.", Review{AuthorDisplayName: "Dana K."}.DisplayName())
	assert.Equal(t, AnonymousDisplayName, Review{AuthorDisplayName: "Dana K.", IsAnonymous: true}.DisplayName())
	assert.Equal(t, AnonymousDisplayName, Review{}.DisplayName())
}

func TestRedact(t *testing.T) {
	r := Review{
		PatientID:         "patient-1",
		AuthorDisplayName: "Dana K.",
		IsAnonymous:       true,
		ModerationNotes:   "checked",
		ReportCount:       2,
	}

	public := r.Redact("someone-else", false)
	assert.Empty(t, public.PatientID)
	assert.Empty(t, public.AuthorDisplayName)
	assert.Empty(t, public.ModerationNotes)
	assert.Zero(t, public.ReportCount)

	own := r.Redact("patient-1", false)
	assert.Equal(t, "patient-1", own.PatientID)

	mod := r.Redact("mod-1", true)
	assert.Equal(t, "patient-1", mod.PatientID)
	assert.Equal(t, "checked", mod.ModerationNotes)

	assert.Equal(t, "patient-1", r.PatientID, "original must be untouched")
}

func TestClone_IsDeep(t *testing.T) {
	r := Review{
		PositiveTags:   NewTagSet("Caring"),
		DoctorResponse: &DoctorResponse{Text: "thanks"},
	}
	c := r.Clone()
	c.PositiveTags.Toggle("Punctual")
	c.DoctorResponse.Text = "edited"

	assert.Equal(t, TagSet{"Caring"}, r.PositiveTags)
	assert.Equal(t, "thanks", r.DoctorResponse.Text)
}

func TestTagSet_ToggleAndAdd(t *testing.T) {
	var s TagSet
	assert.True(t, s.Toggle("Caring"))
	assert.True(t, s.Toggle("Punctual"))
	assert.False(t, s.Toggle("Caring"))
	assert.Equal(t, TagSet{"Punctual"}, s)

	s.Add("Punctual")
	s.Add("Professional")
	assert.Equal(t, TagSet{"Punctual", "Professional"}, s)
}

func TestTagSet_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Tags TagSet `json:"tags"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":[]}`, string(b))

	var s TagSet
	require.NoError(t, json.Unmarshal([]byte(`["Caring","Caring","Punctual"]`), &s))
	assert.Equal(t, TagSet{"Caring", "Punctual"}, s)
}

func TestVocabularies_Disjoint(t *testing.T) {
	for _, tag := range PositiveVocabulary {
		assert.True(t, IsPositiveTag(tag))
		assert.False(t, IsImprovementTag(tag), tag)
	}
	for _, tag := range ImprovementVocabulary {
		assert.True(t, IsImprovementTag(tag))
	}
	assert.False(t, IsPositiveTag("Untagged Nonsense"))
	assert.False(t, IsImprovementTag("Untagged Nonsense"))
}

func TestParseSort(t *testing.T) {
	tests := map[string]SortCriterion{
		"":        SortRecent,
		"recent":  SortRecent,
		"Helpful": SortHelpful,
		"RATING":  SortRating,
	}
	for in, want := range tests {
		got, err := ParseSort(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSort("oldest")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.False(t, f.Active())

	f, err = ParseFilter("4")
	require.NoError(t, err)
	assert.Equal(t, FilterCriterion(4), f)
	assert.True(t, f.Matches(Review{OverallRating: 4}))
	assert.False(t, f.Matches(Review{OverallRating: 5}))

	for _, bad := range []string{"0", "6", "x"} {
		_, err := ParseFilter(bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, bad)
	}
}

func TestFilterToggle(t *testing.T) {
	f := NoFilter.Toggle(3)
	assert.Equal(t, FilterCriterion(3), f)
	assert.Equal(t, FilterCriterion(5), f.Toggle(5))
	assert.Equal(t, NoFilter, f.Toggle(3))
}

func TestParseVoteAndReason(t *testing.T) {
	v, err := ParseVoteType("not-helpful")
	require.NoError(t, err)
	assert.Equal(t, VoteNotHelpful, v)

	_, err = ParseVoteType("love")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	reason, err := ParseReportReason("privacy_violation")
	require.NoError(t, err)
	assert.Equal(t, ReasonPrivacyViolation, reason)

	_, err = ParseReportReason("boring")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel("in-person")
	require.NoError(t, err)
	assert.Equal(t, ChannelInPerson, c)

	c, err = ParseChannel("")
	require.NoError(t, err)
	assert.Empty(t, c)

	_, err = ParseChannel("carrier-pigeon")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDistribution(t *testing.T) {
	d := RatingDistribution{Counts: [5]int{1, 0, 1, 0, 2}, Total: 4}

	assert.Equal(t, 2, d.Count(5))
	assert.Equal(t, 0, d.Count(0))
	assert.Equal(t, 0, d.Count(6))
	assert.InDelta(t, 50.0, d.Percent(5), 0.001)
	assert.Zero(t, RatingDistribution{}.Percent(3))
}
