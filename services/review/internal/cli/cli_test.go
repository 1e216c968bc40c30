package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/httputil"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/session"
)

const (
	doctorID  = "11111111-1111-1111-1111-111111111111"
	patientID = "22222222-2222-2222-2222-222222222222"
)

func signedToken(t *testing.T, userID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// fakeService is an in-memory stand-in for the review service API.
type fakeService struct {
	mu         sync.Mutex
	reviews    []domain.Review
	failVotes  bool
	votes      []string
	reports    []string
	submitted  int
	authHeader string
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/doctors/{doctorId}/reviews", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeader = r.Header.Get("Authorization")
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{
			Data: f.reviews,
			Meta: map[string]any{
				"summary":     domain.RatingDistribution{Counts: [5]int{0, 0, 1, 0, 1}, Total: 2, Mean: 4},
				"total_count": len(f.reviews),
				"total_pages": 1,
			},
		})
	})
	mux.HandleFunc("GET /api/v1/doctors/{doctorId}/reviews/rating", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, http.StatusOK, domain.DoctorRating{
			DoctorID:           r.PathValue("doctorId"),
			Distribution:       domain.RatingDistribution{Counts: [5]int{0, 0, 1, 0, 1}, Total: 2, Mean: 4},
			AvgWaitTime:        3.5,
			RecommendationRate: 50,
			Channels: map[domain.ConsultationChannel]domain.ChannelRating{
				domain.ChannelVideo: {Average: 4, Count: 2},
			},
		})
	})
	mux.HandleFunc("POST /api/v1/reviews/{reviewId}/vote", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failVotes {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "NOT_FOUND", Message: "review not found"},
			})
			return
		}
		var req struct {
			VoteType domain.VoteType `json:"vote_type"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.votes = append(f.votes, r.PathValue("reviewId"))
		httputil.WriteData(w, http.StatusOK, domain.VoteResult{ReviewID: r.PathValue("reviewId"), Action: domain.VoteAdded, Vote: req.VoteType})
	})
	mux.HandleFunc("POST /api/v1/reviews/{reviewId}/report", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.reports = append(f.reports, r.PathValue("reviewId"))
		httputil.WriteData(w, http.StatusAccepted, domain.ReportAck{ReviewID: r.PathValue("reviewId")})
	})
	mux.HandleFunc("POST /api/v1/reviews", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitted++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		httputil.WriteData(w, http.StatusCreated, domain.Review{
			ID:       "99999999-9999-9999-9999-999999999999",
			DoctorID: doctorID,
			Status:   domain.StatusPending,
		})
	})
	return mux
}

func seededReviews() []domain.Review {
	return []domain.Review{
		{
			ID: "aaaaaaaa-0000-0000-0000-000000000001", DoctorID: doctorID, OverallRating: 3,
			AuthorDisplayName: "Sam K.", Body: "Average visit, long wait in the lobby.",
			Channel: domain.ChannelVideo, HelpfulCount: 1,
			CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "aaaaaaaa-0000-0000-0000-000000000002", DoctorID: doctorID, OverallRating: 5,
			IsAnonymous: true, Title: "Excellent care", Body: "Listened carefully and explained everything.",
			Channel: domain.ChannelVideo, HelpfulCount: 7,
			CreatedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

type harness struct {
	svc   *fakeService
	store *session.MemoryStore
	url   string
	cfg   string
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	svc := &fakeService{reviews: seededReviews()}
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)
	return &harness{
		svc:   svc,
		store: session.NewMemoryStore(session.Credentials{AuthToken: token}),
		url:   srv.URL,
		cfg:   filepath.Join(t.TempDir(), "config.yaml"),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(Options{Out: &out, ErrOut: &errOut, Store: h.store})
	root.SetArgs(append([]string{"--config", h.cfg, "--api-url", h.url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t, "")
	tok := signedToken(t, patientID, "patient")

	out, _, err := h.run(t, "login", "--token", tok)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as "+patientID)

	creds, _ := h.store.Load(context.Background())
	assert.Equal(t, tok, creds.AuthToken)

	out, _, err = h.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, patientID)

	_, _, err = h.run(t, "logout")
	require.NoError(t, err)
	creds, _ = h.store.Load(context.Background())
	assert.Empty(t, creds.AuthToken)
}

func TestLogin_RejectsGarbage(t *testing.T) {
	h := newHarness(t, "")
	_, _, err := h.run(t, "login", "--token", "not-a-jwt")
	assert.Error(t, err)
}

func TestReviewsList_SortsAndFilters(t *testing.T) {
	h := newHarness(t, "")

	out, _, err := h.run(t, "reviews", "list", doctorID, "--sort", "helpful")
	require.NoError(t, err)
	assert.Contains(t, out, "4.0 average from 2 reviews")
	assert.Contains(t, out, domain.AnonymousDisplayName)
	first := strings.Index(out, "000000000002")
	second := strings.Index(out, "000000000001")
	require.True(t, first >= 0 && second >= 0)
	assert.Less(t, first, second, "most helpful review first")
	assert.Empty(t, h.svc.authHeader, "anonymous listing sends no token")

	out, _, err = h.run(t, "reviews", "list", doctorID, "--rating", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "000000000001")
	assert.NotContains(t, out, "000000000002")

	out, _, err = h.run(t, "reviews", "list", doctorID, "--rating", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "No reviews match")
}

func TestReviewsList_BadSort(t *testing.T) {
	h := newHarness(t, "")
	_, _, err := h.run(t, "reviews", "list", doctorID, "--sort", "oldest")
	assert.Error(t, err)
}

func TestReviewsVote(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))

	out, _, err := h.run(t, "reviews", "vote", doctorID, "aaaaaaaa-0000-0000-0000-000000000002", "helpful")

	require.NoError(t, err)
	assert.Contains(t, out, "8 helpful")
	assert.Equal(t, []string{"aaaaaaaa-0000-0000-0000-000000000002"}, h.svc.votes)
	assert.Contains(t, h.svc.authHeader, "Bearer ")
}

func TestReviewsVote_SyncFailure(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))
	h.svc.failVotes = true

	_, _, err := h.run(t, "reviews", "vote", doctorID, "aaaaaaaa-0000-0000-0000-000000000002", "not-helpful")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vote not saved")
}

func TestReviewsVote_RequiresSignIn(t *testing.T) {
	h := newHarness(t, "")
	_, _, err := h.run(t, "reviews", "vote", doctorID, "aaaaaaaa-0000-0000-0000-000000000002", "helpful")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestReviewsReport(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))

	out, _, err := h.run(t, "reviews", "report", doctorID, "aaaaaaaa-0000-0000-0000-000000000001",
		"--reason", "spam", "--description", "advert")

	require.NoError(t, err)
	assert.Contains(t, out, "report on review aaaaaaaa")
	assert.Equal(t, []string{"aaaaaaaa-0000-0000-0000-000000000001"}, h.svc.reports)
}

func TestReviewsReport_UnknownReview(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))
	_, _, err := h.run(t, "reviews", "report", doctorID, "bbbbbbbb-0000-0000-0000-000000000000")
	assert.Error(t, err)
	assert.Empty(t, h.svc.reports)
}

func TestReviewsSubmit(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))

	out, _, err := h.run(t, "reviews", "submit",
		"--doctor", doctorID,
		"--consultation", "c-1",
		"--rating", "5",
		"--body", "Listened carefully and explained everything.",
		"--positive", "Great listener",
		"--positive", "Great listener",
	)

	require.NoError(t, err)
	assert.Contains(t, out, "Review 99999999 submitted")
	assert.Contains(t, out, "moderator")
	assert.Equal(t, 1, h.svc.submitted)
}

func TestReviewsSubmit_ValidationStaysLocal(t *testing.T) {
	h := newHarness(t, signedToken(t, patientID, "patient"))

	_, _, err := h.run(t, "reviews", "submit",
		"--doctor", doctorID,
		"--consultation", "c-1",
		"--body", "Listened carefully and explained everything.",
	)

	require.Error(t, err)
	assert.Equal(t, 0, h.svc.submitted)
}

func TestRating(t *testing.T) {
	h := newHarness(t, "")

	out, _, err := h.run(t, "rating", doctorID)

	require.NoError(t, err)
	assert.Contains(t, out, "Wait time")
	assert.Contains(t, out, "3.5")
	assert.Contains(t, out, "VIDEO")
	assert.Contains(t, out, "50% of patients would recommend")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "review with id r1 not found", ErrorMessage(fmt.Errorf("load: %w", apperrors.NotFound("review", "r1"))))
	assert.Equal(t, io.ErrUnexpectedEOF.Error(), ErrorMessage(io.ErrUnexpectedEOF))
}
