// Package client is the typed HTTP client for the review service API. It
// feeds the board and the submission form of reviewctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/httpclient"
	"github.com/healthapp/reviews/pkg/logger"
	"github.com/healthapp/reviews/pkg/middleware"
	"github.com/healthapp/reviews/pkg/pagination"
	"github.com/healthapp/reviews/services/review/internal/domain"
	"github.com/healthapp/reviews/services/review/internal/listing"
	"github.com/healthapp/reviews/services/review/internal/submission"
)

const serviceName = "review-service"

// HTTPDoer executes HTTP requests. httpclient.Client and
// httpclient.BreakerClient both satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token for each call. An empty token sends
// the request anonymously.
type TokenSource interface {
	Token() string
}

// Client calls the review service.
type Client struct {
	http        HTTPDoer
	baseURL     string
	tokens      TokenSource
	displayName string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDisplayName sets the author name sent with submitted reviews.
func WithDisplayName(name string) Option {
	return func(c *Client) { c.displayName = name }
}

// New creates a client for the service at baseURL.
func New(doer HTTPDoer, baseURL string, tokens TokenSource, l *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		logger:  l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListOptions narrows a doctor's review listing.
type ListOptions struct {
	Sort    domain.SortCriterion
	Rating  domain.FilterCriterion
	Channel domain.ConsultationChannel
	Page    pagination.Params
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Sort != "" {
		q.Set("sort", string(o.Sort))
	}
	if o.Rating.Active() {
		q.Set("rating", strconv.Itoa(int(o.Rating)))
	}
	if o.Channel != "" {
		q.Set("channel", string(o.Channel))
	}
	if o.Page.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page.Page))
	}
	if o.Page.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(o.Page.PerPage))
	}
	return q
}

type listMeta struct {
	Summary    domain.RatingDistribution `json:"summary"`
	TotalCount int                       `json:"total_count"`
	Page       int                       `json:"page"`
	PerPage    int                       `json:"per_page"`
	TotalPages int                       `json:"total_pages"`
}

type envelope[T any, M any] struct {
	Data T `json:"data"`
	Meta M `json:"meta"`
}

// ListDoctorReviews fetches one page of a doctor's approved reviews with the
// rating summary.
func (c *Client) ListDoctorReviews(ctx context.Context, doctorID string, opts ListOptions) (*listing.Page, error) {
	var env envelope[[]domain.Review, listMeta]
	path := "/api/v1/doctors/" + url.PathEscape(doctorID) + "/reviews"
	if err := c.do(ctx, http.MethodGet, path, opts.values(), nil, &env); err != nil {
		return nil, err
	}
	reviews := env.Data
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return &listing.Page{
		Reviews:    reviews,
		Summary:    env.Meta.Summary,
		TotalCount: env.Meta.TotalCount,
		Page:       env.Meta.Page,
		PerPage:    env.Meta.PerPage,
		TotalPages: env.Meta.TotalPages,
	}, nil
}

// ListAll walks every page of a doctor's reviews in service order. The
// summary comes from the first page.
func (c *Client) ListAll(ctx context.Context, doctorID string) ([]domain.Review, domain.RatingDistribution, error) {
	var (
		all     []domain.Review
		summary domain.RatingDistribution
	)
	for page := 1; ; page++ {
		p, err := c.ListDoctorReviews(ctx, doctorID, ListOptions{Page: pagination.New(page, pagination.MaxPerPage)})
		if err != nil {
			return nil, domain.RatingDistribution{}, err
		}
		if page == 1 {
			summary = p.Summary
		}
		all = append(all, p.Reviews...)
		if page >= p.TotalPages || len(p.Reviews) == 0 {
			break
		}
	}
	if all == nil {
		all = []domain.Review{}
	}
	return all, summary, nil
}

// DoctorRating fetches the doctor's rating aggregate.
func (c *Client) DoctorRating(ctx context.Context, doctorID string) (*domain.DoctorRating, error) {
	var env envelope[domain.DoctorRating, struct{}]
	path := "/api/v1/doctors/" + url.PathEscape(doctorID) + "/reviews/rating"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// CastVote sends a vote and returns the service's toggle result.
func (c *Client) CastVote(ctx context.Context, reviewID string, vote domain.VoteType) (*domain.VoteResult, error) {
	var env envelope[domain.VoteResult, struct{}]
	path := "/api/v1/reviews/" + url.PathEscape(reviewID) + "/vote"
	body := map[string]string{"vote_type": string(vote)}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Vote implements board.VoteSender. A vote the service removed, or stored
// as something other than vote, is reported as a conflict so the board does
// not keep a vote the service no longer holds.
func (c *Client) Vote(ctx context.Context, reviewID string, vote domain.VoteType) error {
	res, err := c.CastVote(ctx, reviewID, vote)
	if err != nil {
		return err
	}
	if res.Action == domain.VoteRemoved || res.Vote != vote {
		c.logger.WarnContext(ctx, "vote diverged from service",
			slog.String("review_id", reviewID),
			slog.String("sent", string(vote)),
			slog.String("action", string(res.Action)),
			slog.String("stored", string(res.Vote)),
		)
		return apperrors.Conflict(fmt.Sprintf("service %s the vote on review %s, now %q", strings.ToLower(string(res.Action)), reviewID, res.Vote))
	}
	c.logger.DebugContext(ctx, "vote recorded",
		slog.String("review_id", reviewID),
		slog.String("action", string(res.Action)),
	)
	return nil
}

// Report implements board.ReportSender.
func (c *Client) Report(ctx context.Context, reviewID string, reason domain.ReportReason, description string) error {
	path := "/api/v1/reviews/" + url.PathEscape(reviewID) + "/report"
	body := map[string]string{"reason": string(reason), "description": description}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

type submitRequest struct {
	submission.Submission
	AuthorDisplayName string `json:"author_display_name,omitempty"`
}

// Submit implements submission.Submitter.
func (c *Client) Submit(ctx context.Context, s submission.Submission) (domain.Review, error) {
	var env envelope[domain.Review, struct{}]
	if err := c.do(ctx, http.MethodPost, "/api/v1/reviews", nil, submitRequest{Submission: s, AuthorDisplayName: c.displayName}, &env); err != nil {
		return domain.Review{}, err
	}
	return env.Data, nil
}

// MyReviews lists the signed-in patient's own reviews.
func (c *Client) MyReviews(ctx context.Context, params pagination.Params) (*pagination.Result[domain.Review], error) {
	var env envelope[pagination.Result[domain.Review], struct{}]
	q := ListOptions{Page: params}.values()
	if err := c.do(ctx, http.MethodGet, "/api/v1/reviews/mine", q, nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// do sends one request and decodes the JSON envelope into out. Non-2xx
// answers become AppErrors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationHeader, id)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.WarnContext(ctx, "review service call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return httpclient.FromTransport(err, serviceName)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
