package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/healthapp/reviews/pkg/errors"
	"github.com/healthapp/reviews/pkg/logger"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return cfg
}

func TestClient_RetriesIdempotentOn503(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"vote_type":"HELPFUL"}`))
	require.NoError(t, err)
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_ResendsBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL, strings.NewReader(`{"status":"APPROVED"}`))
	require.NoError(t, err)
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"status":"APPROVED"}`, `{"status":"APPROVED"}`}, bodies)
}

func TestClient_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = New(fastConfig()).Do(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBreakerClient_OpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("db down"))
	}))
	defer srv.Close()

	cfg := DefaultBreakerConfig("review-api-test-open")
	cfg.MinRequests = 2
	bc := NewBreakerClient(New(fastConfig()), cfg, logger.Discard())

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
		_, err := bc.Do(context.Background(), req)
		var se *ServerError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Status)
		assert.Equal(t, "db down", se.Body)
	}
	assert.Equal(t, gobreaker.StateOpen, bc.State())

	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	_, err := bc.Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultBreakerConfig("review-api-test-4xx")
	cfg.MinRequests = 1
	bc := NewBreakerClient(New(fastConfig()), cfg, logger.Discard())

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := bc.Do(context.Background(), req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, bc.State())
}

func response(status int, body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.WriteHeader(status)
	_, _ = rec.WriteString(body)
	return rec.Result()
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		code     string
		sentinel error
	}{
		{http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"review r-1 not found"}}`, "NOT_FOUND", apperrors.ErrNotFound},
		{http.StatusConflict, `{"error":{"code":"ALREADY_EXISTS","message":"dup"}}`, "ALREADY_EXISTS", apperrors.ErrAlreadyExists},
		{http.StatusConflict, `{"error":{"code":"CONFLICT","message":"already responded"}}`, "CONFLICT", apperrors.ErrConflict},
		{http.StatusUnprocessableEntity, `{"error":{"code":"VALIDATION_FAILED","message":"review text too short"}}`, "VALIDATION_FAILED", apperrors.ErrValidationFailed},
		{http.StatusUnauthorized, `{"error":{"code":"UNAUTHORIZED","message":"expired"}}`, "UNAUTHORIZED", apperrors.ErrUnauthorized},
		{http.StatusTooManyRequests, `not json`, "RATE_LIMITED", apperrors.ErrRateLimited},
		{http.StatusBadRequest, ``, "INVALID_INPUT", apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ParseResponseError(response(tt.status, tt.body), "review-service")
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.Status)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseResponseError_KeepsMessage(t *testing.T) {
	err := ParseResponseError(response(http.StatusUnprocessableEntity,
		`{"error":{"code":"VALIDATION_FAILED","message":"review text too short"}}`), "review-service")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "review text too short", appErr.Message)
}

func TestFromTransport(t *testing.T) {
	err := FromTransport(&ServerError{Status: 500, Body: "x"}, "review-service")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	err = FromTransport(ErrCircuitOpen, "review-service")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)

	plain := errors.New("dial tcp: refused")
	err = FromTransport(plain, "review-service")
	assert.ErrorIs(t, err, plain)
	assert.NotErrorIs(t, err, apperrors.ErrServiceUnavail)
}
