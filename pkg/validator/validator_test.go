package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ratingRequest struct {
	DoctorID string `json:"doctor_id" validate:"required,uuid"`
	Overall  int    `json:"overall_rating" validate:"stars"`
	WaitTime int    `json:"wait_time_rating" validate:"omitempty,stars"`
	Reason   string `json:"reason" validate:"omitempty,oneof=SPAM FAKE OTHER"`
	Note     string `json:"note" validate:"max=10"`
}

func validRequest() ratingRequest {
	return ratingRequest{
		DoctorID: "8f14e45f-ceea-4f6a-9fef-3d4d3e4c2a11",
		Overall:  4,
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validRequest()))
}

func TestValidate_StarsOutOfRange(t *testing.T) {
	req := validRequest()
	req.Overall = 6
	fields := fieldsOf(t, Validate(req))
	assert.Equal(t, "must be between 1 and 5", fields["overall_rating"])
}

func TestValidate_OptionalStarsZeroAllowed(t *testing.T) {
	req := validRequest()
	req.WaitTime = 0
	assert.NoError(t, Validate(req))

	req.WaitTime = 9
	fields := fieldsOf(t, Validate(req))
	assert.Contains(t, fields, "wait_time_rating")
}

func TestValidate_RequiredAndUUID(t *testing.T) {
	req := validRequest()
	req.DoctorID = ""
	assert.Equal(t, "is required", fieldsOf(t, Validate(req))["doctor_id"])

	req.DoctorID = "not-a-uuid"
	assert.Equal(t, "must be a valid UUID", fieldsOf(t, Validate(req))["doctor_id"])
}

func TestValidate_OneOfAndMax(t *testing.T) {
	req := validRequest()
	req.Reason = "BORING"
	req.Note = "this note is too long"
	fields := fieldsOf(t, Validate(req))
	assert.Equal(t, "must be one of: SPAM FAKE OTHER", fields["reason"])
	assert.Equal(t, "must be at most 10 characters", fields["note"])
}

func TestValidationError_ErrorString(t *testing.T) {
	req := validRequest()
	req.Overall = 0
	err := Validate(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'overall_rating'")
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"doctor_id":"8f14e45f-ceea-4f6a-9fef-3d4d3e4c2a11","overall_rating":5}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dst ratingRequest
	require.NoError(t, DecodeAndValidate(r, &dst))
	assert.Equal(t, 5, dst.Overall)
}

func TestDecodeAndValidate_BadJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"overall_rating":`))
	var dst ratingRequest
	err := DecodeAndValidate(r, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stars":5}`))
	var dst ratingRequest
	require.Error(t, DecodeAndValidate(r, &dst))
}
