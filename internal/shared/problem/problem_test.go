package problem

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidArgument.Status())
	assert.Equal(t, http.StatusUnauthorized, KindUnauthorized.Status())
	assert.Equal(t, http.StatusForbidden, KindForbidden.Status())
	assert.Equal(t, http.StatusNotFound, KindNotFound.Status())
	assert.Equal(t, http.StatusConflict, KindConflict.Status())
	assert.Equal(t, http.StatusUnprocessableEntity, KindUnprocessable.Status())
	assert.Equal(t, http.StatusTooManyRequests, KindRateLimited.Status())
	assert.Equal(t, http.StatusServiceUnavailable, KindTransient.Status())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.Status())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "gone", "/v1/things/1")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("outer: %w", New(KindConflict, "busy", ""))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindTransient, "store unavailable", "/v1/payments")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Contains(t, err.Error(), "Service Unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDetailsForDomainError(t *testing.T) {
	d := DetailsFor(Newf(KindUnprocessable, "/v1/refunds", "refund exceeds %s", "50.00"), "corr-1")

	assert.Equal(t, "Unprocessable Entity", d.Title)
	assert.Equal(t, http.StatusUnprocessableEntity, d.Status)
	assert.Equal(t, "refund exceeds 50.00", d.Detail)
	assert.Equal(t, "/v1/refunds", d.Instance)
	assert.Equal(t, "corr-1", d.CorrelationID)
}

func TestDetailsForUnknownErrorDoesNotLeak(t *testing.T) {
	d := DetailsFor(errors.New("pq: relation does not exist"), "corr-2")

	assert.Equal(t, http.StatusInternalServerError, d.Status)
	assert.Equal(t, "unexpected error", d.Detail)
	assert.NotContains(t, d.Detail, "pq:")
	assert.Equal(t, "corr-2", d.CorrelationID)
}
