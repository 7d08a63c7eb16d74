package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	date := types.NewDate(2008, time.September, 15)

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
		userError  bool
	}{
		{name: "insufficient funds", err: NewInsufficientFundsError("200000", "100000"), wantCode: CodeInsufficientFunds, wantStatus: http.StatusBadRequest, userError: true},
		{name: "already ended", err: NewAlreadyEndedError(), wantCode: CodeAlreadyEnded, wantStatus: http.StatusConflict, userError: true},
		{name: "date not found", err: NewDateNotFoundError(date), wantCode: CodeDateNotFound, wantStatus: http.StatusNotFound, userError: true},
		{name: "wrapped categorized error", err: fmt.Errorf("buy failed: %w", NewNotHeldError("000001")), wantCode: CodeNotHeld, wantStatus: http.StatusBadRequest, userError: true},
		{name: "service error", err: &types.ServiceError{Code: CodeOutOfRange, Message: "too early"}, wantCode: CodeOutOfRange, wantStatus: http.StatusBadRequest, userError: true},
		{name: "storage error", err: NewStorageError("read fund_nav", stderrors.New("disk")), wantCode: CodeStorageError, wantStatus: http.StatusInternalServerError},
		{name: "plain error", err: stderrors.New("boom"), wantCode: CodeInternalError, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catErr := Categorize(tt.err)
			require.NotNil(t, catErr)
			assert.Equal(t, tt.wantCode, catErr.Code)
			assert.Equal(t, tt.wantStatus, catErr.StatusCode)
			assert.Equal(t, !tt.userError, IsSystemError(tt.err))
			assert.True(t, Is(tt.err, tt.wantCode))
		})
	}
}

func TestCategorizeNil(t *testing.T) {
	assert.Nil(t, Categorize(nil))
	assert.Equal(t, "", CodeOf(nil))
	assert.False(t, Is(nil, CodeInternalError))
	assert.False(t, IsSystemError(nil))
}

func TestCategorizedErrorUnwrap(t *testing.T) {
	cause := stderrors.New("unexpected end of JSON input")
	err := NewInvalidFormatError("cannot decode", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), CodeInvalidFormat)
	assert.Contains(t, err.Error(), "unexpected end of JSON input")

	svcErr := err.ToServiceError()
	assert.Equal(t, CodeInvalidFormat, svcErr.Code)
	assert.Equal(t, err.Message, svcErr.Message)
}

func TestRateLimitAndLoadErrors(t *testing.T) {
	rl := NewRateLimitError(5, 10)
	assert.Equal(t, http.StatusTooManyRequests, rl.StatusCode)
	assert.Equal(t, CodeRateLimited, rl.Code)
	assert.Equal(t, 10, rl.Details["burst"])
	assert.False(t, IsSystemError(rl))

	cause := stderrors.New("empty date")
	load := NewLoadError("fund 000001", cause)
	assert.Equal(t, CategoryLoad, load.Category)
	assert.ErrorIs(t, load, cause)
	assert.True(t, IsSystemError(load))
}
