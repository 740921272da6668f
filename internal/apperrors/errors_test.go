package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnsupportedRuleError(t *testing.T) {
	err := UnsupportedRuleError("deal", "send_sms")

	assert.True(t, IsUnsupportedRuleError(err))
	assert.Contains(t, err.Error(), `entity="deal"`)
	assert.Contains(t, err.Error(), `action="send_sms"`)
}

func TestRetryableAndFatalWrappers(t *testing.T) {
	base := errors.New("connection reset")

	retryable := NewRetryable(base, "insert task %s", "t-1")
	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsFatal(retryable))
	assert.ErrorIs(t, retryable, base)
	assert.Contains(t, retryable.Error(), "insert task t-1")

	fatal := NewFatal(ErrValidation, "decode rule")
	assert.True(t, IsFatal(fatal))
	assert.True(t, IsValidationError(fatal))
}

func TestSentinelCheckers(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", fmt.Errorf("lead: %w", ErrNotFound), IsNotFoundError},
		{"database", fmt.Errorf("query: %w", ErrDatabase), IsDatabaseError},
		{"duplicate", fmt.Errorf("insert: %w", ErrDuplicate), IsDuplicateError},
		{"bad request", fmt.Errorf("insert: %w", ErrBadRequest), IsBadRequestError},
		{"timeout", fmt.Errorf("run: %w", ErrTimeout), IsTimeoutError},
		{"nats", fmt.Errorf("publish: %w", ErrNATS), IsNATSError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			assert.False(t, tc.check(errors.New("unrelated")))
		})
	}
}
