package guard

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantRetrier keeps retry semantics but waits only a microsecond between attempts.
func instantRetrier(attempts int) *BackoffRetrier {
	return NewBackoffRetrier(RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Microsecond,
	})
}

func TestOwnershipPassesForActiveOwnedBank(t *testing.T) {
	repo := &fakeOwnership{owned: true, active: true}
	sink := &recordingSink{}
	v := NewQuestionBankOwnershipValidator(repo, instantRetrier(3), sink, testLog)

	require.NoError(t, v.Validate(context.Background(), validRequest()))
	assert.Equal(t, 1, repo.ownCalls)
	assert.Equal(t, 1, repo.activeCalls)
	assert.Empty(t, sink.Events())
}

func TestOwnershipDenials(t *testing.T) {
	tests := []struct {
		name       string
		repo       *fakeOwnership
		wantReason string
	}{
		{"not owner", &fakeOwnership{owned: false, active: true}, "NOT_OWNER"},
		{"inactive bank", &fakeOwnership{owned: true, active: false}, "BANK_INACTIVE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			v := NewQuestionBankOwnershipValidator(tt.repo, instantRetrier(3), sink, testLog)

			ve, ok := AsValidationError(v.Validate(context.Background(), validRequest()))
			require.True(t, ok)
			assert.Equal(t, response.ErrUnauthorizedAccess, ve.Code)
			assert.Equal(t, 1, tt.repo.ownCalls, "a definitive answer is never retried")

			events := sink.Events()
			require.Len(t, events, 1)
			assert.Equal(t, model.EventUnauthorizedAccessAttempt, events[0].Type)
			assert.Equal(t, tt.wantReason, events[0].Details["reason"])
			assert.Equal(t, "7", events[0].Details["questionBankId"])
		})
	}
}

func TestOwnershipRetriesTransientFailures(t *testing.T) {
	repo := &fakeOwnership{
		owned:   true,
		active:  true,
		ownErrs: []error{syscall.ECONNRESET, Transient(errors.New("pool busy"))},
	}
	v := NewQuestionBankOwnershipValidator(repo, instantRetrier(3), nil, testLog)

	require.NoError(t, v.Validate(context.Background(), validRequest()))
	assert.Equal(t, 3, repo.ownCalls)
}

func TestOwnershipExhaustedRetriesReportRepositoryError(t *testing.T) {
	repo := &fakeOwnership{
		ownErrs: []error{syscall.ECONNREFUSED, syscall.ECONNREFUSED, syscall.ECONNREFUSED},
	}
	sink := &recordingSink{}
	v := NewQuestionBankOwnershipValidator(repo, instantRetrier(3), sink, testLog)

	ve, ok := AsValidationError(v.Validate(context.Background(), validRequest()))
	require.True(t, ok)
	assert.Equal(t, response.ErrRepository, ve.Code)
	assert.Equal(t, 3, repo.ownCalls)
	assert.Zero(t, repo.activeCalls)
	assert.Empty(t, sink.Events())
}

func TestOwnershipPermanentFailureIsNotRetried(t *testing.T) {
	repo := &fakeOwnership{ownErrs: []error{errors.New("relation question_banks does not exist")}}
	v := NewQuestionBankOwnershipValidator(repo, instantRetrier(3), nil, testLog)

	ve, ok := AsValidationError(v.Validate(context.Background(), validRequest()))
	require.True(t, ok)
	assert.Equal(t, response.ErrOwnershipValidation, ve.Code)
	assert.Equal(t, 1, repo.ownCalls)
}

func TestOwnershipActiveLookupFailure(t *testing.T) {
	repo := &fakeOwnership{owned: true, activeErr: errors.New("boom")}
	v := NewQuestionBankOwnershipValidator(repo, NoRetry{}, nil, testLog)

	ve, ok := AsValidationError(v.Validate(context.Background(), validRequest()))
	require.True(t, ok)
	assert.Equal(t, response.ErrOwnershipValidation, ve.Code)
}
