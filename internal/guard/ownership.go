package guard

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
)

const OwnershipGuardName = "question_bank_ownership"

// OwnershipRepository answers question-bank ownership lookups.
type OwnershipRepository interface {
	ValidateOwnership(ctx context.Context, userID, bankID int64) (bool, error)
	IsActive(ctx context.Context, userID, bankID int64) (bool, error)
}

// QuestionBankOwnershipValidator confirms the command's user owns an active
// question bank at the command's bank id.
type QuestionBankOwnershipValidator struct {
	repo    OwnershipRepository
	retrier Retrier
	audit   AuditSink
	log     zerolog.Logger
}

func NewQuestionBankOwnershipValidator(repo OwnershipRepository, retrier Retrier, audit AuditSink, log zerolog.Logger) *QuestionBankOwnershipValidator {
	if retrier == nil {
		retrier = NoRetry{}
	}
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &QuestionBankOwnershipValidator{
		repo:    repo,
		retrier: retrier,
		audit:   audit,
		log:     log.With().Str("component", "ownership_guard").Logger(),
	}
}

func (v *QuestionBankOwnershipValidator) Name() string { return OwnershipGuardName }

func (v *QuestionBankOwnershipValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	userID, bankID := req.Command.UserID, req.Command.QuestionBankID

	owned, err := retryValue(ctx, v.retrier, func(ctx context.Context) (bool, error) {
		return v.repo.ValidateOwnership(ctx, userID, bankID)
	})
	if err != nil {
		return v.infraFailure("ownership lookup", bankID, err)
	}
	if !owned {
		v.emitDenied(req, "NOT_OWNER")
		return fail(v.Name(), response.ErrUnauthorizedAccess,
			"user %d does not own question bank %d", userID, bankID)
	}

	active, err := retryValue(ctx, v.retrier, func(ctx context.Context) (bool, error) {
		return v.repo.IsActive(ctx, userID, bankID)
	})
	if err != nil {
		return v.infraFailure("active-status lookup", bankID, err)
	}
	if !active {
		v.emitDenied(req, "BANK_INACTIVE")
		return fail(v.Name(), response.ErrUnauthorizedAccess,
			"question bank %d is not active", bankID)
	}

	return nil
}

func (v *QuestionBankOwnershipValidator) emitDenied(req *Request, reason string) {
	v.audit.EmitAsync(model.NewSecurityEvent(
		model.EventUnauthorizedAccessAttempt, model.SeverityWarning, req.Command.UserID, req.SessionID,
		map[string]string{
			"reason":         reason,
			"questionBankId": strconv.FormatInt(req.Command.QuestionBankID, 10),
		},
	))
}

func (v *QuestionBankOwnershipValidator) infraFailure(what string, bankID int64, err error) error {
	v.log.Error().Err(err).Int64("question_bank_id", bankID).Msgf("Question bank %s failed", what)
	return fail(v.Name(), infraCode(err, response.ErrOwnershipValidation),
		"question bank %s failed: %v", what, err)
}

// infraCode separates unavailable storage (retryable, exhausted) from other
// unexpected infrastructure failures.
func infraCode(err error, fallback response.ErrCode) response.ErrCode {
	if errors.Is(err, ErrRetriesExhausted) || IsTransient(err) {
		return response.ErrRepository
	}
	return fallback
}
