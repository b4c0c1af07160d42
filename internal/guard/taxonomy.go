package guard

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/response"
)

const TaxonomyGuardName = "taxonomy_reference"

// TaxonomyRepository checks taxonomy ids against a user's set for a bank.
type TaxonomyRepository interface {
	ReferencesExist(ctx context.Context, userID, bankID int64, ids []string) (bool, error)
	FindInvalid(ctx context.Context, userID, bankID int64, ids []string) ([]string, error)
}

// TaxonomyReferenceValidator confirms every category, tag, quiz and difficulty
// level the command cites exists for the user's question bank.
type TaxonomyReferenceValidator struct {
	repo    TaxonomyRepository
	retrier Retrier
	log     zerolog.Logger
}

func NewTaxonomyReferenceValidator(repo TaxonomyRepository, retrier Retrier, log zerolog.Logger) *TaxonomyReferenceValidator {
	if retrier == nil {
		retrier = NoRetry{}
	}
	return &TaxonomyReferenceValidator{
		repo:    repo,
		retrier: retrier,
		log:     log.With().Str("component", "taxonomy_guard").Logger(),
	}
}

func (v *TaxonomyReferenceValidator) Name() string { return TaxonomyGuardName }

func (v *TaxonomyReferenceValidator) Validate(ctx context.Context, req *Request) error {
	if err := requireCommand(req); err != nil {
		return err
	}
	cmd := req.Command

	ids := cmd.TaxonomyIDs()
	if len(ids) == 0 {
		return fail(v.Name(), response.ErrMissingRequiredField,
			"at least one taxonomy reference (category, tag, quiz or difficulty level) is required")
	}

	exist, err := retryValue(ctx, v.retrier, func(ctx context.Context) (bool, error) {
		return v.repo.ReferencesExist(ctx, cmd.UserID, cmd.QuestionBankID, ids)
	})
	if err != nil {
		v.log.Error().Err(err).Int64("question_bank_id", cmd.QuestionBankID).Msg("Taxonomy existence check failed")
		return fail(v.Name(), infraCode(err, response.ErrTaxonomyValidation),
			"taxonomy lookup failed: %v", err)
	}
	if exist {
		return nil
	}

	invalid, err := retryValue(ctx, v.retrier, func(ctx context.Context) ([]string, error) {
		return v.repo.FindInvalid(ctx, cmd.UserID, cmd.QuestionBankID, ids)
	})
	if err != nil || len(invalid) == 0 {
		if err != nil {
			v.log.Warn().Err(err).Msg("Could not resolve which taxonomy references are invalid")
		}
		return fail(v.Name(), response.ErrTaxonomyReferenceNotFound,
			"one or more taxonomy references do not exist in this question bank")
	}

	return fail(v.Name(), response.ErrTaxonomyReferenceNotFound,
		"taxonomy references not found: %s", strings.Join(invalid, ", "))
}
