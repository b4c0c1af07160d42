package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/guard"
	"github.com/stemsi/exstem-cms/internal/middleware"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stemsi/exstem-cms/internal/service"
	"github.com/stemsi/exstem-cms/internal/validator"
)

// QuestionHandler handles question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// UpsertQuestion godoc
// PUT /api/v1/authors/:author_id/question-banks/:qbank_id/questions
// Creates or replaces the question identified by source_question_id after the
// request passes every pipeline guard.
func (h *QuestionHandler) UpsertQuestion(c *gin.Context) {
	authorID, err := parseID(c.Param("author_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	bankID, err := parseID(c.Param("qbank_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpsertQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	gr := &guard.Request{
		Command:    req.ToCommand(authorID, bankID),
		Session:    middleware.GetSession(c),
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		PathUserID: authorID,
	}
	if claims := middleware.GetClaims(c); claims != nil {
		gr.Identity = guard.Identity{Present: true, UserID: claims.UserID}
		gr.SessionID = claims.SessionID()
	}

	question, created, err := h.questionService.Upsert(c.Request.Context(), gr)
	if err != nil {
		if ve, ok := guard.AsValidationError(err); ok {
			response.FailWithDetail(c, ve.Code, ve.Message)
			return
		}
		if errors.Is(err, guard.ErrNilCommand) {
			h.log.Error().Err(err).Msg("Pipeline received an empty command")
		} else {
			h.log.Error().Err(err).
				Int64("question_bank_id", bankID).
				Str("source_question_id", req.SourceQuestionID).
				Msg("Question upsert failed")
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{
		"question": question,
		"created":  created,
	})
}

// parseID parses a positive integer path parameter.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
