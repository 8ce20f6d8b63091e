package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"groundedchat/internal/app"
	"groundedchat/internal/transport/http/response"
)

type QuestionnaireHandler struct {
	questionnaireService *app.QuestionnaireService
}

type SubmitAnswersRequest struct {
	Answers []app.AnswerInput `json:"answers" binding:"required,min=1,dive"`
}

func NewQuestionnaireHandler(questionnaireService *app.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaireService: questionnaireService}
}

func (h *QuestionnaireHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	view, err := h.questionnaireService.Questionnaire(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get questionnaire failed")
		return
	}

	response.OK(c, view)
}

func (h *QuestionnaireHandler) Submit(c *gin.Context) {
	h.saveAnswers(c, h.questionnaireService.SubmitAnswers)
}

func (h *QuestionnaireHandler) Update(c *gin.Context) {
	h.saveAnswers(c, h.questionnaireService.UpdateAnswers)
}

func (h *QuestionnaireHandler) SuggestedActions(c *gin.Context) {
	actions, err := h.questionnaireService.SuggestedActions(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list suggested actions failed")
		return
	}

	response.OK(c, actions)
}

func (h *QuestionnaireHandler) saveAnswers(c *gin.Context, save func(context.Context, uint, []app.AnswerInput) error) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := save(c.Request.Context(), userID, req.Answers); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUnknownQuestion):
			response.Error(c, http.StatusBadRequest, response.CodeUnknownQuestion, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save answers failed")
		}
		return
	}

	view, err := h.questionnaireService.Questionnaire(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get questionnaire failed")
		return
	}
	response.OK(c, view)
}
