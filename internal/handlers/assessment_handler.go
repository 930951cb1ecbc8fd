package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/assessment-engine/internal/services"
)

type AssessmentHandler struct {
	BaseHandler
	services *services.Manager
}

func NewAssessmentHandler(manager *services.Manager, logger *slog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		BaseHandler: NewBaseHandler(logger),
		services:    manager,
	}
}

// submitAnswerBody is the wire shape for answer submissions; user and
// assessment come from the request context and path.
type submitAnswerBody struct {
	QuestionID       uint  `json:"question_id" binding:"required"`
	SelectedOptionID *uint `json:"selected_option_id"`
}

// StartAssessment opens or re-enters the caller's session
// @Summary Start or resume an assessment
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /assessments/{id}/start [post]
func (h *AssessmentHandler) StartAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == 0 {
		return
	}

	h.LogRequest(c, "Starting assessment", "user_id", userID, "assessment_id", assessmentID)

	view, err := h.services.Session.Start(c.Request.Context(), &services.StartRequest{
		UserID:       userID,
		AssessmentID: assessmentID,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records or overwrites one answer on the working sheet
// @Summary Submit an answer
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param answer body submitAnswerBody true "Answer"
// @Success 200 {object} services.AnswerAck
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/answers [put]
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == 0 {
		return
	}

	var body submitAnswerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	ack, err := h.services.Answer.Submit(c.Request.Context(), &services.SubmitAnswerRequest{
		UserID:           userID,
		AssessmentID:     assessmentID,
		QuestionID:       body.QuestionID,
		SelectedOptionID: body.SelectedOptionID,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// FinalizeAssessment settles the caller's attempt and returns the result
// @Summary Finalize an assessment attempt
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.Result
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/finalize [post]
func (h *AssessmentHandler) FinalizeAssessment(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == 0 {
		return
	}

	h.LogRequest(c, "Finalizing assessment", "user_id", userID, "assessment_id", assessmentID)

	result, err := h.services.Scoring.Finalize(c.Request.Context(), userID, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttemptHistory lists the caller's attempts, newest first
// @Summary Attempt history
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} SuccessResponse{data=[]services.AttemptView}
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/attempts [get]
func (h *AssessmentHandler) GetAttemptHistory(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == 0 {
		return
	}

	attempts, err := h.services.History.GetAttemptHistory(c.Request.Context(), userID, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt history retrieved",
		Data:    attempts,
	})
}

// ExportAttemptHistory downloads the caller's attempts as a workbook
// @Summary Export attempt history as xlsx
// @Tags assessments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/attempts/export [get]
func (h *AssessmentHandler) ExportAttemptHistory(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	userID := h.currentUserID(c)
	if userID == 0 {
		return
	}

	workbook, err := h.services.History.ExportAttemptHistory(c.Request.Context(), userID, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attempts_%d_%d.xlsx", userID, assessmentID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
