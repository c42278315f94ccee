package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-session/internal/models"
	"github.com/SAP-F-2025/exam-session/internal/services"
	"github.com/SAP-F-2025/exam-session/internal/session"
	"github.com/SAP-F-2025/exam-session/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	exportService  services.ExportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
	}
}

// StartSession loads an attempt into a live session, or returns the session already
// open for it
// @Summary Start session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body services.StartSessionRequest true "Attempt and mode"
// @Success 201 {object} SuccessResponse{data=models.Snapshot}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting session", "attempt_id", req.AttemptID, "mode", req.Mode)

	snap, err := h.sessionService.Start(h.requestContext(c), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Session started", snap, "attempt_id", snap.AttemptID)
}

// GetSession returns the current snapshot
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=models.Snapshot}
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	snap, err := h.sessionService.Get(h.requestContext(c), userID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session retrieved", snap)
}

// Answer records an option for a question
// @Summary Answer question
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body services.AnswerRequest true "Question and option"
// @Success 200 {object} SuccessResponse{data=models.AnswerRecord}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) Answer(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	rec, err := h.sessionService.Answer(h.requestContext(c), userID, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", rec)
}

// Mark sets or toggles the review flag of a question
// @Summary Mark question
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body services.MarkRequest true "Question and flag; omit marked to toggle"
// @Success 200 {object} SuccessResponse{data=models.AnswerRecord}
// @Router /sessions/{id}/mark [post]
func (h *SessionHandler) Mark(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	var req services.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	rec, err := h.sessionService.Mark(h.requestContext(c), userID, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Mark updated", rec)
}

// Navigate moves the cursor
// @Summary Navigate
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body services.NavigateRequest true "Index or direction"
// @Success 200 {object} SuccessResponse{data=models.Snapshot}
// @Router /sessions/{id}/navigate [post]
func (h *SessionHandler) Navigate(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	snap, err := h.sessionService.Navigate(h.requestContext(c), userID, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Navigated", snap, "current_index", snap.CurrentIndex)
}

// GetSummary returns the confirmation summary shown before submitting
// @Summary Submit summary
// @Tags sessions
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=models.SubmitSummary}
// @Router /sessions/{id}/summary [get]
func (h *SessionHandler) GetSummary(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	summary, err := h.sessionService.Summary(h.requestContext(c), userID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Submit summary", summary)
}

// Submit confirms the bulk submission of an exam session
// @Summary Submit session
// @Tags sessions
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=models.SessionResult}
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting session", "attempt_id", attemptID)

	result, err := h.sessionService.Submit(h.requestContext(c), userID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session submitted", result, "attempt_id", result.AttemptID)
}

// SubmitQuestion submits one practice answer
// @Summary Submit practice question
// @Tags sessions
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} SuccessResponse{data=models.QuestionSubmitResult}
// @Router /sessions/{id}/questions/{question_id}/submit [post]
func (h *SessionHandler) SubmitQuestion(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}

	res, err := h.sessionService.SubmitQuestion(h.requestContext(c), userID, attemptID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Question submitted", res, "question_id", questionID)
}

// Checkpoint forces a progress checkpoint
// @Summary Checkpoint
// @Tags sessions
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=models.Progress}
// @Router /sessions/{id}/checkpoint [post]
func (h *SessionHandler) Checkpoint(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	progress, err := h.sessionService.Checkpoint(h.requestContext(c), userID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Checkpoint saved", progress)
}

// ExportAnswerSheet downloads the answer sheet as xlsx
// @Summary Export answer sheet
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Attempt ID"
// @Success 200 {file} file
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) ExportAnswerSheet(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	data, err := h.exportService.ExportAnswerSheet(h.requestContext(c), userID, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=answer-sheet-%d.xlsx", attemptID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// CloseSession releases the session. Unfinished sessions keep their cached progress.
// @Summary Close session
// @Tags sessions
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	attemptID, userID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	if err := h.sessionService.Close(h.requestContext(c), userID, attemptID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session closed", nil, "attempt_id", attemptID)
}

// ListResumable lists the caller's unfinished attempts
// @Summary Resumable attempts
// @Tags sessions
// @Produce json
// @Param mode query string false "exam or practice"
// @Success 200 {object} SuccessResponse{data=[]models.AttemptSummary}
// @Router /sessions/resumable [get]
func (h *SessionHandler) ListResumable(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	mode := models.Mode(c.Query("mode"))
	if mode != "" && mode != models.ModeExam && mode != models.ModePractice {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid mode", nil, "mode must be exam or practice")
		return
	}

	summaries, err := h.sessionService.Resumable(h.requestContext(c), userID, mode)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Resumable attempts", summaries, "count", len(summaries))
}

// Helper methods

func (h *SessionHandler) requireUser(c *gin.Context) (string, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
	}
	return userID, ok
}

func (h *SessionHandler) sessionParams(c *gin.Context) (uint, string, bool) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return 0, "", false
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return 0, "", false
	}
	return attemptID, userID, true
}

func (h *SessionHandler) requestContext(c *gin.Context) context.Context {
	return services.WithRequestID(c.Request.Context(), utils.GetRequestID(c))
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.RespondWithError(c, http.StatusUnprocessableEntity, businessRuleError.Message, err, map[string]interface{}{
			"rule":    businessRuleError.Rule,
			"context": businessRuleError.Context,
		})
		return
	}

	// A snapshot that fails validation is the attempt backend's fault, not the caller's.
	if errors.Is(err, session.ErrInvalidSnapshot) {
		h.RespondWithError(c, http.StatusBadGateway, "Attempt data is invalid", err, err.Error())
		return
	}

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	var submitErr *session.SubmitError
	if errors.As(err, &submitErr) && submitErr.Rejected {
		h.RespondWithError(c, http.StatusConflict, "Submission rejected", err)
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Session not found", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Attempt not found", err)
	case errors.Is(err, services.ErrUnauthorized):
		h.RespondWithError(c, http.StatusUnauthorized, "Unauthorized access", err)
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusForbidden, "Forbidden - insufficient permissions", err)
	case errors.Is(err, services.ErrResumableUnsupported):
		h.RespondWithError(c, http.StatusNotImplemented, "Resumable attempts are not available", err)
	case errors.Is(err, services.ErrSessionLimitReached):
		h.RespondWithError(c, http.StatusTooManyRequests, "Too many open sessions", err)
	case services.IsRejectedInput(err):
		h.RespondWithError(c, http.StatusUnprocessableEntity, err.Error(), err)
	case errors.Is(err, session.ErrTimeExpired):
		h.RespondWithError(c, http.StatusConflict, "Session time has expired", err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	case services.IsUpstream(err):
		h.RespondWithError(c, http.StatusBadGateway, "Attempt service unavailable, try again", err, err.Error())
	case errors.Is(err, services.ErrValidationFailed), errors.Is(err, services.ErrBadRequest):
		h.RespondWithError(c, http.StatusBadRequest, "Bad request", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
