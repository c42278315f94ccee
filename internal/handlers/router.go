package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-session/internal/services"
	"github.com/SAP-F-2025/exam-session/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), serviceManager.Export(), logger),
	}
}

// SetupRoutes sets up all API routes. The middleware guards /api/v1 only.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-session",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1", middleware...)
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/resumable", hm.sessionHandler.ListResumable)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)

			// Answering
			sessions.POST("/:id/answer", hm.sessionHandler.Answer)
			sessions.POST("/:id/mark", hm.sessionHandler.Mark)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)

			// Submission
			sessions.GET("/:id/summary", hm.sessionHandler.GetSummary)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)
			sessions.POST("/:id/questions/:question_id/submit", hm.sessionHandler.SubmitQuestion)

			sessions.POST("/:id/checkpoint", hm.sessionHandler.Checkpoint)
			sessions.GET("/:id/export", hm.sessionHandler.ExportAnswerSheet)
		}
	}
}
