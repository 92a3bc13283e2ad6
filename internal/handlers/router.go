package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	examHandler    *ExamHandler
	paperHandler   *PaperHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler: NewGradingHandler(serviceManager.Grading(), logger),
		examHandler:    NewExamHandler(serviceManager, validator, logger),
		paperHandler:   NewPaperHandler(serviceManager.Paper(), logger),
	}
}

// SetupRoutes registers every API route behind authMiddleware, plus the
// unauthenticated health and metrics endpoints.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", metrics.PrometheusHandler())

	v1 := router.Group("/api/v1", authMiddleware)
	{
		// Question catalogue
		questions := v1.Group("/questions")
		{
			questions.POST("", hm.examHandler.CreateQuestion)
			questions.DELETE("/:id", hm.examHandler.DeleteQuestion)
		}

		// Exam routes
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/stats", hm.examHandler.GetStats)
			exams.GET("/:id/leaderboard", hm.examHandler.Leaderboard)
			exams.GET("/:id/results/export", hm.examHandler.ExportResults)

			// Exam question management
			exams.POST("/:id/questions", hm.examHandler.AddQuestion)
			exams.PUT("/:id/questions/reorder", hm.examHandler.ReorderQuestions)
			exams.DELETE("/:id/questions/:question_id", hm.examHandler.RemoveQuestion)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.PUT("/:id/save", hm.attemptHandler.SaveProgress)
			attempts.GET("/:id/resume", hm.attemptHandler.ResumeAttempt)
			attempts.GET("/:id/review", hm.gradingHandler.ReviewAttempt)
			attempts.POST("/:id/recalculate", hm.gradingHandler.Recalculate)
		}

		// Grading routes
		grading := v1.Group("/grading")
		{
			grading.POST("/responses/:id", hm.gradingHandler.GradeResponse)
			grading.PUT("/responses/:id/flag", hm.gradingHandler.FlagResponse)
			grading.GET("/responses/:id/history", hm.gradingHandler.GradeHistory)
		}

		// Question paper routes
		papers := v1.Group("/papers")
		{
			papers.POST("", hm.paperHandler.CreatePaper)
			papers.POST("/:id/start", hm.paperHandler.StartPaper)
		}
		paperAttempts := v1.Group("/paper-attempts")
		{
			paperAttempts.GET("/:id", hm.paperHandler.GetResult)
			paperAttempts.PUT("/:id/answers", hm.paperHandler.SaveAnswer)
			paperAttempts.POST("/:id/submit", hm.paperHandler.FinalSubmit)
			paperAttempts.POST("/:id/evaluate", hm.paperHandler.Evaluate)
		}
	}
}

// HealthCheck reports liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "exam-service",
	})
}
