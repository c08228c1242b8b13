package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/config"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/services"
	"github.com/Lyndoncatan/onlin-examination/internal/utils"
)

type HandlerManager struct {
	profileHandler  *ProfileHandler
	subjectHandler  *SubjectHandler
	examHandler     *ExamHandler
	questionHandler *QuestionHandler
	attemptHandler  *AttemptHandler
	authMiddleware  *AuthMiddleware

	serviceManager services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	resolver *authz.RoleResolver,
) *HandlerManager {
	return &HandlerManager{
		profileHandler:  NewProfileHandler(serviceManager.Profile(), logger),
		subjectHandler:  NewSubjectHandler(serviceManager.Subject(), logger),
		examHandler:     NewExamHandler(serviceManager.Exam(), serviceManager.ImportExport(), logger),
		questionHandler: NewQuestionHandler(serviceManager.Question(), logger),
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), logger),
		authMiddleware:  NewAuthMiddleware(casdoorConfig, resolver),
		serviceManager:  serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	admin := hm.authMiddleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.Authenticate())
	{
		// Profile routes
		profiles := v1.Group("/profiles")
		{
			profiles.POST("/ensure", hm.profileHandler.EnsureProfile)
			profiles.GET("/me", hm.profileHandler.GetMe)
			profiles.GET("", admin, hm.profileHandler.ListProfiles)
			profiles.GET("/:id", hm.profileHandler.GetProfile)
			profiles.PUT("/:id", hm.profileHandler.UpdateProfile)
			profiles.PUT("/:id/role", admin, hm.profileHandler.UpdateRole)
		}

		// Subject routes
		subjects := v1.Group("/subjects")
		{
			subjects.POST("", admin, hm.subjectHandler.CreateSubject)
			subjects.GET("", hm.subjectHandler.ListSubjects)
			subjects.GET("/:id", hm.subjectHandler.GetSubject)
			subjects.PUT("/:id", admin, hm.subjectHandler.UpdateSubject)
			subjects.DELETE("/:id", admin, hm.subjectHandler.DeleteSubject)
		}

		// Exam routes, question management nested under the exam
		exams := v1.Group("/exams")
		{
			exams.POST("", admin, hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/questions", hm.examHandler.GetExamWithQuestions)
			exams.PUT("/:id", admin, hm.examHandler.UpdateExam)
			exams.DELETE("/:id", admin, hm.examHandler.DeleteExam)

			exams.POST("/:id/questions", admin, hm.questionHandler.CreateQuestion)
			exams.GET("/:id/questions/manage", admin, hm.questionHandler.ListQuestions)
			exams.GET("/:id/questions/:question_id", admin, hm.questionHandler.GetQuestion)
			exams.PUT("/:id/questions/:question_id", admin, hm.questionHandler.UpdateQuestion)
			exams.DELETE("/:id/questions/:question_id", admin, hm.questionHandler.DeleteQuestion)

			exams.POST("/:id/questions/import", admin, hm.examHandler.ImportQuestions)
			exams.GET("/:id/questions/export", admin, hm.examHandler.ExportQuestions)
			exams.GET("/:id/results/export", admin, hm.examHandler.ExportResults)

			exams.GET("/:id/attempts", admin, hm.attemptHandler.ListExamAttempts)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/mine", hm.attemptHandler.ListMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
