package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/assessment-engine/internal/services"
	"github.com/learnhub/assessment-engine/internal/utils"
)

type HandlerManager struct {
	assessmentHandler *AssessmentHandler
}

func NewHandlerManager(manager *services.Manager, logger *slog.Logger) *HandlerManager {
	return &HandlerManager{
		assessmentHandler: NewAssessmentHandler(manager, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, logger *slog.Logger, registry *prometheus.Registry) {
	router.Use(utils.RequestLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.Use(identityMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			assessments.POST("/:id/start", hm.assessmentHandler.StartAssessment)
			assessments.PUT("/:id/answers", hm.assessmentHandler.SubmitAnswer)
			assessments.POST("/:id/finalize", hm.assessmentHandler.FinalizeAssessment)
			assessments.GET("/:id/attempts", hm.assessmentHandler.GetAttemptHistory)
			assessments.GET("/:id/attempts/export", hm.assessmentHandler.ExportAttemptHistory)
		}
	}
}

// identityMiddleware trusts the gateway-provided X-User-ID header. The
// gateway terminates authentication before traffic reaches this service.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		userID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing or invalid X-User-ID header",
			})
			return
		}
		c.Set("user_id", uint(userID))
		c.Next()
	}
}
