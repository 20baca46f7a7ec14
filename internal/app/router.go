package app

import (
	"edtech_eval_backend/docs"
	"edtech_eval_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// evaluateLimit 只作用于会调用向量服务的评测接口
func (a *App) registerRoutes(router *gin.Engine, c *controllers, evaluateLimit gin.HandlerFunc) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		// 评测
		api.POST("/evaluations", evaluateLimit, c.evaluation.Evaluate)
		api.POST("/evaluations/mock", evaluateLimit, c.evaluation.EvaluateMock)
		api.GET("/evaluations/:id", c.evaluation.GetEvaluation)
		api.GET("/students/:student_id/evaluations", c.evaluation.StudentEvaluations)

		// 试卷
		api.POST("/papers", c.paper.CreatePaper)
		api.GET("/papers", c.paper.ListPapers)
		api.GET("/papers/:id", c.paper.GetPaper)
	}
}
