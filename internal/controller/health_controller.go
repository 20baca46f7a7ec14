package controller

import (
	"context"
	"edtech_eval_backend/internal/util"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 数据库连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	DB                Pinger
	EmbeddingProvider string
}

func NewHealthController(db Pinger, embeddingProvider string) *HealthController {
	return &HealthController{DB: db, EmbeddingProvider: embeddingProvider}
}

// @Summary 健康检查
// @Description 检查数据库连接，并返回当前向量服务
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} util.ErrorResponse
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := c.DB.Ping(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database":  "up",
			"embedding": c.EmbeddingProvider,
		},
	})
}
