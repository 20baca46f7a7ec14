package controller

import (
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/service"
	"edtech_eval_backend/internal/util"
	"strings"

	"github.com/gin-gonic/gin"
)

type EvaluationController struct {
	Service *service.EvaluationService
}

func NewEvaluationController(svc *service.EvaluationService) *EvaluationController {
	return &EvaluationController{Service: svc}
}

// EvaluateResponse 评测成功响应
type EvaluateResponse struct {
	Status     string                  `json:"status"`
	EvalID     string                  `json:"eval_id"`
	Evaluation *model.EvaluationRecord `json:"evaluation"`
}

// @Summary 提交答卷评测
// @Description paper_id 与 paper 二选一；主观题向量服务不可用时自动降级为关键词评分
// @Tags 评测
// @Accept json
// @Produce json
// @Param body body service.EvaluateRequest true "答卷"
// @Success 200 {object} EvaluateResponse
// @Failure 400 {object} util.ErrorResponse
// @Failure 404 {object} util.ErrorResponse
// @Failure 500 {object} util.ErrorResponse
// @Router /evaluations [post]
func (c *EvaluationController) Evaluate(ctx *gin.Context) {
	var req service.EvaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "invalid JSON body: "+err.Error())
		return
	}

	rec, err := c.Service.Evaluate(ctx.Request.Context(), &req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, EvaluateResponse{
		Status:     "success",
		EvalID:     rec.EvalID,
		Evaluation: rec,
	})
}

// @Summary 模拟测验评测
// @Description 题目与作答一起提交，不保存评测记录
// @Tags 评测
// @Accept json
// @Produce json
// @Param body body service.MockRequest true "模拟测验"
// @Success 200 {object} service.MockResult
// @Failure 400 {object} util.ErrorResponse
// @Router /evaluations/mock [post]
func (c *EvaluationController) EvaluateMock(ctx *gin.Context) {
	var req service.MockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "invalid JSON body: "+err.Error())
		return
	}

	result, err := c.Service.EvaluateMock(ctx.Request.Context(), &req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 获取评测记录
// @Tags 评测
// @Produce json
// @Param id path string true "评测ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} util.ErrorResponse
// @Router /evaluations/{id} [get]
func (c *EvaluationController) GetEvaluation(ctx *gin.Context) {
	rec, err := c.Service.GetEvaluation(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"evaluation": rec})
}

// @Summary 学生历史评测
// @Description 只返回摘要，不含逐题明细；存储不可用时返回空列表
// @Tags 评测
// @Produce json
// @Param student_id path string true "学生ID"
// @Success 200 {object} map[string]interface{}
// @Router /students/{student_id}/evaluations [get]
func (c *EvaluationController) StudentEvaluations(ctx *gin.Context) {
	studentID := strings.TrimSpace(ctx.Param("student_id"))
	if studentID == "" {
		util.BadRequest(ctx, "student_id is required")
		return
	}

	util.Success(ctx, gin.H{
		"student_id":  studentID,
		"evaluations": c.Service.StudentHistory(ctx.Request.Context(), studentID),
	})
}
