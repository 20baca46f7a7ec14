package controller

import (
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/service"
	"edtech_eval_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PaperController struct {
	Service *service.PaperService
}

func NewPaperController(svc *service.PaperService) *PaperController {
	return &PaperController{Service: svc}
}

// @Summary 保存试卷
// @Description 未提供 id 时自动生成；total_marks 缺省为各题分值之和
// @Tags 试卷
// @Accept json
// @Produce json
// @Param body body model.QuestionPaper true "试卷"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} util.ErrorResponse
// @Router /papers [post]
func (c *PaperController) CreatePaper(ctx *gin.Context) {
	var paper model.QuestionPaper
	if err := ctx.ShouldBindJSON(&paper); err != nil {
		util.BadRequest(ctx, "invalid JSON body: "+err.Error())
		return
	}

	saved, err := c.Service.CreatePaper(ctx.Request.Context(), &paper)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"status":   "success",
		"paper_id": saved.ID,
		"paper":    saved,
	})
}

// @Summary 最近的试卷
// @Tags 试卷
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /papers [get]
func (c *PaperController) ListPapers(ctx *gin.Context) {
	papers, err := c.Service.ListPapers(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"papers": papers})
}

// @Summary 获取试卷
// @Tags 试卷
// @Produce json
// @Param id path string true "试卷ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} util.ErrorResponse
// @Router /papers/{id} [get]
func (c *PaperController) GetPaper(ctx *gin.Context) {
	paper, err := c.Service.GetPaper(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"paper": paper})
}
