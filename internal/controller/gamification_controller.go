package controller

import (
	"learning_platform/internal/model"
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

// GamificationController 积分、徽章、成就相关接口
type GamificationController struct {
	Gamification *service.GamificationService
}

func NewGamificationController(gamification *service.GamificationService) *GamificationController {
	return &GamificationController{Gamification: gamification}
}

// AwardPointsRequest 手动发放积分请求
type AwardPointsRequest struct {
	UserID      uint              `json:"userId" binding:"required" example:"2"`
	Amount      int               `json:"amount" binding:"required" example:"50"`
	Source      model.PointSource `json:"source" example:"manual"`
	SourceKey   string            `json:"sourceKey" binding:"required" example:"contest:2024-spring"`
	Description string            `json:"description" example:"春季竞赛奖励"`
}

// AwardPointsResponse awarded 为 false 表示 sourceKey 已发放过
type AwardPointsResponse struct {
	Awarded bool                 `json:"awarded"`
	Result  *service.AwardResult `json:"result"`
}

// GetProfile godoc
// @Summary 获取积分档案
// @Description 当前用户的积分、等级、连续登录、徽章与成就进度
// @Tags 激励系统
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.Profile}
// @Router /api/gamification/profile [get]
func (ctrl *GamificationController) GetProfile(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	profile, err := ctrl.Gamification.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, profile)
}

// ListTransactions godoc
// @Summary 积分流水
// @Tags 激励系统
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.PointTransaction}}
// @Router /api/gamification/transactions [get]
func (ctrl *GamificationController) ListTransactions(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	page, limit := util.GetPagination(c)
	list, total, err := ctrl.Gamification.ListTransactions(c.Request.Context(), claims.UserID, page, limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Page(c, list, total, page, limit)
}

// includeInactive 管理员可通过 all=true 查看停用的定义
func includeInactive(c *gin.Context) bool {
	claims := util.GetUserFromContext(c)
	return claims != nil && claims.Role == model.Admin && c.Query("all") == "true"
}

// ListBadges godoc
// @Summary 徽章列表
// @Tags 激励系统
// @Produce json
// @Security ApiKeyAuth
// @Param all query bool false "包含停用徽章（仅管理员）"
// @Success 200 {object} util.Response{data=[]model.Badge}
// @Router /api/gamification/badges [get]
func (ctrl *GamificationController) ListBadges(c *gin.Context) {
	badges, err := ctrl.Gamification.ListBadges(c.Request.Context(), !includeInactive(c))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, badges)
}

// ListAchievements godoc
// @Summary 成就列表
// @Tags 激励系统
// @Produce json
// @Security ApiKeyAuth
// @Param all query bool false "包含停用成就（仅管理员）"
// @Success 200 {object} util.Response{data=[]model.Achievement}
// @Router /api/gamification/achievements [get]
func (ctrl *GamificationController) ListAchievements(c *gin.Context) {
	achievements, err := ctrl.Gamification.ListAchievements(c.Request.Context(), !includeInactive(c))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, achievements)
}

// RecordLogin godoc
// @Summary 每日签到
// @Description 记录当日登录，推进连续天数；同一天重复调用不重复发放
// @Tags 激励系统
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.AwardResult}
// @Router /api/gamification/login [post]
func (ctrl *GamificationController) RecordLogin(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	result, err := ctrl.Gamification.RecordLogin(c.Request.Context(), claims.UserID, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}

// CreateBadge godoc
// @Summary 创建徽章
// @Tags 激励系统-管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.BadgeRequest true "徽章定义"
// @Success 201 {object} util.Response{data=model.Badge}
// @Failure 409 {object} util.Response "code 已存在"
// @Router /api/admin/badges [post]
func (ctrl *GamificationController) CreateBadge(c *gin.Context) {
	var req service.BadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	badge, err := ctrl.Gamification.CreateBadge(c.Request.Context(), req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, badge)
}

// UpdateBadge godoc
// @Summary 更新徽章
// @Tags 激励系统-管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "徽章ID"
// @Param request body service.BadgeRequest true "徽章定义"
// @Success 200 {object} util.Response{data=model.Badge}
// @Router /api/admin/badges/{id} [put]
func (ctrl *GamificationController) UpdateBadge(c *gin.Context) {
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.BadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	badge, err := ctrl.Gamification.UpdateBadge(c.Request.Context(), id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, badge)
}

// CreateAchievement godoc
// @Summary 创建成就
// @Tags 激励系统-管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.AchievementRequest true "成就定义"
// @Success 201 {object} util.Response{data=model.Achievement}
// @Router /api/admin/achievements [post]
func (ctrl *GamificationController) CreateAchievement(c *gin.Context) {
	var req service.AchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	a, err := ctrl.Gamification.CreateAchievement(c.Request.Context(), req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, a)
}

// UpdateAchievement godoc
// @Summary 更新成就
// @Tags 激励系统-管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "成就ID"
// @Param request body service.AchievementRequest true "成就定义"
// @Success 200 {object} util.Response{data=model.Achievement}
// @Router /api/admin/achievements/{id} [put]
func (ctrl *GamificationController) UpdateAchievement(c *gin.Context) {
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.AchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	a, err := ctrl.Gamification.UpdateAchievement(c.Request.Context(), id, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, a)
}

// AwardPoints godoc
// @Summary 手动发放积分
// @Tags 激励系统-管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body AwardPointsRequest true "发放请求"
// @Success 200 {object} util.Response{data=AwardPointsResponse}
// @Router /api/admin/points [post]
func (ctrl *GamificationController) AwardPoints(c *gin.Context) {
	var req AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	result, awarded, err := ctrl.Gamification.AwardPoints(c.Request.Context(), req.UserID, req.Amount, req.Source, req.SourceKey, req.Description)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, AwardPointsResponse{Awarded: awarded, Result: result})
}
