package controller

import (
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type ChallengeController struct {
	Challenges *service.ChallengeService
}

func NewChallengeController(challenges *service.ChallengeService) *ChallengeController {
	return &ChallengeController{Challenges: challenges}
}

// ListChallenges godoc
// @Summary 挑战列表
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Param active query bool false "只返回进行中的挑战"
// @Success 200 {object} util.Response{data=[]model.Challenge}
// @Router /api/challenges [get]
func (ctrl *ChallengeController) ListChallenges(c *gin.Context) {
	list, err := ctrl.Challenges.ListChallenges(c.Request.Context(), c.Query("active") == "true", time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, list)
}

// ListMyChallenges godoc
// @Summary 我参与的挑战
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ChallengeProgress}
// @Router /api/challenges/mine [get]
func (ctrl *ChallengeController) ListMyChallenges(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	list, err := ctrl.Challenges.ListUserChallenges(c.Request.Context(), a.UserID, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, list)
}

// CreateChallenge godoc
// @Summary 创建挑战
// @Tags 挑战
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.ChallengeRequest true "挑战信息"
// @Success 201 {object} util.Response{data=model.Challenge}
// @Router /api/teacher/challenges [post]
func (ctrl *ChallengeController) CreateChallenge(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	challenge, err := ctrl.Challenges.CreateChallenge(c.Request.Context(), a.UserID, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, challenge)
}

// JoinChallenge godoc
// @Summary 参加挑战
// @Description 以当前计数为起点统计进度
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "挑战ID"
// @Success 201 {object} util.Response{data=model.ChallengeParticipant}
// @Failure 409 {object} util.Response "挑战未进行或已参加"
// @Router /api/challenges/{id}/join [post]
func (ctrl *ChallengeController) JoinChallenge(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := ctrl.Challenges.JoinChallenge(c.Request.Context(), a.UserID, id, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, p)
}

// GetProgress godoc
// @Summary 挑战进度
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "挑战ID"
// @Success 200 {object} util.Response{data=service.ChallengeProgress}
// @Router /api/challenges/{id}/progress [get]
func (ctrl *ChallengeController) GetProgress(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	progress, err := ctrl.Challenges.GetChallengeProgress(c.Request.Context(), a.UserID, id, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, progress)
}
