package controller

import (
	"learning_platform/internal/service"
	"learning_platform/internal/util"

	"github.com/gin-gonic/gin"
)

type TeamController struct {
	Teams *service.TeamService
}

func NewTeamController(teams *service.TeamService) *TeamController {
	return &TeamController{Teams: teams}
}

// ListTeams godoc
// @Summary 团队列表
// @Tags 团队
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Param search query string false "团队名关键字"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Team}}
// @Router /api/teams [get]
func (ctrl *TeamController) ListTeams(c *gin.Context) {
	page, limit := util.GetPagination(c)
	list, total, err := ctrl.Teams.ListTeams(c.Request.Context(), page, limit, c.Query("search"))
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Page(c, list, total, page, limit)
}

// CreateTeam godoc
// @Summary 创建团队
// @Description 创建者成为队长，每个用户只能加入一个团队
// @Tags 团队
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.CreateTeamRequest true "团队信息"
// @Success 201 {object} util.Response{data=model.Team}
// @Failure 409 {object} util.Response "已在团队中或名称重复"
// @Router /api/teams [post]
func (ctrl *TeamController) CreateTeam(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	team, err := ctrl.Teams.CreateTeam(c.Request.Context(), a.UserID, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, team)
}

// GetTeam godoc
// @Summary 团队详情
// @Tags 团队
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "团队ID"
// @Success 200 {object} util.Response{data=service.TeamDetail}
// @Router /api/teams/{id} [get]
func (ctrl *TeamController) GetTeam(c *gin.Context) {
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	team, err := ctrl.Teams.GetTeam(c.Request.Context(), id)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, team)
}

// GetMyTeam godoc
// @Summary 我的团队
// @Tags 团队
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.TeamDetail}
// @Failure 404 {object} util.Response "未加入团队"
// @Router /api/teams/mine [get]
func (ctrl *TeamController) GetMyTeam(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	team, err := ctrl.Teams.GetUserTeam(c.Request.Context(), a.UserID)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, team)
}

// JoinTeam godoc
// @Summary 加入团队
// @Tags 团队
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "团队ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "团队已满或已在团队中"
// @Router /api/teams/{id}/join [post]
func (ctrl *TeamController) JoinTeam(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Teams.JoinTeam(c.Request.Context(), a.UserID, id); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}

// LeaveTeam godoc
// @Summary 退出团队
// @Description 队长退出时移交给最早加入的成员，最后一人退出后团队解散
// @Tags 团队
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/teams/leave [post]
func (ctrl *TeamController) LeaveTeam(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := ctrl.Teams.LeaveTeam(c.Request.Context(), a.UserID); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, nil)
}
