package controller

import (
	"learning_platform/internal/model"
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type EventController struct {
	Events *service.EventService
}

func NewEventController(events *service.EventService) *EventController {
	return &EventController{Events: events}
}

// ListEvents godoc
// @Summary 活动列表
// @Tags 活动
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "upcoming | active | ended"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.EventView}}
// @Router /api/events [get]
func (ctrl *EventController) ListEvents(c *gin.Context) {
	page, limit := util.GetPagination(c)
	status := model.EventStatus(c.Query("status"))
	list, total, err := ctrl.Events.ListEvents(c.Request.Context(), status, time.Now(), page, limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Page(c, list, total, page, limit)
}

// CreateEvent godoc
// @Summary 创建活动
// @Tags 活动
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.EventRequest true "活动信息"
// @Success 201 {object} util.Response{data=model.Event}
// @Router /api/teacher/events [post]
func (ctrl *EventController) CreateEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	event, err := ctrl.Events.CreateEvent(c.Request.Context(), a.UserID, req)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, event)
}

// RegisterForEvent godoc
// @Summary 报名活动
// @Tags 活动
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "活动ID"
// @Success 201 {object} util.Response{data=model.EventParticipant}
// @Failure 409 {object} util.Response "已报名或活动已结束"
// @Router /api/events/{id}/register [post]
func (ctrl *EventController) RegisterForEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := ctrl.Events.RegisterForEvent(c.Request.Context(), a.UserID, id, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Created(c, p)
}

// AttendEvent godoc
// @Summary 签到活动
// @Description 仅在活动进行中可签到，发放活动奖励积分
// @Tags 活动
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "活动ID"
// @Success 200 {object} util.Response{data=service.AwardResult}
// @Failure 409 {object} util.Response "活动未开始、未报名或已签到"
// @Router /api/events/{id}/attend [post]
func (ctrl *EventController) AttendEvent(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := util.ParseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := ctrl.Events.AttendEvent(c.Request.Context(), a.UserID, id, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, result)
}
