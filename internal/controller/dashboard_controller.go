package controller

import (
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	Dashboard *service.DashboardService
}

func NewDashboardController(dashboard *service.DashboardService) *DashboardController {
	return &DashboardController{Dashboard: dashboard}
}

// GetStudentDashboard godoc
// @Summary 学生首页
// @Description 积分档案、已选课程进度、进行中的挑战与即将开始的活动
// @Tags 首页
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StudentDashboard}
// @Router /api/dashboard [get]
func (ctrl *DashboardController) GetStudentDashboard(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	dashboard, err := ctrl.Dashboard.GetStudentDashboard(c.Request.Context(), claims.UserID, time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, dashboard)
}

// GetAdminOverview godoc
// @Summary 管理后台概览
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.AdminOverview}
// @Router /api/admin/overview [get]
func (ctrl *DashboardController) GetAdminOverview(c *gin.Context) {
	overview, err := ctrl.Dashboard.GetAdminOverview(c.Request.Context(), time.Now())
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, overview)
}
