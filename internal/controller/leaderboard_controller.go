package controller

import (
	"learning_platform/internal/model"
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	Leaderboard *service.LeaderboardService
}

func NewLeaderboardController(leaderboard *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{Leaderboard: leaderboard}
}

// GetLeaderboard godoc
// @Summary 排行榜
// @Description 按范围与周期查询最近一次计算的排行榜
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Param scope query string false "global | team" default(global)
// @Param period query string false "all_time | weekly | monthly" default(all_time)
// @Param limit query int false "条数"
// @Success 200 {object} util.Response{data=[]service.LeaderboardItem}
// @Failure 400 {object} util.Response
// @Router /api/leaderboard [get]
func (ctrl *LeaderboardController) GetLeaderboard(c *gin.Context) {
	scope := model.LeaderboardScope(c.DefaultQuery("scope", string(model.ScopeGlobal)))
	period := model.LeaderboardPeriod(c.DefaultQuery("period", string(model.PeriodAllTime)))
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := ctrl.Leaderboard.GetLeaderboard(c.Request.Context(), scope, period, limit)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, items)
}

// GetMyRank godoc
// @Summary 我的排名
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Param period query string false "all_time | weekly | monthly" default(all_time)
// @Success 200 {object} util.Response{data=service.UserRank}
// @Router /api/leaderboard/me [get]
func (ctrl *LeaderboardController) GetMyRank(c *gin.Context) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return
	}
	period := model.LeaderboardPeriod(c.DefaultQuery("period", string(model.PeriodAllTime)))
	rank, err := ctrl.Leaderboard.GetUserRank(c.Request.Context(), claims.UserID, period)
	if err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, rank)
}

// Recompute godoc
// @Summary 立即重新计算排行榜
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/admin/leaderboard/recompute [post]
func (ctrl *LeaderboardController) Recompute(c *gin.Context) {
	now := time.Now()
	if err := ctrl.Leaderboard.RecomputeLeaderboards(c.Request.Context(), now); err != nil {
		util.HandleError(c, err)
		return
	}
	util.Success(c, gin.H{"computedAt": now})
}
