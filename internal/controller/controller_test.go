package controller

import (
	"encoding/json"
	"learning_platform/internal/config"
	"learning_platform/internal/repository"
	"learning_platform/internal/service"
	"learning_platform/internal/util"
	"learning_platform/pkg/database"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:"+t.Name()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthController(newTestDB(t), nil).HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	components := data["components"].(map[string]interface{})
	assert.Equal(t, "up", components["database"])
	assert.Equal(t, "disabled", components["redis"])
}

func TestLeaderboardController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	points := repository.NewPointsRepository(db)
	users := repository.NewUserRepository(db)
	gam := service.NewGamificationService(db, points, repository.NewBadgeRepository(db),
		repository.NewAchievementRepository(db), repository.NewChallengeRepository(db),
		repository.NewTestRepository(db), users, config.DefaultGamification())
	lb := service.NewLeaderboardService(repository.NewLeaderboardRepository(db, nil), points, users,
		repository.NewTeamRepository(db), gam)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: 1})
		c.Next()
	})
	ctrl := NewLeaderboardController(lb)
	r.GET("/api/leaderboard", ctrl.GetLeaderboard)
	r.GET("/api/leaderboard/me", ctrl.GetMyRank)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?scope=school", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?period=weekly", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["ranked"])
}
