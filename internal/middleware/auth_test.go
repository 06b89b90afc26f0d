package middleware

import (
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/util"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	chain := append([]gin.HandlerFunc{AuthMiddleware(cfg)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/", chain...)
	return r
}

func tokenFor(t *testing.T, id uint, role model.UserRole) string {
	t.Helper()
	user := &model.User{Role: role}
	user.ID = id
	token, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, 1, model.Student))
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/?token="+tokenFor(t, 1, model.Student), nil)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(RoleMiddleware(model.Teacher))

	for role, code := range map[model.UserRole]int{
		model.Student: http.StatusForbidden,
		model.Teacher: http.StatusOK,
		model.Admin:   http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, 1, role))
		assert.Equal(t, code, serve(r, req).Code, role)
	}
}

type activityRecorder struct {
	mu  sync.Mutex
	ids []uint
}

func (a *activityRecorder) UpdateLastSeen(userID uint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, userID)
	return nil
}

func (a *activityRecorder) seen() []uint {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint(nil), a.ids...)
}

func TestActivityMiddleware(t *testing.T) {
	rec := &activityRecorder{}
	r := newRouter(ActivityMiddleware(rec))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, 5, model.Student))
	require.Equal(t, http.StatusOK, serve(r, req).Code)

	assert.Eventually(t, func() bool {
		ids := rec.seen()
		return len(ids) == 1 && ids[0] == 5
	}, time.Second, 10*time.Millisecond)
}
