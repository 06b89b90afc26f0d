package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"learning_platform/internal/model"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrUserNotFound), http.StatusNotFound},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrNotEnrolled, http.StatusForbidden},
		{fmt.Errorf("%w: title required", ErrInvalidArgument), http.StatusBadRequest},
		{ErrInvalidLeaderboard, http.StatusBadRequest},
		{ErrTeamFull, http.StatusConflict},
		{ErrAlreadyAttended, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			HandleError(c, tc.err)

			assert.Equal(t, tc.code, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestNormalizePage(t *testing.T) {
	page, limit := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, limit)

	page, limit = NormalizePage(3, 1000)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageSize, limit)
}

func TestGetPagination(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=2&limit=abc", nil)

	page, limit := GetPagination(c)
	assert.Equal(t, 2, page)
	assert.Equal(t, DefaultPageSize, limit)
}

func TestParseIDParam(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := ParseIDParam(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	_, ok = ParseIDParam(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "t@example.com", Role: model.Teacher}
	user.ID = 7

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, model.Teacher, claims.Role)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)

	expired, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.Error(t, err)
}
