package util

import (
	"errors"
	"learning_platform/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Page(c *gin.Context, list interface{}, total int64, page, limit int) {
	Success(c, PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// HandleError 将业务错误映射为 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c)
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotMember), errors.Is(err, ErrNotEnrolled):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidEvent),
		errors.Is(err, ErrInvalidLeaderboard), errors.Is(err, ErrSelfConversation),
		errors.Is(err, ErrCourseNotPublished):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrTeamFull),
		errors.Is(err, ErrEventNotActive), errors.Is(err, ErrEventEnded), errors.Is(err, ErrNotRegistered),
		errors.Is(err, ErrChallengeNotActive), errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrMaxAttemptsReached), errors.Is(err, ErrDuplicateDefinition),
		errors.Is(err, ErrNameTaken), errors.Is(err, ErrAlreadyAttended):
		Error(c, http.StatusConflict, err.Error())
	default:
		LogInternalError(c, err)
	}
}
