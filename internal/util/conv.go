package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParseIDParam 解析路径参数中的 ID
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	id := MustParseUint(c.Param(name))
	if id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// GetPagination 读取 page/limit 查询参数并做边界处理
func GetPagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)))
	return NormalizePage(page, limit)
}

func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
