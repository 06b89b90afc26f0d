package service

import (
	"errors"
	"learning_platform/internal/model"
	"learning_platform/internal/util"

	"gorm.io/gorm"
)

// Actor 发起操作的用户
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func ActorFromClaims(claims *util.Claims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

// notFound 将 gorm.ErrRecordNotFound 转换为 util.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotFound
	}
	return err
}
