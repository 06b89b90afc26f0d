package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	now := time.Now()
	if user.LastLogin.IsZero() {
		user.LastLogin = now
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// NamesByIDs 返回 id -> 用户名，用于排行榜展示
func (r *UserRepository) NamesByIDs(ids []uint) (map[uint]model.User, error) {
	result := make(map[uint]model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []model.User
	if err := r.DB.Select("id", "name", "avatar").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *UserRepository) UpdateLastSeen(userID uint) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("last_seen", time.Now()).Error
}

func (r *UserRepository) UpdateLastLogin(userID uint, at time.Time) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"last_login": at, "last_seen": at}).Error
}

type RoleCount struct {
	Role  model.UserRole `json:"role"`
	Count int64          `json:"count"`
}

func (r *UserRepository) CountByRole() ([]RoleCount, error) {
	var rows []RoleCount
	err := r.DB.Model(&model.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&rows).Error
	return rows, err
}

func (r *UserRepository) CountActiveSince(since time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("last_seen >= ?", since).Count(&count).Error
	return count, err
}
