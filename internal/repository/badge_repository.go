package repository

import (
	"learning_platform/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

func (r *BadgeRepository) WithTx(tx *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: tx}
}

// Create Active 带默认值 true，插入时会被回填，false 需在插入后单独写入
func (r *BadgeRepository) Create(badge *model.Badge) error {
	active := badge.Active
	if err := r.DB.Create(badge).Error; err != nil {
		return err
	}
	if active {
		return nil
	}
	if err := r.DB.Model(badge).Update("active", false).Error; err != nil {
		return err
	}
	badge.Active = false
	return nil
}

func (r *BadgeRepository) Update(badge *model.Badge) error {
	return r.DB.Save(badge).Error
}

func (r *BadgeRepository) FindByID(id uint) (*model.Badge, error) {
	var badge model.Badge
	if err := r.DB.First(&badge, id).Error; err != nil {
		return nil, err
	}
	return &badge, nil
}

func (r *BadgeRepository) ExistsCode(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Badge{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *BadgeRepository) List(activeOnly bool) ([]model.Badge, error) {
	var badges []model.Badge
	query := r.DB.Order("threshold ASC, id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Find(&badges).Error
	return badges, err
}

// HeldBadgeIDs 用户已拥有的徽章 ID 集合
func (r *BadgeRepository) HeldBadgeIDs(userID uint) (map[uint]bool, error) {
	var ids []uint
	if err := r.DB.Model(&model.UserBadge{}).Where("user_id = ?", userID).Pluck("badge_id", &ids).Error; err != nil {
		return nil, err
	}
	held := make(map[uint]bool, len(ids))
	for _, id := range ids {
		held[id] = true
	}
	return held, nil
}

// Award 授予徽章，已拥有时返回 false
func (r *BadgeRepository) Award(ub *model.UserBadge) (bool, error) {
	res := r.DB.Omit("Badge").Clauses(clause.OnConflict{DoNothing: true}).Create(ub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *BadgeRepository) ListUserBadges(userID uint) ([]model.UserBadge, error) {
	var badges []model.UserBadge
	err := r.DB.Preload("Badge").Where("user_id = ?", userID).Order("awarded_at ASC").Find(&badges).Error
	return badges, err
}

func (r *BadgeRepository) CountAwarded() (int64, error) {
	var count int64
	err := r.DB.Model(&model.UserBadge{}).Count(&count).Error
	return count, err
}

type BadgeHolders struct {
	BadgeID uint   `json:"badgeId"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Holders int64  `json:"holders"`
}

func (r *BadgeRepository) TopBadges(limit int) ([]BadgeHolders, error) {
	var rows []BadgeHolders
	err := r.DB.Table("user_badges ub").
		Select("b.id AS badge_id, b.code, b.name, COUNT(*) AS holders").
		Joins("JOIN badges b ON b.id = ub.badge_id AND b.deleted_at IS NULL").
		Where("ub.deleted_at IS NULL").
		Group("b.id, b.code, b.name").
		Order("holders DESC, b.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
