package repository

import (
	"learning_platform/internal/model"

	"gorm.io/gorm"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

// Create Active 带默认值 true，插入时会被回填，false 需在插入后单独写入
func (r *AchievementRepository) Create(a *model.Achievement) error {
	active := a.Active
	if err := r.DB.Create(a).Error; err != nil {
		return err
	}
	if active {
		return nil
	}
	if err := r.DB.Model(a).Update("active", false).Error; err != nil {
		return err
	}
	a.Active = false
	return nil
}

func (r *AchievementRepository) Update(a *model.Achievement) error {
	return r.DB.Save(a).Error
}

func (r *AchievementRepository) FindByID(id uint) (*model.Achievement, error) {
	var a model.Achievement
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AchievementRepository) ExistsCode(code string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Achievement{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *AchievementRepository) List(activeOnly bool) ([]model.Achievement, error) {
	var list []model.Achievement
	query := r.DB.Order("criteria ASC, target ASC, id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Find(&list).Error
	return list, err
}

// UserProgress 用户成就进度，以 achievement_id 为键
func (r *AchievementRepository) UserProgress(userID uint) (map[uint]*model.UserAchievement, error) {
	var rows []model.UserAchievement
	if err := r.DB.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]*model.UserAchievement, len(rows))
	for i := range rows {
		result[rows[i].AchievementID] = &rows[i]
	}
	return result, nil
}

func (r *AchievementRepository) SaveProgress(ua *model.UserAchievement) error {
	return r.DB.Omit("Achievement").Save(ua).Error
}

func (r *AchievementRepository) ListUserAchievements(userID uint) ([]model.UserAchievement, error) {
	var rows []model.UserAchievement
	err := r.DB.Preload("Achievement").Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error
	return rows, err
}
