package repository

import (
	"database/sql"
	"learning_platform/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) WithTx(tx *gorm.DB) *TestRepository {
	return &TestRepository{DB: tx}
}

// Create 同时写入题目
func (r *TestRepository) Create(test *model.Test) error {
	return r.DB.Create(test).Error
}

func (r *TestRepository) FindWithQuestions(id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC, id ASC") }).
		First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRepository) ListByCourse(courseID uint) ([]model.Test, error) {
	var tests []model.Test
	err := r.DB.Where("course_id = ?", courseID).Order("id ASC").Find(&tests).Error
	return tests, err
}

func (r *TestRepository) CountAttempts(userID, testID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.TestAttempt{}).Where("user_id = ? AND test_id = ?", userID, testID).Count(&count).Error
	return count, err
}

func (r *TestRepository) CreateAttempt(a *model.TestAttempt) error {
	return r.DB.Create(a).Error
}

// BestPercentage 用户在该测验除 excludeAttemptID 外的最高得分率，无记录返回 -1
func (r *TestRepository) BestPercentage(userID, testID, excludeAttemptID uint) (int, error) {
	var best sql.NullInt64
	err := r.DB.Model(&model.TestAttempt{}).
		Select("MAX(percentage)").
		Where("user_id = ? AND test_id = ? AND id <> ?", userID, testID, excludeAttemptID).
		Row().Scan(&best)
	if err != nil {
		return 0, err
	}
	if !best.Valid {
		return -1, nil
	}
	return int(best.Int64), nil
}

// AllTestsPassed 课程内所有测验是否都已通过
func (r *TestRepository) AllTestsPassed(userID, courseID uint) (bool, error) {
	var total, passed int64
	if err := r.DB.Model(&model.Test{}).Where("course_id = ?", courseID).Count(&total).Error; err != nil {
		return false, err
	}
	if total == 0 {
		return true, nil
	}
	err := r.DB.Model(&model.TestAttempt{}).
		Joins("JOIN tests t ON t.id = test_attempts.test_id AND t.deleted_at IS NULL").
		Where("t.course_id = ? AND test_attempts.user_id = ? AND test_attempts.passed = ?", courseID, userID, true).
		Distinct("test_attempts.test_id").
		Count(&passed).Error
	if err != nil {
		return false, err
	}
	return passed >= total, nil
}
