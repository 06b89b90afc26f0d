package database

import (
	"learning_platform/internal/model"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var DefaultBadges = []model.Badge{
	{Code: "first_steps", Name: "初来乍到", Description: "累计获得 100 积分", Criteria: model.CriteriaTotalPoints, Threshold: 100, BonusPoints: 10},
	{Code: "point_hunter", Name: "积分猎人", Description: "累计获得 1000 积分", Criteria: model.CriteriaTotalPoints, Threshold: 1000, BonusPoints: 50},
	{Code: "streak_7", Name: "坚持一周", Description: "连续登录 7 天", Criteria: model.CriteriaStreakDays, Threshold: 7, BonusPoints: 30},
	{Code: "streak_30", Name: "月度常客", Description: "连续登录 30 天", Criteria: model.CriteriaStreakDays, Threshold: 30, BonusPoints: 100},
	{Code: "perfectionist", Name: "满分达人", Description: "首次获得满分", Criteria: model.CriteriaPerfectScores, Threshold: 1, BonusPoints: 20},
	{Code: "graduate", Name: "结业", Description: "完成第一门课程", Criteria: model.CriteriaCoursesCompleted, Threshold: 1, BonusPoints: 50},
}

var DefaultAchievements = []model.Achievement{
	{Code: "test_taker_bronze", Name: "Test Taker I", Tier: model.TierBronze, Criteria: model.CriteriaTestsCompleted, Target: 5, RewardPoints: 25},
	{Code: "test_taker_silver", Name: "Test Taker II", Tier: model.TierSilver, Criteria: model.CriteriaTestsCompleted, Target: 25, RewardPoints: 100},
	{Code: "scholar_bronze", Name: "Scholar I", Tier: model.TierBronze, Criteria: model.CriteriaStudyMinutes, Target: 600, RewardPoints: 50},
	{Code: "scholar_gold", Name: "Scholar III", Tier: model.TierGold, Criteria: model.CriteriaStudyMinutes, Target: 6000, RewardPoints: 300},
	{Code: "collector_silver", Name: "Collector II", Tier: model.TierSilver, Criteria: model.CriteriaCoursesCompleted, Target: 5, RewardPoints: 200},
}

// Seed 写入默认徽章、成就和管理员账号，已存在时跳过
func Seed(db *gorm.DB, adminEmail, adminPassword string) error {
	var count int64
	db.Model(&model.Badge{}).Count(&count)
	if count == 0 {
		for _, b := range DefaultBadges {
			b.Active = true
			if err := db.Create(&b).Error; err != nil {
				return err
			}
		}
	}

	db.Model(&model.Achievement{}).Count(&count)
	if count == 0 {
		for _, a := range DefaultAchievements {
			a.Active = true
			if err := db.Create(&a).Error; err != nil {
				return err
			}
		}
	}

	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	db.Model(&model.User{}).Where("email = ?", adminEmail).Count(&count)
	if count > 0 {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&model.User{
		Name:      "admin",
		Email:     adminEmail,
		Password:  string(hashed),
		Role:      model.Admin,
		LastLogin: time.Now(),
		LastSeen:  time.Now(),
	}).Error
}
