package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
)

type ChallengeRepository struct {
	DB *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: db}
}

func (r *ChallengeRepository) WithTx(tx *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: tx}
}

func (r *ChallengeRepository) Create(c *model.Challenge) error {
	return r.DB.Create(c).Error
}

func (r *ChallengeRepository) FindByID(id uint) (*model.Challenge, error) {
	var c model.Challenge
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChallengeRepository) List(activeOnly bool, now time.Time) ([]model.Challenge, error) {
	var challenges []model.Challenge
	query := r.DB.Model(&model.Challenge{})
	if activeOnly {
		query = query.Where("start_at <= ? AND end_at > ?", now, now)
	}
	err := query.Order("end_at ASC, id ASC").Find(&challenges).Error
	return challenges, err
}

func (r *ChallengeRepository) CreateParticipant(p *model.ChallengeParticipant) error {
	return r.DB.Omit("Challenge").Create(p).Error
}

func (r *ChallengeRepository) FindParticipant(challengeID, userID uint) (*model.ChallengeParticipant, error) {
	var p model.ChallengeParticipant
	err := r.DB.Preload("Challenge").Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveParticipations 用户在 now 时刻仍进行中且未完成的挑战
func (r *ChallengeRepository) ActiveParticipations(userID uint, now time.Time) ([]model.ChallengeParticipant, error) {
	var parts []model.ChallengeParticipant
	err := r.DB.Preload("Challenge").
		Joins("JOIN challenges c ON c.id = challenge_participants.challenge_id AND c.deleted_at IS NULL").
		Where("challenge_participants.user_id = ? AND challenge_participants.completed_at IS NULL", userID).
		Where("c.start_at <= ? AND c.end_at > ?", now, now).
		Order("challenge_participants.id ASC").
		Find(&parts).Error
	return parts, err
}

func (r *ChallengeRepository) ListByUser(userID uint) ([]model.ChallengeParticipant, error) {
	var parts []model.ChallengeParticipant
	err := r.DB.Preload("Challenge").Where("user_id = ?", userID).Order("id DESC").Find(&parts).Error
	return parts, err
}

func (r *ChallengeRepository) SaveParticipant(p *model.ChallengeParticipant) error {
	return r.DB.Omit("Challenge").Save(p).Error
}

func (r *ChallengeRepository) CountParticipants(challengeID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ChallengeParticipant{}).Where("challenge_id = ?", challengeID).Count(&count).Error
	return count, err
}
