package service

import (
	"context"
	"errors"
	"fmt"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"strings"
	"time"

	"gorm.io/gorm"
)

type ChallengeService struct {
	ChallengeRepo *repository.ChallengeRepository
	PointsRepo    *repository.PointsRepository
}

func NewChallengeService(challengeRepo *repository.ChallengeRepository, pointsRepo *repository.PointsRepository) *ChallengeService {
	return &ChallengeService{ChallengeRepo: challengeRepo, PointsRepo: pointsRepo}
}

type ChallengeRequest struct {
	Title        string         `json:"title" binding:"required"`
	Description  string         `json:"description"`
	Criteria     model.Criteria `json:"criteria" binding:"required"`
	Target       int            `json:"target"`
	RewardPoints int            `json:"rewardPoints"`
	StartAt      time.Time      `json:"startAt" binding:"required"`
	EndAt        time.Time      `json:"endAt" binding:"required"`
}

type ChallengeProgress struct {
	Challenge   model.Challenge `json:"challenge"`
	Joined      bool            `json:"joined"`
	Active      bool            `json:"active"`
	Progress    int             `json:"progress"`
	Target      int             `json:"target"`
	Completed   bool            `json:"completed"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, creatorID uint, req ChallengeRequest) (*model.Challenge, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	if !req.Criteria.Valid() {
		return nil, fmt.Errorf("%w: unknown criteria %q", util.ErrInvalidArgument, req.Criteria)
	}
	if req.Target <= 0 || req.RewardPoints < 0 {
		return nil, fmt.Errorf("%w: target must be positive", util.ErrInvalidArgument)
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, fmt.Errorf("%w: endAt must be after startAt", util.ErrInvalidArgument)
	}
	c := &model.Challenge{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Criteria:     req.Criteria,
		Target:       req.Target,
		RewardPoints: req.RewardPoints,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		CreatedBy:    creatorID,
	}
	if err := s.ChallengeRepo.WithTx(s.ChallengeRepo.DB.WithContext(ctx)).Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context, activeOnly bool, now time.Time) ([]model.Challenge, error) {
	return s.ChallengeRepo.WithTx(s.ChallengeRepo.DB.WithContext(ctx)).List(activeOnly, now)
}

func (s *ChallengeService) counter(db *gorm.DB, userID uint, criteria model.Criteria) (int, error) {
	up, err := s.PointsRepo.WithTx(db).FindByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return up.Counter(criteria), nil
}

// JoinChallenge 以加入时的计数作为基线，之后的增量计入进度
func (s *ChallengeService) JoinChallenge(ctx context.Context, userID, challengeID uint, now time.Time) (*model.ChallengeParticipant, error) {
	db := s.ChallengeRepo.DB.WithContext(ctx)
	repo := s.ChallengeRepo.WithTx(db)
	c, err := repo.FindByID(challengeID)
	if err != nil {
		return nil, notFound(err)
	}
	if !c.ActiveAt(now) {
		return nil, util.ErrChallengeNotActive
	}
	if _, err := repo.FindParticipant(challengeID, userID); err == nil {
		return nil, util.ErrAlreadyJoined
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	baseline, err := s.counter(db, userID, c.Criteria)
	if err != nil {
		return nil, err
	}
	p := &model.ChallengeParticipant{ChallengeID: c.ID, UserID: userID, Baseline: baseline, Challenge: *c}
	if err := repo.CreateParticipant(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ChallengeService) GetChallengeProgress(ctx context.Context, userID, challengeID uint, now time.Time) (*ChallengeProgress, error) {
	repo := s.ChallengeRepo.WithTx(s.ChallengeRepo.DB.WithContext(ctx))
	c, err := repo.FindByID(challengeID)
	if err != nil {
		return nil, notFound(err)
	}
	result := &ChallengeProgress{Challenge: *c, Active: c.ActiveAt(now), Target: c.Target}

	p, err := repo.FindParticipant(challengeID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Joined = true
	result.Progress = p.Progress
	result.Completed = p.CompletedAt != nil
	result.CompletedAt = p.CompletedAt
	return result, nil
}

// ListUserChallenges 用户参与中且仍在进行的挑战
func (s *ChallengeService) ListUserChallenges(ctx context.Context, userID uint, now time.Time) ([]ChallengeProgress, error) {
	parts, err := s.ChallengeRepo.WithTx(s.ChallengeRepo.DB.WithContext(ctx)).ActiveParticipations(userID, now)
	if err != nil {
		return nil, err
	}
	result := make([]ChallengeProgress, 0, len(parts))
	for _, p := range parts {
		result = append(result, ChallengeProgress{
			Challenge: p.Challenge,
			Joined:    true,
			Active:    true,
			Progress:  p.Progress,
			Target:    p.Challenge.Target,
		})
	}
	return result, nil
}
