package service

import (
	"context"
	"errors"
	"fmt"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"strings"

	"gorm.io/gorm"
)

const defaultTeamSize = 10

type TeamService struct {
	DB         *gorm.DB
	TeamRepo   *repository.TeamRepository
	PointsRepo *repository.PointsRepository
}

func NewTeamService(db *gorm.DB, teamRepo *repository.TeamRepository, pointsRepo *repository.PointsRepository) *TeamService {
	return &TeamService{DB: db, TeamRepo: teamRepo, PointsRepo: pointsRepo}
}

type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	MaxMembers  int    `json:"maxMembers"`
}

type TeamDetail struct {
	model.Team
	MemberCount int `json:"memberCount"`
	Points      int `json:"points"`
}

// CreateTeam 创建者成为队长
func (s *TeamService) CreateTeam(ctx context.Context, ownerID uint, req CreateTeamRequest) (*model.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: team name required", util.ErrInvalidArgument)
	}
	if req.MaxMembers == 0 {
		req.MaxMembers = defaultTeamSize
	}
	if req.MaxMembers < 1 {
		return nil, fmt.Errorf("%w: maxMembers must be positive", util.ErrInvalidArgument)
	}

	team := &model.Team{Name: name, Description: req.Description, OwnerID: ownerID, MaxMembers: req.MaxMembers}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TeamRepo.WithTx(tx)
		if _, err := repo.FindMembership(ownerID); err == nil {
			return util.ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		taken, err := repo.ExistsName(name)
		if err != nil {
			return err
		}
		if taken {
			return util.ErrNameTaken
		}
		if err := repo.Create(team); err != nil {
			return err
		}
		return repo.AddMember(&model.TeamMembership{TeamID: team.ID, UserID: ownerID, Role: model.TeamOwner})
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TeamService) JoinTeam(ctx context.Context, userID, teamID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TeamRepo.WithTx(tx)
		team, err := repo.FindByID(teamID)
		if err != nil {
			return notFound(err)
		}
		if _, err := repo.FindMembership(userID); err == nil {
			return util.ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		count, err := repo.CountMembers(team.ID)
		if err != nil {
			return err
		}
		if int(count) >= team.MaxMembers {
			return util.ErrTeamFull
		}
		return repo.AddMember(&model.TeamMembership{TeamID: team.ID, UserID: userID, Role: model.TeamMember})
	})
}

// LeaveTeam 队长离开时移交给最早加入的成员，最后一名成员离开时解散团队
func (s *TeamService) LeaveTeam(ctx context.Context, userID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.TeamRepo.WithTx(tx)
		membership, err := repo.FindMembership(userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrNotMember
		}
		if err != nil {
			return err
		}
		team, err := repo.FindByID(membership.TeamID)
		if err != nil {
			return notFound(err)
		}
		if err := repo.RemoveMember(team.ID, userID); err != nil {
			return err
		}

		remaining, err := repo.CountMembers(team.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return repo.Delete(team.ID)
		}
		if team.OwnerID != userID {
			return nil
		}

		heir, err := repo.OldestMember(team.ID)
		if err != nil {
			return err
		}
		if err := repo.SetRole(team.ID, heir.UserID, model.TeamOwner); err != nil {
			return err
		}
		team.OwnerID = heir.UserID
		return repo.Update(team)
	})
}

func (s *TeamService) GetTeam(ctx context.Context, teamID uint) (*TeamDetail, error) {
	team, err := s.TeamRepo.WithTx(s.DB.WithContext(ctx)).FindWithMembers(teamID)
	if err != nil {
		return nil, notFound(err)
	}
	points, err := s.PointsRepo.WithTx(s.DB.WithContext(ctx)).TeamPoints(teamID)
	if err != nil {
		return nil, err
	}
	return &TeamDetail{Team: *team, MemberCount: len(team.Members), Points: points}, nil
}

// GetUserTeam 用户未加入团队时返回 ErrNotMember
func (s *TeamService) GetUserTeam(ctx context.Context, userID uint) (*TeamDetail, error) {
	membership, err := s.TeamRepo.WithTx(s.DB.WithContext(ctx)).FindMembership(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return s.GetTeam(ctx, membership.TeamID)
}

func (s *TeamService) ListTeams(ctx context.Context, page, limit int, search string) ([]model.Team, int64, error) {
	page, limit = util.NormalizePage(page, limit)
	return s.TeamRepo.WithTx(s.DB.WithContext(ctx)).List(page, limit, strings.TrimSpace(search))
}
