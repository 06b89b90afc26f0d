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

type EventService struct {
	EventRepo    *repository.EventRepository
	Gamification *GamificationService
}

func NewEventService(eventRepo *repository.EventRepository, gamification *GamificationService) *EventService {
	return &EventService{EventRepo: eventRepo, Gamification: gamification}
}

type EventRequest struct {
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	StartAt      time.Time `json:"startAt" binding:"required"`
	EndAt        time.Time `json:"endAt" binding:"required"`
	RewardPoints int       `json:"rewardPoints"`
}

type EventView struct {
	model.Event
	Status       model.EventStatus `json:"status"`
	Participants int64             `json:"participants"`
}

func (s *EventService) CreateEvent(ctx context.Context, creatorID uint, req EventRequest) (*model.Event, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, fmt.Errorf("%w: endAt must be after startAt", util.ErrInvalidArgument)
	}
	if req.RewardPoints < 0 {
		return nil, fmt.Errorf("%w: rewardPoints must not be negative", util.ErrInvalidArgument)
	}
	event := &model.Event{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		RewardPoints: req.RewardPoints,
		CreatedBy:    creatorID,
	}
	if err := s.EventRepo.WithTx(s.EventRepo.DB.WithContext(ctx)).Create(event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents status 为空时返回全部
func (s *EventService) ListEvents(ctx context.Context, status model.EventStatus, now time.Time, page, limit int) ([]EventView, int64, error) {
	switch status {
	case "", model.EventUpcoming, model.EventActive, model.EventEnded:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", util.ErrInvalidArgument, status)
	}
	page, limit = util.NormalizePage(page, limit)
	repo := s.EventRepo.WithTx(s.EventRepo.DB.WithContext(ctx))
	events, total, err := repo.List(status, now, page, limit)
	if err != nil {
		return nil, 0, err
	}
	views := make([]EventView, 0, len(events))
	for i := range events {
		count, err := repo.CountParticipants(events[i].ID)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, EventView{Event: events[i], Status: events[i].StatusAt(now), Participants: count})
	}
	return views, total, nil
}

func (s *EventService) RegisterForEvent(ctx context.Context, userID, eventID uint, now time.Time) (*model.EventParticipant, error) {
	repo := s.EventRepo.WithTx(s.EventRepo.DB.WithContext(ctx))
	event, err := repo.FindByID(eventID)
	if err != nil {
		return nil, notFound(err)
	}
	if event.StatusAt(now) == model.EventEnded {
		return nil, util.ErrEventEnded
	}
	if _, err := repo.FindParticipant(eventID, userID); err == nil {
		return nil, util.ErrAlreadyJoined
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p := &model.EventParticipant{EventID: eventID, UserID: userID, RegisteredAt: now}
	if err := repo.CreateParticipant(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AttendEvent 只能在活动进行中签到一次，积分按 event:<id> 幂等发放
func (s *EventService) AttendEvent(ctx context.Context, userID, eventID uint, now time.Time) (*AwardResult, error) {
	repo := s.EventRepo.WithTx(s.EventRepo.DB.WithContext(ctx))
	event, err := repo.FindByID(eventID)
	if err != nil {
		return nil, notFound(err)
	}
	if event.StatusAt(now) != model.EventActive {
		return nil, util.ErrEventNotActive
	}
	p, err := repo.FindParticipant(eventID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if p.AttendedAt != nil {
		return nil, util.ErrAlreadyAttended
	}

	result, err := s.Gamification.RecordEventAttendance(ctx, userID, event, now)
	if err != nil {
		return nil, err
	}
	p.AttendedAt = &now
	if err := repo.SaveParticipant(p); err != nil {
		return nil, err
	}
	return result, nil
}
