package repository

import (
	"learning_platform/internal/model"
	"time"

	"gorm.io/gorm"
)

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{DB: tx}
}

func (r *EventRepository) Create(event *model.Event) error {
	return r.DB.Create(event).Error
}

func (r *EventRepository) Update(event *model.Event) error {
	return r.DB.Save(event).Error
}

func (r *EventRepository) FindByID(id uint) (*model.Event, error) {
	var event model.Event
	if err := r.DB.First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// List status 为空时返回全部，否则按时间窗口过滤
func (r *EventRepository) List(status model.EventStatus, now time.Time, page, limit int) ([]model.Event, int64, error) {
	var (
		events []model.Event
		total  int64
	)
	query := r.DB.Model(&model.Event{})
	switch status {
	case model.EventUpcoming:
		query = query.Where("start_at > ?", now)
	case model.EventActive:
		query = query.Where("start_at <= ? AND end_at > ?", now, now)
	case model.EventEnded:
		query = query.Where("end_at <= ?", now)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("start_at ASC, id ASC").Offset((page - 1) * limit).Limit(limit).Find(&events).Error
	return events, total, err
}

func (r *EventRepository) CreateParticipant(p *model.EventParticipant) error {
	return r.DB.Create(p).Error
}

func (r *EventRepository) FindParticipant(eventID, userID uint) (*model.EventParticipant, error) {
	var p model.EventParticipant
	if err := forUpdate(r.DB).Where("event_id = ? AND user_id = ?", eventID, userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *EventRepository) SaveParticipant(p *model.EventParticipant) error {
	return r.DB.Save(p).Error
}

func (r *EventRepository) CountParticipants(eventID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.EventParticipant{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, err
}

func (r *EventRepository) CountActive(now time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Event{}).Where("start_at <= ? AND end_at > ?", now, now).Count(&count).Error
	return count, err
}
