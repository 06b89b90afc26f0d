package model

import "time"

type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventActive   EventStatus = "active"
	EventEnded    EventStatus = "ended"
)

// swagger:model Event
type Event struct {
	BaseModel
	Title        string    `gorm:"size:200;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	StartAt      time.Time `gorm:"index;not null" json:"startAt"`
	EndAt        time.Time `gorm:"index;not null" json:"endAt"`
	RewardPoints int       `gorm:"default:0" json:"rewardPoints"`
	CreatedBy    uint      `gorm:"index" json:"createdBy"`
}

func (Event) TableName() string {
	return "events"
}

// StatusAt 根据时间窗口推导活动状态
func (e *Event) StatusAt(now time.Time) EventStatus {
	switch {
	case now.Before(e.StartAt):
		return EventUpcoming
	case now.Before(e.EndAt):
		return EventActive
	default:
		return EventEnded
	}
}

type EventParticipant struct {
	BaseModel
	EventID      uint       `gorm:"uniqueIndex:idx_event_participant;not null" json:"eventId"`
	UserID       uint       `gorm:"uniqueIndex:idx_event_participant;index;not null" json:"userId"`
	RegisteredAt time.Time  `json:"registeredAt"`
	AttendedAt   *time.Time `json:"attendedAt,omitempty"`
}

func (EventParticipant) TableName() string {
	return "event_participants"
}
