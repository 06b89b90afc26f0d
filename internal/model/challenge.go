package model

import "time"

// swagger:model Challenge
type Challenge struct {
	BaseModel
	Title        string    `gorm:"size:200;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Criteria     Criteria  `gorm:"size:30;not null" json:"criteria"`
	Target       int       `gorm:"not null" json:"target"`
	RewardPoints int       `gorm:"default:0" json:"rewardPoints"`
	StartAt      time.Time `gorm:"index;not null" json:"startAt"`
	EndAt        time.Time `gorm:"index;not null" json:"endAt"`
	CreatedBy    uint      `gorm:"index" json:"createdBy"`
}

func (Challenge) TableName() string {
	return "challenges"
}

func (c *Challenge) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartAt) && now.Before(c.EndAt)
}

// ChallengeParticipant Baseline 为加入时的计数，进度 = 当前计数 - Baseline
type ChallengeParticipant struct {
	BaseModel
	ChallengeID uint       `gorm:"uniqueIndex:idx_challenge_participant;not null" json:"challengeId"`
	UserID      uint       `gorm:"uniqueIndex:idx_challenge_participant;index;not null" json:"userId"`
	Challenge   Challenge  `gorm:"foreignKey:ChallengeID" json:"challenge"`
	Baseline    int        `gorm:"default:0" json:"baseline"`
	Progress    int        `gorm:"default:0" json:"progress"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (ChallengeParticipant) TableName() string {
	return "challenge_participants"
}
