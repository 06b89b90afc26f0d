package model

import "time"

// Criteria 徽章、成就、挑战共用的判定指标
type Criteria string

const (
	CriteriaTotalPoints         Criteria = "total_points"
	CriteriaStreakDays          Criteria = "streak_days"
	CriteriaLoginDays           Criteria = "login_days"
	CriteriaTestsCompleted      Criteria = "tests_completed"
	CriteriaPerfectScores       Criteria = "perfect_scores"
	CriteriaStudyMinutes        Criteria = "study_minutes"
	CriteriaCoursesCompleted    Criteria = "courses_completed"
	CriteriaChallengesCompleted Criteria = "challenges_completed"
	CriteriaEventsAttended      Criteria = "events_attended"
)

func (c Criteria) Valid() bool {
	switch c {
	case CriteriaTotalPoints, CriteriaStreakDays, CriteriaLoginDays, CriteriaTestsCompleted,
		CriteriaPerfectScores, CriteriaStudyMinutes, CriteriaCoursesCompleted,
		CriteriaChallengesCompleted, CriteriaEventsAttended:
		return true
	}
	return false
}

type PointSource string

const (
	SourceLogin       PointSource = "login"
	SourceTest        PointSource = "test"
	SourceStudy       PointSource = "study"
	SourceCourse      PointSource = "course"
	SourceBadge       PointSource = "badge"
	SourceAchievement PointSource = "achievement"
	SourceChallenge   PointSource = "challenge"
	SourceEvent       PointSource = "event"
	SourceManual      PointSource = "manual"
)

// UserPoints 用户积分汇总与各项计数
// swagger:model UserPoints
type UserPoints struct {
	BaseModel
	UserID              uint       `gorm:"uniqueIndex;not null" json:"userId"`
	TotalPoints         int        `gorm:"default:0;index" json:"totalPoints"`
	Level               int        `gorm:"default:1" json:"level"`
	CurrentStreak       int        `gorm:"default:0" json:"currentStreak"`
	LongestStreak       int        `gorm:"default:0" json:"longestStreak"`
	LastActiveDate      *time.Time `json:"lastActiveDate,omitempty"`
	LoginDays           int        `gorm:"default:0" json:"loginDays"`
	TestsCompleted      int        `gorm:"default:0" json:"testsCompleted"`
	PerfectScores       int        `gorm:"default:0" json:"perfectScores"`
	StudyMinutes        int        `gorm:"default:0" json:"studyMinutes"`
	CoursesCompleted    int        `gorm:"default:0" json:"coursesCompleted"`
	ChallengesCompleted int        `gorm:"default:0" json:"challengesCompleted"`
	EventsAttended      int        `gorm:"default:0" json:"eventsAttended"`
}

func (UserPoints) TableName() string {
	return "user_points"
}

// Counter 返回指标对应的当前计数
func (p *UserPoints) Counter(c Criteria) int {
	switch c {
	case CriteriaTotalPoints:
		return p.TotalPoints
	case CriteriaStreakDays:
		return p.CurrentStreak
	case CriteriaLoginDays:
		return p.LoginDays
	case CriteriaTestsCompleted:
		return p.TestsCompleted
	case CriteriaPerfectScores:
		return p.PerfectScores
	case CriteriaStudyMinutes:
		return p.StudyMinutes
	case CriteriaCoursesCompleted:
		return p.CoursesCompleted
	case CriteriaChallengesCompleted:
		return p.ChallengesCompleted
	case CriteriaEventsAttended:
		return p.EventsAttended
	}
	return 0
}

// PointTransaction 积分流水，(user_id, source_key) 唯一保证幂等
type PointTransaction struct {
	BaseModel
	UserID      uint        `gorm:"uniqueIndex:idx_point_tx_source;index:idx_point_tx_user_created;not null" json:"userId"`
	Amount      int         `gorm:"not null" json:"amount"`
	Source      PointSource `gorm:"size:20;index;not null" json:"source"`
	SourceKey   string      `gorm:"size:120;uniqueIndex:idx_point_tx_source;not null" json:"sourceKey"`
	Description string      `gorm:"size:255" json:"description"`
	CreatedAt   time.Time   `gorm:"index:idx_point_tx_user_created;index" json:"createdAt"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

// swagger:model Badge
type Badge struct {
	BaseModel
	Code        string   `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string   `gorm:"size:100;not null" json:"name"`
	Description string   `gorm:"size:255" json:"description"`
	Icon        string   `gorm:"size:255" json:"icon"`
	Criteria    Criteria `gorm:"size:30;not null" json:"criteria"`
	Threshold   int      `gorm:"not null" json:"threshold"`
	BonusPoints int      `gorm:"default:0" json:"bonusPoints"`
	Active      bool     `gorm:"default:true" json:"active"`
}

func (Badge) TableName() string {
	return "badges"
}

type UserBadge struct {
	BaseModel
	UserID    uint      `gorm:"uniqueIndex:idx_user_badge;not null" json:"userId"`
	BadgeID   uint      `gorm:"uniqueIndex:idx_user_badge;index;not null" json:"badgeId"`
	Badge     Badge     `gorm:"foreignKey:BadgeID" json:"badge"`
	AwardedAt time.Time `json:"awardedAt"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

type AchievementTier string

const (
	TierBronze AchievementTier = "bronze"
	TierSilver AchievementTier = "silver"
	TierGold   AchievementTier = "gold"
)

// Achievement 有进度的成就定义
// swagger:model Achievement
type Achievement struct {
	BaseModel
	Code         string          `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name         string          `gorm:"size:100;not null" json:"name"`
	Description  string          `gorm:"size:255" json:"description"`
	Tier         AchievementTier `gorm:"size:10;default:'bronze'" json:"tier"`
	Criteria     Criteria        `gorm:"size:30;not null" json:"criteria"`
	Target       int             `gorm:"not null" json:"target"`
	RewardPoints int             `gorm:"default:0" json:"rewardPoints"`
	Active       bool            `gorm:"default:true" json:"active"`
}

func (Achievement) TableName() string {
	return "achievements"
}

type UserAchievement struct {
	BaseModel
	UserID        uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID uint        `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement"`
	Progress      int         `gorm:"default:0" json:"progress"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

type LeaderboardScope string

const (
	ScopeGlobal LeaderboardScope = "global"
	ScopeTeam   LeaderboardScope = "team"
)

type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "all_time"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
)

var LeaderboardPeriods = []LeaderboardPeriod{PeriodAllTime, PeriodWeekly, PeriodMonthly}

func (p LeaderboardPeriod) Valid() bool {
	return p == PeriodAllTime || p == PeriodWeekly || p == PeriodMonthly
}

// LeaderboardEntry 定期重算的排行榜快照行，SubjectID 为用户或团队 ID
type LeaderboardEntry struct {
	ID           uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	Scope        LeaderboardScope  `gorm:"size:10;uniqueIndex:idx_leaderboard_slot;not null" json:"scope"`
	Period       LeaderboardPeriod `gorm:"size:10;uniqueIndex:idx_leaderboard_slot;not null" json:"period"`
	PeriodStart  time.Time         `gorm:"uniqueIndex:idx_leaderboard_slot;not null" json:"periodStart"`
	SubjectID    uint              `gorm:"uniqueIndex:idx_leaderboard_slot;not null" json:"subjectId"`
	Points       int               `gorm:"not null" json:"points"`
	Rank         int               `gorm:"column:position;index;not null" json:"rank"`
	PreviousRank int               `gorm:"column:previous_position;default:0" json:"previousRank"`
	ComputedAt   time.Time         `json:"computedAt"`
}

func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}
