package service

import (
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelFor(t *testing.T) {
	t.Parallel()

	thresholds := config.DefaultGamification().LevelThresholds

	tests := []struct {
		name   string
		points int
		want   int
	}{
		{name: "zero points is level one", points: 0, want: 1},
		{name: "just below second threshold", points: 99, want: 1},
		{name: "exactly on threshold", points: 100, want: 2},
		{name: "middle of the table", points: 2100, want: 6},
		{name: "last threshold", points: 11000, want: 10},
		{name: "beyond table uses last step", points: 11000 + 3*3000 + 10, want: 13},
		{name: "negative points", points: -5, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LevelFor(tt.points, thresholds))
		})
	}

	assert.Equal(t, 1, LevelFor(500, nil))
}

func TestNextLevelPoints(t *testing.T) {
	t.Parallel()

	thresholds := config.DefaultGamification().LevelThresholds

	assert.Equal(t, 100, NextLevelPoints(1, thresholds))
	assert.Equal(t, 250, NextLevelPoints(2, thresholds))
	assert.Equal(t, 14000, NextLevelPoints(10, thresholds))
	assert.Equal(t, 17000, NextLevelPoints(11, thresholds))
	assert.Equal(t, 0, NextLevelPoints(1, []int{0}))

	// 升级所需积分与 LevelFor 一致
	for level := 1; level < 15; level++ {
		next := NextLevelPoints(level, thresholds)
		assert.Equal(t, level+1, LevelFor(next, thresholds), "level %d", level)
		assert.Equal(t, level, LevelFor(next-1, thresholds), "level %d", level)
	}
}

func TestAdvanceStreak(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name        string
		current     int
		lastActive  *time.Time
		today       time.Time
		wantStreak  int
		wantChanged bool
	}{
		{name: "first login", current: 0, lastActive: nil, today: day(10), wantStreak: 1, wantChanged: true},
		{name: "same day", current: 3, lastActive: ptr(day(10)), today: day(10).Add(20 * time.Hour), wantStreak: 3, wantChanged: false},
		{name: "next day", current: 3, lastActive: ptr(day(10)), today: day(11), wantStreak: 4, wantChanged: true},
		{name: "gap resets", current: 3, lastActive: ptr(day(10)), today: day(13), wantStreak: 1, wantChanged: true},
		{name: "earlier event keeps streak", current: 3, lastActive: ptr(day(10)), today: day(8), wantStreak: 3, wantChanged: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			streak, changed := AdvanceStreak(tt.current, tt.lastActive, tt.today)
			assert.Equal(t, tt.wantStreak, streak)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestAdvanceStreakAcrossDST(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// 2026-03-29 欧洲夏令时开始，当天只有 23 小时
	last := time.Date(2026, 3, 29, 0, 0, 0, 0, loc)
	today := time.Date(2026, 3, 30, 0, 0, 0, 0, loc)
	streak, changed := AdvanceStreak(5, &last, today)
	assert.Equal(t, 6, streak)
	assert.True(t, changed)
}

func TestLoginPoints(t *testing.T) {
	t.Parallel()

	rules := config.DefaultGamification()
	assert.Equal(t, 10, LoginPoints(rules, 1))
	assert.Equal(t, 12, LoginPoints(rules, 2))
	assert.Equal(t, 28, LoginPoints(rules, 10))
	assert.Equal(t, 30, LoginPoints(rules, 11))
	assert.Equal(t, 30, LoginPoints(rules, 365))
}

func TestTestPoints(t *testing.T) {
	t.Parallel()

	rules := config.DefaultGamification()
	assert.Equal(t, 0, TestPoints(rules, 59))
	assert.Equal(t, 20, TestPoints(rules, 60))
	assert.Equal(t, 20, TestPoints(rules, 89))
	assert.Equal(t, 35, TestPoints(rules, 90))
	assert.Equal(t, 45, TestPoints(rules, 100))
}

func TestStudyPoints(t *testing.T) {
	t.Parallel()

	rules := config.DefaultGamification()
	assert.Equal(t, 0, StudyPoints(rules, 0, 0))
	assert.Equal(t, 0, StudyPoints(rules, 4, 0))
	assert.Equal(t, 6, StudyPoints(rules, 34, 0))
	assert.Equal(t, 10, StudyPoints(rules, 600, 50))
	assert.Equal(t, 0, StudyPoints(rules, 600, 60))
	assert.Equal(t, 0, StudyPoints(rules, 600, 75))
}

func TestRankEntries(t *testing.T) {
	t.Parallel()

	ranked := RankEntries([]repository.SubjectPoints{
		{SubjectID: 4, Points: 50},
		{SubjectID: 2, Points: 80},
		{SubjectID: 3, Points: 50},
		{SubjectID: 1, Points: 10},
	})

	assert.Equal(t, []RankedSubject{
		{SubjectID: 2, Points: 80, Rank: 1},
		{SubjectID: 3, Points: 50, Rank: 2},
		{SubjectID: 4, Points: 50, Rank: 2},
		{SubjectID: 1, Points: 10, Rank: 4},
	}, ranked)
	assert.Empty(t, RankEntries(nil))
}

func TestPeriodStart(t *testing.T) {
	t.Parallel()

	tuesday := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, monday, PeriodStart(model.PeriodWeekly, tuesday))
	assert.Equal(t, monday, PeriodStart(model.PeriodWeekly, sunday))
	assert.Equal(t, monday, PeriodStart(model.PeriodWeekly, monday))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), PeriodStart(model.PeriodMonthly, tuesday))
	assert.Equal(t, AllTimeStart, PeriodStart(model.PeriodAllTime, tuesday))
}
