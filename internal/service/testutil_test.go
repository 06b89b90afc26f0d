package service

import (
	"fmt"
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/pkg/database"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 2026-03-10 是周二
var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := database.OpenSQLite("file:"+name+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	db    *gorm.DB
	clock *testClock

	users        *repository.UserRepository
	points       *repository.PointsRepository
	badges       *repository.BadgeRepository
	achievements *repository.AchievementRepository
	challenges   *repository.ChallengeRepository

	gamification *GamificationService
	leaderboard  *LeaderboardService
	chat         *ChatService
	course       *CourseService
	team         *TeamService
	event        *EventService
	challenge    *ChallengeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := &testClock{now: baseTime}

	f := &fixture{
		db:           db,
		clock:        clock,
		users:        repository.NewUserRepository(db),
		points:       repository.NewPointsRepository(db),
		badges:       repository.NewBadgeRepository(db),
		achievements: repository.NewAchievementRepository(db),
		challenges:   repository.NewChallengeRepository(db),
	}
	courseRepo := repository.NewCourseRepository(db)
	testRepo := repository.NewTestRepository(db)
	teamRepo := repository.NewTeamRepository(db)

	f.gamification = NewGamificationService(db, f.points, f.badges, f.achievements, f.challenges, testRepo, f.users, config.DefaultGamification())
	f.gamification.now = clock.Now

	f.leaderboard = NewLeaderboardService(repository.NewLeaderboardRepository(db, nil), f.points, f.users, teamRepo, f.gamification)
	f.leaderboard.now = clock.Now

	f.chat = NewChatService(repository.NewChatRepository(db), courseRepo, f.users)
	f.chat.now = clock.Now

	storage, err := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()}})
	require.NoError(t, err)
	f.course = NewCourseService(courseRepo, testRepo, storage, f.gamification, f.chat)
	f.course.now = clock.Now

	f.team = NewTeamService(db, teamRepo, f.points)
	f.event = NewEventService(repository.NewEventRepository(db), f.gamification)
	f.challenge = NewChallengeService(f.challenges, f.points)
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		Password: "x",
		Role:     role,
	}
	require.NoError(t, f.users.Create(user))
	return user
}

func (f *fixture) userPoints(t *testing.T, userID uint) *model.UserPoints {
	t.Helper()
	up, err := f.points.FindByUserID(userID)
	require.NoError(t, err)
	return up
}
