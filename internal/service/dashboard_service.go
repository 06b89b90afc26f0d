package service

import (
	"context"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"math"
	"time"
)

const (
	activeWindow      = 7 * 24 * time.Hour
	dashboardTopN     = 5
	upcomingEventsMax = 5
)

type DashboardService struct {
	UserRepo     *repository.UserRepository
	CourseRepo   *repository.CourseRepository
	PointsRepo   *repository.PointsRepository
	BadgeRepo    *repository.BadgeRepository
	EventRepo    *repository.EventRepository
	Gamification *GamificationService
	Challenges   *ChallengeService
}

func NewDashboardService(
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	pointsRepo *repository.PointsRepository,
	badgeRepo *repository.BadgeRepository,
	eventRepo *repository.EventRepository,
	gamification *GamificationService,
	challenges *ChallengeService,
) *DashboardService {
	return &DashboardService{
		UserRepo:     userRepo,
		CourseRepo:   courseRepo,
		PointsRepo:   pointsRepo,
		BadgeRepo:    badgeRepo,
		EventRepo:    eventRepo,
		Gamification: gamification,
		Challenges:   challenges,
	}
}

type AdminOverview struct {
	UsersByRole    []repository.RoleCount         `json:"usersByRole"`
	TotalUsers     int64                          `json:"totalUsers"`
	ActiveUsers    int64                          `json:"activeUsers"`
	Courses        repository.CourseStats         `json:"courses"`
	CompletionRate float64                        `json:"completionRate"`
	PointsIssued7d int64                          `json:"pointsIssued7d"`
	BadgesAwarded  int64                          `json:"badgesAwarded"`
	ActiveEvents   int64                          `json:"activeEvents"`
	TopBadges      []repository.BadgeHolders      `json:"topBadges"`
	TopCourses     []repository.CourseEnrollments `json:"topCourses"`
	GeneratedAt    time.Time                      `json:"generatedAt"`
}

type StudentDashboard struct {
	Profile          *Profile                    `json:"profile"`
	Courses          []repository.EnrolledCourse `json:"courses"`
	ActiveChallenges []ChallengeProgress         `json:"activeChallenges"`
	UpcomingEvents   []model.Event               `json:"upcomingEvents"`
}

func (s *DashboardService) GetAdminOverview(ctx context.Context, now time.Time) (*AdminOverview, error) {
	db := s.UserRepo.DB.WithContext(ctx)
	users := &repository.UserRepository{DB: db}
	since := now.Add(-activeWindow)

	overview := &AdminOverview{GeneratedAt: now}
	var err error
	if overview.UsersByRole, err = users.CountByRole(); err != nil {
		return nil, err
	}
	for _, rc := range overview.UsersByRole {
		overview.TotalUsers += rc.Count
	}
	if overview.ActiveUsers, err = users.CountActiveSince(since); err != nil {
		return nil, err
	}

	courses := s.CourseRepo.WithTx(db)
	if overview.Courses, err = courses.Stats(); err != nil {
		return nil, err
	}
	if overview.Courses.Enrollments > 0 {
		rate := float64(overview.Courses.Completed) / float64(overview.Courses.Enrollments) * 100
		overview.CompletionRate = math.Round(rate*10) / 10
	}
	if overview.TopCourses, err = courses.TopCourses(dashboardTopN); err != nil {
		return nil, err
	}

	if overview.PointsIssued7d, err = s.PointsRepo.WithTx(db).SumIssuedSince(since); err != nil {
		return nil, err
	}

	badges := s.BadgeRepo.WithTx(db)
	if overview.BadgesAwarded, err = badges.CountAwarded(); err != nil {
		return nil, err
	}
	if overview.TopBadges, err = badges.TopBadges(dashboardTopN); err != nil {
		return nil, err
	}

	if s.EventRepo != nil {
		if overview.ActiveEvents, err = s.EventRepo.WithTx(db).CountActive(now); err != nil {
			return nil, err
		}
	}
	return overview, nil
}

func (s *DashboardService) GetStudentDashboard(ctx context.Context, userID uint, now time.Time) (*StudentDashboard, error) {
	profile, err := s.Gamification.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	dashboard := &StudentDashboard{Profile: profile}

	if dashboard.Courses, err = s.CourseRepo.WithTx(s.CourseRepo.DB.WithContext(ctx)).ListEnrolledCourses(userID); err != nil {
		return nil, err
	}
	if s.Challenges != nil {
		if dashboard.ActiveChallenges, err = s.Challenges.ListUserChallenges(ctx, userID, now); err != nil {
			return nil, err
		}
	}
	if s.EventRepo != nil {
		events, _, err := s.EventRepo.WithTx(s.EventRepo.DB.WithContext(ctx)).List(model.EventUpcoming, now, 1, upcomingEventsMax)
		if err != nil {
			return nil, err
		}
		dashboard.UpcomingEvents = events
	}
	return dashboard, nil
}
