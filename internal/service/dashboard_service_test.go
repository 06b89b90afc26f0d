package service

import (
	"context"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboard(f *fixture) *DashboardService {
	return NewDashboardService(
		f.users,
		repository.NewCourseRepository(f.db),
		f.points,
		f.badges,
		repository.NewEventRepository(f.db),
		f.gamification,
		f.challenge,
	)
}

func TestStudentDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	student := f.createUser(t, "student", model.Student)

	_, err := f.course.Enroll(ctx, student.ID, s.course.ID)
	require.NoError(t, err)
	_, err = f.course.CompleteMaterial(ctx, student.ID, s.materials[0].ID)
	require.NoError(t, err)
	_, err = f.event.CreateEvent(ctx, s.teacher.UserID, EventRequest{
		Title:   "答疑",
		StartAt: baseTime.Add(24 * time.Hour),
		EndAt:   baseTime.Add(25 * time.Hour),
	})
	require.NoError(t, err)
	_, err = f.gamification.RecordLogin(ctx, student.ID, baseTime)
	require.NoError(t, err)

	dashboard, err := newDashboard(f).GetStudentDashboard(ctx, student.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 10, dashboard.Profile.Points.TotalPoints)
	require.Len(t, dashboard.Courses, 1)
	assert.Equal(t, 50, dashboard.Courses[0].Progress)
	require.Len(t, dashboard.UpcomingEvents, 1)
	assert.Equal(t, "答疑", dashboard.UpcomingEvents[0].Title)
	assert.Empty(t, dashboard.ActiveChallenges)
}

func TestAdminOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	for _, name := range []string{"s1", "s2"} {
		u := f.createUser(t, name, model.Student)
		_, err := f.course.Enroll(ctx, u.ID, s.course.ID)
		require.NoError(t, err)
	}
	_, err := f.course.CreateCourse(ctx, s.teacher, CourseRequest{Title: "草稿"})
	require.NoError(t, err)

	overview, err := newDashboard(f).GetAdminOverview(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(3), overview.TotalUsers)
	assert.Equal(t, int64(2), overview.Courses.Total)
	assert.Equal(t, int64(1), overview.Courses.Published)
	assert.Equal(t, int64(2), overview.Courses.Enrollments)
	assert.Zero(t, overview.CompletionRate)
	require.NotEmpty(t, overview.TopCourses)
	assert.Equal(t, baseTime, overview.GeneratedAt)
}
