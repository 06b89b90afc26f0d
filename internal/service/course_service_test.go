package service

import (
	"context"
	"encoding/json"
	"learning_platform/internal/model"
	"learning_platform/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type courseSetup struct {
	teacher   Actor
	course    *model.Course
	topic     *model.Topic
	subtopic  *model.Subtopic
	materials []*model.Material
	test      *model.Test
}

func setupCourse(t *testing.T, f *fixture) *courseSetup {
	t.Helper()
	ctx := context.Background()
	author := f.createUser(t, "teacher", model.Teacher)
	s := &courseSetup{teacher: Actor{UserID: author.ID, Role: model.Teacher}}

	var err error
	s.course, err = f.course.CreateCourse(ctx, s.teacher, CourseRequest{Title: "Go 入门", Description: "基础语法"})
	require.NoError(t, err)
	s.topic, err = f.course.AddTopic(ctx, s.teacher, s.course.ID, "变量")
	require.NoError(t, err)
	s.subtopic, err = f.course.AddSubtopic(ctx, s.teacher, s.topic.ID, "声明")
	require.NoError(t, err)
	for _, req := range []MaterialRequest{
		{Title: "视频讲解", Type: model.MaterialVideo, ObjectKey: "videos/vars.mp4", DurationMinutes: 12},
		{Title: "官方文档", Type: model.MaterialLink, URL: "https://go.dev/ref/spec"},
	} {
		m, err := f.course.AddMaterial(ctx, s.teacher, s.subtopic.ID, req)
		require.NoError(t, err)
		s.materials = append(s.materials, m)
	}
	s.test, err = f.course.CreateTest(ctx, s.teacher, s.course.ID, CreateTestRequest{
		Title: "小测",
		Questions: []QuestionRequest{
			{Prompt: "零值", Options: []string{"0", "nil"}, Answer: "0"},
			{Prompt: "短变量声明", Answer: ":="},
		},
	})
	require.NoError(t, err)
	_, err = f.course.PublishCourse(ctx, s.teacher, s.course.ID, true)
	require.NoError(t, err)
	return s
}

func TestCourseCompletionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	student := f.createUser(t, "student", model.Student)

	_, err := f.course.CompleteMaterial(ctx, student.ID, s.materials[0].ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	_, err = f.course.Enroll(ctx, student.ID, s.course.ID)
	require.NoError(t, err)
	_, err = f.course.Enroll(ctx, student.ID, s.course.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyEnrolled)

	progress, err := f.course.CompleteMaterial(ctx, student.ID, s.materials[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, progress.Progress)
	assert.False(t, progress.Completed)

	// 重复完成不影响进度
	progress, err = f.course.CompleteMaterial(ctx, student.ID, s.materials[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 50, progress.Progress)

	progress, err = f.course.CompleteMaterial(ctx, student.ID, s.materials[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Progress)
	assert.False(t, progress.Completed, "test not passed yet")

	test, err := f.course.GetTest(ctx, s.test.ID)
	require.NoError(t, err)
	require.Len(t, test.Questions, 2)
	raw, err := json.Marshal(test.Questions[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "answer")

	answers := map[uint]string{test.Questions[0].ID: " 0 ", test.Questions[1].ID: "="}
	submission, err := f.course.SubmitTest(ctx, student.ID, s.test.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 50, submission.Attempt.Percentage)
	assert.False(t, submission.Attempt.Passed)
	assert.Equal(t, 0, submission.Award.PointsAwarded)
	assert.Nil(t, submission.CourseProgress)

	answers[test.Questions[1].ID] = ":="
	submission, err = f.course.SubmitTest(ctx, student.ID, s.test.ID, answers)
	require.NoError(t, err)
	assert.Equal(t, 100, submission.Attempt.Percentage)
	assert.True(t, submission.Attempt.Passed)
	assert.Equal(t, 45, submission.Award.PointsAwarded)
	require.NotNil(t, submission.CourseProgress)
	assert.True(t, submission.CourseProgress.Completed)
	assert.Equal(t, 100, submission.CourseProgress.Award.PointsAwarded)

	up := f.userPoints(t, student.ID)
	assert.Equal(t, 145, up.TotalPoints)
	assert.Equal(t, 1, up.CoursesCompleted)

	enrolled, err := f.course.ListEnrolledCourses(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, 100, enrolled[0].Progress)
	assert.NotNil(t, enrolled[0].CompletedAt)

	// 选课后自动加入课程讨论组
	convs, err := f.chat.ListConversations(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, model.ConversationCourse, convs[0].Type)
}

func TestCourseTreeVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	student := f.createUser(t, "viewer", model.Student)
	viewer := Actor{UserID: student.ID, Role: model.Student}

	tree, err := f.course.GetCourseTree(ctx, viewer, s.course.ID)
	require.NoError(t, err)
	require.Len(t, tree.Topics, 1)
	require.Len(t, tree.Topics[0].Subtopics, 1)
	materials := tree.Topics[0].Subtopics[0].Materials
	require.Len(t, materials, 2)
	assert.Equal(t, "/uploads/videos/vars.mp4", materials[0].URL)
	assert.Equal(t, "https://go.dev/ref/spec", materials[1].URL)

	_, err = f.course.PublishCourse(ctx, s.teacher, s.course.ID, false)
	require.NoError(t, err)
	_, err = f.course.GetCourseTree(ctx, viewer, s.course.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	_, err = f.course.GetCourseTree(ctx, s.teacher, s.course.ID)
	assert.NoError(t, err)

	_, err = f.course.Enroll(ctx, student.ID, s.course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotPublished)
}

func TestCourseAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	other := f.createUser(t, "other", model.Teacher)
	outsider := Actor{UserID: other.ID, Role: model.Teacher}

	_, err := f.course.UpdateCourse(ctx, outsider, s.course.ID, CourseRequest{Title: "hijack"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = f.course.AddMaterial(ctx, outsider, s.subtopic.ID, MaterialRequest{Title: "x", Type: model.MaterialArticle})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	err = f.course.DeleteMaterial(ctx, outsider, s.materials[0].ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	admin := Actor{UserID: 9999, Role: model.Admin}
	course, err := f.course.UpdateCourse(ctx, admin, s.course.ID, CourseRequest{Title: "Go 进阶"})
	require.NoError(t, err)
	assert.Equal(t, "Go 进阶", course.Title)

	_, err = f.course.AddMaterial(ctx, s.teacher, s.subtopic.ID, MaterialRequest{Title: "x", Type: "podcast"})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestReorderTopics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)

	second, err := f.course.AddTopic(ctx, s.teacher, s.course.ID, "函数")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Order)

	require.NoError(t, f.course.ReorderTopics(ctx, s.teacher, s.course.ID, []uint{second.ID, s.topic.ID}))
	tree, err := f.course.GetCourseTree(ctx, s.teacher, s.course.ID)
	require.NoError(t, err)
	require.Len(t, tree.Topics, 2)
	assert.Equal(t, second.ID, tree.Topics[0].ID)

	err = f.course.ReorderTopics(ctx, s.teacher, s.course.ID, []uint{second.ID})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	err = f.course.ReorderTopics(ctx, s.teacher, s.course.ID, []uint{second.ID, second.ID})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
	err = f.course.ReorderTopics(ctx, s.teacher, s.course.ID, []uint{second.ID, 12345})
	assert.ErrorIs(t, err, util.ErrInvalidArgument)
}

func TestSubmitTestMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	student := f.createUser(t, "limited", model.Student)

	limited, err := f.course.CreateTest(ctx, s.teacher, s.course.ID, CreateTestRequest{
		Title:       "限次测验",
		MaxAttempts: 1,
		Questions:   []QuestionRequest{{Prompt: "1+1", Answer: "2"}},
	})
	require.NoError(t, err)
	_, err = f.course.Enroll(ctx, student.ID, s.course.ID)
	require.NoError(t, err)

	_, err = f.course.SubmitTest(ctx, student.ID, limited.ID, map[uint]string{})
	require.NoError(t, err)
	_, err = f.course.SubmitTest(ctx, student.ID, limited.ID, map[uint]string{})
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}

func TestRecordStudySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)
	student := f.createUser(t, "learner", model.Student)

	_, err := f.course.RecordStudySession(ctx, student.ID, &s.course.ID, 30)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	result, err := f.course.RecordStudySession(ctx, student.ID, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, 6, result.PointsAwarded)

	_, err = f.course.RecordStudySession(ctx, student.ID, nil, -1)
	assert.ErrorIs(t, err, util.ErrInvalidEvent)
}

func TestDeleteCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := setupCourse(t, f)

	require.NoError(t, f.course.DeleteCourse(ctx, s.teacher, s.course.ID))
	_, err := f.course.GetCourseTree(ctx, s.teacher, s.course.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	var materials int64
	require.NoError(t, f.db.Model(&model.Material{}).Count(&materials).Error)
	assert.Zero(t, materials)
}
