package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseService 课程内容编排、选课、学习进度与测验
type CourseService struct {
	CourseRepo   *repository.CourseRepository
	TestRepo     *repository.TestRepository
	Storage      *StorageService
	Gamification *GamificationService
	Chat         *ChatService

	now func() time.Time
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	testRepo *repository.TestRepository,
	storage *StorageService,
	gamification *GamificationService,
	chat *ChatService,
) *CourseService {
	return &CourseService{
		CourseRepo:   courseRepo,
		TestRepo:     testRepo,
		Storage:      storage,
		Gamification: gamification,
		Chat:         chat,
		now:          time.Now,
	}
}

type CourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	CoverKey    string `json:"coverKey"`
}

type MaterialRequest struct {
	Title           string             `json:"title" binding:"required"`
	Type            model.MaterialType `json:"type" binding:"required"`
	Content         string             `json:"content"`
	URL             string             `json:"url"`
	ObjectKey       string             `json:"objectKey"`
	DurationMinutes int                `json:"durationMinutes"`
}

func (r MaterialRequest) validate() error {
	switch r.Type {
	case model.MaterialVideo, model.MaterialArticle, model.MaterialLink, model.MaterialFile:
	default:
		return fmt.Errorf("%w: unknown material type %q", util.ErrInvalidArgument, r.Type)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	if r.DurationMinutes < 0 {
		return fmt.Errorf("%w: durationMinutes must not be negative", util.ErrInvalidArgument)
	}
	return nil
}

type QuestionRequest struct {
	Prompt  string   `json:"prompt" binding:"required"`
	Options []string `json:"options"`
	Answer  string   `json:"answer" binding:"required"`
	Points  int      `json:"points"`
}

type CreateTestRequest struct {
	SubtopicID   *uint             `json:"subtopicId"`
	Title        string            `json:"title" binding:"required"`
	PassingScore int               `json:"passingScore"`
	MaxAttempts  int               `json:"maxAttempts"`
	Questions    []QuestionRequest `json:"questions" binding:"required"`
}

type CourseProgress struct {
	CourseID  uint         `json:"courseId"`
	Progress  int          `json:"progress"`
	Completed bool         `json:"completed"`
	Award     *AwardResult `json:"award,omitempty"`
}

type TestSubmission struct {
	Attempt        model.TestAttempt `json:"attempt"`
	Award          *AwardResult      `json:"award,omitempty"`
	CourseProgress *CourseProgress   `json:"courseProgress,omitempty"`
}

func (s *CourseService) repo(ctx context.Context) *repository.CourseRepository {
	return s.CourseRepo.WithTx(s.CourseRepo.DB.WithContext(ctx))
}

// authorize 仅作者或管理员可修改课程
func (s *CourseService) authorize(ctx context.Context, actor Actor, courseID uint) (*model.Course, error) {
	course, err := s.repo(ctx).FindByID(courseID)
	if err != nil {
		return nil, notFound(err)
	}
	if !actor.IsAdmin() && course.AuthorID != actor.UserID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseService) CreateCourse(ctx context.Context, actor Actor, req CourseRequest) (*model.Course, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	course := &model.Course{Title: title, Description: req.Description, CoverKey: req.CoverKey, AuthorID: actor.UserID}
	if err := s.repo(ctx).Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) UpdateCourse(ctx context.Context, actor Actor, courseID uint, req CourseRequest) (*model.Course, error) {
	course, err := s.authorize(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		course.Title = title
	}
	course.Description = req.Description
	course.CoverKey = req.CoverKey
	if err := s.repo(ctx).Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(ctx context.Context, actor Actor, courseID uint) error {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return err
	}
	return s.repo(ctx).Delete(courseID)
}

func (s *CourseService) PublishCourse(ctx context.Context, actor Actor, courseID uint, publish bool) (*model.Course, error) {
	course, err := s.authorize(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	course.Published = publish
	if err := s.repo(ctx).Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) AddTopic(ctx context.Context, actor Actor, courseID uint, title string) (*model.Topic, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	repo := s.repo(ctx)
	order, err := repo.NextOrder(&model.Topic{}, "course_id", courseID)
	if err != nil {
		return nil, err
	}
	topic := &model.Topic{CourseID: courseID, Title: strings.TrimSpace(title), Order: order}
	if err := repo.CreateTopic(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *CourseService) AddSubtopic(ctx context.Context, actor Actor, topicID uint, title string) (*model.Subtopic, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title required", util.ErrInvalidArgument)
	}
	repo := s.repo(ctx)
	topic, err := repo.FindTopic(topicID)
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := s.authorize(ctx, actor, topic.CourseID); err != nil {
		return nil, err
	}
	order, err := repo.NextOrder(&model.Subtopic{}, "topic_id", topicID)
	if err != nil {
		return nil, err
	}
	sub := &model.Subtopic{TopicID: topicID, Title: strings.TrimSpace(title), Order: order}
	if err := repo.CreateSubtopic(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *CourseService) AddMaterial(ctx context.Context, actor Actor, subtopicID uint, req MaterialRequest) (*model.Material, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	repo := s.repo(ctx)
	courseID, err := repo.CourseIDOfSubtopic(subtopicID)
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	order, err := repo.NextOrder(&model.Material{}, "subtopic_id", subtopicID)
	if err != nil {
		return nil, err
	}
	m := &model.Material{
		SubtopicID:      subtopicID,
		Title:           strings.TrimSpace(req.Title),
		Type:            req.Type,
		Content:         req.Content,
		URL:             req.URL,
		ObjectKey:       req.ObjectKey,
		DurationMinutes: req.DurationMinutes,
		Order:           order,
	}
	if err := repo.CreateMaterial(m); err != nil {
		return nil, err
	}
	return m, nil
}

// authorizeMaterial 返回资料及其所属课程 ID
func (s *CourseService) authorizeMaterial(ctx context.Context, actor Actor, materialID uint) (*model.Material, error) {
	repo := s.repo(ctx)
	m, err := repo.FindMaterial(materialID)
	if err != nil {
		return nil, notFound(err)
	}
	courseID, err := repo.CourseIDOfSubtopic(m.SubtopicID)
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseService) UpdateMaterial(ctx context.Context, actor Actor, materialID uint, req MaterialRequest) (*model.Material, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	m, err := s.authorizeMaterial(ctx, actor, materialID)
	if err != nil {
		return nil, err
	}
	m.Title = strings.TrimSpace(req.Title)
	m.Type = req.Type
	m.Content = req.Content
	m.URL = req.URL
	m.ObjectKey = req.ObjectKey
	m.DurationMinutes = req.DurationMinutes
	if err := s.repo(ctx).UpdateMaterial(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseService) DeleteMaterial(ctx context.Context, actor Actor, materialID uint) error {
	if _, err := s.authorizeMaterial(ctx, actor, materialID); err != nil {
		return err
	}
	return s.repo(ctx).DeleteMaterial(materialID)
}

// ReorderTopics topicIDs 必须恰好包含课程的全部主题
func (s *CourseService) ReorderTopics(ctx context.Context, actor Actor, courseID uint, topicIDs []uint) error {
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return err
	}
	seen := make(map[uint]bool, len(topicIDs))
	for _, id := range topicIDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate topic %d", util.ErrInvalidArgument, id)
		}
		seen[id] = true
	}
	repo := s.repo(ctx)
	count, err := repo.CountTopics(courseID)
	if err != nil {
		return err
	}
	if int(count) != len(topicIDs) {
		return fmt.Errorf("%w: expected %d topics, got %d", util.ErrInvalidArgument, count, len(topicIDs))
	}
	if err := repo.ReorderTopics(courseID, topicIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: topic does not belong to course", util.ErrInvalidArgument)
		}
		return err
	}
	return nil
}

func (s *CourseService) CreateTest(ctx context.Context, actor Actor, courseID uint, req CreateTestRequest) (*model.Test, error) {
	if strings.TrimSpace(req.Title) == "" || len(req.Questions) == 0 {
		return nil, fmt.Errorf("%w: title and questions required", util.ErrInvalidArgument)
	}
	if req.PassingScore == 0 {
		req.PassingScore = 60
	}
	if req.PassingScore < 0 || req.PassingScore > 100 || req.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: passingScore must be 0-100", util.ErrInvalidArgument)
	}
	if _, err := s.authorize(ctx, actor, courseID); err != nil {
		return nil, err
	}
	if req.SubtopicID != nil {
		owner, err := s.repo(ctx).CourseIDOfSubtopic(*req.SubtopicID)
		if err != nil || owner != courseID {
			return nil, fmt.Errorf("%w: subtopic does not belong to course", util.ErrInvalidArgument)
		}
	}

	test := &model.Test{
		CourseID:     courseID,
		SubtopicID:   req.SubtopicID,
		Title:        strings.TrimSpace(req.Title),
		PassingScore: req.PassingScore,
		MaxAttempts:  req.MaxAttempts,
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Prompt) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, fmt.Errorf("%w: question %d needs prompt and answer", util.ErrInvalidArgument, i+1)
		}
		options, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		points := q.Points
		if points <= 0 {
			points = 1
		}
		test.Questions = append(test.Questions, model.TestQuestion{
			Prompt:  q.Prompt,
			Options: string(options),
			Answer:  q.Answer,
			Points:  points,
			Order:   i + 1,
		})
	}
	if err := s.TestRepo.WithTx(s.TestRepo.DB.WithContext(ctx)).Create(test); err != nil {
		return nil, err
	}
	return test, nil
}

// GetTest 答案字段不会序列化
func (s *CourseService) GetTest(ctx context.Context, testID uint) (*model.Test, error) {
	test, err := s.TestRepo.WithTx(s.TestRepo.DB.WithContext(ctx)).FindWithQuestions(testID)
	if err != nil {
		return nil, notFound(err)
	}
	return test, nil
}

func (s *CourseService) ListPublishedCourses(ctx context.Context, page, limit int, search string) ([]model.Course, int64, error) {
	page, limit = util.NormalizePage(page, limit)
	return s.repo(ctx).ListPublished(page, limit, strings.TrimSpace(search))
}

// GetCourseTree 未发布课程仅作者与管理员可见
func (s *CourseService) GetCourseTree(ctx context.Context, viewer Actor, courseID uint) (*model.Course, error) {
	course, err := s.repo(ctx).FindTree(courseID)
	if err != nil {
		return nil, notFound(err)
	}
	if !course.Published && !viewer.IsAdmin() && course.AuthorID != viewer.UserID {
		return nil, util.ErrNotFound
	}
	for i := range course.Topics {
		for j := range course.Topics[i].Subtopics {
			materials := course.Topics[i].Subtopics[j].Materials
			for k := range materials {
				materials[k].URL = s.Storage.ResolveMaterialURL(ctx, materials[k].URL, materials[k].ObjectKey)
			}
		}
	}
	return course, nil
}

// Enroll 选课后加入课程讨论组
func (s *CourseService) Enroll(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	repo := s.repo(ctx)
	course, err := repo.FindByID(courseID)
	if err != nil {
		return nil, notFound(err)
	}
	if !course.Published {
		return nil, util.ErrCourseNotPublished
	}
	if _, err := repo.FindEnrollment(userID, courseID); err == nil {
		return nil, util.ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	enrollment := &model.Enrollment{UserID: userID, CourseID: courseID}
	if err := repo.CreateEnrollment(enrollment); err != nil {
		return nil, err
	}

	if s.Chat != nil {
		if err := s.Chat.JoinCourseChat(ctx, course, userID); err != nil {
			logger.Log.Warn("加入课程讨论组失败", zap.Uint("courseId", courseID), zap.Uint("userId", userID), zap.Error(err))
		}
	}
	return enrollment, nil
}

func (s *CourseService) enrollment(repo *repository.CourseRepository, userID, courseID uint) (*model.Enrollment, error) {
	e, err := repo.FindEnrollment(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotEnrolled
	}
	return e, err
}

// refreshProgress 重算进度；资料全部完成且测验全部通过时完成课程
func (s *CourseService) refreshProgress(ctx context.Context, repo *repository.CourseRepository, e *model.Enrollment) (*CourseProgress, error) {
	total, err := repo.CountMaterials(e.CourseID)
	if err != nil {
		return nil, err
	}
	done, err := repo.CountCompletedMaterials(e.UserID, e.CourseID)
	if err != nil {
		return nil, err
	}
	progress := 100
	if total > 0 {
		progress = int(done * 100 / total)
	}
	e.Progress = progress

	result := &CourseProgress{CourseID: e.CourseID, Progress: progress, Completed: e.CompletedAt != nil}
	if progress == 100 && e.CompletedAt == nil {
		passed, err := s.TestRepo.WithTx(repo.DB).AllTestsPassed(e.UserID, e.CourseID)
		if err != nil {
			return nil, err
		}
		if passed {
			now := s.now()
			e.CompletedAt = &now
			result.Completed = true
		}
	}
	if err := repo.UpdateEnrollment(e); err != nil {
		return nil, err
	}

	if result.Completed && s.Gamification != nil {
		award, err := s.Gamification.RecordCourseCompletion(ctx, e.UserID, e.CourseID)
		if err != nil {
			return nil, err
		}
		result.Award = award
	}
	return result, nil
}

func (s *CourseService) CompleteMaterial(ctx context.Context, userID, materialID uint) (*CourseProgress, error) {
	repo := s.repo(ctx)
	m, err := repo.FindMaterial(materialID)
	if err != nil {
		return nil, notFound(err)
	}
	courseID, err := repo.CourseIDOfSubtopic(m.SubtopicID)
	if err != nil {
		return nil, notFound(err)
	}
	e, err := s.enrollment(repo, userID, courseID)
	if err != nil {
		return nil, err
	}
	if _, err := repo.CompleteMaterial(userID, materialID); err != nil {
		return nil, err
	}
	return s.refreshProgress(ctx, repo, e)
}

// gradeAnswer 去除首尾空白后忽略大小写比较
func gradeAnswer(expected, given string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(given))
}

// SubmitTest answers 以题目 ID 为键
func (s *CourseService) SubmitTest(ctx context.Context, userID, testID uint, answers map[uint]string) (*TestSubmission, error) {
	testRepo := s.TestRepo.WithTx(s.TestRepo.DB.WithContext(ctx))
	test, err := testRepo.FindWithQuestions(testID)
	if err != nil {
		return nil, notFound(err)
	}
	repo := s.repo(ctx)
	e, err := s.enrollment(repo, userID, test.CourseID)
	if err != nil {
		return nil, err
	}
	if test.MaxAttempts > 0 {
		count, err := testRepo.CountAttempts(userID, testID)
		if err != nil {
			return nil, err
		}
		if int(count) >= test.MaxAttempts {
			return nil, util.ErrMaxAttemptsReached
		}
	}

	score, maxScore := 0, 0
	for _, q := range test.Questions {
		maxScore += q.Points
		if given, ok := answers[q.ID]; ok && gradeAnswer(q.Answer, given) {
			score += q.Points
		}
	}
	percentage := 0
	if maxScore > 0 {
		percentage = score * 100 / maxScore
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	attempt := model.TestAttempt{
		TestID:     testID,
		UserID:     userID,
		Score:      score,
		MaxScore:   maxScore,
		Percentage: percentage,
		Passed:     percentage >= test.PassingScore,
		Answers:    string(raw),
	}
	if err := testRepo.CreateAttempt(&attempt); err != nil {
		return nil, err
	}

	result := &TestSubmission{Attempt: attempt}
	if s.Gamification != nil {
		if result.Award, err = s.Gamification.RecordTestResult(ctx, userID, testID, attempt.ID, percentage, test.PassingScore); err != nil {
			return nil, err
		}
	}
	if attempt.Passed && e.CompletedAt == nil {
		if result.CourseProgress, err = s.refreshProgress(ctx, repo, e); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RecordStudySession courseID 可为空；指定课程时必须已选课
func (s *CourseService) RecordStudySession(ctx context.Context, userID uint, courseID *uint, minutes int) (*AwardResult, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: study minutes must be positive", util.ErrInvalidEvent)
	}
	repo := s.repo(ctx)
	if courseID != nil {
		if _, err := s.enrollment(repo, userID, *courseID); err != nil {
			return nil, err
		}
	}
	now := s.now()
	if err := repo.CreateStudySession(&model.StudySession{UserID: userID, CourseID: courseID, Minutes: minutes, StudiedAt: now}); err != nil {
		return nil, err
	}
	if s.Gamification == nil {
		return nil, nil
	}
	return s.Gamification.RecordStudyTime(ctx, userID, minutes, now)
}

func (s *CourseService) ListEnrolledCourses(ctx context.Context, userID uint) ([]repository.EnrolledCourse, error) {
	return s.repo(ctx).ListEnrolledCourses(userID)
}
