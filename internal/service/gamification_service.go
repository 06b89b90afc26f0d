package service

import (
	"context"
	"errors"
	"fmt"
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"learning_platform/pkg/monitoring"
	"learning_platform/pkg/tracing"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GamificationService 将学习事件转换为积分、等级、连续天数、徽章、成就与挑战进度
type GamificationService struct {
	DB              *gorm.DB
	PointsRepo      *repository.PointsRepository
	BadgeRepo       *repository.BadgeRepository
	AchievementRepo *repository.AchievementRepository
	ChallengeRepo   *repository.ChallengeRepository
	TestRepo        *repository.TestRepository
	UserRepo        *repository.UserRepository

	mu    sync.RWMutex
	rules config.GamificationConfig
	now   func() time.Time
}

func NewGamificationService(
	db *gorm.DB,
	pointsRepo *repository.PointsRepository,
	badgeRepo *repository.BadgeRepository,
	achievementRepo *repository.AchievementRepository,
	challengeRepo *repository.ChallengeRepository,
	testRepo *repository.TestRepository,
	userRepo *repository.UserRepository,
	rules config.GamificationConfig,
) *GamificationService {
	return &GamificationService{
		DB:              db,
		PointsRepo:      pointsRepo,
		BadgeRepo:       badgeRepo,
		AchievementRepo: achievementRepo,
		ChallengeRepo:   challengeRepo,
		TestRepo:        testRepo,
		UserRepo:        userRepo,
		rules:           rules.WithDefaults(),
		now:             time.Now,
	}
}

// Rules 当前生效的积分规则
func (s *GamificationService) Rules() config.GamificationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// UpdateRules 配置热更新时整体替换规则
func (s *GamificationService) UpdateRules(rules config.GamificationConfig) {
	rules = rules.WithDefaults()
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	logger.Log.Info("积分规则已更新",
		zap.Int("loginPoints", rules.LoginPoints),
		zap.Ints("levelThresholds", rules.LevelThresholds))
}

// AwardResult 一次事件处理后的结果
type AwardResult struct {
	PointsAwarded         int                 `json:"pointsAwarded"`
	TotalPoints           int                 `json:"totalPoints"`
	Level                 int                 `json:"level"`
	LeveledUp             bool                `json:"leveledUp"`
	Streak                int                 `json:"streak"`
	NewBadges             []model.Badge       `json:"newBadges"`
	CompletedAchievements []model.Achievement `json:"completedAchievements"`
	CompletedChallenges   []model.Challenge   `json:"completedChallenges"`
}

// awardTx 单个事件在一个数据库事务内的处理状态
type awardTx struct {
	points       *repository.PointsRepository
	badges       *repository.BadgeRepository
	achievements *repository.AchievementRepository
	challenges   *repository.ChallengeRepository

	rules    config.GamificationConfig
	at       time.Time
	up       *model.UserPoints
	result   *AwardResult
	credited map[model.PointSource]int
}

// credit 写入流水并累加总积分，source_key 已存在时返回 false
func (t *awardTx) credit(source model.PointSource, sourceKey string, amount int, description string) (bool, error) {
	created, err := t.points.CreateTransaction(&model.PointTransaction{
		UserID:      t.up.UserID,
		Amount:      amount,
		Source:      source,
		SourceKey:   sourceKey,
		Description: description,
		CreatedAt:   t.at,
	})
	if err != nil || !created {
		return false, err
	}
	t.up.TotalPoints += amount
	t.result.PointsAwarded += amount
	t.credited[source] += amount
	return true, nil
}

// evaluate 徽章、成就、挑战的奖励积分可能触发新的奖励，循环直到没有新的变化
func (t *awardTx) evaluate() error {
	userID := t.up.UserID

	badges, err := t.badges.List(true)
	if err != nil {
		return err
	}
	held, err := t.badges.HeldBadgeIDs(userID)
	if err != nil {
		return err
	}
	achievements, err := t.achievements.List(true)
	if err != nil {
		return err
	}
	progress, err := t.achievements.UserProgress(userID)
	if err != nil {
		return err
	}
	participations, err := t.challenges.ActiveParticipations(userID, t.at)
	if err != nil {
		return err
	}

	rounds := len(badges) + len(achievements) + len(participations) + 1
	for i := 0; i < rounds; i++ {
		changed := false

		for _, b := range badges {
			if held[b.ID] || t.up.Counter(b.Criteria) < b.Threshold {
				continue
			}
			awarded, err := t.badges.Award(&model.UserBadge{UserID: userID, BadgeID: b.ID, AwardedAt: t.at})
			if err != nil {
				return err
			}
			held[b.ID] = true
			if !awarded {
				continue
			}
			t.result.NewBadges = append(t.result.NewBadges, b)
			changed = true
			if b.BonusPoints > 0 {
				if _, err := t.credit(model.SourceBadge, fmt.Sprintf("badge:%d", b.ID), b.BonusPoints, "获得徽章 "+b.Name); err != nil {
					return err
				}
			}
		}

		for _, a := range achievements {
			ua := progress[a.ID]
			if ua == nil {
				ua = &model.UserAchievement{UserID: userID, AchievementID: a.ID}
				progress[a.ID] = ua
			}
			if ua.CompletedAt != nil {
				continue
			}
			current := t.up.Counter(a.Criteria)
			if current > a.Target {
				current = a.Target
			}
			if current == ua.Progress {
				continue
			}
			ua.Progress = current
			completed := current >= a.Target
			if completed {
				at := t.at
				ua.CompletedAt = &at
			}
			if err := t.achievements.SaveProgress(ua); err != nil {
				return err
			}
			if !completed {
				continue
			}
			t.result.CompletedAchievements = append(t.result.CompletedAchievements, a)
			changed = true
			if a.RewardPoints > 0 {
				if _, err := t.credit(model.SourceAchievement, fmt.Sprintf("achievement:%d", a.ID), a.RewardPoints, "完成成就 "+a.Name); err != nil {
					return err
				}
			}
		}

		for j := range participations {
			p := &participations[j]
			if p.CompletedAt != nil {
				continue
			}
			current := t.up.Counter(p.Challenge.Criteria) - p.Baseline
			if current < 0 {
				current = 0
			}
			if current > p.Challenge.Target {
				current = p.Challenge.Target
			}
			if current == p.Progress {
				continue
			}
			p.Progress = current
			completed := current >= p.Challenge.Target
			if completed {
				at := t.at
				p.CompletedAt = &at
				t.up.ChallengesCompleted++
				t.result.CompletedChallenges = append(t.result.CompletedChallenges, p.Challenge)
				changed = true
			}
			if err := t.challenges.SaveParticipant(p); err != nil {
				return err
			}
			if completed && p.Challenge.RewardPoints > 0 {
				key := fmt.Sprintf("challenge:%d", p.ChallengeID)
				if _, err := t.credit(model.SourceChallenge, key, p.Challenge.RewardPoints, "完成挑战 "+p.Challenge.Title); err != nil {
					return err
				}
			}
		}

		if !changed {
			break
		}
	}

	t.up.Level = LevelFor(t.up.TotalPoints, t.rules.LevelThresholds)
	return nil
}

// process 在一个事务内执行事件处理、评估与保存，提交后上报指标
func (s *GamificationService) process(ctx context.Context, name string, userID uint, at time.Time, apply func(t *awardTx) error) (result *AwardResult, err error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user", util.ErrInvalidEvent)
	}
	ctx, span := tracing.StartSpan(ctx, "gamification."+name, attribute.Int64("user.id", int64(userID)))
	defer func() { tracing.EndSpan(span, err) }()

	var t *awardTx
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t = &awardTx{
			points:       s.PointsRepo.WithTx(tx),
			badges:       s.BadgeRepo.WithTx(tx),
			achievements: s.AchievementRepo.WithTx(tx),
			challenges:   s.ChallengeRepo.WithTx(tx),
			rules:        s.Rules(),
			at:           at,
			result:       &AwardResult{},
			credited:     make(map[model.PointSource]int),
		}
		up, err := t.points.GetOrCreateForUpdate(userID)
		if err != nil {
			return err
		}
		t.up = up
		startLevel := up.Level

		if err := apply(t); err != nil {
			return err
		}
		if err := t.evaluate(); err != nil {
			return err
		}
		if err := t.points.Save(up); err != nil {
			return err
		}

		t.result.TotalPoints = up.TotalPoints
		t.result.Level = up.Level
		t.result.LeveledUp = up.Level > startLevel
		t.result.Streak = up.CurrentStreak
		return nil
	})
	if err != nil {
		logger.Log.Error("积分事件处理失败", zap.String("event", name), zap.Uint("userId", userID), zap.Error(err))
		return nil, err
	}

	for source, amount := range t.credited {
		monitoring.PointsAwarded.WithLabelValues(string(source)).Add(float64(amount))
	}
	if n := len(t.result.NewBadges); n > 0 {
		monitoring.BadgesAwarded.Add(float64(n))
	}
	if t.result.LeveledUp {
		logger.Log.Info("用户升级", zap.Uint("userId", userID), zap.Int("level", t.result.Level))
	}
	return t.result, nil
}

func (s *GamificationService) currentTime(at time.Time) time.Time {
	if at.IsZero() {
		return s.now()
	}
	return at
}

// RecordLogin 每个自然日只计一次登录积分
func (s *GamificationService) RecordLogin(ctx context.Context, userID uint, at time.Time) (*AwardResult, error) {
	at = s.currentTime(at)
	day := truncateDay(at)
	key := "login:" + day.Format(util.DateFormat)

	result, err := s.process(ctx, "login", userID, at, func(t *awardTx) error {
		exists, err := t.points.ExistsSourceKey(userID, key)
		if err != nil || exists {
			return err
		}
		streak, changed := AdvanceStreak(t.up.CurrentStreak, t.up.LastActiveDate, day)
		t.up.CurrentStreak = streak
		if streak > t.up.LongestStreak {
			t.up.LongestStreak = streak
		}
		if changed {
			t.up.LastActiveDate = &day
		}
		t.up.LoginDays++
		_, err = t.credit(model.SourceLogin, key, LoginPoints(t.rules, streak), fmt.Sprintf("登录（连续 %d 天）", streak))
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.UserRepo != nil {
		if err := s.UserRepo.UpdateLastLogin(userID, at); err != nil {
			logger.Log.Warn("更新登录时间失败", zap.Uint("userId", userID), zap.Error(err))
		}
	}
	return result, nil
}

func testAwardPrefix(testID uint) string {
	return fmt.Sprintf("test:%d:", testID)
}

// RecordTestResult 同一测验只发放高于历史最高奖励的差额；passingScore 为测验自身及格线，<=0 时取全局 TestPassPercent
func (s *GamificationService) RecordTestResult(ctx context.Context, userID, testID, attemptID uint, percentage, passingScore int) (*AwardResult, error) {
	if testID == 0 || attemptID == 0 || percentage < 0 || percentage > 100 || passingScore > 100 {
		return nil, fmt.Errorf("%w: test result %d%%", util.ErrInvalidEvent, percentage)
	}
	prefix := testAwardPrefix(testID)

	return s.process(ctx, "test", userID, s.now(), func(t *awardTx) error {
		awarded, err := t.points.SumByKeyPrefix(userID, model.SourceTest, prefix)
		if err != nil {
			return err
		}
		best, err := s.TestRepo.WithTx(t.points.DB).BestPercentage(userID, testID, attemptID)
		if err != nil {
			return err
		}

		rules := t.rules
		if passingScore > 0 {
			rules.TestPassPercent = passingScore
		}
		pass := rules.TestPassPercent
		if percentage >= pass && best < pass {
			t.up.TestsCompleted++
		}
		if percentage >= 100 && best < 100 {
			t.up.PerfectScores++
		}

		increment := TestPoints(rules, percentage) - awarded
		if increment <= 0 {
			return nil
		}
		_, err = t.credit(model.SourceTest, fmt.Sprintf("%s%d", prefix, attemptID), increment, fmt.Sprintf("测验得分 %d%%", percentage))
		return err
	})
}

// RecordStudyTime 学习时长积分受每日上限约束
func (s *GamificationService) RecordStudyTime(ctx context.Context, userID uint, minutes int, at time.Time) (*AwardResult, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: study minutes must be positive", util.ErrInvalidEvent)
	}
	at = s.currentTime(at)
	day := truncateDay(at)

	return s.process(ctx, "study", userID, at, func(t *awardTx) error {
		t.up.StudyMinutes += minutes
		today, err := t.points.SumBySourceBetween(userID, model.SourceStudy, day, day.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		points := StudyPoints(t.rules, minutes, today)
		if points <= 0 {
			return nil
		}
		key := fmt.Sprintf("study:%s:%d", day.Format(util.DateFormat), at.UnixNano())
		_, err = t.credit(model.SourceStudy, key, points, fmt.Sprintf("学习 %d 分钟", minutes))
		return err
	})
}

// RecordCourseCompletion 每门课程只计一次
func (s *GamificationService) RecordCourseCompletion(ctx context.Context, userID, courseID uint) (*AwardResult, error) {
	if courseID == 0 {
		return nil, fmt.Errorf("%w: missing course", util.ErrInvalidEvent)
	}
	return s.process(ctx, "course", userID, s.now(), func(t *awardTx) error {
		created, err := t.credit(model.SourceCourse, fmt.Sprintf("course:%d", courseID), t.rules.CourseCompletion, "完成课程")
		if err != nil || !created {
			return err
		}
		t.up.CoursesCompleted++
		return nil
	})
}

// RecordEventAttendance 每个活动只计一次出席
func (s *GamificationService) RecordEventAttendance(ctx context.Context, userID uint, event *model.Event, at time.Time) (*AwardResult, error) {
	if event == nil || event.ID == 0 {
		return nil, fmt.Errorf("%w: missing event", util.ErrInvalidEvent)
	}
	at = s.currentTime(at)
	return s.process(ctx, "event", userID, at, func(t *awardTx) error {
		created, err := t.credit(model.SourceEvent, fmt.Sprintf("event:%d", event.ID), event.RewardPoints, "参加活动 "+event.Title)
		if err != nil || !created {
			return err
		}
		t.up.EventsAttended++
		return nil
	})
}

// AwardPoints 手动或外部发放，sourceKey 重复时不重复发放
func (s *GamificationService) AwardPoints(ctx context.Context, userID uint, amount int, source model.PointSource, sourceKey, description string) (*AwardResult, bool, error) {
	sourceKey = strings.TrimSpace(sourceKey)
	if amount <= 0 || sourceKey == "" {
		return nil, false, fmt.Errorf("%w: amount must be positive and source key set", util.ErrInvalidEvent)
	}
	if source == "" {
		source = model.SourceManual
	}

	var created bool
	result, err := s.process(ctx, "award", userID, s.now(), func(t *awardTx) error {
		var err error
		created, err = t.credit(source, sourceKey, amount, description)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

type AchievementProgress struct {
	Achievement model.Achievement `json:"achievement"`
	Progress    int               `json:"progress"`
	Completed   bool              `json:"completed"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

type Profile struct {
	Points          model.UserPoints      `json:"points"`
	NextLevelPoints int                   `json:"nextLevelPoints"`
	Badges          []model.UserBadge     `json:"badges"`
	Achievements    []AchievementProgress `json:"achievements"`
}

func (s *GamificationService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	rules := s.Rules()
	db := s.DB.WithContext(ctx)
	points, err := s.PointsRepo.WithTx(db).FindByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		points = &model.UserPoints{UserID: userID, Level: 1}
	} else if err != nil {
		return nil, err
	}

	badges, err := s.BadgeRepo.WithTx(db).ListUserBadges(userID)
	if err != nil {
		return nil, err
	}
	achievementRepo := s.AchievementRepo.WithTx(db)
	definitions, err := achievementRepo.List(true)
	if err != nil {
		return nil, err
	}
	progress, err := achievementRepo.UserProgress(userID)
	if err != nil {
		return nil, err
	}

	achievements := make([]AchievementProgress, 0, len(definitions))
	for _, a := range definitions {
		item := AchievementProgress{Achievement: a}
		if ua := progress[a.ID]; ua != nil {
			item.Progress = ua.Progress
			item.Completed = ua.CompletedAt != nil
			item.CompletedAt = ua.CompletedAt
		}
		achievements = append(achievements, item)
	}

	return &Profile{
		Points:          *points,
		NextLevelPoints: NextLevelPoints(points.Level, rules.LevelThresholds),
		Badges:          badges,
		Achievements:    achievements,
	}, nil
}

func (s *GamificationService) ListTransactions(ctx context.Context, userID uint, page, limit int) ([]model.PointTransaction, int64, error) {
	page, limit = util.NormalizePage(page, limit)
	return s.PointsRepo.WithTx(s.DB.WithContext(ctx)).ListTransactions(userID, page, limit)
}

func (s *GamificationService) ListBadges(ctx context.Context, activeOnly bool) ([]model.Badge, error) {
	return s.BadgeRepo.WithTx(s.DB.WithContext(ctx)).List(activeOnly)
}

func (s *GamificationService) ListAchievements(ctx context.Context, activeOnly bool) ([]model.Achievement, error) {
	return s.AchievementRepo.WithTx(s.DB.WithContext(ctx)).List(activeOnly)
}

type BadgeRequest struct {
	Code        string         `json:"code"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Criteria    model.Criteria `json:"criteria" binding:"required"`
	Threshold   int            `json:"threshold"`
	BonusPoints int            `json:"bonusPoints"`
	Active      *bool          `json:"active"`
}

func (r BadgeRequest) validate() error {
	if !r.Criteria.Valid() {
		return fmt.Errorf("%w: unknown criteria %q", util.ErrInvalidArgument, r.Criteria)
	}
	if r.Threshold <= 0 || r.BonusPoints < 0 {
		return fmt.Errorf("%w: threshold must be positive", util.ErrInvalidArgument)
	}
	return nil
}

func (s *GamificationService) CreateBadge(ctx context.Context, req BadgeRequest) (*model.Badge, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code required", util.ErrInvalidArgument)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	repo := s.BadgeRepo.WithTx(s.DB.WithContext(ctx))
	exists, err := repo.ExistsCode(req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrDuplicateDefinition
	}
	badge := &model.Badge{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Criteria:    req.Criteria,
		Threshold:   req.Threshold,
		BonusPoints: req.BonusPoints,
		Active:      req.Active == nil || *req.Active,
	}
	if err := repo.Create(badge); err != nil {
		return nil, err
	}
	return badge, nil
}

// UpdateBadge code 不可修改
func (s *GamificationService) UpdateBadge(ctx context.Context, id uint, req BadgeRequest) (*model.Badge, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	repo := s.BadgeRepo.WithTx(s.DB.WithContext(ctx))
	badge, err := repo.FindByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	badge.Name = req.Name
	badge.Description = req.Description
	badge.Icon = req.Icon
	badge.Criteria = req.Criteria
	badge.Threshold = req.Threshold
	badge.BonusPoints = req.BonusPoints
	if req.Active != nil {
		badge.Active = *req.Active
	}
	if err := repo.Update(badge); err != nil {
		return nil, err
	}
	return badge, nil
}

type AchievementRequest struct {
	Code         string                `json:"code"`
	Name         string                `json:"name" binding:"required"`
	Description  string                `json:"description"`
	Tier         model.AchievementTier `json:"tier"`
	Criteria     model.Criteria        `json:"criteria" binding:"required"`
	Target       int                   `json:"target"`
	RewardPoints int                   `json:"rewardPoints"`
	Active       *bool                 `json:"active"`
}

func (r *AchievementRequest) validate() error {
	if !r.Criteria.Valid() {
		return fmt.Errorf("%w: unknown criteria %q", util.ErrInvalidArgument, r.Criteria)
	}
	if r.Target <= 0 || r.RewardPoints < 0 {
		return fmt.Errorf("%w: target must be positive", util.ErrInvalidArgument)
	}
	switch r.Tier {
	case "":
		r.Tier = model.TierBronze
	case model.TierBronze, model.TierSilver, model.TierGold:
	default:
		return fmt.Errorf("%w: unknown tier %q", util.ErrInvalidArgument, r.Tier)
	}
	return nil
}

func (s *GamificationService) CreateAchievement(ctx context.Context, req AchievementRequest) (*model.Achievement, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code required", util.ErrInvalidArgument)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	repo := s.AchievementRepo.WithTx(s.DB.WithContext(ctx))
	exists, err := repo.ExistsCode(req.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, util.ErrDuplicateDefinition
	}
	a := &model.Achievement{
		Code:         req.Code,
		Name:         req.Name,
		Description:  req.Description,
		Tier:         req.Tier,
		Criteria:     req.Criteria,
		Target:       req.Target,
		RewardPoints: req.RewardPoints,
		Active:       req.Active == nil || *req.Active,
	}
	if err := repo.Create(a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *GamificationService) UpdateAchievement(ctx context.Context, id uint, req AchievementRequest) (*model.Achievement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	repo := s.AchievementRepo.WithTx(s.DB.WithContext(ctx))
	a, err := repo.FindByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	a.Name = req.Name
	a.Description = req.Description
	a.Tier = req.Tier
	a.Criteria = req.Criteria
	a.Target = req.Target
	a.RewardPoints = req.RewardPoints
	if req.Active != nil {
		a.Active = *req.Active
	}
	if err := repo.Update(a); err != nil {
		return nil, err
	}
	return a, nil
}
