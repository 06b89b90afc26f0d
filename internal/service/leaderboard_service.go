package service

import (
	"context"
	"errors"
	"learning_platform/internal/model"
	"learning_platform/internal/repository"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"learning_platform/pkg/monitoring"
	"learning_platform/pkg/tracing"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LeaderboardService struct {
	LeaderboardRepo *repository.LeaderboardRepository
	PointsRepo      *repository.PointsRepository
	UserRepo        *repository.UserRepository
	TeamRepo        *repository.TeamRepository
	Gamification    *GamificationService

	now func() time.Time
}

func NewLeaderboardService(
	leaderboardRepo *repository.LeaderboardRepository,
	pointsRepo *repository.PointsRepository,
	userRepo *repository.UserRepository,
	teamRepo *repository.TeamRepository,
	gamification *GamificationService,
) *LeaderboardService {
	return &LeaderboardService{
		LeaderboardRepo: leaderboardRepo,
		PointsRepo:      pointsRepo,
		UserRepo:        userRepo,
		TeamRepo:        teamRepo,
		Gamification:    gamification,
		now:             time.Now,
	}
}

// LeaderboardItem 榜单展示行，Change 为正表示名次上升
type LeaderboardItem struct {
	Rank         int    `json:"rank"`
	PreviousRank int    `json:"previousRank"`
	Change       int    `json:"change"`
	SubjectID    uint   `json:"subjectId"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar,omitempty"`
	Points       int    `json:"points"`
}

type UserRank struct {
	Period     model.LeaderboardPeriod `json:"period"`
	Ranked     bool                    `json:"ranked"`
	Rank       int                     `json:"rank"`
	Points     int                     `json:"points"`
	Total      int64                   `json:"total"`
	Percentile float64                 `json:"percentile"`
}

var leaderboardScopes = []model.LeaderboardScope{model.ScopeGlobal, model.ScopeTeam}

func (s *LeaderboardService) size() int {
	return s.Gamification.Rules().LeaderboardSize
}

// RecomputeLeaderboards 重算全部范围与周期的榜单
func (s *LeaderboardService) RecomputeLeaderboards(ctx context.Context, now time.Time) (err error) {
	ctx, span := tracing.StartSpan(ctx, "leaderboard.recompute")
	defer func() { tracing.EndSpan(span, err) }()

	for _, scope := range leaderboardScopes {
		start := time.Now()
		for _, period := range model.LeaderboardPeriods {
			n, err := s.recompute(ctx, scope, period, now)
			if err != nil {
				logger.Log.Error("排行榜重算失败", zap.String("scope", string(scope)), zap.String("period", string(period)), zap.Error(err))
				return err
			}
			logger.Log.Debug("排行榜已重算", zap.String("scope", string(scope)), zap.String("period", string(period)), zap.Int("entries", n))
		}
		monitoring.LeaderboardRecomputeDuration.WithLabelValues(string(scope)).Observe(time.Since(start).Seconds())
	}
	logger.Log.Info("排行榜重算完成", zap.Time("at", now))
	return nil
}

func (s *LeaderboardService) recompute(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, now time.Time) (int, error) {
	_, span := tracing.StartSpan(ctx, "leaderboard.recompute."+string(scope),
		attribute.String("scope", string(scope)), attribute.String("period", string(period)))
	defer span.End()

	db := s.LeaderboardRepo.DB.WithContext(ctx)
	points := s.PointsRepo.WithTx(db)
	periodStart := PeriodStart(period, now)
	limit := s.size()

	var (
		rows []repository.SubjectPoints
		err  error
	)
	switch {
	case scope == model.ScopeGlobal && period == model.PeriodAllTime:
		rows, err = points.TopUsersByTotal(limit)
	case scope == model.ScopeGlobal:
		rows, err = points.TopUsersSince(periodStart, limit)
	case period == model.PeriodAllTime:
		rows, err = points.TopTeamsByTotal(limit)
	default:
		rows, err = points.TopTeamsSince(periodStart, limit)
	}
	if err != nil {
		return 0, err
	}

	repo := &repository.LeaderboardRepository{DB: db, Redis: s.LeaderboardRepo.Redis, TTL: s.LeaderboardRepo.TTL}
	previous, err := repo.PreviousRanks(scope, period, periodStart)
	if err != nil {
		return 0, err
	}

	ranked := RankEntries(rows)
	entries := make([]model.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, model.LeaderboardEntry{
			Scope:        scope,
			Period:       period,
			PeriodStart:  periodStart,
			SubjectID:    r.SubjectID,
			Points:       r.Points,
			Rank:         r.Rank,
			PreviousRank: previous[r.SubjectID],
			ComputedAt:   now,
		})
	}
	if err := repo.ReplaceEntries(scope, period, periodStart, entries); err != nil {
		return 0, err
	}

	items, err := s.render(scope, entries)
	if err != nil {
		return 0, err
	}
	if err := repo.CacheSnapshot(ctx, scope, period, periodStart, entries, items); err != nil {
		logger.Log.Warn("排行榜缓存写入失败", zap.String("scope", string(scope)), zap.String("period", string(period)), zap.Error(err))
	}
	return len(entries), nil
}

// render 填充用户或团队名称
func (s *LeaderboardService) render(scope model.LeaderboardScope, entries []model.LeaderboardEntry) ([]LeaderboardItem, error) {
	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.SubjectID)
	}

	names := make(map[uint]string, len(ids))
	avatars := make(map[uint]string)
	if scope == model.ScopeTeam {
		teams, err := s.TeamRepo.NamesByIDs(ids)
		if err != nil {
			return nil, err
		}
		names = teams
	} else {
		users, err := s.UserRepo.NamesByIDs(ids)
		if err != nil {
			return nil, err
		}
		for id, u := range users {
			names[id] = u.Name
			avatars[id] = u.Avatar
		}
	}

	items := make([]LeaderboardItem, 0, len(entries))
	for _, e := range entries {
		item := LeaderboardItem{
			Rank:         e.Rank,
			PreviousRank: e.PreviousRank,
			SubjectID:    e.SubjectID,
			Name:         names[e.SubjectID],
			Avatar:       avatars[e.SubjectID],
			Points:       e.Points,
		}
		if e.PreviousRank > 0 {
			item.Change = e.PreviousRank - e.Rank
		}
		items = append(items, item)
	}
	return items, nil
}

func validLeaderboard(scope model.LeaderboardScope, period model.LeaderboardPeriod) bool {
	return (scope == model.ScopeGlobal || scope == model.ScopeTeam) && period.Valid()
}

// GetLeaderboard 优先读取 Redis 快照，未命中时读取数据库
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, scope model.LeaderboardScope, period model.LeaderboardPeriod, limit int) ([]LeaderboardItem, error) {
	if !validLeaderboard(scope, period) {
		return nil, util.ErrInvalidLeaderboard
	}
	if size := s.size(); limit <= 0 || limit > size {
		limit = size
	}

	start := PeriodStart(period, s.now())
	var cached []LeaderboardItem
	hit, err := s.LeaderboardRepo.CachedSnapshot(ctx, scope, period, start, &cached)
	if err != nil {
		logger.Log.Warn("排行榜缓存读取失败", zap.Error(err))
	}
	if hit {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	repo := &repository.LeaderboardRepository{DB: s.LeaderboardRepo.DB.WithContext(ctx)}
	entries, err := repo.ListEntries(scope, period, start, limit)
	if err != nil {
		return nil, err
	}
	return s.render(scope, entries)
}

// GetUserRank Percentile 为排名不高于该用户的比例（榜首为 100）
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID uint, period model.LeaderboardPeriod) (*UserRank, error) {
	if !period.Valid() {
		return nil, util.ErrInvalidLeaderboard
	}
	result := &UserRank{Period: period}
	start := PeriodStart(period, s.now())

	rank, points, total, found, err := s.LeaderboardRepo.CachedRank(ctx, model.ScopeGlobal, period, start, userID)
	if err != nil {
		logger.Log.Warn("排行榜缓存读取失败", zap.Error(err))
		found = false
	}
	if !found {
		db := s.LeaderboardRepo.DB.WithContext(ctx)
		repo := &repository.LeaderboardRepository{DB: db}
		if total, err = repo.CountEntries(model.ScopeGlobal, period, start); err != nil {
			return nil, err
		}
		entry, err := repo.FindEntry(model.ScopeGlobal, period, start, userID)
		switch {
		case err == nil:
			rank, points, found = entry.Rank, entry.Points, true
		case errors.Is(err, gorm.ErrRecordNotFound):
			if points, err = s.unrankedPoints(db, userID, period, start); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	result.Ranked = found
	result.Rank = rank
	result.Points = points
	result.Total = total
	if found && total > 0 {
		result.Percentile = math.Round(float64(total-int64(rank)+1)/float64(total)*1000) / 10
	}
	return result, nil
}

func (s *LeaderboardService) unrankedPoints(db *gorm.DB, userID uint, period model.LeaderboardPeriod, start time.Time) (int, error) {
	points := s.PointsRepo.WithTx(db)
	if period != model.PeriodAllTime {
		return points.SumSince(userID, start)
	}
	up, err := points.FindByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return up.TotalPoints, nil
}
