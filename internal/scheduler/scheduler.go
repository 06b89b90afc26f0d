package scheduler

import (
	"context"
	"learning_platform/pkg/logger"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const (
	recomputeTag     = "leaderboard_recompute"
	recomputeTimeout = 5 * time.Minute
)

// Recomputer 由排行榜服务实现
type Recomputer interface {
	RecomputeLeaderboards(ctx context.Context, now time.Time) error
}

// Scheduler 定时重新计算排行榜
type Scheduler struct {
	scheduler  *gocron.Scheduler
	recomputer Recomputer

	mu       sync.Mutex
	interval int
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(recomputer Recomputer, intervalMinutes int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.Local),
		recomputer: recomputer,
		interval:   normalize(intervalMinutes),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func normalize(minutes int) int {
	if minutes <= 0 {
		return 10
	}
	return minutes
}

// Start 启动时立即执行一次，之后按间隔执行
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.schedule(s.interval); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	logger.Log.Info("Leaderboard scheduler started", zap.Int("intervalMinutes", s.interval))
	return nil
}

func (s *Scheduler) schedule(minutes int) error {
	_, err := s.scheduler.Every(minutes).Minutes().
		StartImmediately().
		SingletonMode().
		Tag(recomputeTag).
		Do(s.recompute)
	return err
}

// Reschedule 配置热更新后调整执行间隔
func (s *Scheduler) Reschedule(intervalMinutes int) error {
	minutes := normalize(intervalMinutes)
	s.mu.Lock()
	defer s.mu.Unlock()
	if minutes == s.interval {
		return nil
	}
	if err := s.scheduler.RemoveByTag(recomputeTag); err != nil {
		return err
	}
	s.interval = minutes
	logger.Log.Info("Leaderboard scheduler rescheduled", zap.Int("intervalMinutes", minutes))
	return s.schedule(minutes)
}

func (s *Scheduler) recompute() {
	ctx, cancel := context.WithTimeout(s.ctx, recomputeTimeout)
	defer cancel()
	start := time.Now()
	if err := s.recomputer.RecomputeLeaderboards(ctx, start); err != nil {
		logger.Log.Error("Leaderboard recompute failed", zap.Error(err))
		return
	}
	logger.Log.Debug("Leaderboard recomputed", zap.Duration("elapsed", time.Since(start)))
}

// Stop 取消正在执行的计算并停止调度
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}
