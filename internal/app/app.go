package app

import (
	"context"
	"learning_platform/internal/config"
	"learning_platform/internal/controller"
	"learning_platform/internal/repository"
	"learning_platform/internal/scheduler"
	"learning_platform/internal/service"
	"learning_platform/pkg/configwatcher"
	"learning_platform/pkg/database"
	"learning_platform/pkg/logger"
	"learning_platform/pkg/monitoring"
	"learning_platform/pkg/security"
	"learning_platform/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client
	services  *services
	scheduler *scheduler.Scheduler
	limiter   *security.RateLimiter
	tracer    *sdktrace.TracerProvider

	ctx             context.Context
	cancel          context.CancelFunc
	stop            chan struct{}
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	test        *repository.TestRepository
	points      *repository.PointsRepository
	badge       *repository.BadgeRepository
	achievement *repository.AchievementRepository
	leaderboard *repository.LeaderboardRepository
	team        *repository.TeamRepository
	event       *repository.EventRepository
	challenge   *repository.ChallengeRepository
	chat        *repository.ChatRepository
}

type services struct {
	storage      *service.StorageService
	gamification *service.GamificationService
	leaderboard  *service.LeaderboardService
	course       *service.CourseService
	team         *service.TeamService
	event        *service.EventService
	challenge    *service.ChallengeService
	chat         *service.ChatService
	chatHub      *service.ChatHub
	dashboard    *service.DashboardService
}

type controllers struct {
	health       *controller.HealthController
	gamification *controller.GamificationController
	leaderboard  *controller.LeaderboardController
	course       *controller.CourseController
	team         *controller.TeamController
	event        *controller.EventController
	challenge    *controller.ChallengeController
	chat         *controller.ChatController
	dashboard    *controller.DashboardController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		test:        repository.NewTestRepository(db),
		points:      repository.NewPointsRepository(db),
		badge:       repository.NewBadgeRepository(db),
		achievement: repository.NewAchievementRepository(db),
		leaderboard: repository.NewLeaderboardRepository(db, rdb),
		team:        repository.NewTeamRepository(db),
		event:       repository.NewEventRepository(db),
		challenge:   repository.NewChallengeRepository(db),
		chat:        repository.NewChatRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.Error(err))
	}
	s.storage = storage

	s.gamification = service.NewGamificationService(
		db,
		repos.points,
		repos.badge,
		repos.achievement,
		repos.challenge,
		repos.test,
		repos.user,
		cfg.Gamification,
	)
	s.leaderboard = service.NewLeaderboardService(repos.leaderboard, repos.points, repos.user, repos.team, s.gamification)
	s.chat = service.NewChatService(repos.chat, repos.course, repos.user)
	s.course = service.NewCourseService(repos.course, repos.test, s.storage, s.gamification, s.chat)
	s.team = service.NewTeamService(db, repos.team, repos.points)
	s.event = service.NewEventService(repos.event, s.gamification)
	s.challenge = service.NewChallengeService(repos.challenge, repos.points)
	s.dashboard = service.NewDashboardService(
		repos.user,
		repos.course,
		repos.points,
		repos.badge,
		repos.event,
		s.gamification,
		s.challenge,
	)

	s.chatHub = service.NewChatHub(rdb, s.chat)
	go s.chatHub.Run(a.ctx)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		health:       controller.NewHealthController(db, rdb),
		gamification: controller.NewGamificationController(s.gamification),
		leaderboard:  controller.NewLeaderboardController(s.leaderboard),
		course:       controller.NewCourseController(s.course),
		team:         controller.NewTeamController(s.team),
		event:        controller.NewEventController(s.event),
		challenge:    controller.NewChallengeController(s.challenge),
		chat:         controller.NewChatController(s.chat, s.chatHub),
		dashboard:    controller.NewDashboardController(s.dashboard),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure())

	a.limiter = security.NewRateLimiter(cfg.RateLimit)
	go a.limiter.Run(a.stop)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerConfigCallbacks 积分规则与排行榜间隔支持热更新
func (a *App) registerConfigCallbacks() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.gamification.UpdateRules(cfg.Gamification)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		if err := a.scheduler.Reschedule(cfg.Gamification.RecomputeMinutes); err != nil {
			logger.Log.Error("Failed to reschedule leaderboard recompute", zap.Error(err))
		}
	})
}

func (a *App) startBackgroundTasks() {
	a.scheduler = scheduler.New(a.services.leaderboard, a.Config.Gamification.RecomputeMinutes)
	if err := a.scheduler.Start(); err != nil {
		logger.Log.Error("Failed to start leaderboard scheduler", zap.Error(err))
	}

	a.registerConfigCallbacks()
	if a.Config.ConfigFile != "" {
		if err := configwatcher.WatchConfig(a.ctx, a.Config.ConfigFile, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认不自动迁移
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.SeedData {
		if err := database.Seed(db, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			logger.Log.Fatal("Failed to seed database", zap.Error(err))
		}
		logger.Log.Info("Seed data written")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		ctx:    ctx,
		cancel: cancel,
		stop:   make(chan struct{}),
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 无 Redis 时排行榜直接读库，聊天只在本机投递
		logger.Log.Warn("Redis unavailable, running without cache", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("learning-platform", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	app.startBackgroundTasks()

	return app
}

// Shutdown 依次停止调度器、聊天连接与后台任务
func (a *App) Shutdown() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	// 清理 WebSocket连接和Redis在线状态
	if a.services != nil && a.services.chatHub != nil {
		a.services.chatHub.Stop()
	}
	close(a.stop)
	a.cancel()

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Shutdown()

	logger.Log.Info("Server exiting")
}
