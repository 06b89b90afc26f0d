package app

import (
	"learning_platform/docs"
	"learning_platform/internal/config"
	"learning_platform/internal/middleware"
	"learning_platform/internal/model"
	"learning_platform/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		// 学生/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/dashboard", c.dashboard.GetStudentDashboard)

	gamification := rg.Group("/gamification")
	{
		gamification.GET("/profile", c.gamification.GetProfile)
		gamification.GET("/transactions", c.gamification.ListTransactions)
		gamification.GET("/badges", c.gamification.ListBadges)
		gamification.GET("/achievements", c.gamification.ListAchievements)
		gamification.POST("/login", c.gamification.RecordLogin)
	}

	leaderboard := rg.Group("/leaderboard")
	{
		leaderboard.GET("", c.leaderboard.GetLeaderboard)
		leaderboard.GET("/me", c.leaderboard.GetMyRank)
	}

	courses := rg.Group("/courses")
	{
		courses.GET("", c.course.ListCourses)
		courses.GET("/mine", c.course.ListMyCourses)
		courses.GET("/:id", c.course.GetCourse)
		courses.POST("/:id/enroll", c.course.Enroll)
	}
	rg.POST("/materials/:id/complete", c.course.CompleteMaterial)
	rg.GET("/tests/:id", c.course.GetTest)
	rg.POST("/tests/:id/submit", c.course.SubmitTest)
	rg.POST("/study-sessions", c.course.RecordStudySession)

	teams := rg.Group("/teams")
	{
		teams.GET("", c.team.ListTeams)
		teams.POST("", c.team.CreateTeam)
		teams.GET("/mine", c.team.GetMyTeam)
		teams.POST("/leave", c.team.LeaveTeam)
		teams.GET("/:id", c.team.GetTeam)
		teams.POST("/:id/join", c.team.JoinTeam)
	}

	events := rg.Group("/events")
	{
		events.GET("", c.event.ListEvents)
		events.POST("/:id/register", c.event.RegisterForEvent)
		events.POST("/:id/attend", c.event.AttendEvent)
	}

	challenges := rg.Group("/challenges")
	{
		challenges.GET("", c.challenge.ListChallenges)
		challenges.GET("/mine", c.challenge.ListMyChallenges)
		challenges.POST("/:id/join", c.challenge.JoinChallenge)
		challenges.GET("/:id/progress", c.challenge.GetProgress)
	}

	chat := rg.Group("/chat")
	{
		chat.GET("/ws", c.chat.HandleWS)
		chat.GET("/conversations", c.chat.GetConversations)
		chat.GET("/conversations/:id/messages", c.chat.GetMessages)
		chat.POST("/conversations/:id/messages", c.chat.SendMessage)
		chat.POST("/conversations/:id/read", c.chat.MarkAsRead)
		chat.POST("/courses/:id", c.chat.OpenCourseChat)
		chat.POST("/privates", c.chat.CreatePrivateChat)
		chat.GET("/users/:id/online", c.chat.GetOnlineStatus)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
	{
		teacher.POST("/courses", c.course.CreateCourse)
		teacher.PUT("/courses/:id", c.course.UpdateCourse)
		teacher.DELETE("/courses/:id", c.course.DeleteCourse)
		teacher.PUT("/courses/:id/publish", c.course.PublishCourse)
		teacher.POST("/courses/:id/topics", c.course.AddTopic)
		teacher.PUT("/courses/:id/topics/order", c.course.ReorderTopics)
		teacher.POST("/courses/:id/tests", c.course.CreateTest)
		teacher.POST("/topics/:id/subtopics", c.course.AddSubtopic)
		teacher.POST("/subtopics/:id/materials", c.course.AddMaterial)
		teacher.PUT("/materials/:id", c.course.UpdateMaterial)
		teacher.DELETE("/materials/:id", c.course.DeleteMaterial)

		teacher.POST("/events", c.event.CreateEvent)
		teacher.POST("/challenges", c.challenge.CreateChallenge)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/overview", c.dashboard.GetAdminOverview)

		admin.POST("/badges", c.gamification.CreateBadge)
		admin.PUT("/badges/:id", c.gamification.UpdateBadge)
		admin.POST("/achievements", c.gamification.CreateAchievement)
		admin.PUT("/achievements/:id", c.gamification.UpdateAchievement)
		admin.POST("/points", c.gamification.AwardPoints)

		admin.POST("/leaderboard/recompute", c.leaderboard.Recompute)
	}
}
