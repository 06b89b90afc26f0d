// @title 学习平台后端 API
// @version 1.0
// @description 在线学习平台后端：课程、聊天与积分激励系统。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"learning_platform/internal/app"
	"learning_platform/internal/config"
	"learning_platform/pkg/logger"
	"log"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件所在目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	seed := flag.Bool("seed", false, "写入默认徽章、成就和管理员账号")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.SeedData = *seed

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		application.Shutdown()
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
