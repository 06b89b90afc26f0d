package database

import (
	"fmt"
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "learning_platform.db"
		}
		db, err = OpenSQLite(path, gormCfg)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// OpenSQLite 打开 SQLite 数据库，测试中使用 "file::memory:?cache=shared"
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	// SQLite 写入需串行
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate 执行表结构迁移
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Topic{},
		&model.Subtopic{},
		&model.Material{},
		&model.Enrollment{},
		&model.MaterialCompletion{},
		&model.StudySession{},
		&model.Test{},
		&model.TestQuestion{},
		&model.TestAttempt{},
		&model.UserPoints{},
		&model.PointTransaction{},
		&model.Badge{},
		&model.UserBadge{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.LeaderboardEntry{},
		&model.Team{},
		&model.TeamMembership{},
		&model.Event{},
		&model.EventParticipant{},
		&model.Challenge{},
		&model.ChallengeParticipant{},
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}
