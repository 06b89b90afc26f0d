package logger

import (
	"learning_platform/internal/config"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局日志，未初始化时为 Nop，便于单元测试直接调用
var Log = zap.NewNop()

func InitLogger(cfg *config.Config) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	file := cfg.Log.File
	if file == "" {
		file = "logs/app.log"
	}
	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    orDefault(cfg.Log.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.Log.MaxBackups, 5),
		MaxAge:     orDefault(cfg.Log.MaxAgeDays, 30),
		Compress:   true,
	})

	consoleWriter := zapcore.AddSync(os.Stdout)

	level := zap.InfoLevel
	if cfg.Server.Mode == "debug" {
		level = zap.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			fileWriter,
			level,
		),
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			consoleWriter,
			level,
		),
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
