package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
database:
  driver: sqlite
  sqlite_path: test.db
jwt:
  secret: short
  expire_hours: 24
storage:
  type: local
  local_path: `+filepath.ToSlash(filepath.Join(t.TempDir(), "uploads"))+`
gamification:
  login_points: 15
  level_thresholds: [0, 50, 150]
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.ConfigFile)
	assert.DirExists(t, cfg.Storage.LocalPath)

	// 未配置的规则使用默认值
	assert.Equal(t, 15, cfg.Gamification.LoginPoints)
	assert.Equal(t, []int{0, 50, 150}, cfg.Gamification.LevelThresholds)
	assert.Equal(t, 60, cfg.Gamification.StudyDailyCap)
	assert.Equal(t, 10, cfg.Gamification.RecomputeMinutes)
}

func TestLoadConfigRejectsWeakReleaseSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: too-short
storage:
  type: minio
`)
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestValidateThresholds(t *testing.T) {
	cfg := &Config{Gamification: DefaultGamification()}
	assert.NoError(t, cfg.Validate())

	cfg.Gamification.LevelThresholds = []int{0, 100, 100}
	assert.ErrorContains(t, cfg.Validate(), "strictly ascending")
}

func TestWithDefaults(t *testing.T) {
	g := GamificationConfig{StudyDailyCap: 30, LevelThresholds: []int{10, 20}}.WithDefaults()
	d := DefaultGamification()
	assert.Equal(t, 30, g.StudyDailyCap)
	assert.Equal(t, d.LoginPoints, g.LoginPoints)
	// 首级不从 0 开始时整表替换
	assert.Equal(t, d.LevelThresholds, g.LevelThresholds)
}
