package database

import (
	"learning_platform/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedIsIdempotent(t *testing.T) {
	db, err := OpenSQLite("file:seed?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(db))

	require.NoError(t, Seed(db, "admin@example.com", "changeme"))
	require.NoError(t, Seed(db, "admin@example.com", "changeme"))

	var badges, achievements, users int64
	db.Model(&model.Badge{}).Where("active = ?", true).Count(&badges)
	db.Model(&model.Achievement{}).Count(&achievements)
	db.Model(&model.User{}).Count(&users)
	assert.Equal(t, int64(len(DefaultBadges)), badges)
	assert.Equal(t, int64(len(DefaultAchievements)), achievements)
	assert.Equal(t, int64(1), users)

	var admin model.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&admin).Error)
	assert.Equal(t, model.Admin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("changeme")))
}

func TestSeedWithoutAdmin(t *testing.T) {
	db, err := OpenSQLite("file:seed_no_admin?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, Seed(db, "", ""))
	var users int64
	db.Model(&model.User{}).Count(&users)
	assert.Zero(t, users)
}
