package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolppa-client/config"
	"tolppa-client/internal/model"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://user:pw@localhost/tolppa"))
	assert.True(t, IsPostgres("postgresql://localhost/tolppa"))
	assert.True(t, IsPostgres("host=localhost user=tolppa dbname=tolppa"))
	assert.False(t, IsPostgres("tolppa.db"))
	assert.False(t, IsPostgres("file::memory:"))
}

func TestInit_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "tolppa.db")

	gormDB, err := Init(&config.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.True(t, gormDB.Migrator().HasTable(&model.SessionField{}))
	assert.True(t, gormDB.Migrator().HasTable(&model.PushSubscription{}))

	require.NoError(t, gormDB.Create(&model.SessionField{Key: "token", Value: "cookie"}).Error)
	var got model.SessionField
	require.NoError(t, gormDB.First(&got, "name = ?", "token").Error)
	assert.Equal(t, "cookie", got.Value)
}
