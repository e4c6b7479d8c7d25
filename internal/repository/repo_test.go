package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/prmsu-campus/presence-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Campus{},
		&models.Building{},
		&models.Subject{},
		&models.PresenceRecord{},
		&models.PresenceHistory{},
		&models.AuditEntry{},
		&models.Favorite{},
	))
	return db
}

func strPtr(s string) *string {
	return &s
}
