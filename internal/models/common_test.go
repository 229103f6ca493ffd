// internal/models/common_test.go
package models

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The uuid primary key must come from BeforeCreate, not a column default:
// sqlite has no gen_random_uuid, and a function default in the DDL would make
// AutoMigrate fail on the test dialect.
func TestBaseModelMigratesAndAssignsID(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Notification{}))

	n := Notification{Type: "asset_defaulted", Title: "t", Message: "m"}
	require.NoError(t, db.Create(&n).Error)
	assert.NotEqual(t, uuid.Nil, n.ID)

	var loaded Notification
	require.NoError(t, db.First(&loaded, "id = ?", n.ID).Error)
	assert.Equal(t, n.ID, loaded.ID)
}
