//go:build postgres

package queue

import (
	"fmt"
	"os"
	"testing"
	"time"

	"branchqueue/internal/models"
	"branchqueue/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Run with: TEST_POSTGRES_DSN=... go test -tags postgres ./internal/queue
func TestConcurrentCreateKeepsNumbersUniqueOnPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	require.NoError(t, storage.Migrate(db))

	f := newFixtureOn(t, db)
	d := f.division(t, fmt.Sprintf("Concurrency %d", time.Now().UnixNano()), "P")
	t.Cleanup(func() {
		db.Unscoped().Where("division_id = ?", d.ID).Delete(&models.Ticket{})
		db.Unscoped().Delete(d)
	})

	assertConcurrentCreatesUnique(t, f, d)
}
