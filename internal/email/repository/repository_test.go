package repository

import (
	"testing"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&emaildomain.Subscription{},
		&emaildomain.PollWatermark{},
		&emaildomain.AnalysisRetry{},
		&emaildomain.ImapAccount{},
		&emaildomain.EmailAnalysis{},
	)
	require.NoError(t, err)

	return db
}
