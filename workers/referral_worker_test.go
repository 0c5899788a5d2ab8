package workers

import (
	"context"
	"testing"

	"proofly-rewards/models"
	"proofly-rewards/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newWorkerFixture(t *testing.T) (*ReferralWorker, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ReferralRequest{},
		&models.Referral{},
		&models.XPEvent{},
	))
	return NewReferralWorker(services.NewReferralService(db)), db
}

func seedWorkerUser(t *testing.T, db *gorm.DB, uid, referralCode string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		UID:          uid,
		Email:        uid + "@example.com",
		Username:     uid,
		ReferralCode: referralCode,
	}).Error)
}

func TestDrainProcessesQueue(t *testing.T) {
	worker, db := newWorkerFixture(t)
	seedWorkerUser(t, db, "user-a", "AB12CD34")
	seedWorkerUser(t, db, "user-b", "BB22BB22")
	seedWorkerUser(t, db, "user-c", "CC33CC33")

	requests := []models.ReferralRequest{
		{ID: "req-1", NewUID: "user-b", Code: "AB12CD34"},
		{ID: "req-2", NewUID: "user-c", Code: "ZZZZZZZZ"},
		{ID: "req-3", NewUID: "user-a", Code: "AB12CD34"},
	}
	for i := range requests {
		require.NoError(t, db.Create(&requests[i]).Error)
	}

	worker.Drain(context.Background())

	var unprocessed int64
	require.NoError(t, db.Model(&models.ReferralRequest{}).
		Where("processed = ?", false).Count(&unprocessed).Error)
	assert.Zero(t, unprocessed)

	var byID = map[string]models.ReferralResult{}
	var stored []models.ReferralRequest
	require.NoError(t, db.Find(&stored).Error)
	for _, r := range stored {
		require.NotNil(t, r.Result, "request %s has no result", r.ID)
		byID[r.ID] = *r.Result
	}
	assert.Equal(t, models.ReferralResultSuccess, byID["req-1"])
	assert.Equal(t, models.ReferralResultCodeNotFound, byID["req-2"])
	assert.Equal(t, models.ReferralResultSelfReferral, byID["req-3"])

	var referrer models.User
	require.NoError(t, db.Where("uid = ?", "user-a").First(&referrer).Error)
	assert.EqualValues(t, 1, referrer.ReferralsCount)
}

func TestDrainEmptyQueue(t *testing.T) {
	worker, _ := newWorkerFixture(t)
	worker.Drain(context.Background()) // no requests, no panic
}

func TestKickNeverBlocks(t *testing.T) {
	worker, _ := newWorkerFixture(t)
	// Nothing is reading the channel; repeated kicks must still return.
	for i := 0; i < 10; i++ {
		worker.Kick()
	}
}

func TestDrainStopsOnCancelledContext(t *testing.T) {
	worker, db := newWorkerFixture(t)
	seedWorkerUser(t, db, "user-a", "AB12CD34")
	seedWorkerUser(t, db, "user-b", "BB22BB22")
	require.NoError(t, db.Create(&models.ReferralRequest{
		ID: "req-1", NewUID: "user-b", Code: "AB12CD34",
	}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker.Drain(ctx)

	var unprocessed int64
	require.NoError(t, db.Model(&models.ReferralRequest{}).
		Where("processed = ?", false).Count(&unprocessed).Error)
	assert.EqualValues(t, 1, unprocessed, "cancelled context stops before processing")
}
