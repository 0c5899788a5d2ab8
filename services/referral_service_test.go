package services

import (
	"testing"
	"time"

	"proofly-rewards/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRequestSuccessEndToEnd(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")
	seedUser(t, svc.DB, "user-b", "ZY98XW76")

	request, err := svc.Enqueue("user-b", "AB12CD34")
	require.NoError(t, err)

	result := svc.ProcessRequest(request)
	assert.Equal(t, models.ReferralResultSuccess, result)

	referrer := loadUser(t, svc.DB, "user-a")
	assert.EqualValues(t, 1, referrer.ReferralsCount)
	assert.EqualValues(t, ReferrerReferralXP, referrer.ReferralsXP)
	assert.EqualValues(t, ReferrerReferralXP, referrer.XP)

	referred := loadUser(t, svc.DB, "user-b")
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, "user-a", *referred.ReferredBy)
	require.NotNil(t, referred.ReferredAt)
	assert.EqualValues(t, ReferredReferralXP, referred.XP)

	referredUIDs, err := svc.ListReferredUIDs("user-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b"}, referredUIDs)

	var audits []models.Referral
	require.NoError(t, svc.DB.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, "user-a", audits[0].ReferrerUID)
	assert.Equal(t, "user-b", audits[0].ReferredUID)
	assert.Equal(t, "AB12CD34", audits[0].Code)

	var stored models.ReferralRequest
	require.NoError(t, svc.DB.Where("id = ?", request.ID).First(&stored).Error)
	assert.True(t, stored.Processed)
	require.NotNil(t, stored.Result)
	assert.Equal(t, models.ReferralResultSuccess, *stored.Result)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Nil(t, stored.Error)
}

func TestProcessRequestIdempotentOnRedelivery(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")
	seedUser(t, svc.DB, "user-b", "ZY98XW76")

	request, err := svc.Enqueue("user-b", "AB12CD34")
	require.NoError(t, err)

	// At-least-once delivery: the same request re-invokes the engine.
	assert.Equal(t, models.ReferralResultSuccess, svc.ProcessRequest(request))
	assert.Equal(t, models.ReferralResultSuccess, svc.ProcessRequest(request))
	assert.Equal(t, models.ReferralResultSuccess, svc.ProcessRequest(request))

	referrer := loadUser(t, svc.DB, "user-a")
	assert.EqualValues(t, 1, referrer.ReferralsCount)
	assert.EqualValues(t, ReferrerReferralXP, referrer.XP)

	var auditCount int64
	require.NoError(t, svc.DB.Model(&models.Referral{}).Count(&auditCount).Error)
	assert.EqualValues(t, 1, auditCount)
}

func TestProcessRequestDuplicateRequestNoDoubleAward(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")
	seedUser(t, svc.DB, "user-c", "CC00CC00")
	seedUser(t, svc.DB, "user-b", "ZY98XW76")

	first, err := svc.Enqueue("user-b", "AB12CD34")
	require.NoError(t, err)
	require.Equal(t, models.ReferralResultSuccess, svc.ProcessRequest(first))

	// A second request for the same new user — even with a different,
	// valid code — finds referredBy already set and applies nothing.
	second, err := svc.Enqueue("user-b", "CC00CC00")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralResultSuccess, svc.ProcessRequest(second))

	referred := loadUser(t, svc.DB, "user-b")
	assert.Equal(t, "user-a", *referred.ReferredBy)
	assert.EqualValues(t, ReferredReferralXP, referred.XP)

	other := loadUser(t, svc.DB, "user-c")
	assert.Zero(t, other.ReferralsCount)
	assert.Zero(t, other.XP)

	var auditCount int64
	require.NoError(t, svc.DB.Model(&models.Referral{}).Count(&auditCount).Error)
	assert.EqualValues(t, 1, auditCount)
}

func TestProcessRequestSelfReferral(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")

	request, err := svc.Enqueue("user-a", "AB12CD34")
	require.NoError(t, err)

	assert.Equal(t, models.ReferralResultSelfReferral, svc.ProcessRequest(request))

	user := loadUser(t, svc.DB, "user-a")
	assert.Zero(t, user.ReferralsCount)
	assert.Zero(t, user.XP)
	assert.Nil(t, user.ReferredBy)

	var stored models.ReferralRequest
	require.NoError(t, svc.DB.Where("id = ?", request.ID).First(&stored).Error)
	assert.True(t, stored.Processed)
	assert.Equal(t, models.ReferralResultSelfReferral, *stored.Result)
}

func TestProcessRequestCodeNotFound(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")
	seedUser(t, svc.DB, "user-b", "ZY98XW76")

	request, err := svc.Enqueue("user-b", "ZZZZZZZZ")
	require.NoError(t, err)

	assert.Equal(t, models.ReferralResultCodeNotFound, svc.ProcessRequest(request))

	referrer := loadUser(t, svc.DB, "user-a")
	assert.Zero(t, referrer.ReferralsCount)
	referred := loadUser(t, svc.DB, "user-b")
	assert.Nil(t, referred.ReferredBy)
	assert.Zero(t, referred.XP)

	var auditCount int64
	require.NoError(t, svc.DB.Model(&models.Referral{}).Count(&auditCount).Error)
	assert.Zero(t, auditCount)
}

func TestProcessRequestMissingFields(t *testing.T) {
	svc := NewReferralService(newTestDB(t))

	request := &models.ReferralRequest{ID: "req-1", NewUID: "", Code: "AB12CD34"}
	require.NoError(t, svc.DB.Create(request).Error)

	assert.Equal(t, models.ReferralResultError, svc.ProcessRequest(request))

	var stored models.ReferralRequest
	require.NoError(t, svc.DB.Where("id = ?", "req-1").First(&stored).Error)
	assert.True(t, stored.Processed)
	assert.Equal(t, models.ReferralResultError, *stored.Result)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "missing required fields")
}

func TestProcessRequestMissingNewUserAborts(t *testing.T) {
	svc := NewReferralService(newTestDB(t))
	seedUser(t, svc.DB, "user-a", "AB12CD34")

	// The new user's record never made it to the store: the transaction
	// aborts and the referrer shows no partial update.
	request, err := svc.Enqueue("ghost", "AB12CD34")
	require.NoError(t, err)

	assert.Equal(t, models.ReferralResultError, svc.ProcessRequest(request))

	referrer := loadUser(t, svc.DB, "user-a")
	assert.Zero(t, referrer.ReferralsCount)
	assert.Zero(t, referrer.XP)

	var auditCount int64
	require.NoError(t, svc.DB.Model(&models.Referral{}).Count(&auditCount).Error)
	assert.Zero(t, auditCount)

	var stored models.ReferralRequest
	require.NoError(t, svc.DB.Where("id = ?", request.ID).First(&stored).Error)
	assert.True(t, stored.Processed)
	assert.Equal(t, models.ReferralResultError, *stored.Result)
	assert.NotNil(t, stored.Error)
}

func TestStaleRequests(t *testing.T) {
	svc := NewReferralService(newTestDB(t))

	old := models.ReferralRequest{ID: "req-old", NewUID: "user-b", Code: "AB12CD34"}
	require.NoError(t, svc.DB.Create(&old).Error)
	require.NoError(t, svc.DB.Model(&old).Update("created_at", time.Now().Add(-10*time.Minute)).Error)

	fresh := models.ReferralRequest{ID: "req-fresh", NewUID: "user-c", Code: "AB12CD34"}
	require.NoError(t, svc.DB.Create(&fresh).Error)

	done := models.ReferralRequest{ID: "req-done", NewUID: "user-d", Code: "AB12CD34", Processed: true}
	require.NoError(t, svc.DB.Create(&done).Error)
	require.NoError(t, svc.DB.Model(&done).Updates(map[string]interface{}{
		"created_at": time.Now().Add(-10 * time.Minute),
		"processed":  true,
	}).Error)

	stale, err := svc.StaleRequests(5 * time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "req-old", stale[0].ID)
}
