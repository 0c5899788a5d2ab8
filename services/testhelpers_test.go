package services

import (
	"errors"
	"testing"

	"proofly-rewards/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ReferralRequest{},
		&models.Referral{},
		&models.XPEvent{},
	))
	return db
}

type sentMail struct {
	email    string
	name     string
	username string
	code     string
}

// stubMailer records outbound mail so tests can read back the plaintext
// code, and can simulate a down relay.
type stubMailer struct {
	sent []sentMail
	fail bool
}

func (m *stubMailer) SendVerificationCodeEmail(email, name, username, code string) error {
	if m.fail {
		return errors.New("smtp relay unavailable")
	}
	m.sent = append(m.sent, sentMail{email: email, name: name, username: username, code: code})
	return nil
}

func (m *stubMailer) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent, "expected at least one email")
	return m.sent[len(m.sent)-1].code
}

func seedUser(t *testing.T, db *gorm.DB, uid, referralCode string) *models.User {
	t.Helper()
	user := models.User{
		UID:          uid,
		Email:        uid + "@example.com",
		Username:     uid,
		ReferralCode: referralCode,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func loadUser(t *testing.T, db *gorm.DB, uid string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("uid = ?", uid).First(&user).Error)
	return &user
}

func countXPEvents(t *testing.T, db *gorm.DB, uid string, reason models.XPReason) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.XPEvent{}).
		Where("uid = ? AND reason = ?", uid, reason).Count(&count).Error)
	return count
}
