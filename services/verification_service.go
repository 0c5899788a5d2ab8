// services/verification_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"proofly-rewards/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VerificationCodeTTL = 15 * time.Minute
	ResendCooldown      = 60 * time.Second
	VerificationXP      = 50
)

// Named outcomes of the verification flow. Handlers map these to distinct
// user-facing messages — "wrong code" vs "expired code" vs "no code
// outstanding" must stay distinguishable.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoCodeIssued    = errors.New("no verification code outstanding")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrResendCooldown  = errors.New("verification code was sent too recently")
)

type VerificationService struct {
	DB     *gorm.DB
	Mailer Mailer
}

func NewVerificationService(db *gorm.DB, mailer Mailer) *VerificationService {
	return &VerificationService{DB: db, Mailer: mailer}
}

// IssueCode generates a fresh code for the user, stores its hash and expiry
// (replacing any outstanding pair), and emails the plaintext. Email dispatch
// happens after the write and its failure never propagates — account
// creation and resend must not fail on a down mail relay.
func (s *VerificationService) IssueCode(uid string) error {
	var user models.User
	if err := s.DB.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	if user.IsVerified {
		return nil // nothing to issue for a verified account
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return err
	}
	hash := HashCode(code)
	now := time.Now()
	expires := now.Add(VerificationCodeTTL)

	if err := s.DB.Model(&models.User{}).Where("uid = ?", uid).Updates(map[string]interface{}{
		"verification_code_hash": hash,
		"verification_expires":   expires,
		"verification_sent_at":   now,
	}).Error; err != nil {
		return fmt.Errorf("failed to store verification code for %s: %w", uid, err)
	}

	name := user.Username
	if user.DisplayName != nil && *user.DisplayName != "" {
		name = *user.DisplayName
	}
	if err := s.Mailer.SendVerificationCodeEmail(user.Email, name, user.Username, code); err != nil {
		log.Printf("⚠️ Failed to send verification email to %s: %v", user.Email, err)
	}

	return nil
}

// ResendCode is IssueCode behind a 60-second cooldown, enforced here rather
// than trusted to the client.
func (s *VerificationService) ResendCode(uid string) error {
	var user models.User
	if err := s.DB.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	if user.VerificationSentAt != nil && time.Since(*user.VerificationSentAt) < ResendCooldown {
		return ErrResendCooldown
	}
	return s.IssueCode(uid)
}

// Verify checks a submitted code against the stored hash and expiry and, on
// match, flips is_verified and clears the code material in one atomic
// update. The false -> true edge awards +50 XP exactly once, inside the same
// transaction; calling Verify on an already-verified account is a no-op.
func (s *VerificationService) Verify(uid, submittedCode string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("uid = ?", uid).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to load user %s: %w", uid, err)
		}

		if user.IsVerified {
			return nil // success no-op
		}
		if user.VerificationCodeHash == nil || user.VerificationExpires == nil {
			return ErrNoCodeIssued
		}
		if time.Now().After(*user.VerificationExpires) {
			return ErrCodeExpired
		}
		if HashCode(submittedCode) != *user.VerificationCodeHash {
			return ErrCodeMismatch
		}

		// Conditional on is_verified = false so a concurrent verify of the
		// same account cannot double-award.
		res := tx.Model(&models.User{}).
			Where("uid = ? AND is_verified = ?", uid, false).
			Updates(map[string]interface{}{
				"is_verified":            true,
				"verification_code_hash": nil,
				"verification_expires":   nil,
				"verification_sent_at":   nil,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark %s verified: %w", uid, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // lost the race, already verified
		}

		return awardXP(tx, uid, VerificationXP, models.XPReasonVerified)
	})
}

// awardXP applies a named XP award: atomic counter bump plus one ledger row.
// Always runs inside the caller's transaction.
func awardXP(tx *gorm.DB, uid string, amount int64, reason models.XPReason) error {
	if err := tx.Model(&models.User{}).Where("uid = ?", uid).
		Update("xp", gorm.Expr("xp + ?", amount)).Error; err != nil {
		return fmt.Errorf("failed to award %d xp to %s: %w", amount, uid, err)
	}
	event := models.XPEvent{
		ID:     uuid.NewString(),
		UID:    uid,
		Amount: amount,
		Reason: reason,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record xp event for %s: %w", uid, err)
	}
	log.Printf("🎮 XP Awarded: %s → +%d (reason: %s)", uid, amount, reason)
	return nil
}
