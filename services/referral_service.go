// services/referral_service.go
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

// Canonical referral reward policy: attribution always runs server-side off
// the request queue, and a successful attribution awards the referrer +20 XP
// and the referred user +10 XP in the same transaction as the counters.
const (
	ReferrerReferralXP = 20
	ReferredReferralXP = 10
)

type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// Enqueue records a referral request for asynchronous processing. Called
// from the signup flow; the untrusted client never touches the reward
// mutation directly.
func (s *ReferralService) Enqueue(newUID, code string) (*models.ReferralRequest, error) {
	request := models.ReferralRequest{
		ID:     uuid.NewString(),
		NewUID: newUID,
		Code:   code,
	}
	if err := s.DB.Create(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue referral request: %w", err)
	}
	return &request, nil
}

// ProcessRequest runs the attribution state machine for one request and
// records its terminal state. It never lets a failure escape: every path,
// including unexpected errors, ends with the request marked processed —
// nothing else retries a request that stays stuck as unprocessed.
func (s *ReferralService) ProcessRequest(request *models.ReferralRequest) models.ReferralResult {
	result, procErr := s.attribute(request)
	if procErr != nil {
		log.Printf("❌ Referral request %s failed: %v", request.ID, procErr)
	}

	update := map[string]interface{}{
		"processed":    true,
		"result":       result,
		"processed_at": time.Now(),
	}
	if procErr != nil {
		update["error"] = procErr.Error()
	}
	if err := s.DB.Model(&models.ReferralRequest{}).Where("id = ?", request.ID).
		Updates(update).Error; err != nil {
		// A request that cannot be marked processed risks being picked up
		// and re-run. The engine's referredBy guard makes that harmless,
		// but it must be visible.
		log.Printf("🚨 Failed to mark referral request %s processed (result=%s): %v", request.ID, result, err)
	}
	return result
}

// attribute resolves the referrer and applies the reward atomically.
// Outcomes other than ReferralResultError are normal, recorded results, not
// failures.
func (s *ReferralService) attribute(request *models.ReferralRequest) (models.ReferralResult, error) {
	if request.NewUID == "" || request.Code == "" {
		return models.ReferralResultError, errors.New("missing required fields: newUid or code")
	}

	var referrer models.User
	if err := s.DB.Where("referral_code = ?", request.Code).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Referral code not found: %s", request.Code)
			return models.ReferralResultCodeNotFound, nil
		}
		return models.ReferralResultError, fmt.Errorf("failed to resolve referral code: %w", err)
	}

	if referrer.UID == request.NewUID {
		log.Printf("User trying to refer themselves: %s", request.NewUID)
		return models.ReferralResultSelfReferral, nil
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Re-read both records inside the transaction; the pre-transaction
		// snapshot may be stale against a concurrent attribution.
		var txReferrer, newUser models.User
		if err := tx.Where("uid = ?", referrer.UID).First(&txReferrer).Error; err != nil {
			return fmt.Errorf("referrer record missing: %w", err)
		}
		if err := tx.Where("uid = ?", request.NewUID).First(&newUser).Error; err != nil {
			return fmt.Errorf("new user record missing: %w", err)
		}

		// Idempotence guard: attribution is final. A redelivered or
		// duplicate request for an already-attributed user exits with
		// success semantics and zero side effects.
		if newUser.ReferredBy != nil {
			log.Printf("User already has a referrer: %s", request.NewUID)
			return nil
		}

		// Conditional write in case another transaction attributed the
		// user between our read and this update.
		res := tx.Model(&models.User{}).
			Where("uid = ? AND referred_by IS NULL", request.NewUID).
			Updates(map[string]interface{}{
				"referred_by": referrer.UID,
				"referred_at": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to set referredBy on %s: %w", request.NewUID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // lost the race, already attributed
		}

		// Counters move by SQL expressions only, never read-modify-write.
		if err := tx.Model(&models.User{}).Where("uid = ?", referrer.UID).
			Updates(map[string]interface{}{
				"referrals_count": gorm.Expr("referrals_count + ?", 1),
				"referrals_xp":    gorm.Expr("referrals_xp + ?", ReferrerReferralXP),
			}).Error; err != nil {
			return fmt.Errorf("failed to bump referrer counters for %s: %w", referrer.UID, err)
		}

		if err := awardXP(tx, referrer.UID, ReferrerReferralXP, models.XPReasonReferralReferrer); err != nil {
			return err
		}
		if err := awardXP(tx, request.NewUID, ReferredReferralXP, models.XPReasonReferralReferred); err != nil {
			return err
		}

		audit := models.Referral{
			ID:          uuid.NewString(),
			ReferrerUID: referrer.UID,
			ReferredUID: request.NewUID,
			Code:        request.Code,
			ReferrerXP:  ReferrerReferralXP,
			ReferredXP:  ReferredReferralXP,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("failed to create referral audit record: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ReferralResultError, err
	}

	log.Printf("✅ Referral processed: referrer=%s referred=%s code=%s", referrer.UID, request.NewUID, request.Code)
	return models.ReferralResultSuccess, nil
}

// ListReferredUIDs returns the UIDs a user has successfully referred, newest
// first. This is the relational form of the referrer's referred-uids set.
func (s *ReferralService) ListReferredUIDs(uid string) ([]string, error) {
	var uids []string
	if err := s.DB.Model(&models.Referral{}).
		Where("referrer_uid = ?", uid).
		Order("created_at DESC").
		Pluck("referred_uid", &uids).Error; err != nil {
		return nil, fmt.Errorf("failed to list referred uids for %s: %w", uid, err)
	}
	return uids, nil
}

// StaleRequests returns unprocessed requests older than the cutoff. These
// indicate the worker fell behind or a status update failed; the sweeper
// logs them loudly and re-kicks processing.
func (s *ReferralService) StaleRequests(olderThan time.Duration) ([]models.ReferralRequest, error) {
	var requests []models.ReferralRequest
	cutoff := time.Now().Add(-olderThan)
	if err := s.DB.Where("processed = ? AND created_at < ?", false, cutoff).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to query stale referral requests: %w", err)
	}
	return requests, nil
}
