package models

import "time"

// ReferralResult is the terminal outcome recorded on a processed request.
type ReferralResult string

const (
	ReferralResultSuccess      ReferralResult = "success"
	ReferralResultCodeNotFound ReferralResult = "code_not_found"
	ReferralResultSelfReferral ReferralResult = "self_referral"
	ReferralResultError        ReferralResult = "error"
)

// ReferralRequest is the queue record created at signup and consumed by the
// attribution worker. It is written exactly twice: once on creation and once
// when the engine records the terminal fields. Delivery to the engine is
// at-least-once; idempotence lives in the engine, not here.
type ReferralRequest struct {
	ID     string `gorm:"primaryKey" json:"id"`
	NewUID string `gorm:"index" json:"new_uid"`
	Code   string `json:"code"`

	Processed   bool            `gorm:"default:false;index" json:"processed"`
	Result      *ReferralResult `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Referral is the append-only audit record, one per successful attribution.
// The unique index on ReferredUID is the database-level backstop for
// at-most-once attribution.
type Referral struct {
	ID          string `gorm:"primaryKey" json:"id"`
	ReferrerUID string `gorm:"index;not null" json:"referrer_uid"`
	ReferredUID string `gorm:"uniqueIndex;not null" json:"referred_uid"`
	Code        string `gorm:"not null" json:"code"`

	ReferrerXP int64 `gorm:"default:0" json:"referrer_xp"`
	ReferredXP int64 `gorm:"default:0" json:"referred_xp"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
