package models

import "time"

// XPReason names the award that produced an XP event. XP on a user only
// moves through one of these named events.
type XPReason string

const (
	XPReasonVerified         XPReason = "verified"
	XPReasonReferralReferrer XPReason = "referral_referrer"
	XPReasonReferralReferred XPReason = "referral_referred"
)

// XPEvent is the append-only ledger entry behind every XP counter change.
type XPEvent struct {
	ID     string   `gorm:"primaryKey" json:"id"`
	UID    string   `gorm:"index;not null" json:"uid"`
	Amount int64    `gorm:"not null" json:"amount"`
	Reason XPReason `gorm:"not null" json:"reason"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
