package models

import (
	"time"
)

// User is the profile record owned by this service. Identity (UID, Email)
// comes from the auth provider via the gateway and is immutable after
// creation. Counters (XP, ReferralsCount, ...) move only through atomic
// SQL expressions — never read-modify-write.
type User struct {
	UID      string `gorm:"primaryKey" json:"uid"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	DisplayName *string `json:"display_name,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	IsPublic    bool    `gorm:"default:false" json:"is_public"`

	// Verification state. Hash and expiry are set together and cleared
	// together; IsVerified only ever transitions false -> true.
	IsVerified           bool       `gorm:"default:false" json:"is_verified"`
	VerificationCodeHash *string    `json:"-"`
	VerificationExpires  *time.Time `json:"-"`
	VerificationSentAt   *time.Time `json:"-"` // resend cooldown anchor

	// Referral state. ReferralCode is assigned once at signup and never
	// changes. ReferredBy is set at most once by the attribution engine;
	// nil means "not yet attributed", not "has no referrer".
	ReferralCode   string     `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferralsCount int64      `gorm:"default:0" json:"referrals_count"`
	ReferralsXP    int64      `gorm:"default:0" json:"referrals_xp"`
	ReferredBy     *string    `gorm:"index" json:"referred_by,omitempty"`
	ReferredAt     *time.Time `json:"referred_at,omitempty"`

	XP             int64 `gorm:"default:0" json:"xp"`
	FollowersCount int64 `gorm:"default:0" json:"followers_count"`
	FollowingCount int64 `gorm:"default:0" json:"following_count"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
