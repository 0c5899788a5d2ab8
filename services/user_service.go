// services/user_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"proofly-rewards/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken = errors.New("username is already taken")
	ErrEmailTaken    = errors.New("email is already registered")
)

// uniqueRetries bounds regeneration when a generated username or referral
// code collides with an existing row.
const uniqueRetries = 5

type UserService struct {
	DB           *gorm.DB
	Verification *VerificationService
	Referrals    *ReferralService

	// OnReferralEnqueued, when set, nudges the queue worker so a fresh
	// signup's referral is attributed without waiting for the next poll.
	OnReferralEnqueued func()
}

func NewUserService(db *gorm.DB, verification *VerificationService, referrals *ReferralService) *UserService {
	return &UserService{DB: db, Verification: verification, Referrals: referrals}
}

// SignupInput carries the identity established by the auth provider plus the
// profile fields collected at signup. ReferralCode is whatever the user
// typed — it is validated by the attribution engine, never here.
type SignupInput struct {
	UID          string
	Email        string
	FirstName    string
	LastName     string
	DisplayName  string
	Phone        string
	ReferralCode string
}

// CreateProfile persists the initial user record, issues the first
// verification code, and (if a referral code was supplied) enqueues a
// referral request. The referral request is fire-and-forget from the
// signup's point of view: its outcome is never surfaced to the new user.
func (s *UserService) CreateProfile(in SignupInput) (*models.User, error) {
	if in.UID == "" || in.Email == "" {
		return nil, errors.New("uid and email are required")
	}

	caser := cases.Title(language.English)
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" && (firstName != "" || lastName != "") {
		displayName = strings.TrimSpace(caser.String(strings.ToLower(firstName)) + " " + caser.String(strings.ToLower(lastName)))
	}

	var created *models.User
	for attempt := 0; attempt < uniqueRetries; attempt++ {
		username, err := GenerateUsername(firstName, lastName)
		if err != nil {
			return nil, err
		}
		referralCode, err := GenerateReferralCode(in.UID)
		if err != nil {
			return nil, err
		}

		user := models.User{
			UID:          in.UID,
			Email:        in.Email,
			Username:     username,
			ReferralCode: referralCode,
		}
		if displayName != "" {
			user.DisplayName = &displayName
		}
		if firstName != "" {
			user.FirstName = &firstName
		}
		if lastName != "" {
			user.LastName = &lastName
		}
		if phone := strings.TrimSpace(in.Phone); phone != "" {
			user.Phone = &phone
		}

		err = s.DB.Create(&user).Error
		if err == nil {
			created = &user
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Could be username, referral code, email or uid. Email/uid
			// collisions won't resolve by regenerating, so check them.
			var count int64
			s.DB.Model(&models.User{}).Where("uid = ? OR email = ?", in.UID, in.Email).Count(&count)
			if count > 0 {
				return nil, ErrEmailTaken
			}
			log.Printf("⚠️ Generated username/referral code collided for %s, regenerating (attempt %d)", in.UID, attempt+1)
			continue
		}
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	if created == nil {
		return nil, errors.New("failed to generate a unique username/referral code")
	}

	if err := s.Verification.IssueCode(created.UID); err != nil {
		// The profile exists; the user can request a resend.
		log.Printf("⚠️ Failed to issue verification code for %s: %v", created.UID, err)
	}

	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		if _, err := s.Referrals.Enqueue(created.UID, strings.ToUpper(code)); err != nil {
			log.Printf("⚠️ Failed to enqueue referral request for %s: %v", created.UID, err)
		} else if s.OnReferralEnqueued != nil {
			s.OnReferralEnqueued()
		}
	}

	return created, nil
}

// GetProfile fetches a user record by uid.
func (s *UserService) GetProfile(uid string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", uid, err)
	}
	return &user, nil
}

// UsernameAvailable reports whether a candidate username can be taken by the
// given user: zero matches is available, one match that is the user
// themselves is available, anything else is not.
func (s *UserService) UsernameAvailable(uid, candidate string) (bool, error) {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return false, nil
	}
	var users []models.User
	if err := s.DB.Where("username = ?", candidate).Limit(2).Find(&users).Error; err != nil {
		return false, fmt.Errorf("failed to check username availability: %w", err)
	}
	switch len(users) {
	case 0:
		return true, nil
	case 1:
		return users[0].UID == uid, nil
	default:
		return false, nil
	}
}

// ProfileUpdate holds the mutable profile fields; nil means "leave as is".
// Identity, verification state, counters and the referral code are not
// reachable from here.
type ProfileUpdate struct {
	Username    *string
	DisplayName *string
	FirstName   *string
	LastName    *string
	Phone       *string
	IsPublic    *bool
}

func (s *UserService) UpdateProfile(uid string, update ProfileUpdate) (*models.User, error) {
	fields := map[string]interface{}{}

	if update.Username != nil {
		candidate := strings.ToLower(strings.TrimSpace(*update.Username))
		available, err := s.UsernameAvailable(uid, candidate)
		if err != nil {
			return nil, err
		}
		if !available {
			return nil, ErrUsernameTaken
		}
		fields["username"] = candidate
	}
	if update.DisplayName != nil {
		fields["display_name"] = *update.DisplayName
	}
	if update.FirstName != nil {
		fields["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		fields["last_name"] = *update.LastName
	}
	if update.Phone != nil {
		fields["phone"] = *update.Phone
	}
	if update.IsPublic != nil {
		fields["is_public"] = *update.IsPublic
	}

	if len(fields) > 0 {
		res := s.DB.Model(&models.User{}).Where("uid = ?", uid).Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update profile %s: %w", uid, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrProfileNotFound
		}
	}

	return s.GetProfile(uid)
}

// SetAvatarURL stores the public URL of an uploaded avatar.
func (s *UserService) SetAvatarURL(uid, url string) error {
	res := s.DB.Model(&models.User{}).Where("uid = ?", uid).Update("avatar_url", url)
	if res.Error != nil {
		return fmt.Errorf("failed to set avatar for %s: %w", uid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// MakeAllProfilesPublic is the admin backfill that flips is_public on every
// profile that doesn't have it yet. Returns the number of rows changed.
func (s *UserService) MakeAllProfilesPublic() (int64, error) {
	res := s.DB.Model(&models.User{}).Where("is_public = ?", false).Update("is_public", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to backfill is_public: %w", res.Error)
	}
	log.Printf("Updated %d users to public", res.RowsAffected)
	return res.RowsAffected, nil
}
