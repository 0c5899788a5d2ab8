// services/codes.go
package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/gosimple/slug"
)

// Code generation and hashing. Pure functions over crypto/rand — no stored
// state. Plaintext codes are only ever held in memory long enough to email
// them; at rest we keep the SHA-256 digest and an expiry.

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateVerificationCode returns a 6-digit numeric code drawn uniformly
// from [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to draw verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GenerateReferralCode derives an 8-character code from the new user's own
// UID plus a random suffix. Deriving from the UID avoids querying the user
// table from an untrusted context; the random half keeps codes unguessable.
// Collisions are negligible but possible — the unique index on
// users.referral_code rejects them and the caller regenerates.
func GenerateReferralCode(uid string) (string, error) {
	sum := sha256.Sum256([]byte(uid))
	var b strings.Builder
	for _, by := range sum[:4] {
		b.WriteByte(referralCodeAlphabet[int(by)%len(referralCodeAlphabet)])
	}
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to draw referral code suffix: %w", err)
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// HashCode returns the hex SHA-256 digest of a plaintext code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// GenerateUsername builds a username from the first fragments of the given
// names plus a 3-digit numeric suffix, e.g. "janedoe482". Falls back to
// "user" when the names carry no usable characters.
func GenerateUsername(firstName, lastName string) (string, error) {
	base := slug.Make(strings.Split(strings.TrimSpace(firstName), " ")[0]) +
		slug.Make(strings.Split(strings.TrimSpace(lastName), " ")[0])
	base = strings.ReplaceAll(base, "-", "")
	if base == "" {
		base = "user"
	}
	n, err := rand.Int(rand.Reader, big.NewInt(900))
	if err != nil {
		return "", fmt.Errorf("failed to draw username suffix: %w", err)
	}
	return fmt.Sprintf("%s%d", base, n.Int64()+100), nil
}
