package domain

import (
	"strings"
	"time"
)

// Tier is a subscription level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

// ValidTier reports whether t is a known subscription tier.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierPro, TierTeam:
		return true
	}
	return false
}

// User is a platform account. Users own zero or more ProjectContexts.
// Credential verification is handled outside this system.
type User struct {
	ID          string            `json:"id"`
	Username    string            `json:"username"`
	DisplayName string            `json:"display_name"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Tier        Tier              `json:"tier"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Validate checks structural invariants.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return NewError(KindValidation, "username is required")
	}
	if len(u.Username) > 64 {
		return NewError(KindValidation, "username exceeds 64 characters")
	}
	if !ValidTier(u.Tier) {
		return Errorf(KindValidation, "unknown tier %q", u.Tier)
	}
	return nil
}
