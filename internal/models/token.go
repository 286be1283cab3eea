package models

import (
	"time"
)

// Per-customer OAuth2 token record as stored in the repository
type TokenRecord struct {
	CustomerID     string
	CustomerFolder string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// The access token is unusable at the expiry instant itself
func (t TokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// The three fields a successful grant exchange replaces together
type RotatedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
