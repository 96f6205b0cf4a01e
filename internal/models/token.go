package models

import "time"

// RefreshToken is a persisted staff session. Only the SHA-256 of the token handed to the
// client is stored.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	StaffID   string     `db:"staff_id" json:"staff_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}
