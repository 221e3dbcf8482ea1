package models

import "time"

// UserSession tracks an active refresh-credential session for device/session management.
// RefreshDigest is the SHA-256 hex digest of the refresh secret; the raw secret is never stored.
type UserSession struct {
	Base
	UserID        string     `json:"user_id"       gorm:"uniqueIndex:idx_sessions_user_digest;size:36;not null"`
	TenantID      string     `json:"tenant_id"     gorm:"index;size:64"`
	RefreshDigest string     `json:"-"             gorm:"uniqueIndex:idx_sessions_user_digest;size:64;not null"`
	IP            string     `json:"ip"`
	UA            string     `json:"ua"            gorm:"type:text"`
	DeviceClass   string     `json:"device_class"  gorm:"size:32"`
	ExpiresAt     time.Time  `json:"expires_at"    gorm:"index;not null"`
	RevokedAt     *time.Time `json:"revoked_at"    gorm:"index"`
}

func (UserSession) TableName() string { return "user_sessions" }

// Active reports whether the session is neither revoked nor expired at t.
func (s *UserSession) Active(t time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(t)
}
