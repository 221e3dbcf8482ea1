package models

import "time"

// RecoveryToken is a single-use token row backing email verification and
// password reset. Only the digest of the emailed secret is stored; UsedAt
// stays NULL until the token is consumed.
type RecoveryToken struct {
	Base
	UserID       string     `json:"user_id"       gorm:"index:idx_recovery_user_purpose;size:36;not null"`
	Purpose      string     `json:"purpose"       gorm:"index:idx_recovery_user_purpose;size:16;not null"`
	SecretDigest string     `json:"-"             gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt    time.Time  `json:"expires_at"    gorm:"index;not null"`
	UsedAt       *time.Time `json:"used_at"`
}

func (RecoveryToken) TableName() string { return "recovery_tokens" }
