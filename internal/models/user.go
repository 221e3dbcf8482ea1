package models

import "time"

// UserModel represents an account in the identity directory.
// Email is unique per tenant; Password always holds a bcrypt digest.
type UserModel struct {
	Base
	TenantID          string     `json:"tenant_id"           gorm:"uniqueIndex:idx_users_tenant_email;size:64;not null"`
	Email             string     `json:"email"               gorm:"uniqueIndex:idx_users_tenant_email;size:191;not null"`
	Name              string     `json:"name"`
	Password          string     `json:"-"                   gorm:"not null"`
	RoleID            string     `json:"role_id"             gorm:"size:64"`
	Active            bool       `json:"active"              gorm:"default:true"`
	Verified          bool       `json:"verified"`
	FailedAttempts    int        `json:"-"                   gorm:"not null;default:0"`
	LockedUntil       *time.Time `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`
	LastLoginTime     *time.Time `json:"last_login_time"`
	LastLoginIP       string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }

// PublicView strips credential and lockout fields for API responses.
func (u *UserModel) PublicView() map[string]interface{} {
	return map[string]interface{}{
		"id":              u.ID,
		"tenant_id":       u.TenantID,
		"email":           u.Email,
		"name":            u.Name,
		"role_id":         u.RoleID,
		"verified":        u.Verified,
		"last_login_time": u.LastLoginTime,
		"created":         u.CreatedAt,
	}
}
