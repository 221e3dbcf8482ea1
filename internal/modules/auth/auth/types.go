package auth

import (
	"time"

	"github.com/mx-space/identity/internal/models"
)

type RegisterDTO struct {
	Email    string `json:"email"     binding:"required,email"`
	Password string `json:"password"  binding:"required"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

type LoginDTO struct {
	Email    string `json:"email"     binding:"required,email"`
	Password string `json:"password"  binding:"required"`
	TenantID string `json:"tenant_id"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ForgotPasswordDTO struct {
	Email    string `json:"email"     binding:"required,email"`
	TenantID string `json:"tenant_id"`
}

type ResetPasswordDTO struct {
	Token       string `json:"token"        binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type VerifyEmailDTO struct {
	Token string `json:"token" binding:"required"`
}

// LoginResult carries the issued credentials and the public user view;
// the password digest never leaves the service.
type LoginResult struct {
	AccessToken  string                 `json:"access_token"`
	RefreshToken string                 `json:"refresh_token"`
	ExpiresIn    int64                  `json:"expires_in"`
	User         map[string]interface{} `json:"user"`
}

// RefreshResult carries a freshly minted access credential. The refresh
// credential is not rotated.
type RefreshResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	IP          string    `json:"ip"`
	UA          string    `json:"ua"`
	DeviceClass string    `json:"device_class"`
	Created     time.Time `json:"created"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toSessionResponse(s *models.UserSession) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		IP:          s.IP,
		UA:          s.UA,
		DeviceClass: s.DeviceClass,
		Created:     s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Outward messages are deliberately generic; the audit sink records the
// real reason.
const (
	msgBadCredentials = "invalid email or password"
	msgAccountLocked  = "account temporarily locked, try again later"
	msgAccountBanned  = "account disabled"
	msgBadToken       = "invalid or expired token"
	msgSessionGone    = "session expired or revoked"
	msgResetRequested = "if the account exists, a reset email has been sent"
)

const defaultTenantID = "default"
