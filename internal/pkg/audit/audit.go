// Package audit emits structured security events. Writes are best-effort:
// nothing on a trust path depends on them succeeding.
package audit

import (
	"time"

	"go.uber.org/zap"
)

// Sink writes audit events through a named zap logger.
type Sink struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{log: log.Named("AuditService")}
}

func (s *Sink) LoginSuccess(userID, tenantID, ip string) {
	s.log.Info("login success",
		zap.String("user_id", userID),
		zap.String("tenant_id", tenantID),
		zap.String("ip", ip),
	)
}

// LoginFailure records the real reason internally; callers surface only a
// generic message to the client.
func (s *Sink) LoginFailure(email, tenantID, ip, reason string) {
	s.log.Warn("login failure",
		zap.String("email", email),
		zap.String("tenant_id", tenantID),
		zap.String("ip", ip),
		zap.String("reason", reason),
	)
}

func (s *Sink) LockoutTripped(userID string, attempts int, until time.Time) {
	s.log.Warn("account lockout tripped",
		zap.String("user_id", userID),
		zap.Int("attempts", attempts),
		zap.Time("locked_until", until),
	)
}

func (s *Sink) SessionCreated(userID, tenantID, jti string) {
	s.log.Info("session created",
		zap.String("user_id", userID),
		zap.String("tenant_id", tenantID),
		zap.String("jti", jti),
	)
}

func (s *Sink) SessionRevoked(userID string, count int, reason string) {
	s.log.Info("session revoked",
		zap.String("user_id", userID),
		zap.Int("count", count),
		zap.String("reason", reason),
	)
}

func (s *Sink) TokenIssued(userID, purpose string) {
	s.log.Info("recovery token issued",
		zap.String("user_id", userID),
		zap.String("purpose", purpose),
	)
}

func (s *Sink) TokenConsumed(userID, purpose string) {
	s.log.Info("recovery token consumed",
		zap.String("user_id", userID),
		zap.String("purpose", purpose),
	)
}

// TokenRejected records why a consume attempt failed; the client only ever
// sees "invalid or expired".
func (s *Sink) TokenRejected(purpose, reason string) {
	s.log.Warn("recovery token rejected",
		zap.String("purpose", purpose),
		zap.String("reason", reason),
	)
}
