package auth

import (
	"context"
	"errors"

	"github.com/mx-space/identity/internal/models"
	"github.com/mx-space/identity/internal/modules/auth/autherrors"
	"github.com/mx-space/identity/internal/modules/auth/lockout"
	"github.com/mx-space/identity/internal/modules/auth/recovery"
	"github.com/mx-space/identity/internal/modules/auth/session"
	"github.com/mx-space/identity/internal/modules/auth/user"
	"github.com/mx-space/identity/internal/pkg/audit"
	jwtpkg "github.com/mx-space/identity/internal/pkg/jwt"
	"go.uber.org/zap"
)

// PasswordHasher is the hashing surface the orchestrator needs; satisfied by
// internal/pkg/hasher and by counting fakes in tests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	NeedsRehash(digest string) bool
	CheckPolicy(plain string) error
}

// Mailer delivers the recovery emails. Fire-and-forget: a send failure never
// rolls back token issuance.
type Mailer interface {
	SendVerificationEmail(u *models.UserModel, secret string) error
	SendPasswordResetEmail(u *models.UserModel, secret string) error
}

// Service composes the identity flows: register, login, logout, refresh and
// the recovery paths. It is the only component talking to the user
// directory, the mailer and the audit sink.
type Service struct {
	dir      user.Directory
	hasher   PasswordHasher
	issuer   *jwtpkg.Issuer
	sessions *session.Manager
	guard    *lockout.Guard
	recovery *recovery.Service
	mailer   Mailer
	audit    *audit.Sink
	logger   *zap.Logger
}

func NewService(
	dir user.Directory,
	h PasswordHasher,
	issuer *jwtpkg.Issuer,
	sessions *session.Manager,
	guard *lockout.Guard,
	rec *recovery.Service,
	mailer Mailer,
	sink *audit.Sink,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		dir:      dir,
		hasher:   h,
		issuer:   issuer,
		sessions: sessions,
		guard:    guard,
		recovery: rec,
		mailer:   mailer,
		audit:    sink,
		logger:   logger.Named("AuthService"),
	}
}

// Register creates an unverified account and mails the verification link.
func (s *Service) Register(ctx context.Context, dto *RegisterDTO) (*models.UserModel, error) {
	tenantID := tenantOrDefault(dto.TenantID)

	if _, err := s.dir.FindByEmail(ctx, dto.Email, tenantID); err == nil {
		return nil, autherrors.New(autherrors.KindValidation, "email already registered")
	} else if !errors.Is(err, user.ErrUserNotFound) {
		return nil, err
	}

	digest, err := s.hasher.Hash(dto.Password)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.KindValidation, "password too weak", err)
	}

	u := &models.UserModel{
		TenantID: tenantID,
		Email:    dto.Email,
		Name:     dto.Name,
		Password: digest,
		RoleID:   "member",
		Active:   true,
	}
	if err := s.dir.Create(ctx, u); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, u)
	return u, nil
}

// Login runs the guarded authentication sequence. The lockout check comes
// strictly before password verification so a locked account costs no
// hashing work and leaves a clean audit signal.
func (s *Service) Login(ctx context.Context, dto *LoginDTO, meta session.DeviceMeta) (*LoginResult, error) {
	tenantID := tenantOrDefault(dto.TenantID)

	u, err := s.dir.FindByEmail(ctx, dto.Email, tenantID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.audit.LoginFailure(dto.Email, tenantID, meta.IP, "unknown user")
			return nil, autherrors.New(autherrors.KindUnauthorized, msgBadCredentials)
		}
		return nil, err
	}
	if !u.Active {
		s.audit.LoginFailure(dto.Email, tenantID, meta.IP, "account inactive")
		return nil, autherrors.New(autherrors.KindForbidden, msgAccountBanned)
	}
	if s.guard.IsLocked(u) {
		s.audit.LoginFailure(dto.Email, tenantID, meta.IP, "account locked")
		return nil, autherrors.New(autherrors.KindForbidden, msgAccountLocked)
	}

	if !s.hasher.Verify(dto.Password, u.Password) {
		count, lockedUntil, gerr := s.guard.RecordFailure(ctx, u.ID)
		if gerr != nil {
			s.logger.Error("failed to record login failure", zap.Error(gerr))
		}
		if lockedUntil != nil {
			s.audit.LockoutTripped(u.ID, count, *lockedUntil)
		}
		s.audit.LoginFailure(dto.Email, tenantID, meta.IP, "wrong password")
		return nil, autherrors.New(autherrors.KindUnauthorized, msgBadCredentials)
	}

	if err := s.guard.RecordSuccess(ctx, u.ID); err != nil {
		s.logger.Warn("failed to reset attempt counter", zap.Error(err))
	}
	s.maybeRehash(ctx, u, dto.Password)

	pair, err := s.issuer.IssuePair(jwtpkg.Identity{
		UserID:   u.ID,
		TenantID: u.TenantID,
		RoleID:   u.RoleID,
		Email:    u.Email,
	})
	if err != nil {
		return nil, err
	}

	// No credentials without a durable session record.
	if _, err := s.sessions.Create(ctx, u.ID, u.TenantID, pair.RefreshToken, meta); err != nil {
		s.logger.Error("session create failed, aborting login", zap.Error(err))
		return nil, err
	}

	if err := s.dir.RecordLogin(ctx, u.ID, meta.IP); err != nil {
		s.logger.Warn("failed to record last login", zap.Error(err))
	}
	s.audit.LoginSuccess(u.ID, u.TenantID, meta.IP)
	s.audit.SessionCreated(u.ID, u.TenantID, pair.JTI)

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         u.PublicView(),
	}, nil
}

// Refresh exchanges a refresh credential for a new access credential. The
// session must still exist: a syntactically valid refresh token whose
// session was revoked is rejected here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.KindUnauthorized, msgBadToken, err)
	}

	ok, err := s.sessions.Exists(ctx, claims.UserID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, autherrors.New(autherrors.KindUnauthorized, msgSessionGone)
	}

	u, err := s.dir.FindByID(ctx, claims.UserID, claims.TenantID)
	if err != nil || !u.Active {
		return nil, autherrors.New(autherrors.KindUnauthorized, msgSessionGone)
	}

	access, err := s.issuer.IssueAccess(jwtpkg.Identity{
		UserID:   u.ID,
		TenantID: u.TenantID,
		RoleID:   u.RoleID,
		Email:    u.Email,
	})
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		AccessToken: access,
		ExpiresIn:   int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the session behind the presented refresh credential.
// Revoking an already-gone session is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return autherrors.Wrap(autherrors.KindUnauthorized, msgBadToken, err)
	}
	if err := s.sessions.Revoke(ctx, claims.UserID, refreshToken); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	s.audit.SessionRevoked(claims.UserID, 1, "logout")
	return nil
}

// RequestPasswordReset issues a reset token and mails it. An unknown or
// inactive account produces the identical outward success so the endpoint
// cannot be used to probe which emails exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email, tenantID string) error {
	tenantID = tenantOrDefault(tenantID)

	u, err := s.dir.FindByEmail(ctx, email, tenantID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.logger.Info("reset requested for unknown email", zap.String("tenant_id", tenantID))
			return nil
		}
		return err
	}
	if !u.Active {
		s.logger.Info("reset requested for inactive account", zap.String("user_id", u.ID))
		return nil
	}

	secret, err := s.recovery.Issue(ctx, u.ID, recovery.PurposeReset)
	if err != nil {
		return err
	}
	s.audit.TokenIssued(u.ID, string(recovery.PurposeReset))
	if err := s.mailer.SendPasswordResetEmail(u, secret); err != nil {
		s.logger.Warn("reset email send failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// CompletePasswordReset consumes the token, installs the new password and
// forcibly ends every session of the user. The revoke-all is a security
// invariant, not an optimization.
func (s *Service) CompletePasswordReset(ctx context.Context, secret, newPassword string) error {
	if err := s.hasher.CheckPolicy(newPassword); err != nil {
		return autherrors.Wrap(autherrors.KindValidation, "password too weak", err)
	}

	userID, err := s.recovery.Consume(ctx, secret, recovery.PurposeReset)
	if err != nil {
		s.audit.TokenRejected(string(recovery.PurposeReset), err.Error())
		return autherrors.Wrap(autherrors.KindUnauthorized, msgBadToken, err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return autherrors.Wrap(autherrors.KindValidation, "password too weak", err)
	}
	if err := s.dir.UpdatePassword(ctx, userID, digest); err != nil {
		return err
	}
	if err := s.guard.RecordSuccess(ctx, userID); err != nil {
		s.logger.Warn("failed to clear lockout after reset", zap.Error(err))
	}

	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		s.logger.Error("revoke-all after reset failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.audit.SessionRevoked(userID, n, "password_reset")
	s.audit.TokenConsumed(userID, string(recovery.PurposeReset))
	return nil
}

// RequestEmailVerification re-issues the verification token for an
// authenticated, not-yet-verified account.
func (s *Service) RequestEmailVerification(ctx context.Context, userID, tenantID string) error {
	u, err := s.dir.FindByID(ctx, userID, tenantOrDefault(tenantID))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return autherrors.New(autherrors.KindNotFound, "user not found")
		}
		return err
	}
	if u.Verified {
		return autherrors.New(autherrors.KindValidation, "email already verified")
	}
	s.sendVerification(ctx, u)
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, secret string) error {
	userID, err := s.recovery.Consume(ctx, secret, recovery.PurposeVerify)
	if err != nil {
		s.audit.TokenRejected(string(recovery.PurposeVerify), err.Error())
		return autherrors.Wrap(autherrors.KindUnauthorized, msgBadToken, err)
	}
	if err := s.dir.MarkVerified(ctx, userID); err != nil {
		return err
	}
	s.audit.TokenConsumed(userID, string(recovery.PurposeVerify))
	return nil
}

// ListSessions returns the caller's active sessions.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]models.UserSession, error) {
	return s.sessions.ListActive(ctx, userID)
}

// RevokeAllSessions force-logs-out the user everywhere, current device
// included.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return n, err
	}
	s.audit.SessionRevoked(userID, n, "user_request")
	return n, nil
}

func (s *Service) sendVerification(ctx context.Context, u *models.UserModel) {
	secret, err := s.recovery.Issue(ctx, u.ID, recovery.PurposeVerify)
	if err != nil {
		s.logger.Error("verification token issue failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	s.audit.TokenIssued(u.ID, string(recovery.PurposeVerify))
	if err := s.mailer.SendVerificationEmail(u, secret); err != nil {
		s.logger.Warn("verification email send failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

// maybeRehash upgrades the stored digest when the configured work factor
// grew since the password was hashed.
func (s *Service) maybeRehash(ctx context.Context, u *models.UserModel, plain string) {
	if !s.hasher.NeedsRehash(u.Password) {
		return
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return
	}
	if err := s.dir.UpdatePassword(ctx, u.ID, digest); err != nil {
		s.logger.Warn("lazy rehash failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

func tenantOrDefault(tenantID string) string {
	if tenantID == "" {
		return defaultTenantID
	}
	return tenantID
}
