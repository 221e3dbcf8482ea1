// Package recovery manages the single-use, time-boxed tokens behind email
// verification and password reset. The raw secret is emailed to the user;
// only its digest is stored.
package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/identity/internal/models"
	"github.com/mx-space/identity/internal/pkg/tokens"
	"go.uber.org/zap"
)

// Purpose discriminates the two token kinds; each has its own TTL and at
// most one unused, unexpired row per user.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

const (
	DefaultVerifyTTL = 24 * time.Hour
	DefaultResetTTL  = time.Hour
)

var (
	// ErrTokenInvalid covers not-found and expired; callers surface the two
	// identically so a guesser cannot tell which occurred.
	ErrTokenInvalid = errors.New("recovery token invalid or expired")
	// ErrTokenUsed marks a replay of an already-consumed secret.
	ErrTokenUsed = errors.New("recovery token already used")
)

// ConsumeOutcome classifies why a conditional consume matched no row.
type ConsumeOutcome int

const (
	OutcomeConsumed ConsumeOutcome = iota
	OutcomeNotFound
	OutcomeExpired
	OutcomeAlreadyUsed
)

// Store is the durable token table. Consume must be a single atomic
// check-and-set: of two near-simultaneous calls with the same digest exactly
// one observes OutcomeConsumed.
type Store interface {
	Supersede(ctx context.Context, row *models.RecoveryToken) error
	Consume(ctx context.Context, digest string, purpose Purpose, now time.Time) (*models.RecoveryToken, ConsumeOutcome, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Service issues and consumes recovery tokens.
type Service struct {
	store     Store
	verifyTTL time.Duration
	resetTTL  time.Duration
	logger    *zap.Logger
}

func NewService(store Store, verifyTTL, resetTTL time.Duration, logger *zap.Logger) *Service {
	if verifyTTL <= 0 {
		verifyTTL = DefaultVerifyTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, verifyTTL: verifyTTL, resetTTL: resetTTL, logger: logger.Named("RecoveryService")}
}

// Issue creates a fresh opaque secret for (userID, purpose), superseding any
// prior unused token so only the most recently emailed link stays valid.
// Returns the raw secret for delivery.
func (s *Service) Issue(ctx context.Context, userID string, purpose Purpose) (string, error) {
	secret, err := tokens.GenerateSecret(tokens.DefaultSecretBytes)
	if err != nil {
		return "", err
	}
	row := &models.RecoveryToken{
		UserID:       userID,
		Purpose:      string(purpose),
		SecretDigest: tokens.Digest(secret),
		ExpiresAt:    time.Now().Add(s.ttl(purpose)),
	}
	if err := s.store.Supersede(ctx, row); err != nil {
		return "", err
	}
	return secret, nil
}

// Consume marks the token for secret used, exactly once. NotFound and
// Expired collapse into ErrTokenInvalid; a replay returns ErrTokenUsed. The
// owning user id is returned on success.
func (s *Service) Consume(ctx context.Context, secret string, purpose Purpose) (string, error) {
	digest := tokens.Digest(secret)
	row, outcome, err := s.store.Consume(ctx, digest, purpose, time.Now())
	if err != nil {
		return "", err
	}
	switch outcome {
	case OutcomeConsumed:
		return row.UserID, nil
	case OutcomeAlreadyUsed:
		s.logger.Warn("recovery token replayed", zap.String("purpose", string(purpose)))
		return "", ErrTokenUsed
	case OutcomeExpired:
		s.logger.Info("recovery token expired", zap.String("purpose", string(purpose)))
		return "", ErrTokenInvalid
	default:
		return "", ErrTokenInvalid
	}
}

// SweepExpired removes rows past expiry; consumed rows are swept once their
// expiry passes too.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}

func (s *Service) ttl(purpose Purpose) time.Duration {
	if purpose == PurposeReset {
		return s.resetTTL
	}
	return s.verifyTTL
}
