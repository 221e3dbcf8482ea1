// Package lockout enforces temporary account lockout after repeated failed
// authentication attempts. State lives on the user row (failed_attempts,
// locked_until); the guard itself is stateless.
package lockout

import (
	"context"
	"time"

	"github.com/mx-space/identity/internal/models"
	"github.com/mx-space/identity/internal/modules/auth/user"
)

const (
	DefaultThreshold    = 5
	DefaultLockDuration = 30 * time.Minute
)

// Guard tracks failed attempts through the user directory.
type Guard struct {
	dir       user.Directory
	threshold int
	lockFor   time.Duration
}

func NewGuard(dir user.Directory, threshold int, lockFor time.Duration) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if lockFor <= 0 {
		lockFor = DefaultLockDuration
	}
	return &Guard{dir: dir, threshold: threshold, lockFor: lockFor}
}

// RecordFailure bumps the counter atomically at the store and, when the
// threshold is reached, sets the lock window. Returns the new count and the
// lock deadline when this failure tripped the lock.
func (g *Guard) RecordFailure(ctx context.Context, userID string) (int, *time.Time, error) {
	count, err := g.dir.IncrementFailedAttempts(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	if count >= g.threshold {
		until := time.Now().Add(g.lockFor)
		if err := g.dir.Lock(ctx, userID, until); err != nil {
			return count, nil, err
		}
		return count, &until, nil
	}
	return count, nil, nil
}

// RecordSuccess zeroes the counter and clears any lock.
func (g *Guard) RecordSuccess(ctx context.Context, userID string) error {
	return g.dir.ResetFailedAttempts(ctx, userID)
}

// IsLocked recomputes the lock state from the stored timestamp, so an
// expired lock self-clears without an explicit unlock call.
func (g *Guard) IsLocked(u *models.UserModel) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(time.Now())
}
