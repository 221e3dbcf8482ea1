package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/identity/internal/models"
	"gorm.io/gorm"
)

// gormStore persists tokens in the recovery_tokens table.
type gormStore struct{ db *gorm.DB }

// NewGormStore returns the MySQL-backed token store.
func NewGormStore(db *gorm.DB) Store { return &gormStore{db: db} }

// Supersede replaces any unused token for (user, purpose) inside one
// transaction, so at most one live token exists per pair.
func (s *gormStore) Supersede(ctx context.Context, row *models.RecoveryToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND purpose = ? AND used_at IS NULL", row.UserID, row.Purpose).
			Delete(&models.RecoveryToken{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
}

// Consume is a single conditional UPDATE: only an unused, unexpired row
// matching the digest gets used_at set. The database's row atomicity makes
// two simultaneous consumes resolve to one winner.
func (s *gormStore) Consume(ctx context.Context, digest string, purpose Purpose, now time.Time) (*models.RecoveryToken, ConsumeOutcome, error) {
	res := s.db.WithContext(ctx).Model(&models.RecoveryToken{}).
		Where("secret_digest = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?",
			digest, purpose, now).
		Update("used_at", &now)
	if res.Error != nil {
		return nil, OutcomeNotFound, res.Error
	}

	if res.RowsAffected == 0 {
		// Diagnose for the audit trail; the caller still collapses the
		// outward error.
		var row models.RecoveryToken
		err := s.db.WithContext(ctx).
			Where("secret_digest = ? AND purpose = ?", digest, purpose).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, OutcomeNotFound, nil
			}
			return nil, OutcomeNotFound, err
		}
		if row.UsedAt != nil {
			return nil, OutcomeAlreadyUsed, nil
		}
		return nil, OutcomeExpired, nil
	}

	var row models.RecoveryToken
	if err := s.db.WithContext(ctx).
		Where("secret_digest = ? AND purpose = ?", digest, purpose).
		First(&row).Error; err != nil {
		return nil, OutcomeNotFound, err
	}
	return &row, OutcomeConsumed, nil
}

func (s *gormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.RecoveryToken{})
	return res.RowsAffected, res.Error
}
