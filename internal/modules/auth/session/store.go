package session

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/identity/internal/models"
	"gorm.io/gorm"
)

// gormStore is the durable Store over the user_sessions table. State changes
// are single-row conditional UPDATEs so concurrent create/revoke for the same
// session serialize at the database, not behind an application mutex.
type gormStore struct{ db *gorm.DB }

// NewGormStore returns the MySQL-backed durable session store.
func NewGormStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Insert(ctx context.Context, row *models.UserSession) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *gormStore) FindActive(ctx context.Context, userID, digest string) (*models.UserSession, error) {
	var row models.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND refresh_digest = ? AND revoked_at IS NULL AND expires_at > ?",
			userID, digest, time.Now()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (s *gormStore) MarkRevoked(ctx context.Context, userID, digest string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("user_id = ? AND refresh_digest = ? AND revoked_at IS NULL", userID, digest).
		Update("revoked_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *gormStore) ListActive(ctx context.Context, userID string) ([]models.UserSession, error) {
	var rows []models.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (s *gormStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}
