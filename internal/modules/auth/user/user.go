// Package user implements the identity directory the auth flows read and
// mutate. Consumers depend on the Directory interface so tests can swap in
// fakes.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/identity/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Directory is the account-store surface the auth subsystem consumes.
type Directory interface {
	FindByEmail(ctx context.Context, email, tenantID string) (*models.UserModel, error)
	FindByID(ctx context.Context, id, tenantID string) (*models.UserModel, error)
	Create(ctx context.Context, u *models.UserModel) error
	// IncrementFailedAttempts bumps the counter with a single atomic UPDATE
	// and returns the new count. Concurrent failures must not lose updates.
	IncrementFailedAttempts(ctx context.Context, id string) (int, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, until time.Time) error
	UpdatePassword(ctx context.Context, id, digest string) error
	MarkVerified(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id, ip string) error
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var _ Directory = (*Service)(nil)

func (s *Service) FindByEmail(ctx context.Context, email, tenantID string) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).
		Where("email = ? AND tenant_id = ?", email, tenantID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) FindByID(ctx context.Context, id, tenantID string) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Create(ctx context.Context, u *models.UserModel) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Service) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	// Store-level increment; read-increment-write in application code would
	// lose updates under concurrent failed logins.
	res := s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Update("failed_attempts", gorm.Expr("failed_attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrUserNotFound
	}

	var count int
	err := s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Pluck("failed_attempts", &count).Error
	return count, err
}

func (s *Service) ResetFailedAttempts(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed_attempts": 0,
			"locked_until":    nil,
		}).Error
}

func (s *Service) Lock(ctx context.Context, id string, until time.Time) error {
	return s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Update("locked_until", &until).Error
}

func (s *Service) UpdatePassword(ctx context.Context, id, digest string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password":            digest,
			"password_changed_at": &now,
		}).Error
}

func (s *Service) MarkVerified(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Update("verified", true).Error
}

func (s *Service) RecordLogin(ctx context.Context, id, ip string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login_time": &now,
			"last_login_ip":   ip,
		}).Error
}
