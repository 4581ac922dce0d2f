package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
)

type PasswordResetStore interface {
	Create(token *models.PasswordResetToken) error
	FindValid(token string, now time.Time) (*models.PasswordResetToken, error)
	MarkUsed(token string, now time.Time) error
	InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error)
	// HasRecentToken reports whether a token was created for the user since
	// the given instant (anti-spam window for forgot-password).
	HasRecentToken(userID uuid.UUID, since time.Time) (bool, error)
	IncrementAttempts(token string) error
	PurgeExpired(before time.Time) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) PasswordResetStore {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(token *models.PasswordResetToken) error {
	return translate(r.db.Create(token).Error)
}

func (r *passwordResetRepository) FindValid(token string, now time.Time) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	err := r.db.
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *passwordResetRepository) MarkUsed(token string, now time.Time) error {
	res := r.db.Model(&models.PasswordResetToken{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", now)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *passwordResetRepository) InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.Model(&models.PasswordResetToken{}).
		Where("usuario_id = ? AND used_at IS NULL", userID).
		Update("used_at", now)
	return res.RowsAffected, translate(res.Error)
}

func (r *passwordResetRepository) HasRecentToken(userID uuid.UUID, since time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.PasswordResetToken{}).
		Where("usuario_id = ? AND created_at > ?", userID, since).
		Count(&count).Error
	return count > 0, translate(err)
}

func (r *passwordResetRepository) IncrementAttempts(token string) error {
	return translate(r.db.Model(&models.PasswordResetToken{}).
		Where("token = ?", token).
		Update("attempts", gorm.Expr("attempts + 1")).Error)
}

func (r *passwordResetRepository) PurgeExpired(before time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", before).Delete(&models.PasswordResetToken{})
	return res.RowsAffected, translate(res.Error)
}
