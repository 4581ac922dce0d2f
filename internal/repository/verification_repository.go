package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
)

type VerificationTokenStore interface {
	Create(token *models.VerificationToken) error
	// FindValid returns the token only while it is unused and unexpired.
	FindValid(token string, now time.Time) (*models.VerificationToken, error)
	// MarkUsed consumes the token; only one of two concurrent consumers
	// succeeds.
	MarkUsed(token string, now time.Time) error
	InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error)
	PurgeExpired(before time.Time) (int64, error)
}

type verificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenStore {
	return &verificationTokenRepository{db: db}
}

func (r *verificationTokenRepository) Create(token *models.VerificationToken) error {
	return translate(r.db.Create(token).Error)
}

func (r *verificationTokenRepository) FindValid(token string, now time.Time) (*models.VerificationToken, error) {
	var record models.VerificationToken
	err := r.db.
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *verificationTokenRepository) MarkUsed(token string, now time.Time) error {
	res := r.db.Model(&models.VerificationToken{}).
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

func (r *verificationTokenRepository) InvalidateForUser(userID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.Model(&models.VerificationToken{}).
		Where("usuario_id = ? AND used_at IS NULL", userID).
		Update("used_at", now)
	return res.RowsAffected, translate(res.Error)
}

func (r *verificationTokenRepository) PurgeExpired(before time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", before).Delete(&models.VerificationToken{})
	return res.RowsAffected, translate(res.Error)
}
