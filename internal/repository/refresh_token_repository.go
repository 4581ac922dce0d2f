package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefreshTokenStore interface {
	Create(token *models.RefreshToken) error
	// Claim atomically revokes an unrevoked, unexpired token row identified
	// by its hash and returns it. Exactly one of two concurrent claims for
	// the same token succeeds; the loser gets ErrNotFound.
	Claim(tokenHash string, now time.Time) (*models.RefreshToken, error)
	Revoke(tokenHash string, now time.Time) error
	RevokeAllForUser(userID uuid.UUID, now time.Time) (int64, error)
	ActiveSessions(userID uuid.UUID, now time.Time) ([]models.RefreshToken, error)
	CountActive(userID uuid.UUID, now time.Time) (int64, error)
	PurgeExpired(before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenStore {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(token *models.RefreshToken) error {
	return translate(r.db.Create(token).Error)
}

func (r *refreshTokenRepository) Claim(tokenHash string, now time.Time) (*models.RefreshToken, error) {
	var claimed []models.RefreshToken
	res := r.db.Model(&claimed).
		Clauses(clause.Returning{}).
		Where("token_hash = ? AND revoked = false AND expires_at > ?", tokenHash, now).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 || len(claimed) == 0 {
		return nil, ErrNotFound
	}
	return &claimed[0], nil
}

func (r *refreshTokenRepository) Revoke(tokenHash string, now time.Time) error {
	return translate(r.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked = false", tokenHash).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": now}).Error)
}

func (r *refreshTokenRepository) RevokeAllForUser(userID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.Model(&models.RefreshToken{}).
		Where("usuario_id = ? AND revoked = false", userID).
		Updates(map[string]interface{}{"revoked": true, "revoked_at": now})
	return res.RowsAffected, translate(res.Error)
}

func (r *refreshTokenRepository) ActiveSessions(userID uuid.UUID, now time.Time) ([]models.RefreshToken, error) {
	var sessions []models.RefreshToken
	err := r.db.
		Where("usuario_id = ? AND revoked = false AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, translate(err)
}

func (r *refreshTokenRepository) CountActive(userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.RefreshToken{}).
		Where("usuario_id = ? AND revoked = false AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, translate(err)
}

func (r *refreshTokenRepository) PurgeExpired(before time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", before).Delete(&models.RefreshToken{})
	return res.RowsAffected, translate(res.Error)
}
