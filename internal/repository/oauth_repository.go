package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OAuthStore interface {
	Upsert(account *models.OAuthAccount) error
	FindByProvider(provider, providerAccountID string) (*models.OAuthAccount, error)
	FindByUserID(userID uuid.UUID) ([]models.OAuthAccount, error)
	HasProvider(userID uuid.UUID, provider string) (bool, error)
	UpdateTokens(provider, providerAccountID string, accessToken, refreshToken *string, expiresAt *time.Time) error
	Delete(provider, providerAccountID string) error
}

type oauthRepository struct {
	db *gorm.DB
}

func NewOAuthRepository(db *gorm.DB) OAuthStore {
	return &oauthRepository{db: db}
}

func (r *oauthRepository) Upsert(account *models.OAuthAccount) error {
	return translate(r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_account_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"access_token":     account.AccessToken,
			"refresh_token":    account.RefreshToken,
			"token_expires_at": account.TokenExpiresAt,
			"profile_data":     account.ProfileData,
		}),
	}).Create(account).Error)
}

func (r *oauthRepository) FindByProvider(provider, providerAccountID string) (*models.OAuthAccount, error) {
	var account models.OAuthAccount
	err := r.db.
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *oauthRepository) FindByUserID(userID uuid.UUID) ([]models.OAuthAccount, error) {
	var accounts []models.OAuthAccount
	err := r.db.Where("usuario_id = ?", userID).Find(&accounts).Error
	return accounts, translate(err)
}

func (r *oauthRepository) HasProvider(userID uuid.UUID, provider string) (bool, error) {
	var count int64
	err := r.db.Model(&models.OAuthAccount{}).
		Where("usuario_id = ? AND provider = ?", userID, provider).
		Count(&count).Error
	return count > 0, translate(err)
}

func (r *oauthRepository) UpdateTokens(provider, providerAccountID string, accessToken, refreshToken *string, expiresAt *time.Time) error {
	return translate(r.db.Model(&models.OAuthAccount{}).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		Updates(map[string]interface{}{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
		}).Error)
}

func (r *oauthRepository) Delete(provider, providerAccountID string) error {
	res := r.db.
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		Delete(&models.OAuthAccount{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
