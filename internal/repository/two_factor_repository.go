package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TwoFactorStore interface {
	// Upsert creates the configuration row or overwrites a prior
	// un-confirmed setup (new secret, enabled stays false).
	Upsert(tf *models.TwoFactorAuth) error
	FindByUserID(userID uuid.UUID) (*models.TwoFactorAuth, error)
	Enable(userID uuid.UUID, at time.Time) error
	Disable(userID uuid.UUID) error
	UpdateLastUsed(userID uuid.UUID, at time.Time) error
	// ReplaceBackupCodes atomically swaps the whole code set.
	ReplaceBackupCodes(userID uuid.UUID, codeHashes []string) error
	// ConsumeBackupCode marks one unused code row as used. At most one of
	// two concurrent presentations of the same code succeeds.
	ConsumeBackupCode(userID uuid.UUID, codeHash string, now time.Time) (bool, error)
	CountRemainingCodes(userID uuid.UUID) (int64, error)
	RemainingCodeHashes(userID uuid.UUID) ([]string, error)
}

type twoFactorRepository struct {
	db *gorm.DB
}

func NewTwoFactorRepository(db *gorm.DB) TwoFactorStore {
	return &twoFactorRepository{db: db}
}

func (r *twoFactorRepository) Upsert(tf *models.TwoFactorAuth) error {
	return translate(r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "usuario_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"secret":       tf.Secret,
			"enabled":      false,
			"enabled_at":   nil,
			"last_used_at": nil,
		}),
	}).Create(tf).Error)
}

func (r *twoFactorRepository) FindByUserID(userID uuid.UUID) (*models.TwoFactorAuth, error) {
	var tf models.TwoFactorAuth
	if err := r.db.First(&tf, "usuario_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &tf, nil
}

func (r *twoFactorRepository) Enable(userID uuid.UUID, at time.Time) error {
	return translate(r.db.Model(&models.TwoFactorAuth{}).
		Where("usuario_id = ?", userID).
		Updates(map[string]interface{}{"enabled": true, "enabled_at": at}).Error)
}

func (r *twoFactorRepository) Disable(userID uuid.UUID) error {
	// Secret is retained; the row simply stops taking part in verification.
	return translate(r.db.Model(&models.TwoFactorAuth{}).
		Where("usuario_id = ?", userID).
		Update("enabled", false).Error)
}

func (r *twoFactorRepository) UpdateLastUsed(userID uuid.UUID, at time.Time) error {
	return translate(r.db.Model(&models.TwoFactorAuth{}).
		Where("usuario_id = ?", userID).
		Update("last_used_at", at).Error)
}

func (r *twoFactorRepository) ReplaceBackupCodes(userID uuid.UUID, codeHashes []string) error {
	return translate(r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("usuario_id = ?", userID).
			Delete(&models.TwoFactorBackupCode{}).Error; err != nil {
			return err
		}
		rows := make([]models.TwoFactorBackupCode, 0, len(codeHashes))
		for _, hash := range codeHashes {
			rows = append(rows, models.TwoFactorBackupCode{
				ID:        uuid.New(),
				UsuarioID: userID,
				CodeHash:  hash,
			})
		}
		return tx.Create(&rows).Error
	}))
}

func (r *twoFactorRepository) ConsumeBackupCode(userID uuid.UUID, codeHash string, now time.Time) (bool, error) {
	res := r.db.Model(&models.TwoFactorBackupCode{}).
		Where("usuario_id = ? AND code_hash = ? AND used_at IS NULL", userID, codeHash).
		Update("used_at", now)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *twoFactorRepository) CountRemainingCodes(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.TwoFactorBackupCode{}).
		Where("usuario_id = ? AND used_at IS NULL", userID).
		Count(&count).Error
	return count, translate(err)
}

func (r *twoFactorRepository) RemainingCodeHashes(userID uuid.UUID) ([]string, error) {
	var hashes []string
	err := r.db.Model(&models.TwoFactorBackupCode{}).
		Where("usuario_id = ? AND used_at IS NULL", userID).
		Pluck("code_hash", &hashes).Error
	return hashes, translate(err)
}
