package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
)

type UserStore interface {
	Create(user *models.User) error
	FindByID(id uuid.UUID) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdatePassword(id uuid.UUID, passwordHash string) error
	VerifyEmail(id uuid.UUID, at time.Time) error
	// IncrementFailedAttempts bumps the counter and sets locked_until once
	// it reaches the threshold, in a single statement.
	IncrementFailedAttempts(id uuid.UUID, threshold int, lockedUntil time.Time) error
	ResetFailedAttempts(id uuid.UUID, ip *string, at time.Time) error
	SetTwoFactorEnabled(id uuid.UUID, enabled bool) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserStore {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return translate(r.db.Create(user).Error)
}

func (r *userRepository) FindByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	return translate(r.db.Save(user).Error)
}

func (r *userRepository) UpdatePassword(id uuid.UUID, passwordHash string) error {
	return translate(r.db.Model(&models.User{}).Where("id = ?", id).
		Update("password_hash", passwordHash).Error)
}

func (r *userRepository) VerifyEmail(id uuid.UUID, at time.Time) error {
	return translate(r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_verified":    true,
			"email_verified_at": at,
		}).Error)
}

func (r *userRepository) IncrementFailedAttempts(id uuid.UUID, threshold int, lockedUntil time.Time) error {
	return translate(r.db.Exec(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END
		WHERE id = ?`,
		threshold, lockedUntil, id).Error)
}

func (r *userRepository) ResetFailedAttempts(id uuid.UUID, ip *string, at time.Time) error {
	return translate(r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login_at":         at,
			"last_login_ip":         ip,
		}).Error)
}

func (r *userRepository) SetTwoFactorEnabled(id uuid.UUID, enabled bool) error {
	return translate(r.db.Model(&models.User{}).Where("id = ?", id).
		Update("two_factor_enabled", enabled).Error)
}
