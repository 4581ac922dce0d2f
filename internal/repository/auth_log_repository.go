package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/lexia-platform/auth-service/internal/models"
	"gorm.io/gorm"
)

// LoginStats aggregates the audit trail for the admin dashboard.
type LoginStats struct {
	TotalLogins      int64 `json:"total_logins"`
	SuccessfulLogins int64 `json:"successful_logins"`
	FailedLogins     int64 `json:"failed_logins"`
	UniqueUsers      int64 `json:"unique_users"`
}

type AuthLogStore interface {
	Create(entry *models.AuthLog) error
	FindByUserID(userID uuid.UUID, limit int) ([]models.AuthLog, error)
	CountFailedAttempts(email, ip string, since time.Time) (int64, error)
	// DistinctLoginIPs counts distinct source addresses of successful logins
	// since the given instant (suspicious-activity heuristic input).
	DistinctLoginIPs(userID uuid.UUID, since time.Time) (int64, error)
	Stats(since time.Time) (*LoginStats, error)
	PurgeOld(before time.Time) (int64, error)
}

type authLogRepository struct {
	db *gorm.DB
}

func NewAuthLogRepository(db *gorm.DB) AuthLogStore {
	return &authLogRepository{db: db}
}

func (r *authLogRepository) Create(entry *models.AuthLog) error {
	return translate(r.db.Create(entry).Error)
}

func (r *authLogRepository) FindByUserID(userID uuid.UUID, limit int) ([]models.AuthLog, error) {
	var logs []models.AuthLog
	err := r.db.
		Where("usuario_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, translate(err)
}

func (r *authLogRepository) CountFailedAttempts(email, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AuthLog{}).
		Where("email = ? AND ip_address = ? AND event_type = ? AND created_at > ?",
			email, ip, models.EventFailedLogin, since).
		Count(&count).Error
	return count, translate(err)
}

func (r *authLogRepository) DistinctLoginIPs(userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AuthLog{}).
		Where("usuario_id = ? AND event_type = ? AND created_at > ?",
			userID, models.EventSuccessfulLogin, since).
		Distinct("ip_address").
		Count(&count).Error
	return count, translate(err)
}

func (r *authLogRepository) Stats(since time.Time) (*LoginStats, error) {
	var stats LoginStats
	err := r.db.Model(&models.AuthLog{}).Select(`
		COUNT(*) FILTER (WHERE event_type IN ?) AS total_logins,
		COUNT(*) FILTER (WHERE event_type = ? AND success) AS successful_logins,
		COUNT(*) FILTER (WHERE event_type = ? AND NOT success) AS failed_logins,
		COUNT(DISTINCT usuario_id) AS unique_users`,
		[]string{models.EventSuccessfulLogin, models.EventFailedLogin},
		models.EventSuccessfulLogin,
		models.EventFailedLogin).
		Where("created_at > ?", since).
		Scan(&stats).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

func (r *authLogRepository) PurgeOld(before time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", before).Delete(&models.AuthLog{})
	return res.RowsAffected, translate(res.Error)
}
