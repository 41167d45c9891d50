package repository

import (
	"errors"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// analysisRetryRepository implements AnalysisRetryRepository interface
type analysisRetryRepository struct {
	db *gorm.DB
}

// NewAnalysisRetryRepository creates a new instance of analysisRetryRepository
func NewAnalysisRetryRepository(db *gorm.DB) AnalysisRetryRepository {
	return &analysisRetryRepository{
		db: db,
	}
}

func (r *analysisRetryRepository) Enqueue(userID, provider, messageID string, nextRetryAt time.Time, lastError string) error {
	var existing emaildomain.AnalysisRetry
	err := r.db.Where("user_id = ? AND provider = ? AND message_id = ?", userID, provider, messageID).
		First(&existing).Error

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry := emaildomain.AnalysisRetry{
			ID:          uuid.New().String(),
			UserID:      userID,
			Provider:    provider,
			MessageID:   messageID,
			Attempts:    1,
			NextRetryAt: nextRetryAt,
			LastError:   lastError,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return r.db.Create(&entry).Error
	} else if err != nil {
		return err
	}

	existing.Attempts++
	existing.NextRetryAt = nextRetryAt
	existing.LastError = lastError
	existing.UpdatedAt = now
	return r.db.Save(&existing).Error
}

func (r *analysisRetryRepository) Due(now time.Time, limit int) ([]emaildomain.AnalysisRetry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []emaildomain.AnalysisRetry
	err := r.db.Where("next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *analysisRetryRepository) Reschedule(id string, nextRetryAt time.Time, lastError string) error {
	return r.db.Model(&emaildomain.AnalysisRetry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":      gorm.Expr("attempts + 1"),
			"next_retry_at": nextRetryAt,
			"last_error":    lastError,
			"updated_at":    time.Now(),
		}).Error
}

func (r *analysisRetryRepository) Remove(id string) error {
	return r.db.Where("id = ?", id).Delete(&emaildomain.AnalysisRetry{}).Error
}

func (r *analysisRetryRepository) DeleteForUser(userID, provider string) error {
	return r.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&emaildomain.AnalysisRetry{}).Error
}
