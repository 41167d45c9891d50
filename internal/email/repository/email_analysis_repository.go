package repository

import (
	"errors"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailAnalysisRepository defines the interface for persisted analysis
// results. Exists makes duplicate delivery across channels cheap: a
// message already analyzed by IDLE is skipped when the poller or a webhook
// sees it again.
type EmailAnalysisRepository interface {
	Save(analysis *emaildomain.EmailAnalysis) error
	Exists(userID, provider, messageID string) (bool, error)
	ListByUser(userID string, limit int) ([]emaildomain.EmailAnalysis, error)
}

// emailAnalysisRepository implements EmailAnalysisRepository interface
type emailAnalysisRepository struct {
	db *gorm.DB
}

// NewEmailAnalysisRepository creates a new instance of emailAnalysisRepository
func NewEmailAnalysisRepository(db *gorm.DB) EmailAnalysisRepository {
	return &emailAnalysisRepository{
		db: db,
	}
}

func (r *emailAnalysisRepository) Save(analysis *emaildomain.EmailAnalysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	analysis.CreatedAt = time.Now()
	return r.db.Create(analysis).Error
}

func (r *emailAnalysisRepository) Exists(userID, provider, messageID string) (bool, error) {
	var analysis emaildomain.EmailAnalysis
	err := r.db.Where("user_id = ? AND provider = ? AND message_id = ?", userID, provider, messageID).
		First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *emailAnalysisRepository) ListByUser(userID string, limit int) ([]emaildomain.EmailAnalysis, error) {
	if limit <= 0 {
		limit = 50
	}
	var analyses []emaildomain.EmailAnalysis
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}
