package repository

import (
	"errors"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"gorm.io/gorm"
)

// pollWatermarkRepository implements PollWatermarkRepository interface
type pollWatermarkRepository struct {
	db *gorm.DB
}

// NewPollWatermarkRepository creates a new instance of pollWatermarkRepository
func NewPollWatermarkRepository(db *gorm.DB) PollWatermarkRepository {
	return &pollWatermarkRepository{
		db: db,
	}
}

func (r *pollWatermarkRepository) Get(userID string) (*emaildomain.PollWatermark, error) {
	var wm emaildomain.PollWatermark
	err := r.db.Where("user_id = ?", userID).First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wm, nil
}

func (r *pollWatermarkRepository) Seed(userID string, intervalSeconds int) error {
	existing, err := r.Get(userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := time.Now()
	wm := emaildomain.PollWatermark{
		UserID:          userID,
		Enabled:         true,
		IntervalSeconds: intervalSeconds,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return r.db.Create(&wm).Error
}

func (r *pollWatermarkRepository) ListEnabled() ([]emaildomain.PollWatermark, error) {
	var wms []emaildomain.PollWatermark
	err := r.db.Where("enabled = ?", true).Find(&wms).Error
	return wms, err
}

func (r *pollWatermarkRepository) Advance(userID, provider, messageID string) error {
	wm, err := r.Get(userID)
	if err != nil {
		return err
	}
	if wm == nil {
		return errors.New("no poll watermark for user " + userID)
	}

	// Forward-only: an id that does not sort after the stored watermark is
	// a stale write from a slower channel and is dropped.
	if last := wm.LastProcessed(provider); last != nil && messageID <= *last {
		return nil
	}

	wm.SetLastProcessed(provider, messageID)
	wm.LastPollAt = time.Now()
	wm.UpdatedAt = wm.LastPollAt
	return r.db.Save(wm).Error
}

func (r *pollWatermarkRepository) ClearProvider(userID, provider string) error {
	column := "last_processed_gmail"
	if provider == emaildomain.ProviderImap {
		column = "last_processed_imap"
	}
	return r.db.Model(&emaildomain.PollWatermark{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{column: nil, "updated_at": time.Now()}).Error
}

func (r *pollWatermarkRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&emaildomain.PollWatermark{}).Error
}
