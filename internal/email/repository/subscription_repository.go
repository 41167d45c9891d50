package repository

import (
	"errors"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// subscriptionRepository implements SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new instance of subscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{
		db: db,
	}
}

func (r *subscriptionRepository) Upsert(sub *emaildomain.Subscription) error {
	var existing emaildomain.Subscription
	err := r.db.Where("user_id = ? AND provider = ?", sub.UserID, sub.Provider).First(&existing).Error

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub.ID = uuid.New().String()
		sub.CreatedAt = now
		sub.UpdatedAt = now
		return r.db.Create(sub).Error
	} else if err != nil {
		return err
	}

	// Keep the original identity and creation time, overwrite the rest.
	sub.ID = existing.ID
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = now
	return r.db.Save(sub).Error
}

func (r *subscriptionRepository) Find(userID, provider string) (*emaildomain.Subscription, error) {
	var sub emaildomain.Subscription
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Delete(userID, provider string) error {
	return r.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&emaildomain.Subscription{}).Error
}

func (r *subscriptionRepository) FindActive(provider string) ([]emaildomain.Subscription, error) {
	var subs []emaildomain.Subscription
	err := r.db.Where("provider = ? AND status = ?", provider, emaildomain.SubscriptionActive).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) FindRenewable(cutoff time.Time) ([]emaildomain.Subscription, error) {
	var subs []emaildomain.Subscription
	err := r.db.
		Where("status IN ?", []string{emaildomain.SubscriptionActive, emaildomain.SubscriptionFailed}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", cutoff).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) UpdateStatus(userID, provider, status string) error {
	return r.db.Model(&emaildomain.Subscription{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}
