package repository

import (
	"errors"
	"time"

	emaildomain "zenith-backend/internal/email/domain"

	"gorm.io/gorm"
)

// imapAccountRepository implements ImapAccountRepository interface
type imapAccountRepository struct {
	db *gorm.DB
}

// NewImapAccountRepository creates a new instance of imapAccountRepository
func NewImapAccountRepository(db *gorm.DB) ImapAccountRepository {
	return &imapAccountRepository{
		db: db,
	}
}

func (r *imapAccountRepository) Save(account *emaildomain.ImapAccount) error {
	var existing emaildomain.ImapAccount
	err := r.db.Where("user_id = ?", account.UserID).First(&existing).Error

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account.CreatedAt = now
		account.UpdatedAt = now
		return r.db.Create(account).Error
	} else if err != nil {
		return err
	}

	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = now
	return r.db.Save(account).Error
}

func (r *imapAccountRepository) Find(userID string) (*emaildomain.ImapAccount, error) {
	var account emaildomain.ImapAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *imapAccountRepository) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&emaildomain.ImapAccount{}).Error
}
