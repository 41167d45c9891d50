package domain

import "time"

// ImapAccount stores a user's IMAP server credentials. The password is
// sealed with a secretbox key before it reaches the database; only the
// ciphertext is persisted.
type ImapAccount struct {
	UserID             string    `json:"user_id" gorm:"primaryKey"`
	Host               string    `json:"host" gorm:"not null"`
	Port               int       `json:"port" gorm:"not null"`
	Username           string    `json:"username" gorm:"not null"`
	PasswordCiphertext []byte    `json:"-" gorm:"not null"`
	UseTLS             bool      `json:"use_tls"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
