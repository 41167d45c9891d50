package repository

import (
	"time"

	notesdomain "zenith-backend/internal/notes/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// noteRepository implements NoteRepository interface
type noteRepository struct {
	db *gorm.DB
}

// NewNoteRepository creates a new instance of noteRepository
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepository{
		db: db,
	}
}

func (r *noteRepository) Create(note *notesdomain.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now
	return r.db.Create(note).Error
}

func (r *noteRepository) ListByUser(userID string, limit int) ([]notesdomain.Note, error) {
	if limit <= 0 {
		limit = 50
	}
	var notes []notesdomain.Note
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notes).Error
	return notes, err
}
