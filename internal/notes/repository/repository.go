package repository

import notesdomain "zenith-backend/internal/notes/domain"

// NoteRepository defines the interface for note persistence
type NoteRepository interface {
	Create(note *notesdomain.Note) error
	ListByUser(userID string, limit int) ([]notesdomain.Note, error)
}
