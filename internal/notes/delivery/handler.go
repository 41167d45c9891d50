package delivery

import (
	"net/http"
	"strconv"

	authdomain "zenith-backend/internal/auth/domain"
	notesdomain "zenith-backend/internal/notes/domain"
	"zenith-backend/internal/notes/repository"

	"github.com/gin-gonic/gin"
)

type NoteHandler struct {
	noteRepo repository.NoteRepository
}

func NewNoteHandler(noteRepo repository.NoteRepository) *NoteHandler {
	return &NoteHandler{
		noteRepo: noteRepo,
	}
}

type createNoteRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	userID, ok := noteUserID(c)
	if !ok {
		return
	}

	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := &notesdomain.Note{
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
		Source:  "user",
	}
	if err := h.noteRepo.Create(note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, note)
}

func (h *NoteHandler) ListNotes(c *gin.Context) {
	userID, ok := noteUserID(c)
	if !ok {
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	notes, err := h.noteRepo.ListByUser(userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func noteUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	user, ok := value.(*authdomain.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	return user.ID, true
}
