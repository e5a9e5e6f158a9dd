// Package server exposes the sync engine's command surface to the host UI
// process over a local HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/featherdesk/notesync/internal/auth"
	"github.com/featherdesk/notesync/internal/note"
	"github.com/featherdesk/notesync/internal/syncer"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSyncEngine       = errors.New("sync engine dependency required")
)

// SessionValidator checks host-supplied session tokens.
type SessionValidator interface {
	ValidateToken(token string) (auth.SessionClaims, error)
}

// SyncEngine is the engine surface the HTTP layer drives.
type SyncEngine interface {
	SetUser(userID string) error
	ClearUser()
	SaveNote(ctx context.Context, n note.Note) (note.Note, error)
	DeleteNote(ctx context.Context, noteID string) error
	ListNotes() ([]note.Note, error)
	ForceSync(ctx context.Context)
	Status() (syncer.Status, error)
	MigrateLocalData(ctx context.Context) error
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Sessions SessionValidator
	Engine   SyncEngine
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router for the command surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Engine == nil {
		return nil, errMissingSyncEngine
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions: deps.Sessions,
		engine:   deps.Engine,
		logger:   logger,
	}

	router.POST("/session", handler.handleSessionBegin)
	router.DELETE("/session", handler.handleSessionEnd)
	router.GET("/notes", handler.handleListNotes)
	router.POST("/notes", handler.handleSaveNote)
	router.DELETE("/notes/:id", handler.handleDeleteNote)
	router.POST("/sync", handler.handleForceSync)
	router.GET("/sync/status", handler.handleSyncStatus)
	router.POST("/migrate", handler.handleMigrate)

	return router, nil
}

type httpHandler struct {
	sessions SessionValidator
	engine   SyncEngine
	logger   *zap.Logger
}

type sessionRequestPayload struct {
	Token string `json:"token"`
}

func (h *httpHandler) handleSessionBegin(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.sessions.ValidateToken(request.Token)
	if err != nil {
		h.logger.Warn("session token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.engine.SetUser(claims.UserID); err != nil {
		h.logger.Error("failed to begin sync session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_begin_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
}

func (h *httpHandler) handleSessionEnd(c *gin.Context) {
	h.engine.ClearUser()
	c.Status(http.StatusNoContent)
}

type noteResponsePayload struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	TimestampMS int64    `json:"timestamp"`
	Tags        []string `json:"tags"`
}

func noteResponse(n note.Note) noteResponsePayload {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteResponsePayload{ID: n.ID, Text: n.Text, TimestampMS: n.TimestampMS, Tags: tags}
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	notes, err := h.engine.ListNotes()
	if err != nil {
		h.logger.Error("failed to list notes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	payload := make([]noteResponsePayload, 0, len(notes))
	for _, item := range notes {
		payload = append(payload, noteResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"notes": payload})
}

type saveNoteRequestPayload struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	TimestampMS int64    `json:"timestamp"`
	Tags        []string `json:"tags"`
}

func (h *httpHandler) handleSaveNote(c *gin.Context) {
	var request saveNoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_text"})
		return
	}

	saved, err := h.engine.SaveNote(c.Request.Context(), note.Note{
		ID:          request.ID,
		Text:        request.Text,
		TimestampMS: request.TimestampMS,
		Tags:        request.Tags,
	})
	if err != nil {
		h.logger.Error("failed to save note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCode(err, "save_failed")})
		return
	}

	c.JSON(http.StatusOK, noteResponse(saved))
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	noteID := strings.TrimSpace(c.Param("id"))
	if noteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note_id"})
		return
	}

	if err := h.engine.DeleteNote(c.Request.Context(), noteID); err != nil {
		h.logger.Error("failed to delete note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCode(err, "delete_failed")})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleForceSync(c *gin.Context) {
	h.engine.ForceSync(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

func (h *httpHandler) handleSyncStatus(c *gin.Context) {
	status, err := h.engine.Status()
	if err != nil {
		h.logger.Error("failed to read sync status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCode(err, "status_failed")})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *httpHandler) handleMigrate(c *gin.Context) {
	if err := h.engine.MigrateLocalData(c.Request.Context()); err != nil {
		h.logger.Error("cloud migration failed", zap.Error(err))
		if errors.Is(err, syncer.ErrNotAuthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": errorCode(err, "migration_failed")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"migrated": true})
}

// errorCode extracts the engine's operation.reason code when present.
func errorCode(err error, fallback string) string {
	var serviceErr *syncer.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return fallback
}
