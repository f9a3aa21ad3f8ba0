package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tasknote-backend/application/services"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/interfaces/http/rest/middleware"
	pkgerrors "tasknote-backend/pkg/errors"
)

// NoteHandler handles note HTTP requests
type NoteHandler struct {
	notes  *services.NoteService
	users  *services.UserService
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService, users *services.UserService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, users: users, errors: errors, logger: logger}
}

// NoteRequest represents the request body for creating or updating a note
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SetClosedRequest represents the request body for toggling the closed flag
type SetClosedRequest struct {
	IsClosed bool `json:"isClosed"`
}

// TargetListRequest represents the request body for copy and move
type TargetListRequest struct {
	TaskListID string `json:"taskListId"`
}

// Create handles POST /tasklists/{listID}/notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	note, err := h.notes.Add(r.Context(), caller, chi.URLParam(r, "listID"), req.Title, req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toNoteView(note))
}

// Get handles GET /notes/{noteID}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	note, err := h.notes.Get(r.Context(), caller, chi.URLParam(r, "noteID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteView(note))
}

// Update handles PUT /notes/{noteID}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	note, err := h.notes.Update(r.Context(), caller, chi.URLParam(r, "noteID"), req.Title, req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteView(note))
}

// SetClosed handles PATCH /notes/{noteID}/closed
func (h *NoteHandler) SetClosed(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req SetClosedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	note, err := h.notes.SetClosed(r.Context(), caller, chi.URLParam(r, "noteID"), req.IsClosed)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteView(note))
}

// Delete handles DELETE /notes/{noteID}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.notes.Delete(r.Context(), caller, chi.URLParam(r, "noteID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveUp handles POST /notes/{noteID}/moveup
func (h *NoteHandler) MoveUp(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.notes.MoveUp(r.Context(), caller, chi.URLParam(r, "noteID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveDown handles POST /notes/{noteID}/movedown
func (h *NoteHandler) MoveDown(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.notes.MoveDown(r.Context(), caller, chi.URLParam(r, "noteID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Copy handles POST /notes/{noteID}/copy
func (h *NoteHandler) Copy(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.targetList(w, r)
	if !ok {
		return
	}

	copied, err := h.notes.Copy(r.Context(), caller, chi.URLParam(r, "noteID"), req.TaskListID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toNoteView(copied))
}

// Move handles POST /notes/{noteID}/move. The moved note comes back with a
// fresh id; clients must drop the old one.
func (h *NoteHandler) Move(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := h.targetList(w, r)
	if !ok {
		return
	}

	moved, err := h.notes.Move(r.Context(), caller, chi.URLParam(r, "noteID"), req.TaskListID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteView(moved))
}

// Share handles POST /notes/{noteID}/share
func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	target, err := h.resolveTarget(r, req.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.notes.Share(r.Context(), caller, chi.URLParam(r, "noteID"), target); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unshare handles DELETE /notes/{noteID}/share/{userID}
func (h *NoteHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	target, err := h.resolveTarget(r, chi.URLParam(r, "userID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.notes.Unshare(r.Context(), caller, chi.URLParam(r, "noteID"), target); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) targetList(w http.ResponseWriter, r *http.Request) (*entities.User, TargetListRequest, bool) {
	var req TargetListRequest
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, req, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return nil, req, false
	}
	return caller, req, true
}

func (h *NoteHandler) resolveTarget(r *http.Request, rowKey string) (*entities.User, error) {
	target, err := h.users.GetByRowKey(r.Context(), rowKey)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return target, nil
}
