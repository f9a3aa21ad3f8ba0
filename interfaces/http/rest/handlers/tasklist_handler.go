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

// TaskListHandler handles task list HTTP requests
type TaskListHandler struct {
	taskLists *services.TaskListService
	users     *services.UserService
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewTaskListHandler creates a new task list handler
func NewTaskListHandler(taskLists *services.TaskListService, users *services.UserService, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *TaskListHandler {
	return &TaskListHandler{taskLists: taskLists, users: users, errors: errors, logger: logger}
}

// TaskListRequest represents the request body for creating or renaming a list
type TaskListRequest struct {
	Title string `json:"title"`
}

// ShareRequest represents the request body for granting a share
type ShareRequest struct {
	UserID string `json:"userId"`
}

// Create handles POST /tasklists
func (h *TaskListHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req TaskListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	list, err := h.taskLists.Create(r.Context(), caller, req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTaskListView(list))
}

// GetAll handles GET /tasklists
func (h *TaskListHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	lists, err := h.taskLists.GetAll(r.Context(), caller)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	views := make([]TaskListView, 0, len(lists))
	for _, list := range lists {
		views = append(views, toTaskListView(list))
	}
	respondJSON(w, http.StatusOK, views)
}

// Get handles GET /tasklists/{listID}
func (h *TaskListHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	list, err := h.taskLists.Get(r.Context(), caller, chi.URLParam(r, "listID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTaskListView(list))
}

// Rename handles PUT /tasklists/{listID}
func (h *TaskListHandler) Rename(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req TaskListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return
	}

	list, err := h.taskLists.Rename(r.Context(), caller, chi.URLParam(r, "listID"), req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTaskListView(list))
}

// Delete handles DELETE /tasklists/{listID}
func (h *TaskListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.taskLists.Delete(r.Context(), caller, chi.URLParam(r, "listID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share handles POST /tasklists/{listID}/share
func (h *TaskListHandler) Share(w http.ResponseWriter, r *http.Request) {
	caller, target, ok := h.shareParticipants(w, r)
	if !ok {
		return
	}

	if err := h.taskLists.Share(r.Context(), caller, chi.URLParam(r, "listID"), target); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unshare handles DELETE /tasklists/{listID}/share/{userID}
func (h *TaskListHandler) Unshare(w http.ResponseWriter, r *http.Request) {
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

	if err := h.taskLists.Unshare(r.Context(), caller, chi.URLParam(r, "listID"), target); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskListHandler) shareParticipants(w http.ResponseWriter, r *http.Request) (*entities.User, *entities.User, bool) {
	caller, err := middleware.CurrentUser(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, nil, false
	}

	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, invalidBody())
		return nil, nil, false
	}

	target, err := h.resolveTarget(r, req.UserID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, nil, false
	}
	return caller, target, true
}

func (h *TaskListHandler) resolveTarget(r *http.Request, rowKey string) (*entities.User, error) {
	target, err := h.users.GetByRowKey(r.Context(), rowKey)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, pkgerrors.NewNotFoundError("user")
	}
	return target, nil
}

func invalidBody() error {
	return pkgerrors.NewValidationError([]pkgerrors.FieldError{
		{Field: "body", Message: "invalid request body"},
	})
}
