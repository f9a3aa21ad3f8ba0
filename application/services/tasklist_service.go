package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/validators"
	pkgerrors "tasknote-backend/pkg/errors"
)

// TaskListService owns the task list lifecycle. Authorization is carried by
// the share relation: the owner receives a share row at creation, so "lists
// visible to a user" and "lists shared with a user" are the same query.
type TaskListService struct {
	taskLists ports.TaskListRepository
	publisher ports.EventPublisher
	limits    ports.LimitsProvider
	logger    *zap.Logger
}

func NewTaskListService(taskLists ports.TaskListRepository, publisher ports.EventPublisher, limits ports.LimitsProvider, logger *zap.Logger) *TaskListService {
	if limits == nil {
		limits = ports.FixedLimits(ports.Limits{})
	}
	return &TaskListService{taskLists: taskLists, publisher: publisher, limits: limits, logger: logger}
}

// Create makes a new list owned by the caller. The per-user list cap is
// checked against owned lists only; lists shared with the caller don't count.
func (s *TaskListService) Create(ctx context.Context, owner *entities.User, title string) (*entities.TaskList, error) {
	if max := s.limits().MaxTaskListsPerUser; max > 0 {
		visible, err := s.taskLists.GetShared(ctx, owner)
		if err != nil {
			return nil, err
		}
		owned := 0
		for _, l := range visible {
			if l.OwnerRowKey() == owner.RowKey {
				owned++
			}
		}
		if owned >= max {
			return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
				{Field: "TaskLists", Message: "the task list limit for this user is reached"},
			})
		}
	}

	list := entities.NewTaskList(title, owner)
	if fields := validators.ValidateEntity(list); fields != nil {
		return nil, pkgerrors.NewValidationError(fields)
	}
	if err := s.taskLists.Create(ctx, list); err != nil {
		return nil, err
	}

	s.publish(ctx, "created", list.CompositeKey(), owner.RowKey)
	return list, nil
}

// Get resolves a list the caller holds a share for, with its notes, share
// list and owner populated.
func (s *TaskListService) Get(ctx context.Context, caller *entities.User, compositeKey string) (*entities.TaskList, error) {
	list, err := s.authorize(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.taskLists.LoadOwner(ctx, list); err != nil {
		return nil, err
	}
	if err := s.taskLists.LoadNotes(ctx, list); err != nil {
		return nil, err
	}
	if err := s.taskLists.LoadShare(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetAll returns every list the caller can see, owned ones included.
func (s *TaskListService) GetAll(ctx context.Context, caller *entities.User) ([]*entities.TaskList, error) {
	return s.taskLists.GetShared(ctx, caller)
}

// Rename changes the list title.
func (s *TaskListService) Rename(ctx context.Context, caller *entities.User, compositeKey, title string) (*entities.TaskList, error) {
	list, err := s.authorize(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}

	list.Title = title
	if err := s.taskLists.LoadOwner(ctx, list); err != nil {
		return nil, err
	}
	if fields := validators.ValidateEntity(list); fields != nil {
		return nil, pkgerrors.NewValidationError(fields)
	}
	if err := s.taskLists.Update(ctx, list); err != nil {
		return nil, err
	}

	s.publish(ctx, "updated", list.CompositeKey(), caller.RowKey)
	return list, nil
}

// Delete cascades the list and everything hanging off it. Only the owner may
// delete; a shared user can walk away via Unshare instead.
func (s *TaskListService) Delete(ctx context.Context, caller *entities.User, compositeKey string) error {
	list, err := s.authorize(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if list.OwnerRowKey() != caller.RowKey {
		return pkgerrors.NewForbiddenError("only the owner may delete a task list")
	}
	if err := s.taskLists.Delete(ctx, list); err != nil {
		return err
	}

	s.publish(ctx, "deleted", compositeKey, caller.RowKey)
	return nil
}

// Share grants another user edit permission on the list. Only the owner may
// grant; sharing twice is a no-op.
func (s *TaskListService) Share(ctx context.Context, caller *entities.User, compositeKey string, target *entities.User) error {
	list, err := s.authorize(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if list.OwnerRowKey() != caller.RowKey {
		return pkgerrors.NewForbiddenError("only the owner may share a task list")
	}
	if max := s.limits().MaxSharesPerEntity; max > 0 {
		// Re-granting an existing share stays a no-op even at the cap.
		held, err := s.taskLists.HasPermissionToEdit(ctx, target, list)
		if err != nil {
			return err
		}
		if !held {
			if err := s.taskLists.LoadShare(ctx, list); err != nil {
				return err
			}
			if len(list.Share) >= max {
				return pkgerrors.NewValidationError([]pkgerrors.FieldError{
					{Field: "Share", Message: "the share limit for this task list is reached"},
				})
			}
		}
	}
	if err := s.taskLists.AddShare(ctx, list, target.RowKey); err != nil {
		return err
	}

	s.publish(ctx, "shared", compositeKey, target.RowKey)
	return nil
}

// Unshare revokes a grant. The owner may revoke anyone but itself; a shared
// user may revoke only its own grant.
func (s *TaskListService) Unshare(ctx context.Context, caller *entities.User, compositeKey string, target *entities.User) error {
	list, err := s.authorize(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if target.RowKey == list.OwnerRowKey() {
		return pkgerrors.NewForbiddenError("the owner's permission cannot be revoked")
	}
	if caller.RowKey != list.OwnerRowKey() && caller.RowKey != target.RowKey {
		return pkgerrors.NewForbiddenError("only the owner may revoke another user's permission")
	}
	if err := s.taskLists.RemoveShare(ctx, list, target.RowKey); err != nil {
		return err
	}

	s.publish(ctx, "unshared", compositeKey, target.RowKey)
	return nil
}

// authorize resolves the list and requires the caller to hold a share row.
// A list the caller cannot see is reported as not found, not as forbidden,
// so composite keys do not leak existence.
func (s *TaskListService) authorize(ctx context.Context, caller *entities.User, compositeKey string) (*entities.TaskList, error) {
	list, err := s.taskLists.GetByCompositeKey(ctx, compositeKey)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, pkgerrors.NewNotFoundError("task list")
	}
	allowed, err := s.taskLists.HasPermissionToEdit(ctx, caller, list)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.NewNotFoundError("task list")
	}
	return list, nil
}

func (s *TaskListService) publish(ctx context.Context, action, entityKey, userRowKey string) {
	event := ports.EntityEvent{
		Action:     action,
		EntityType: "taskList",
		EntityKey:  entityKey,
		UserRowKey: userRowKey,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("action", action),
			zap.String("entityKey", entityKey),
			zap.Error(err),
		)
	}
}
