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

// NoteService owns the note lifecycle inside task lists: creation with
// per-list title uniqueness, reordering, copy and move across lists, and
// per-note sharing. After any operation that removes a note from a list the
// remaining ordering indices are renumbered back to a dense 0..n-1 run.
type NoteService struct {
	notes     ports.NoteRepository
	taskLists ports.TaskListRepository
	publisher ports.EventPublisher
	limits    ports.LimitsProvider
	logger    *zap.Logger
}

func NewNoteService(notes ports.NoteRepository, taskLists ports.TaskListRepository, publisher ports.EventPublisher, limits ports.LimitsProvider, logger *zap.Logger) *NoteService {
	if limits == nil {
		limits = ports.FixedLimits(ports.Limits{})
	}
	return &NoteService{notes: notes, taskLists: taskLists, publisher: publisher, limits: limits, logger: logger}
}

// Add creates a note at the end of the list. The title must be unique within
// the list.
func (s *NoteService) Add(ctx context.Context, caller *entities.User, listCompositeKey, title, content string) (*entities.Note, error) {
	list, err := s.authorizeList(ctx, caller, listCompositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.ensureListCapacity(ctx, list); err != nil {
		return nil, err
	}

	exists, err := s.notes.NoteWithTitleExists(ctx, title, list)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.NewDuplicateKeyError("note with this title")
	}

	note := entities.NewNote(title, content, caller, list)
	if fields := validators.ValidateEntity(note); fields != nil {
		return nil, pkgerrors.NewValidationError(fields)
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}

	s.publish(ctx, "created", note.CompositeKey(), caller.RowKey)
	return note, nil
}

// Get resolves a note the caller holds a share for, with its container,
// owner and share list populated.
func (s *NoteService) Get(ctx context.Context, caller *entities.User, compositeKey string) (*entities.Note, error) {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.notes.LoadContainer(ctx, note); err != nil {
		return nil, err
	}
	if err := s.notes.LoadOwner(ctx, note); err != nil {
		return nil, err
	}
	if err := s.notes.LoadShare(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Update changes title and content. A changed title must stay unique within
// the container.
func (s *NoteService) Update(ctx context.Context, caller *entities.User, compositeKey, title, content string) (*entities.Note, error) {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.notes.LoadContainer(ctx, note); err != nil {
		return nil, err
	}
	if err := s.notes.LoadOwner(ctx, note); err != nil {
		return nil, err
	}

	if title != note.Title {
		exists, err := s.notes.NoteWithTitleExists(ctx, title, note.Container)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, pkgerrors.NewDuplicateKeyError("note with this title")
		}
	}

	note.Title = title
	note.Content = content
	if fields := validators.ValidateEntity(note); fields != nil {
		return nil, pkgerrors.NewValidationError(fields)
	}
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, err
	}

	s.publish(ctx, "updated", note.CompositeKey(), caller.RowKey)
	return note, nil
}

// SetClosed flips the closed flag.
func (s *NoteService) SetClosed(ctx context.Context, caller *entities.User, compositeKey string, closed bool) (*entities.Note, error) {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	if note.IsClosed == closed {
		return note, nil
	}

	note.IsClosed = closed
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, err
	}

	s.publish(ctx, "updated", note.CompositeKey(), caller.RowKey)
	return note, nil
}

// Delete removes the note and renumbers the remaining notes of the list.
func (s *NoteService) Delete(ctx context.Context, caller *entities.User, compositeKey string) error {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if err := s.notes.LoadContainer(ctx, note); err != nil {
		return err
	}
	container := note.Container

	if err := s.notes.Delete(ctx, note); err != nil {
		return err
	}
	if err := s.renumber(ctx, container); err != nil {
		return err
	}

	s.publish(ctx, "deleted", compositeKey, caller.RowKey)
	return nil
}

// MoveUp swaps the note with its predecessor in the container's ordering.
// The first note stays put.
func (s *NoteService) MoveUp(ctx context.Context, caller *entities.User, compositeKey string) error {
	return s.swap(ctx, caller, compositeKey, -1)
}

// MoveDown swaps the note with its successor. The last note stays put.
func (s *NoteService) MoveDown(ctx context.Context, caller *entities.User, compositeKey string) error {
	return s.swap(ctx, caller, compositeKey, +1)
}

func (s *NoteService) swap(ctx context.Context, caller *entities.User, compositeKey string, direction int) error {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if err := s.notes.LoadContainer(ctx, note); err != nil {
		return err
	}

	list := note.Container
	if err := s.taskLists.LoadNotes(ctx, list); err != nil {
		return err
	}

	position := -1
	for i, n := range list.Notes {
		if n.RowKey == note.RowKey {
			position = i
			break
		}
	}
	if position < 0 {
		return pkgerrors.NewNotFoundError("note")
	}
	neighbor := position + direction
	if neighbor < 0 || neighbor >= len(list.Notes) {
		return nil
	}

	// Renumbering the whole run keeps the indices dense even when the
	// stored values had gaps.
	list.Notes[position], list.Notes[neighbor] = list.Notes[neighbor], list.Notes[position]
	var changed []*entities.Note
	for i, n := range list.Notes {
		if n.OrderingIndex != i {
			n.OrderingIndex = i
			changed = append(changed, n)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.notes.SaveOrdering(ctx, changed); err != nil {
		return err
	}

	s.publish(ctx, "reordered", compositeKey, caller.RowKey)
	return nil
}

// Copy duplicates the note into the destination list. The caller needs
// permission on both the note and the destination; the copy keeps content,
// closed flag and non-owner shares under a fresh row key.
func (s *NoteService) Copy(ctx context.Context, caller *entities.User, compositeKey, destCompositeKey string) (*entities.Note, error) {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	destination, err := s.authorizeList(ctx, caller, destCompositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.ensureListCapacity(ctx, destination); err != nil {
		return nil, err
	}

	exists, err := s.notes.NoteWithTitleExists(ctx, note.Title, destination)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.NewDuplicateKeyError("note with this title")
	}

	copied, err := s.notes.CopyNote(ctx, note, destination)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "copied", copied.CompositeKey(), caller.RowKey)
	return copied, nil
}

// Move relocates the note to the destination list under a fresh row key and
// renumbers the source list. Callers must not assume key stability across a
// move.
func (s *NoteService) Move(ctx context.Context, caller *entities.User, compositeKey, destCompositeKey string) (*entities.Note, error) {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return nil, err
	}
	destination, err := s.authorizeList(ctx, caller, destCompositeKey)
	if err != nil {
		return nil, err
	}
	if err := s.notes.LoadContainer(ctx, note); err != nil {
		return nil, err
	}
	source := note.Container
	if source.RowKey == destination.RowKey {
		return note, nil
	}
	if err := s.ensureListCapacity(ctx, destination); err != nil {
		return nil, err
	}

	exists, err := s.notes.NoteWithTitleExists(ctx, note.Title, destination)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.NewDuplicateKeyError("note with this title")
	}

	moved, err := s.notes.MoveNote(ctx, note, destination)
	if err != nil {
		return nil, err
	}
	if err := s.renumber(ctx, source); err != nil {
		return nil, err
	}

	s.publish(ctx, "moved", moved.CompositeKey(), caller.RowKey)
	return moved, nil
}

// Share grants another user edit permission on the note alone.
func (s *NoteService) Share(ctx context.Context, caller *entities.User, compositeKey string, target *entities.User) error {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if max := s.limits().MaxSharesPerEntity; max > 0 {
		held, err := s.notes.HasPermissionToEdit(ctx, target, note)
		if err != nil {
			return err
		}
		if !held {
			if err := s.notes.LoadShare(ctx, note); err != nil {
				return err
			}
			if len(note.Share) >= max {
				return pkgerrors.NewValidationError([]pkgerrors.FieldError{
					{Field: "Share", Message: "the share limit for this note is reached"},
				})
			}
		}
	}
	if err := s.notes.AddShare(ctx, note, target.RowKey); err != nil {
		return err
	}

	s.publish(ctx, "shared", compositeKey, target.RowKey)
	return nil
}

// Unshare revokes a grant. The owner's grant cannot be revoked.
func (s *NoteService) Unshare(ctx context.Context, caller *entities.User, compositeKey string, target *entities.User) error {
	note, err := s.authorizeNote(ctx, caller, compositeKey)
	if err != nil {
		return err
	}
	if err := s.notes.LoadOwner(ctx, note); err != nil {
		return err
	}
	if target.RowKey == note.Owner.RowKey {
		return pkgerrors.NewForbiddenError("the owner's permission cannot be revoked")
	}
	if err := s.notes.RemoveShare(ctx, note, target.RowKey); err != nil {
		return err
	}

	s.publish(ctx, "unshared", compositeKey, target.RowKey)
	return nil
}

// ensureListCapacity rejects growth past the per-list note cap. Checked on
// every operation that adds a row to a list: Add, Copy and Move.
func (s *NoteService) ensureListCapacity(ctx context.Context, list *entities.TaskList) error {
	max := s.limits().MaxNotesPerList
	if max <= 0 {
		return nil
	}
	if err := s.taskLists.LoadNotes(ctx, list); err != nil {
		return err
	}
	if len(list.Notes) >= max {
		return pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "Notes", Message: "the note limit for this task list is reached"},
		})
	}
	return nil
}

// renumber restores the dense 0..n-1 ordering run of a list's notes.
func (s *NoteService) renumber(ctx context.Context, list *entities.TaskList) error {
	if err := s.taskLists.LoadNotes(ctx, list); err != nil {
		return err
	}
	var changed []*entities.Note
	for i, n := range list.Notes {
		if n.OrderingIndex != i {
			n.OrderingIndex = i
			changed = append(changed, n)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return s.notes.SaveOrdering(ctx, changed)
}

// authorizeNote resolves the note and requires the caller to hold a share
// row. Invisible notes report as not found, not forbidden.
func (s *NoteService) authorizeNote(ctx context.Context, caller *entities.User, compositeKey string) (*entities.Note, error) {
	note, err := s.notes.GetByCompositeKey(ctx, compositeKey)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, pkgerrors.NewNotFoundError("note")
	}
	allowed, err := s.notes.HasPermissionToEdit(ctx, caller, note)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, pkgerrors.NewNotFoundError("note")
	}
	return note, nil
}

func (s *NoteService) authorizeList(ctx context.Context, caller *entities.User, compositeKey string) (*entities.TaskList, error) {
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

func (s *NoteService) publish(ctx context.Context, action, entityKey, userRowKey string) {
	event := ports.EntityEvent{
		Action:     action,
		EntityType: "note",
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
