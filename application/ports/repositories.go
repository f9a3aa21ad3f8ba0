package ports

import (
	"context"

	"tasknote-backend/domain/core/entities"
)

// Repository contracts for the three entity kinds. Absence is an expected
// outcome on every lookup: a missing entity comes back as (nil, nil), never
// as an error. Mutating operations run inside one unit of work per call;
// cross-partition cascades (task list delete) are best-effort sequential,
// each step independently retryable, and are documented as such rather than
// pretending to be atomic.

// UserRepository persists users keyed by identity provider.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	Get(ctx context.Context, partitionKey, rowKey string) (*entities.User, error)
	// GetByCompositeKey accepts the partition+row combined form used by
	// REST-facing callers.
	GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.User, error)
	// Find returns the first user matching the criteria, or nil.
	Find(ctx context.Context, criteria Criteria) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	Delete(ctx context.Context, user *entities.User) error
}

// TaskListRepository persists task lists plus their share relation rows.
type TaskListRepository interface {
	// Create writes the list row and the owner's share row in one unit of
	// work; the owner always holds edit permission from creation.
	Create(ctx context.Context, list *entities.TaskList) error
	Get(ctx context.Context, partitionKey, rowKey string) (*entities.TaskList, error)
	GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.TaskList, error)
	// Update overwrites the list row. Share and container relations are
	// mutated only through their dedicated operations.
	Update(ctx context.Context, list *entities.TaskList) error
	// Delete cascades: contained notes first, then their relation rows,
	// then the list's own share rows, then the list row.
	Delete(ctx context.Context, list *entities.TaskList) error

	AddShare(ctx context.Context, list *entities.TaskList, userRowKey string) error
	RemoveShare(ctx context.Context, list *entities.TaskList, userRowKey string) error
	LoadShare(ctx context.Context, list *entities.TaskList) error
	LoadOwner(ctx context.Context, list *entities.TaskList) error
	// LoadNotes populates list.Notes sorted ascending by ordering index.
	LoadNotes(ctx context.Context, list *entities.TaskList) error
	HasPermissionToEdit(ctx context.Context, user *entities.User, list *entities.TaskList) (bool, error)
	// GetShared resolves every task list shared with the user, via reverse
	// lookup on the share relation rows.
	GetShared(ctx context.Context, user *entities.User) ([]*entities.TaskList, error)
}

// NoteRepository persists notes plus their share and container relation rows.
type NoteRepository interface {
	// Create assigns the next ordering index in the container, writes the
	// note row, the owner's share row and the container relation row in one
	// unit of work.
	Create(ctx context.Context, note *entities.Note) error
	Get(ctx context.Context, partitionKey, rowKey string) (*entities.Note, error)
	GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.Note, error)
	Update(ctx context.Context, note *entities.Note) error
	// Delete removes the note row, its container relation row and all of
	// its share rows.
	Delete(ctx context.Context, note *entities.Note) error

	AddShare(ctx context.Context, note *entities.Note, userRowKey string) error
	RemoveShare(ctx context.Context, note *entities.Note, userRowKey string) error
	LoadShare(ctx context.Context, note *entities.Note) error
	LoadOwner(ctx context.Context, note *entities.Note) error
	LoadContainer(ctx context.Context, note *entities.Note) error
	HasPermissionToEdit(ctx context.Context, user *entities.User, note *entities.Note) (bool, error)

	// NoteWithTitleExists reports whether the container already holds a note
	// with the exact title (case-sensitive).
	NoteWithTitleExists(ctx context.Context, title string, container *entities.TaskList) (bool, error)
	// CopyNote creates a fresh-keyed copy in the destination list, carrying
	// content, closed flag and the original's non-owner shares.
	CopyNote(ctx context.Context, note *entities.Note, destination *entities.TaskList) (*entities.Note, error)
	// MoveNote is delete-then-copy: the moved note receives a new row key.
	MoveNote(ctx context.Context, note *entities.Note, destination *entities.TaskList) (*entities.Note, error)
	// SaveOrdering overwrites the ordering indices of notes that all belong
	// to the same container, in a single partition-scoped batch.
	SaveOrdering(ctx context.Context, notes []*entities.Note) error
}
