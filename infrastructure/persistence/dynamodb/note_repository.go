package dynamodb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// NoteRepository persists notes, their share rows and their container
// relation rows. A note's partition key is the containing list's row key,
// so all notes of one list share a partition and reorder batches commit
// atomically.
type NoteRepository struct {
	store  *TableStore
	tables Tables
	users  *UserRepository
	logger *zap.Logger
}

// NewNoteRepository creates a note repository over the gateway.
func NewNoteRepository(store *TableStore, tables Tables, users *UserRepository, logger *zap.Logger) *NoteRepository {
	return &NoteRepository{store: store, tables: tables, users: users, logger: logger}
}

// Create assigns the next ordering index in the container and writes the
// note row, the owner's share row and the container relation row in one
// unit of work.
func (r *NoteRepository) Create(ctx context.Context, note *entities.Note) error {
	var fields []pkgerrors.FieldError
	if note.Owner == nil {
		fields = append(fields, pkgerrors.FieldError{Field: "Owner", Message: "is required"})
	}
	if note.Container == nil {
		fields = append(fields, pkgerrors.FieldError{Field: "Container", Message: "is required"})
	}
	if len(fields) > 0 {
		return pkgerrors.NewValidationError(fields)
	}

	note.PartitionKey = note.Container.RowKey
	if note.RowKey == "" {
		note.RowKey = valueobjects.NewRowKey()
	}

	next, err := r.nextOrderingIndex(ctx, note.Container)
	if err != nil {
		return err
	}
	note.OrderingIndex = next
	note.Timestamp = time.Now()
	note.Version = 1

	uow := r.store.NewUnitOfWork()
	if err := uow.StageCreate(r.tables.Notes, "note", note.PartitionKey, note.RowKey, newNoteItem(note)); err != nil {
		return err
	}
	noteComposite := note.CompositeKey()
	listComposite := note.Container.CompositeKey()
	if err := uow.StageUpsert(r.tables.NoteShares, "note share", noteComposite, note.Owner.RowKey, newRelationItem(noteComposite, note.Owner.RowKey)); err != nil {
		return err
	}
	if err := uow.StageUpsert(r.tables.TaskListNotes, "container relation", listComposite, noteComposite, newRelationItem(listComposite, noteComposite)); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}

	r.logger.Debug("note created",
		zap.String("rowKey", note.RowKey),
		zap.String("container", note.Container.RowKey),
		zap.Int("orderingIndex", note.OrderingIndex),
	)
	return nil
}

// nextOrderingIndex is max existing index in the container plus one, or
// zero for an empty container.
func (r *NoteRepository) nextOrderingIndex(ctx context.Context, container *entities.TaskList) (int, error) {
	items, err := QueryPartition[noteItem](ctx, r.store, r.tables.Notes, container.RowKey)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, item := range items {
		if item.OrderingIndex >= next {
			next = item.OrderingIndex + 1
		}
	}
	return next, nil
}

// Get is a point lookup; a missing note comes back as (nil, nil).
func (r *NoteRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.Note, error) {
	item, err := GetItem[noteItem](ctx, r.store, r.tables.Notes, partitionKey, rowKey)
	if err != nil || item == nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// GetByCompositeKey accepts the partition+row combined identity.
func (r *NoteRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.Note, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

// Update overwrites the note row guarded by the version stamp. Relations
// are untouched. The entity's version advances only on a successful commit.
func (r *NoteRepository) Update(ctx context.Context, note *entities.Note) error {
	next := *note
	next.Version++
	next.Timestamp = time.Now()

	uow := r.store.NewUnitOfWork()
	if err := uow.StageUpdate(r.tables.Notes, "note", note.PartitionKey, note.RowKey, newNoteItem(&next), note.Version); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}
	note.Version = next.Version
	note.Timestamp = next.Timestamp
	return nil
}

// Delete removes the note row, its container relation row, and every one of
// its share rows (the owner's grant among them).
func (r *NoteRepository) Delete(ctx context.Context, note *entities.Note) error {
	noteComposite := note.CompositeKey()

	uow := r.store.NewUnitOfWork()
	uow.StageDelete(r.tables.Notes, "note", note.PartitionKey, note.RowKey)

	shares, err := QueryPartition[relationItem](ctx, r.store, r.tables.NoteShares, noteComposite)
	if err != nil {
		return err
	}
	for _, share := range shares {
		uow.StageDelete(r.tables.NoteShares, "note share", share.PK, share.SK)
	}

	container, err := r.containerRelationRow(ctx, note)
	if err != nil {
		return err
	}
	if container != nil {
		uow.StageDelete(r.tables.TaskListNotes, "container relation", container.PK, container.SK)
	}

	return uow.SubmitChanges(ctx)
}

// containerRelationRow finds the relation row whose value side is this
// note's composite key.
func (r *NoteRepository) containerRelationRow(ctx context.Context, note *entities.Note) (*relationItem, error) {
	return FindFirst[relationItem](ctx, r.store, r.tables.TaskListNotes,
		ports.Where(ports.FieldRowKey, note.CompositeKey()))
}

// AddShare grants edit permission; idempotent by way of an unconditional put.
func (r *NoteRepository) AddShare(ctx context.Context, note *entities.Note, userRowKey string) error {
	composite := note.CompositeKey()
	uow := r.store.NewUnitOfWork()
	if err := uow.StageUpsert(r.tables.NoteShares, "note share", composite, userRowKey, newRelationItem(composite, userRowKey)); err != nil {
		return err
	}
	return uow.SubmitChanges(ctx)
}

// RemoveShare revokes edit permission; revoking an absent grant is a no-op.
func (r *NoteRepository) RemoveShare(ctx context.Context, note *entities.Note, userRowKey string) error {
	uow := r.store.NewUnitOfWork()
	uow.StageDelete(r.tables.NoteShares, "note share", note.CompositeKey(), userRowKey)
	return uow.SubmitChanges(ctx)
}

// LoadShare populates note.Share by resolving every share row's user.
func (r *NoteRepository) LoadShare(ctx context.Context, note *entities.Note) error {
	rows, err := QueryPartition[relationItem](ctx, r.store, r.tables.NoteShares, note.CompositeKey())
	if err != nil {
		return err
	}

	share := make([]*entities.User, 0, len(rows))
	for _, row := range rows {
		user, err := r.users.resolveByRowKey(ctx, row.SK)
		if err != nil {
			return err
		}
		if user != nil {
			share = append(share, user)
		}
	}
	note.Share = share
	return nil
}

// LoadContainer resolves the containing task list by scanning the container
// relation for the row whose value side is this note's composite key. The
// note's own partition key holds only the list's row key, not its partition,
// so the relation row is the authoritative way back.
func (r *NoteRepository) LoadContainer(ctx context.Context, note *entities.Note) error {
	row, err := r.containerRelationRow(ctx, note)
	if err != nil {
		return err
	}
	if row == nil {
		return pkgerrors.NewNotFoundError("note container")
	}

	key, err := valueobjects.ParseEntityKey(row.PK)
	if err != nil {
		return pkgerrors.NewInvalidValueTypeError("malformed container relation row "+row.PK, err)
	}
	item, err := GetItem[taskListItem](ctx, r.store, r.tables.TaskLists, key.PartitionKey, key.RowKey)
	if err != nil {
		return err
	}
	if item == nil {
		return pkgerrors.NewNotFoundError("note container")
	}
	note.Container = item.toEntity()
	return nil
}

// LoadOwner resolves the note's owner: the container's partition key is the
// owning user's row key. Requires the container, loading it on demand.
func (r *NoteRepository) LoadOwner(ctx context.Context, note *entities.Note) error {
	if note.Container == nil {
		if err := r.LoadContainer(ctx, note); err != nil {
			return err
		}
	}
	owner, err := r.users.resolveByRowKey(ctx, note.Container.OwnerRowKey())
	if err != nil {
		return err
	}
	if owner == nil {
		return pkgerrors.NewNotFoundError("note owner")
	}
	note.Owner = owner
	return nil
}

// HasPermissionToEdit reports whether a share row exists for the user.
func (r *NoteRepository) HasPermissionToEdit(ctx context.Context, user *entities.User, note *entities.Note) (bool, error) {
	row, err := GetItem[relationItem](ctx, r.store, r.tables.NoteShares, note.CompositeKey(), user.RowKey)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// NoteWithTitleExists reports whether the container already holds a note
// with the exact title. Comparison is case-sensitive.
func (r *NoteRepository) NoteWithTitleExists(ctx context.Context, title string, container *entities.TaskList) (bool, error) {
	items, err := QueryPartition[noteItem](ctx, r.store, r.tables.Notes, container.RowKey)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// CopyNote creates a fresh-keyed copy of the note in the destination list:
// same title, content and closed flag, ordering index recomputed for the
// destination, and all of the original's non-owner shares re-added.
func (r *NoteRepository) CopyNote(ctx context.Context, note *entities.Note, destination *entities.TaskList) (*entities.Note, error) {
	if note.Owner == nil {
		if err := r.LoadOwner(ctx, note); err != nil {
			return nil, err
		}
	}
	if err := r.LoadShare(ctx, note); err != nil {
		return nil, err
	}

	copied := entities.NewNote(note.Title, note.Content, note.Owner, destination)
	copied.IsClosed = note.IsClosed
	if err := r.Create(ctx, copied); err != nil {
		return nil, err
	}

	for _, user := range note.Share {
		if user.RowKey == note.Owner.RowKey {
			continue
		}
		if err := r.AddShare(ctx, copied, user.RowKey); err != nil {
			return nil, err
		}
	}
	copied.Share = append([]*entities.User{note.Owner}, nonOwnerShares(note)...)
	return copied, nil
}

// MoveNote is delete-then-copy; the moved note receives a new row key and
// callers must not assume key stability across a move.
func (r *NoteRepository) MoveNote(ctx context.Context, note *entities.Note, destination *entities.TaskList) (*entities.Note, error) {
	if note.Owner == nil {
		if err := r.LoadOwner(ctx, note); err != nil {
			return nil, err
		}
	}
	if err := r.LoadShare(ctx, note); err != nil {
		return nil, err
	}
	if err := r.Delete(ctx, note); err != nil {
		return nil, err
	}

	moved := entities.NewNote(note.Title, note.Content, note.Owner, destination)
	moved.IsClosed = note.IsClosed
	if err := r.Create(ctx, moved); err != nil {
		return nil, err
	}
	for _, user := range note.Share {
		if user.RowKey == note.Owner.RowKey {
			continue
		}
		if err := r.AddShare(ctx, moved, user.RowKey); err != nil {
			return nil, err
		}
	}
	return moved, nil
}

// SaveOrdering overwrites the ordering indices of notes that all belong to
// one container. The rows share a partition, so the batch commits
// atomically.
func (r *NoteRepository) SaveOrdering(ctx context.Context, notes []*entities.Note) error {
	if len(notes) == 0 {
		return nil
	}

	now := time.Now()
	uow := r.store.NewUnitOfWork()
	for _, note := range notes {
		next := *note
		next.Version++
		next.Timestamp = now
		if err := uow.StageUpdate(r.tables.Notes, "note", note.PartitionKey, note.RowKey, newNoteItem(&next), note.Version); err != nil {
			return err
		}
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}
	for _, note := range notes {
		note.Version++
		note.Timestamp = now
	}
	return nil
}

func nonOwnerShares(note *entities.Note) []*entities.User {
	var out []*entities.User
	for _, user := range note.Share {
		if note.Owner != nil && user.RowKey == note.Owner.RowKey {
			continue
		}
		out = append(out, user)
	}
	return out
}
