package dynamodb

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// TaskListRepository persists task lists and their share relation rows.
// Ownership is carried by the key convention: a list's partition key is the
// owner's row key.
type TaskListRepository struct {
	store  *TableStore
	tables Tables
	users  *UserRepository
	logger *zap.Logger
}

// NewTaskListRepository creates a task list repository over the gateway.
func NewTaskListRepository(store *TableStore, tables Tables, users *UserRepository, logger *zap.Logger) *TaskListRepository {
	return &TaskListRepository{store: store, tables: tables, users: users, logger: logger}
}

// Create writes the list row and the owner's share row; the owner always
// holds edit permission from the moment of creation. The two rows live in
// different partitions, so the share row commits in its own batch.
func (r *TaskListRepository) Create(ctx context.Context, list *entities.TaskList) error {
	if list.Owner == nil {
		return pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "Owner", Message: "is required"},
		})
	}
	list.PartitionKey = list.Owner.RowKey
	if list.RowKey == "" {
		list.RowKey = valueobjects.NewRowKey()
	}
	list.Timestamp = time.Now()
	list.Version = 1

	uow := r.store.NewUnitOfWork()
	if err := uow.StageCreate(r.tables.TaskLists, "task list", list.PartitionKey, list.RowKey, newTaskListItem(list)); err != nil {
		return err
	}
	composite := list.CompositeKey()
	if err := uow.StageUpsert(r.tables.TaskListShares, "task list share", composite, list.Owner.RowKey, newRelationItem(composite, list.Owner.RowKey)); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}

	r.logger.Debug("task list created",
		zap.String("rowKey", list.RowKey),
		zap.String("owner", list.Owner.RowKey),
	)
	return nil
}

// Get is a point lookup; a missing list comes back as (nil, nil).
func (r *TaskListRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.TaskList, error) {
	item, err := GetItem[taskListItem](ctx, r.store, r.tables.TaskLists, partitionKey, rowKey)
	if err != nil || item == nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// GetByCompositeKey accepts the partition+row combined identity.
func (r *TaskListRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.TaskList, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

// Update overwrites the list row. Relations are untouched; they are mutated
// only through their dedicated operations. The entity's version advances only
// on a successful commit.
func (r *TaskListRepository) Update(ctx context.Context, list *entities.TaskList) error {
	next := *list
	next.Version++
	next.Timestamp = time.Now()

	uow := r.store.NewUnitOfWork()
	if err := uow.StageUpdate(r.tables.TaskLists, "task list", list.PartitionKey, list.RowKey, newTaskListItem(&next), list.Version); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}
	list.Version = next.Version
	list.Timestamp = next.Timestamp
	return nil
}

// Delete cascades: contained notes and their relation rows first, then the
// list's own share rows, then the list row. The cascade walks the container
// relation rows directly, so a relation row whose note is already gone (an
// interrupted earlier cascade) still gets cleaned up. The steps span
// partitions and therefore commit as separate batches; a crash mid-way
// leaves orphaned relation rows behind rather than a broken primary row.
func (r *TaskListRepository) Delete(ctx context.Context, list *entities.TaskList) error {
	uow := r.store.NewUnitOfWork()
	composite := list.CompositeKey()

	relations, err := QueryPartition[relationItem](ctx, r.store, r.tables.TaskListNotes, composite)
	if err != nil {
		return err
	}
	for _, relation := range relations {
		noteComposite := relation.SK
		uow.StageDelete(r.tables.TaskListNotes, "container relation", relation.PK, noteComposite)

		key, err := valueobjects.ParseEntityKey(noteComposite)
		if err != nil {
			r.logger.Warn("malformed container relation row", zap.String("noteKey", noteComposite))
			continue
		}
		uow.StageDelete(r.tables.Notes, "note", key.PartitionKey, key.RowKey)

		shares, err := QueryPartition[relationItem](ctx, r.store, r.tables.NoteShares, noteComposite)
		if err != nil {
			return err
		}
		for _, share := range shares {
			uow.StageDelete(r.tables.NoteShares, "note share", share.PK, share.SK)
		}
	}

	shares, err := QueryPartition[relationItem](ctx, r.store, r.tables.TaskListShares, composite)
	if err != nil {
		return err
	}
	for _, share := range shares {
		uow.StageDelete(r.tables.TaskListShares, "task list share", share.PK, share.SK)
	}

	uow.StageDelete(r.tables.TaskLists, "task list", list.PartitionKey, list.RowKey)

	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}

	r.logger.Debug("task list deleted",
		zap.String("rowKey", list.RowKey),
		zap.Int("cascadedNotes", len(relations)),
	)
	return nil
}

// AddShare grants edit permission. Staging an unconditional put keeps the
// operation idempotent: sharing twice leaves a single grant.
func (r *TaskListRepository) AddShare(ctx context.Context, list *entities.TaskList, userRowKey string) error {
	composite := list.CompositeKey()
	uow := r.store.NewUnitOfWork()
	if err := uow.StageUpsert(r.tables.TaskListShares, "task list share", composite, userRowKey, newRelationItem(composite, userRowKey)); err != nil {
		return err
	}
	return uow.SubmitChanges(ctx)
}

// RemoveShare revokes edit permission; revoking an absent grant is a no-op.
func (r *TaskListRepository) RemoveShare(ctx context.Context, list *entities.TaskList, userRowKey string) error {
	uow := r.store.NewUnitOfWork()
	uow.StageDelete(r.tables.TaskListShares, "task list share", list.CompositeKey(), userRowKey)
	return uow.SubmitChanges(ctx)
}

// LoadShare populates list.Share by resolving every share row's user.
func (r *TaskListRepository) LoadShare(ctx context.Context, list *entities.TaskList) error {
	rows, err := QueryPartition[relationItem](ctx, r.store, r.tables.TaskListShares, list.CompositeKey())
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
	list.Share = share
	return nil
}

// LoadOwner resolves the owning user from the list's own partition key.
func (r *TaskListRepository) LoadOwner(ctx context.Context, list *entities.TaskList) error {
	owner, err := r.users.resolveByRowKey(ctx, list.OwnerRowKey())
	if err != nil {
		return err
	}
	if owner == nil {
		return pkgerrors.NewNotFoundError("task list owner")
	}
	list.Owner = owner
	return nil
}

// LoadNotes populates list.Notes from the container relation table, sorted
// ascending by ordering index. Order lives on the notes, not the relation.
func (r *TaskListRepository) LoadNotes(ctx context.Context, list *entities.TaskList) error {
	rows, err := QueryPartition[relationItem](ctx, r.store, r.tables.TaskListNotes, list.CompositeKey())
	if err != nil {
		return err
	}

	notes := make([]*entities.Note, 0, len(rows))
	for _, row := range rows {
		key, err := valueobjects.ParseEntityKey(row.SK)
		if err != nil {
			return pkgerrors.NewInvalidValueTypeError("malformed container relation row "+row.SK, err)
		}
		item, err := GetItem[noteItem](ctx, r.store, r.tables.Notes, key.PartitionKey, key.RowKey)
		if err != nil {
			return err
		}
		if item == nil {
			// Orphaned relation row from an interrupted cascade; skip it.
			r.logger.Warn("container relation points at missing note", zap.String("noteKey", row.SK))
			continue
		}
		note := item.toEntity()
		note.Container = list
		notes = append(notes, note)
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].OrderingIndex < notes[j].OrderingIndex
	})
	list.Notes = notes
	return nil
}

// HasPermissionToEdit reports whether a share row exists for the user. This
// is the sole authorization check; every mutating operation gates on it.
func (r *TaskListRepository) HasPermissionToEdit(ctx context.Context, user *entities.User, list *entities.TaskList) (bool, error) {
	row, err := GetItem[relationItem](ctx, r.store, r.tables.TaskListShares, list.CompositeKey(), user.RowKey)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// GetShared resolves every task list the user holds a share row for, via
// reverse lookup on the relation's row-key side.
func (r *TaskListRepository) GetShared(ctx context.Context, user *entities.User) ([]*entities.TaskList, error) {
	rows, err := ScanWhere[relationItem](ctx, r.store, r.tables.TaskListShares,
		ports.Where(ports.FieldRowKey, user.RowKey))
	if err != nil {
		return nil, err
	}

	lists := make([]*entities.TaskList, 0, len(rows))
	for _, row := range rows {
		list, err := r.GetByCompositeKey(ctx, row.PK)
		if err != nil {
			return nil, err
		}
		if list != nil {
			lists = append(lists, list)
		}
	}
	return lists, nil
}
