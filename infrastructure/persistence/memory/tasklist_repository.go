package memory

import (
	"context"
	"sort"
	"time"

	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// TaskListRepository is the in-process ports.TaskListRepository.
type TaskListRepository struct {
	store *Store
	users *UserRepository
}

func NewTaskListRepository(store *Store, users *UserRepository) *TaskListRepository {
	return &TaskListRepository{store: store, users: users}
}

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

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(list.PartitionKey, list.RowKey)
	if _, exists := r.store.taskLists[key]; exists {
		return pkgerrors.NewDuplicateKeyError("task list")
	}
	list.Timestamp = time.Now()
	list.Version = 1
	r.store.taskLists[key] = flattenTaskList(list)
	addRelation(r.store.taskListShares, list.CompositeKey(), list.Owner.RowKey)
	return nil
}

func (r *TaskListRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.TaskList, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(partitionKey, rowKey), nil
}

func (r *TaskListRepository) get(partitionKey, rowKey string) *entities.TaskList {
	row, ok := r.store.taskLists[rowKeyOf(partitionKey, rowKey)]
	if !ok {
		return nil
	}
	copied := row
	return &copied
}

func (r *TaskListRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.TaskList, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

func (r *TaskListRepository) Update(ctx context.Context, list *entities.TaskList) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(list.PartitionKey, list.RowKey)
	stored, ok := r.store.taskLists[key]
	if !ok || stored.Version != list.Version {
		return pkgerrors.NewConcurrencyError("task list")
	}
	list.Version++
	list.Timestamp = time.Now()
	r.store.taskLists[key] = flattenTaskList(list)
	return nil
}

func (r *TaskListRepository) Delete(ctx context.Context, list *entities.TaskList) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	composite := list.CompositeKey()
	for _, noteComposite := range relationRowKeys(r.store.taskListNotes, composite) {
		if key, err := valueobjects.ParseEntityKey(noteComposite); err == nil {
			delete(r.store.notes, rowKeyOf(key.PartitionKey, key.RowKey))
		}
		delete(r.store.noteShares, noteComposite)
	}
	delete(r.store.taskListNotes, composite)
	delete(r.store.taskListShares, composite)
	delete(r.store.taskLists, rowKeyOf(list.PartitionKey, list.RowKey))
	return nil
}

func (r *TaskListRepository) AddShare(ctx context.Context, list *entities.TaskList, userRowKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	addRelation(r.store.taskListShares, list.CompositeKey(), userRowKey)
	return nil
}

func (r *TaskListRepository) RemoveShare(ctx context.Context, list *entities.TaskList, userRowKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	removeRelation(r.store.taskListShares, list.CompositeKey(), userRowKey)
	return nil
}

func (r *TaskListRepository) LoadShare(ctx context.Context, list *entities.TaskList) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rowKeys := relationRowKeys(r.store.taskListShares, list.CompositeKey())
	sort.Strings(rowKeys)
	share := make([]*entities.User, 0, len(rowKeys))
	for _, rowKey := range rowKeys {
		user, err := r.users.resolveByRowKey(rowKey)
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

func (r *TaskListRepository) LoadOwner(ctx context.Context, list *entities.TaskList) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	owner, err := r.users.resolveByRowKey(list.OwnerRowKey())
	if err != nil {
		return err
	}
	if owner == nil {
		return pkgerrors.NewNotFoundError("task list owner")
	}
	list.Owner = owner
	return nil
}

func (r *TaskListRepository) LoadNotes(ctx context.Context, list *entities.TaskList) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	notes := make([]*entities.Note, 0)
	for _, noteComposite := range relationRowKeys(r.store.taskListNotes, list.CompositeKey()) {
		key, err := valueobjects.ParseEntityKey(noteComposite)
		if err != nil {
			return pkgerrors.NewInvalidValueTypeError("malformed container relation row "+noteComposite, err)
		}
		row, ok := r.store.notes[rowKeyOf(key.PartitionKey, key.RowKey)]
		if !ok {
			continue
		}
		note := row
		note.Container = list
		notes = append(notes, &note)
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].OrderingIndex < notes[j].OrderingIndex
	})
	list.Notes = notes
	return nil
}

func (r *TaskListRepository) HasPermissionToEdit(ctx context.Context, user *entities.User, list *entities.TaskList) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return hasRelation(r.store.taskListShares, list.CompositeKey(), user.RowKey), nil
}

func (r *TaskListRepository) GetShared(ctx context.Context, user *entities.User) ([]*entities.TaskList, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	composites := relationPartitionsOf(r.store.taskListShares, user.RowKey)
	sort.Strings(composites)
	lists := make([]*entities.TaskList, 0, len(composites))
	for _, composite := range composites {
		key, err := valueobjects.ParseEntityKey(composite)
		if err != nil {
			continue
		}
		if list := r.get(key.PartitionKey, key.RowKey); list != nil {
			lists = append(lists, list)
		}
	}
	return lists, nil
}

func flattenTaskList(t *entities.TaskList) entities.TaskList {
	return entities.TaskList{
		PartitionKey: t.PartitionKey,
		RowKey:       t.RowKey,
		Timestamp:    t.Timestamp,
		Version:      t.Version,
		Title:        t.Title,
	}
}
