package memory

import (
	"context"
	"sort"
	"time"

	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// NoteRepository is the in-process ports.NoteRepository.
type NoteRepository struct {
	store *Store
	users *UserRepository
}

func NewNoteRepository(store *Store, users *UserRepository) *NoteRepository {
	return &NoteRepository{store: store, users: users}
}

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

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(note.PartitionKey, note.RowKey)
	if _, exists := r.store.notes[key]; exists {
		return pkgerrors.NewDuplicateKeyError("note")
	}
	note.OrderingIndex = r.nextOrderingIndex(note.Container)
	note.Timestamp = time.Now()
	note.Version = 1
	r.store.notes[key] = flattenNote(note)

	noteComposite := note.CompositeKey()
	addRelation(r.store.noteShares, noteComposite, note.Owner.RowKey)
	addRelation(r.store.taskListNotes, note.Container.CompositeKey(), noteComposite)
	return nil
}

func (r *NoteRepository) nextOrderingIndex(container *entities.TaskList) int {
	next := 0
	for _, row := range r.store.notes {
		if row.PartitionKey == container.RowKey && row.OrderingIndex >= next {
			next = row.OrderingIndex + 1
		}
	}
	return next
}

func (r *NoteRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.Note, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.notes[rowKeyOf(partitionKey, rowKey)]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (r *NoteRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.Note, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

func (r *NoteRepository) Update(ctx context.Context, note *entities.Note) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(note.PartitionKey, note.RowKey)
	stored, ok := r.store.notes[key]
	if !ok || stored.Version != note.Version {
		return pkgerrors.NewConcurrencyError("note")
	}
	note.Version++
	note.Timestamp = time.Now()
	r.store.notes[key] = flattenNote(note)
	return nil
}

func (r *NoteRepository) Delete(ctx context.Context, note *entities.Note) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	noteComposite := note.CompositeKey()
	delete(r.store.notes, rowKeyOf(note.PartitionKey, note.RowKey))
	delete(r.store.noteShares, noteComposite)
	for _, listComposite := range relationPartitionsOf(r.store.taskListNotes, noteComposite) {
		removeRelation(r.store.taskListNotes, listComposite, noteComposite)
	}
	return nil
}

func (r *NoteRepository) AddShare(ctx context.Context, note *entities.Note, userRowKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	addRelation(r.store.noteShares, note.CompositeKey(), userRowKey)
	return nil
}

func (r *NoteRepository) RemoveShare(ctx context.Context, note *entities.Note, userRowKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	removeRelation(r.store.noteShares, note.CompositeKey(), userRowKey)
	return nil
}

func (r *NoteRepository) LoadShare(ctx context.Context, note *entities.Note) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.loadShare(note)
}

func (r *NoteRepository) loadShare(note *entities.Note) error {
	rowKeys := relationRowKeys(r.store.noteShares, note.CompositeKey())
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
	note.Share = share
	return nil
}

func (r *NoteRepository) LoadContainer(ctx context.Context, note *entities.Note) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.loadContainer(note)
}

func (r *NoteRepository) loadContainer(note *entities.Note) error {
	composites := relationPartitionsOf(r.store.taskListNotes, note.CompositeKey())
	if len(composites) == 0 {
		return pkgerrors.NewNotFoundError("note container")
	}
	key, err := valueobjects.ParseEntityKey(composites[0])
	if err != nil {
		return pkgerrors.NewInvalidValueTypeError("malformed container relation row "+composites[0], err)
	}
	row, ok := r.store.taskLists[rowKeyOf(key.PartitionKey, key.RowKey)]
	if !ok {
		return pkgerrors.NewNotFoundError("note container")
	}
	copied := row
	note.Container = &copied
	return nil
}

func (r *NoteRepository) LoadOwner(ctx context.Context, note *entities.Note) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if note.Container == nil {
		if err := r.loadContainer(note); err != nil {
			return err
		}
	}
	owner, err := r.users.resolveByRowKey(note.Container.OwnerRowKey())
	if err != nil {
		return err
	}
	if owner == nil {
		return pkgerrors.NewNotFoundError("note owner")
	}
	note.Owner = owner
	return nil
}

func (r *NoteRepository) HasPermissionToEdit(ctx context.Context, user *entities.User, note *entities.Note) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return hasRelation(r.store.noteShares, note.CompositeKey(), user.RowKey), nil
}

func (r *NoteRepository) NoteWithTitleExists(ctx context.Context, title string, container *entities.TaskList) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, row := range r.store.notes {
		if row.PartitionKey == container.RowKey && row.Title == title {
			return true, nil
		}
	}
	return false, nil
}

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
	return copied, nil
}

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

func (r *NoteRepository) SaveOrdering(ctx context.Context, notes []*entities.Note) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, note := range notes {
		key := rowKeyOf(note.PartitionKey, note.RowKey)
		stored, ok := r.store.notes[key]
		if !ok || stored.Version != note.Version {
			return pkgerrors.NewConcurrencyError("note")
		}
	}
	for _, note := range notes {
		note.Version++
		note.Timestamp = time.Now()
		r.store.notes[rowKeyOf(note.PartitionKey, note.RowKey)] = flattenNote(note)
	}
	return nil
}

func flattenNote(n *entities.Note) entities.Note {
	return entities.Note{
		PartitionKey:  n.PartitionKey,
		RowKey:        n.RowKey,
		Timestamp:     n.Timestamp,
		Version:       n.Version,
		Title:         n.Title,
		Content:       n.Content,
		IsClosed:      n.IsClosed,
		OrderingIndex: n.OrderingIndex,
	}
}
