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

// Tables names the logical tables of the store. Relation tables carry no
// entity payload; their rows exist solely to record associations.
type Tables struct {
	Users          string
	TaskLists      string
	Notes          string
	TaskListShares string
	NoteShares     string
	TaskListNotes  string
}

// UserRepository persists users. A user's row key (name-providerTag)
// embeds its own partition, so any user row can be resolved from the row
// key alone.
type UserRepository struct {
	store  *TableStore
	tables Tables
	logger *zap.Logger
}

// NewUserRepository creates a user repository over the table store gateway.
func NewUserRepository(store *TableStore, tables Tables, logger *zap.Logger) *UserRepository {
	return &UserRepository{store: store, tables: tables, logger: logger}
}

// Create writes the user row. The key is deterministic; a second
// registration under the same name and provider surfaces as a duplicate.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	user.Timestamp = time.Now()
	user.Version = 1

	uow := r.store.NewUnitOfWork()
	if err := uow.StageCreate(r.tables.Users, "user", user.PartitionKey, user.RowKey, newUserItem(user)); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}

	r.logger.Debug("user created", zap.String("rowKey", user.RowKey))
	return nil
}

// Get is a point lookup; a missing user comes back as (nil, nil).
func (r *UserRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.User, error) {
	item, err := GetItem[userItem](ctx, r.store, r.tables.Users, partitionKey, rowKey)
	if err != nil || item == nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// GetByCompositeKey accepts the partition+row combined identity.
func (r *UserRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.User, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

// Find returns the first user matching the criteria, or nil.
func (r *UserRepository) Find(ctx context.Context, criteria ports.Criteria) (*entities.User, error) {
	item, err := FindFirst[userItem](ctx, r.store, r.tables.Users, criteria)
	if err != nil || item == nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// Update overwrites the user row guarded by the version stamp. The entity's
// own stamp advances only on a successful commit, so a failed write can be
// retried with the same object.
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	next := *user
	next.Version++
	next.Timestamp = time.Now()

	uow := r.store.NewUnitOfWork()
	if err := uow.StageUpdate(r.tables.Users, "user", user.PartitionKey, user.RowKey, newUserItem(&next), user.Version); err != nil {
		return err
	}
	if err := uow.SubmitChanges(ctx); err != nil {
		return err
	}
	user.Version = next.Version
	user.Timestamp = next.Timestamp
	return nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, user *entities.User) error {
	uow := r.store.NewUnitOfWork()
	uow.StageDelete(r.tables.Users, "user", user.PartitionKey, user.RowKey)
	return uow.SubmitChanges(ctx)
}

// resolveByRowKey recovers a user from its row key alone: the provider
// partition is the right-hand component of the identity key.
func (r *UserRepository) resolveByRowKey(ctx context.Context, rowKey string) (*entities.User, error) {
	_, provider, err := valueobjects.SplitIdentity(rowKey)
	if err != nil {
		return nil, pkgerrors.NewInvalidValueTypeError("malformed user row key "+rowKey, err)
	}
	return r.Get(ctx, string(provider), rowKey)
}
