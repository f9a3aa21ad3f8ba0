package memory

import (
	"context"
	"time"

	"tasknote-backend/application/ports"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// UserRepository is the in-process ports.UserRepository.
type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(user.PartitionKey, user.RowKey)
	if _, exists := r.store.users[key]; exists {
		return pkgerrors.NewDuplicateKeyError("user")
	}
	user.Timestamp = time.Now()
	user.Version = 1
	r.store.users[key] = flattenUser(user)
	return nil
}

func (r *UserRepository) Get(ctx context.Context, partitionKey, rowKey string) (*entities.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.users[rowKeyOf(partitionKey, rowKey)]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (r *UserRepository) GetByCompositeKey(ctx context.Context, compositeKey string) (*entities.User, error) {
	key, err := valueobjects.ParseEntityKey(compositeKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed composite key"},
		})
	}
	return r.Get(ctx, key.PartitionKey, key.RowKey)
}

func (r *UserRepository) Find(ctx context.Context, criteria ports.Criteria) (*entities.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, row := range r.store.users {
		if criteria.Matches(func(field string) string {
			switch field {
			case ports.FieldPartitionKey:
				return row.PartitionKey
			case ports.FieldRowKey:
				return row.RowKey
			case ports.FieldName:
				return row.Name
			case ports.FieldUniqueIdentifier:
				return row.UniqueIdentifier
			}
			return ""
		}) {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := rowKeyOf(user.PartitionKey, user.RowKey)
	stored, ok := r.store.users[key]
	if !ok || stored.Version != user.Version {
		return pkgerrors.NewConcurrencyError("user")
	}
	user.Version++
	user.Timestamp = time.Now()
	r.store.users[key] = flattenUser(user)
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, user *entities.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.users, rowKeyOf(user.PartitionKey, user.RowKey))
	return nil
}

// resolveByRowKey recovers a user from its row key alone.
func (r *UserRepository) resolveByRowKey(rowKey string) (*entities.User, error) {
	_, provider, err := valueobjects.SplitIdentity(rowKey)
	if err != nil {
		return nil, pkgerrors.NewInvalidValueTypeError("malformed user row key "+rowKey, err)
	}
	row, ok := r.store.users[rowKeyOf(string(provider), rowKey)]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func flattenUser(u *entities.User) entities.User {
	return entities.User{
		PartitionKey:     u.PartitionKey,
		RowKey:           u.RowKey,
		Timestamp:        u.Timestamp,
		Version:          u.Version,
		UniqueIdentifier: u.UniqueIdentifier,
		Name:             u.Name,
		Email:            u.Email,
	}
}
