package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/validators"
	"tasknote-backend/domain/core/valueobjects"
	pkgerrors "tasknote-backend/pkg/errors"
)

// UserService registers and resolves users. Registration is keyed by the
// deterministic name-providerTag row key, so two users of the same provider
// cannot share a name.
type UserService struct {
	users     ports.UserRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

func NewUserService(users ports.UserRepository, publisher ports.EventPublisher, logger *zap.Logger) *UserService {
	return &UserService{users: users, publisher: publisher, logger: logger}
}

// Register creates a user for the given identity. A name collision within
// the provider surfaces as a duplicate-key error.
func (s *UserService) Register(ctx context.Context, uniqueIdentifier, name, email string, provider valueobjects.ProviderTag) (*entities.User, error) {
	user, err := entities.NewUser(uniqueIdentifier, name, email, provider)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "Name", Message: err.Error()},
		})
	}
	if fields := validators.ValidateEntity(user); fields != nil {
		return nil, pkgerrors.NewValidationError(fields)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, "created", "user", user.CompositeKey(), user.RowKey)
	return user, nil
}

// GetByUniqueIdentifier resolves a user by the provider's opaque subject id.
// Absence comes back as (nil, nil).
func (s *UserService) GetByUniqueIdentifier(ctx context.Context, uniqueIdentifier string) (*entities.User, error) {
	return s.users.Find(ctx, ports.Where(ports.FieldUniqueIdentifier, uniqueIdentifier))
}

// Get resolves a user by its composite key.
func (s *UserService) Get(ctx context.Context, compositeKey string) (*entities.User, error) {
	return s.users.GetByCompositeKey(ctx, compositeKey)
}

// GetByRowKey resolves a user from its row key alone; the provider partition
// is embedded in the identity key.
func (s *UserService) GetByRowKey(ctx context.Context, rowKey string) (*entities.User, error) {
	_, provider, err := valueobjects.SplitIdentity(rowKey)
	if err != nil {
		return nil, pkgerrors.NewValidationError([]pkgerrors.FieldError{
			{Field: "id", Message: "malformed user row key"},
		})
	}
	return s.users.Get(ctx, string(provider), rowKey)
}

// UpdateEmail changes the only mutable user field. The name cannot change:
// it is baked into the row key and every relation row referencing it.
func (s *UserService) UpdateEmail(ctx context.Context, user *entities.User, email string) error {
	user.Email = email
	if fields := validators.ValidateEntity(user); fields != nil {
		return pkgerrors.NewValidationError(fields)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.publish(ctx, "updated", "user", user.CompositeKey(), user.RowKey)
	return nil
}

// Delete removes the user row. Task lists owned by the user are not
// cascaded here; list lifecycle belongs to the task list service.
func (s *UserService) Delete(ctx context.Context, user *entities.User) error {
	if err := s.users.Delete(ctx, user); err != nil {
		return err
	}
	s.publish(ctx, "deleted", "user", user.CompositeKey(), user.RowKey)
	return nil
}

func (s *UserService) publish(ctx context.Context, action, entityType, entityKey, userRowKey string) {
	event := ports.EntityEvent{
		Action:     action,
		EntityType: entityType,
		EntityKey:  entityKey,
		UserRowKey: userRowKey,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("action", action),
			zap.String("entityType", entityType),
			zap.Error(err),
		)
	}
}
