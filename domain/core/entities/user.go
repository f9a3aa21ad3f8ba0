package entities

import (
	"time"

	"tasknote-backend/domain/core/valueobjects"
)

// User is an authenticated principal resolved from an identity provider.
// Partition key: the provider tag. Row key: name-providerTag, so the owner
// partition of any user row can be recovered from the row key alone.
type User struct {
	PartitionKey string
	RowKey       string
	Timestamp    time.Time
	Version      int64

	// UniqueIdentifier is the opaque subject id from the identity provider.
	UniqueIdentifier string `validate:"required"`

	// Name must stay clear of the key separators since it becomes the left
	// component of the row key.
	Name string `validate:"required,max=15,excludesall=+-"`

	Email string `validate:"omitempty,email"`
}

// NewUser builds a user keyed by its identity provider. The row key is
// deterministic (name-providerTag), not generated.
func NewUser(uniqueIdentifier, name, email string, provider valueobjects.ProviderTag) (*User, error) {
	rowKey, err := valueobjects.ComposeIdentity(name, provider)
	if err != nil {
		return nil, err
	}
	return &User{
		PartitionKey:     string(provider),
		RowKey:           rowKey,
		UniqueIdentifier: uniqueIdentifier,
		Name:             name,
		Email:            email,
	}, nil
}

// Key returns the user's table address.
func (u *User) Key() valueobjects.EntityKey {
	return valueobjects.EntityKey{PartitionKey: u.PartitionKey, RowKey: u.RowKey}
}

// CompositeKey returns the partition+row composite identity.
func (u *User) CompositeKey() string {
	return u.Key().Composite()
}

// Provider returns the canonical identity provider tag.
func (u *User) Provider() valueobjects.ProviderTag {
	return valueobjects.ProviderTag(u.PartitionKey)
}
