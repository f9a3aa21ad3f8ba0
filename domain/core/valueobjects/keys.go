package valueobjects

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key separators. Composite keys are synthesized by joining two logical key
// components; the components themselves must never contain the separator,
// which is why user names are restricted from containing '-' and '+'.
const (
	// ContainerSeparator joins a partition key and a row key into the
	// composite key used by the relation tables.
	ContainerSeparator = "+"

	// IdentitySeparator joins a user name and an identity provider tag into
	// a user row key.
	IdentitySeparator = "-"
)

// rowKeyEncoding encodes 128-bit identifiers compactly. The base32 alphabet
// contains neither separator character.
var rowKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewRowKey returns a fresh globally unique row key: a 128-bit random
// identifier encoded as 26 lowercase characters.
func NewRowKey() string {
	id := uuid.New()
	return strings.ToLower(rowKeyEncoding.EncodeToString(id[:]))
}

// EntityKey is the two-part address of a row in the table store. Together
// the partition key and row key are unique per table.
type EntityKey struct {
	PartitionKey string
	RowKey       string
}

// Composite returns the partition+row composite form of the key.
func (k EntityKey) Composite() string {
	return k.PartitionKey + ContainerSeparator + k.RowKey
}

// IsZero reports whether the key has not been assigned yet.
func (k EntityKey) IsZero() bool {
	return k.PartitionKey == "" && k.RowKey == ""
}

// Compose joins two key components with the given separator. It fails when
// either component already contains the separator, since the result could
// not be split back unambiguously.
func Compose(a, b, sep string) (string, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("key components must be non-empty")
	}
	if strings.Contains(a, sep) || strings.Contains(b, sep) {
		return "", fmt.Errorf("key component contains reserved separator %q", sep)
	}
	return a + sep + b, nil
}

// Split splits a composite key on the first occurrence of the separator.
// The left component is the one validated to be separator-free, so splitting
// on the first occurrence recovers both components even when the right one
// contains the separator.
func Split(composite, sep string) (string, string, error) {
	a, b, found := strings.Cut(composite, sep)
	if !found || a == "" || b == "" {
		return "", "", fmt.Errorf("malformed composite key %q", composite)
	}
	return a, b, nil
}

// ParseEntityKey parses a partition+row composite string back into a key.
// REST-facing callers pass entity identities around in this combined form.
func ParseEntityKey(composite string) (EntityKey, error) {
	pk, rk, err := Split(composite, ContainerSeparator)
	if err != nil {
		return EntityKey{}, err
	}
	return EntityKey{PartitionKey: pk, RowKey: rk}, nil
}

// ComposeIdentity builds a user row key from a name and a provider tag.
func ComposeIdentity(name string, provider ProviderTag) (string, error) {
	return Compose(name, string(provider), IdentitySeparator)
}

// SplitIdentity recovers the name and provider tag from a user row key.
// Names are validated to contain no separator, so the first '-' always
// terminates the name component.
func SplitIdentity(rowKey string) (string, ProviderTag, error) {
	name, tag, err := Split(rowKey, IdentitySeparator)
	if err != nil {
		return "", "", err
	}
	return name, ProviderTag(tag), nil
}
