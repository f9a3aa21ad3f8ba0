package entities

import (
	"time"

	"tasknote-backend/domain/core/valueobjects"
)

// TaskList is an ordered container of notes owned by a user. Partition key:
// the owner's row key (the ownership relation is carried by the key
// convention itself). Row key: generated.
//
// Owner, Notes and Share are populated by relation lookups, never stored on
// the row.
type TaskList struct {
	PartitionKey string
	RowKey       string
	Timestamp    time.Time
	Version      int64

	Title string `validate:"required,max=20"`

	Owner *User   `validate:"required,structonly"`
	Notes []*Note `validate:"-"`
	Share []*User `validate:"-"`
}

// NewTaskList builds an unsaved task list for the given owner. The row key
// is assigned by the repository on create.
func NewTaskList(title string, owner *User) *TaskList {
	list := &TaskList{Title: title, Owner: owner}
	if owner != nil {
		list.PartitionKey = owner.RowKey
	}
	return list
}

// Key returns the list's table address.
func (t *TaskList) Key() valueobjects.EntityKey {
	return valueobjects.EntityKey{PartitionKey: t.PartitionKey, RowKey: t.RowKey}
}

// CompositeKey returns the partition+row composite identity used as the
// left side of share and container relation rows.
func (t *TaskList) CompositeKey() string {
	return t.Key().Composite()
}

// OwnerRowKey returns the row key of the owning user, recovered from the
// list's own partition key.
func (t *TaskList) OwnerRowKey() string {
	return t.PartitionKey
}
