package entities

import (
	"time"

	"tasknote-backend/domain/core/valueobjects"
)

// Note is a single entry of a task list. Partition key: the containing
// list's row key. Row key: generated. OrderingIndex carries the display
// position inside the container; the container relation table records
// membership only, not order.
type Note struct {
	PartitionKey string
	RowKey       string
	Timestamp    time.Time
	Version      int64

	Title    string `validate:"required,notblank,max=20"`
	Content  string `validate:"required,notblank,max=50"`
	IsClosed bool

	// OrderingIndex is kept a dense 0..n-1 permutation within the container
	// after every list-level operation.
	OrderingIndex int

	Owner     *User     `validate:"required,structonly"`
	Container *TaskList `validate:"required,structonly"`
	Share     []*User   `validate:"-"`
}

// NewNote builds an unsaved note inside the given container. The row key and
// ordering index are assigned by the repository on create.
func NewNote(title, content string, owner *User, container *TaskList) *Note {
	note := &Note{Title: title, Content: content, Owner: owner, Container: container}
	if container != nil {
		note.PartitionKey = container.RowKey
	}
	return note
}

// Key returns the note's table address.
func (n *Note) Key() valueobjects.EntityKey {
	return valueobjects.EntityKey{PartitionKey: n.PartitionKey, RowKey: n.RowKey}
}

// CompositeKey returns the partition+row composite identity used in the
// share and container relation tables.
func (n *Note) CompositeKey() string {
	return n.Key().Composite()
}

// ContainerRowKey returns the row key of the containing task list, recovered
// from the note's own partition key.
func (n *Note) ContainerRowKey() string {
	return n.PartitionKey
}
