package dynamodb

import (
	"time"

	"tasknote-backend/domain/core/entities"
)

// Flat row representations. Mapping is total and bidirectional: identity
// fields (PK, SK, timestamp, version) survive a round trip unchanged, and
// relation-derived entity fields (owner, share, container, notes) are never
// embedded in the row — they are reconstructed from relation lookups.

const timestampLayout = time.RFC3339Nano

type userItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	UniqueIdentifier string `dynamodbav:"UniqueIdentifier"`
	Name             string `dynamodbav:"Name"`
	Email            string `dynamodbav:"Email"`
	UpdatedAt        string `dynamodbav:"UpdatedAt"`
	Version          int64  `dynamodbav:"Version"`
}

func newUserItem(u *entities.User) userItem {
	return userItem{
		PK:               u.PartitionKey,
		SK:               u.RowKey,
		UniqueIdentifier: u.UniqueIdentifier,
		Name:             u.Name,
		Email:            u.Email,
		UpdatedAt:        formatTimestamp(u.Timestamp),
		Version:          u.Version,
	}
}

func (i userItem) toEntity() *entities.User {
	return &entities.User{
		PartitionKey:     i.PK,
		RowKey:           i.SK,
		Timestamp:        parseTimestamp(i.UpdatedAt),
		Version:          i.Version,
		UniqueIdentifier: i.UniqueIdentifier,
		Name:             i.Name,
		Email:            i.Email,
	}
}

type taskListItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Title     string `dynamodbav:"Title"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
	Version   int64  `dynamodbav:"Version"`
}

func newTaskListItem(t *entities.TaskList) taskListItem {
	return taskListItem{
		PK:        t.PartitionKey,
		SK:        t.RowKey,
		Title:     t.Title,
		UpdatedAt: formatTimestamp(t.Timestamp),
		Version:   t.Version,
	}
}

func (i taskListItem) toEntity() *entities.TaskList {
	return &entities.TaskList{
		PartitionKey: i.PK,
		RowKey:       i.SK,
		Timestamp:    parseTimestamp(i.UpdatedAt),
		Version:      i.Version,
		Title:        i.Title,
	}
}

type noteItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	Title         string `dynamodbav:"Title"`
	Content       string `dynamodbav:"Content"`
	IsClosed      bool   `dynamodbav:"IsClosed"`
	OrderingIndex int    `dynamodbav:"OrderingIndex"`
	UpdatedAt     string `dynamodbav:"UpdatedAt"`
	Version       int64  `dynamodbav:"Version"`
}

func newNoteItem(n *entities.Note) noteItem {
	return noteItem{
		PK:            n.PartitionKey,
		SK:            n.RowKey,
		Title:         n.Title,
		Content:       n.Content,
		IsClosed:      n.IsClosed,
		OrderingIndex: n.OrderingIndex,
		UpdatedAt:     formatTimestamp(n.Timestamp),
		Version:       n.Version,
	}
}

func (i noteItem) toEntity() *entities.Note {
	return &entities.Note{
		PartitionKey:  i.PK,
		RowKey:        i.SK,
		Timestamp:     parseTimestamp(i.UpdatedAt),
		Version:       i.Version,
		Title:         i.Title,
		Content:       i.Content,
		IsClosed:      i.IsClosed,
		OrderingIndex: i.OrderingIndex,
	}
}

// relationItem is a row of an auxiliary relation table. The row's existence
// is the relation: share rows key (entityCompositeKey, userRowKey), container
// rows key (taskListCompositeKey, noteCompositeKey).
type relationItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

func newRelationItem(partitionKey, rowKey string) relationItem {
	return relationItem{
		PK:        partitionKey,
		SK:        rowKey,
		CreatedAt: formatTimestamp(time.Now()),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
