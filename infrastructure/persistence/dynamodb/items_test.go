package dynamodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tasknote-backend/domain/core/entities"
)

func TestUserItemRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)
	user := &entities.User{
		PartitionKey:     "google",
		RowKey:           "alice-google",
		Timestamp:        stamp,
		Version:          3,
		UniqueIdentifier: "sub-123",
		Name:             "alice",
		Email:            "alice@example.com",
	}

	got := newUserItem(user).toEntity()
	assert.Equal(t, user, got)
}

func TestTaskListItemRoundTrip(t *testing.T) {
	list := &entities.TaskList{
		PartitionKey: "alice-google",
		RowKey:       "list1",
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		Version:      7,
		Title:        "groceries",
	}

	got := newTaskListItem(list).toEntity()
	assert.Equal(t, list, got)
}

func TestTaskListItemDropsRelationFields(t *testing.T) {
	owner := &entities.User{RowKey: "alice-google"}
	list := &entities.TaskList{
		PartitionKey: "alice-google",
		RowKey:       "list1",
		Title:        "groceries",
		Owner:        owner,
		Share:        []*entities.User{owner},
		Notes:        []*entities.Note{{Title: "milk"}},
	}

	got := newTaskListItem(list).toEntity()
	assert.Nil(t, got.Owner)
	assert.Nil(t, got.Share)
	assert.Nil(t, got.Notes)
}

func TestNoteItemRoundTrip(t *testing.T) {
	note := &entities.Note{
		PartitionKey:  "list1",
		RowKey:        "note1",
		Version:       2,
		Title:         "milk",
		Content:       "two bottles",
		IsClosed:      true,
		OrderingIndex: 4,
	}

	got := newNoteItem(note).toEntity()
	assert.Equal(t, note, got)
}

func TestTimestampFormatting(t *testing.T) {
	assert.Equal(t, "", formatTimestamp(time.Time{}))
	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("not a timestamp").IsZero())

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.FixedZone("CET", 3600))
	parsed := parseTimestamp(formatTimestamp(stamp))
	assert.True(t, stamp.Equal(parsed))
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestNewRelationItem(t *testing.T) {
	item := newRelationItem("owner+list1", "alice-google")
	assert.Equal(t, "owner+list1", item.PK)
	assert.Equal(t, "alice-google", item.SK)
	assert.NotEmpty(t, item.CreatedAt)
}
