package dynamodb

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasknote-backend/domain/core/entities"
	pkgerrors "tasknote-backend/pkg/errors"
)

// fakeStoreClient answers the gateway's reads from in-process tables and
// records every transactional write. A non-nil commitErr fails commits
// without applying them.
type fakeStoreClient struct {
	rows      map[string]map[string]map[string]types.AttributeValue
	writes    []*dynamodb.TransactWriteItemsInput
	commitErr error
}

func newFakeStoreClient() *fakeStoreClient {
	return &fakeStoreClient{rows: make(map[string]map[string]map[string]types.AttributeValue)}
}

func stringAttr(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeStoreClient) seed(t *testing.T, table string, item any) {
	t.Helper()
	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	f.putRow(table, av)
}

func (f *fakeStoreClient) putRow(table string, item map[string]types.AttributeValue) {
	if f.rows[table] == nil {
		f.rows[table] = make(map[string]map[string]types.AttributeValue)
	}
	f.rows[table][stringAttr(item["PK"])+"\x00"+stringAttr(item["SK"])] = item
}

func (f *fakeStoreClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	key := stringAttr(params.Key["PK"]) + "\x00" + stringAttr(params.Key["SK"])
	item, ok := f.rows[*params.TableName][key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeStoreClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	// The gateway's only key condition is PK equality with a single value.
	var partition string
	for _, v := range params.ExpressionAttributeValues {
		partition = stringAttr(v)
	}
	out := &dynamodb.QueryOutput{}
	for _, item := range f.rows[*params.TableName] {
		if stringAttr(item["PK"]) == partition {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeStoreClient) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	out := &dynamodb.ScanOutput{}
	for _, item := range f.rows[*params.TableName] {
		if matchesEqualityFilter(item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

// matchesEqualityFilter pairs #n name placeholders with :n values, the shape
// the gateway's criteria filters always take.
func matchesEqualityFilter(item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for placeholder, field := range names {
		want, ok := values[":"+strings.TrimPrefix(placeholder, "#")]
		if !ok {
			return false
		}
		if stringAttr(item[field]) != stringAttr(want) {
			return false
		}
	}
	return true
}

func (f *fakeStoreClient) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.writes = append(f.writes, params)
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	for _, item := range params.TransactItems {
		switch {
		case item.Put != nil:
			f.putRow(*item.Put.TableName, item.Put.Item)
		case item.Delete != nil:
			key := stringAttr(item.Delete.Key["PK"]) + "\x00" + stringAttr(item.Delete.Key["SK"])
			delete(f.rows[*item.Delete.TableName], key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

type stagedDelete struct {
	table, pk, sk string
}

func (f *fakeStoreClient) deletes() []stagedDelete {
	var out []stagedDelete
	for _, write := range f.writes {
		for _, item := range write.TransactItems {
			if item.Delete != nil {
				out = append(out, stagedDelete{
					table: *item.Delete.TableName,
					pk:    stringAttr(item.Delete.Key["PK"]),
					sk:    stringAttr(item.Delete.Key["SK"]),
				})
			}
		}
	}
	return out
}

func testTables() Tables {
	return Tables{
		Users:          "Users",
		TaskLists:      "TaskLists",
		Notes:          "Notes",
		TaskListShares: "TaskListShares",
		NoteShares:     "NoteShares",
		TaskListNotes:  "TaskListNotes",
	}
}

func conditionFailure() error {
	code := "ConditionalCheckFailed"
	return &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}
}

func TestUpdateKeepsVersionWhenCommitFails(t *testing.T) {
	fake := newFakeStoreClient()
	store := NewTableStore(fake, zap.NewNop())
	repo := NewUserRepository(store, testTables(), zap.NewNop())
	ctx := context.Background()

	user := &entities.User{
		PartitionKey:     "google",
		RowKey:           "alice-google",
		UniqueIdentifier: "sub-123",
		Name:             "alice",
		Version:          3,
	}
	fake.seed(t, "Users", newUserItem(user))

	fake.commitErr = conditionFailure()
	err := repo.Update(ctx, user)
	assert.True(t, pkgerrors.IsConcurrency(err))
	assert.EqualValues(t, 3, user.Version)

	// The unchanged stamp makes the retry line up with the stored row.
	fake.commitErr = nil
	require.NoError(t, repo.Update(ctx, user))
	assert.EqualValues(t, 4, user.Version)
}

func TestSaveOrderingKeepsVersionsWhenCommitFails(t *testing.T) {
	fake := newFakeStoreClient()
	store := NewTableStore(fake, zap.NewNop())
	users := NewUserRepository(store, testTables(), zap.NewNop())
	repo := NewNoteRepository(store, testTables(), users, zap.NewNop())
	ctx := context.Background()

	notes := []*entities.Note{
		{PartitionKey: "list-1", RowKey: "note-a", Title: "milk", OrderingIndex: 1, Version: 2},
		{PartitionKey: "list-1", RowKey: "note-b", Title: "eggs", OrderingIndex: 0, Version: 5},
	}
	for _, n := range notes {
		fake.seed(t, "Notes", newNoteItem(n))
	}

	fake.commitErr = conditionFailure()
	err := repo.SaveOrdering(ctx, notes)
	assert.True(t, pkgerrors.IsConcurrency(err))
	assert.EqualValues(t, 2, notes[0].Version)
	assert.EqualValues(t, 5, notes[1].Version)

	fake.commitErr = nil
	require.NoError(t, repo.SaveOrdering(ctx, notes))
	assert.EqualValues(t, 3, notes[0].Version)
	assert.EqualValues(t, 6, notes[1].Version)
}

func TestDeleteCascadeRemovesOrphanedRelationRows(t *testing.T) {
	fake := newFakeStoreClient()
	store := NewTableStore(fake, zap.NewNop())
	users := NewUserRepository(store, testTables(), zap.NewNop())
	repo := NewTaskListRepository(store, testTables(), users, zap.NewNop())
	ctx := context.Background()

	list := &entities.TaskList{
		PartitionKey: "alice-google",
		RowKey:       "list1row",
		Title:        "groceries",
		Version:      1,
	}
	composite := list.CompositeKey()
	fake.seed(t, "TaskLists", newTaskListItem(list))
	fake.seed(t, "TaskListShares", newRelationItem(composite, "alice-google"))

	// A relation row whose note row is already gone, left behind by an
	// interrupted earlier cascade.
	orphan := "list1row+deadbeefdeadbeefdeadbeef"
	fake.seed(t, "TaskListNotes", newRelationItem(composite, orphan))

	require.NoError(t, repo.Delete(ctx, list))

	assert.Contains(t, fake.deletes(), stagedDelete{table: "TaskListNotes", pk: composite, sk: orphan})
	assert.Empty(t, fake.rows["TaskListNotes"])
	assert.Empty(t, fake.rows["TaskListShares"])
	assert.Empty(t, fake.rows["TaskLists"])
}
