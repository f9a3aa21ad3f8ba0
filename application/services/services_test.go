package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	"tasknote-backend/application/services"
	"tasknote-backend/domain/core/entities"
	"tasknote-backend/domain/core/valueobjects"
	"tasknote-backend/infrastructure/persistence/memory"
	pkgerrors "tasknote-backend/pkg/errors"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []ports.EntityEvent
}

func (p *capturePublisher) Publish(_ context.Context, event ports.EntityEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) actions() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EntityType+"."+e.Action)
	}
	return out
}

type fixture struct {
	users     *services.UserService
	taskLists *services.TaskListService
	notes     *services.NoteService
	published *capturePublisher
}

func newFixture() *fixture {
	return newLimitedFixture(nil)
}

func newLimitedFixture(limits ports.LimitsProvider) *fixture {
	store := memory.NewStore()
	userRepo := memory.NewUserRepository(store)
	taskListRepo := memory.NewTaskListRepository(store, userRepo)
	noteRepo := memory.NewNoteRepository(store, userRepo)
	publisher := &capturePublisher{}
	logger := zap.NewNop()

	return &fixture{
		users:     services.NewUserService(userRepo, publisher, logger),
		taskLists: services.NewTaskListService(taskListRepo, publisher, limits, logger),
		notes:     services.NewNoteService(noteRepo, taskListRepo, publisher, limits, logger),
		published: publisher,
	}
}

func (f *fixture) registerUser(t *testing.T, name string) *entities.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), "sub-"+name, name, name+"@example.com", valueobjects.ProviderGoogle)
	require.NoError(t, err)
	return user
}

func (f *fixture) createList(t *testing.T, owner *entities.User, title string) *entities.TaskList {
	t.Helper()
	list, err := f.taskLists.Create(context.Background(), owner, title)
	require.NoError(t, err)
	return list
}

func (f *fixture) addNote(t *testing.T, caller *entities.User, list *entities.TaskList, title string) *entities.Note {
	t.Helper()
	note, err := f.notes.Add(context.Background(), caller, list.CompositeKey(), title, "content of "+title)
	require.NoError(t, err)
	return note
}

func noteTitles(notes []*entities.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}

func TestRegisterUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	alice := f.registerUser(t, "alice")
	assert.Equal(t, "alice-google", alice.RowKey)
	assert.Equal(t, "google", alice.PartitionKey)

	found, err := f.users.GetByUniqueIdentifier(ctx, "sub-alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, alice.RowKey, found.RowKey)

	missing, err := f.users.GetByUniqueIdentifier(ctx, "sub-nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegisterRejectsNameCollisionWithinProvider(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.registerUser(t, "alice")

	_, err := f.users.Register(ctx, "sub-other", "alice", "", valueobjects.ProviderGoogle)
	assert.True(t, pkgerrors.IsDuplicateKey(err))

	// The same name under a different provider is a different identity.
	other, err := f.users.Register(ctx, "sub-ms", "alice", "", valueobjects.ProviderMicrosoft)
	require.NoError(t, err)
	assert.Equal(t, "alice-microsoft", other.RowKey)
}

func TestRegisterRejectsSeparatorInName(t *testing.T) {
	f := newFixture()

	_, err := f.users.Register(context.Background(), "sub-x", "al+ice", "", valueobjects.ProviderGoogle)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestUpdateEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")

	require.NoError(t, f.users.UpdateEmail(ctx, alice, "new@example.com"))

	reloaded, err := f.users.Get(ctx, alice.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", reloaded.Email)

	err = f.users.UpdateEmail(ctx, alice, "not-an-email")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestGetByRowKeyRecoversPartition(t *testing.T) {
	f := newFixture()
	alice := f.registerUser(t, "alice")

	found, err := f.users.GetByRowKey(context.Background(), alice.RowKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, alice.UniqueIdentifier, found.UniqueIdentifier)

	_, err = f.users.GetByRowKey(context.Background(), "noseparator")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateTaskListGrantsOwnerShare(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")

	list := f.createList(t, alice, "groceries")
	assert.Equal(t, alice.RowKey, list.PartitionKey)
	assert.NotEmpty(t, list.RowKey)

	// The owner holds a share row from creation, so the list shows up in
	// the caller's visible set without an explicit grant.
	visible, err := f.taskLists.GetAll(ctx, alice)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, list.RowKey, visible[0].RowKey)

	loaded, err := f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	require.NotNil(t, loaded.Owner)
	assert.Equal(t, alice.RowKey, loaded.Owner.RowKey)
	require.Len(t, loaded.Share, 1)
	assert.Equal(t, alice.RowKey, loaded.Share[0].RowKey)
}

func TestTaskListInvisibleToStrangersReportsNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	mallory := f.registerUser(t, "mallory")

	list := f.createList(t, alice, "groceries")

	// A valid key the caller cannot see must be indistinguishable from a
	// key that does not exist.
	_, err := f.taskLists.Get(ctx, mallory, list.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.taskLists.Get(ctx, mallory, "no+suchlist")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestShareTaskList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")

	list := f.createList(t, alice, "groceries")
	require.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))

	visible, err := f.taskLists.GetAll(ctx, bob)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	// Sharing twice stays idempotent.
	require.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))
	loaded, err := f.taskLists.Get(ctx, bob, list.CompositeKey())
	require.NoError(t, err)
	assert.Len(t, loaded.Share, 2)
}

func TestOnlyOwnerMayShare(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	carol := f.registerUser(t, "carol")

	list := f.createList(t, alice, "groceries")
	require.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))

	err := f.taskLists.Share(ctx, bob, list.CompositeKey(), carol)
	assert.True(t, pkgerrors.IsForbidden(err))
}

func TestUnshareRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	carol := f.registerUser(t, "carol")

	list := f.createList(t, alice, "groceries")
	key := list.CompositeKey()
	require.NoError(t, f.taskLists.Share(ctx, alice, key, bob))
	require.NoError(t, f.taskLists.Share(ctx, alice, key, carol))

	t.Run("owner grant is irrevocable", func(t *testing.T) {
		err := f.taskLists.Unshare(ctx, alice, key, alice)
		assert.True(t, pkgerrors.IsForbidden(err))
	})

	t.Run("shared user may not revoke others", func(t *testing.T) {
		err := f.taskLists.Unshare(ctx, bob, key, carol)
		assert.True(t, pkgerrors.IsForbidden(err))
	})

	t.Run("shared user may walk away", func(t *testing.T) {
		require.NoError(t, f.taskLists.Unshare(ctx, carol, key, carol))
		_, err := f.taskLists.Get(ctx, carol, key)
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("owner may revoke a grant", func(t *testing.T) {
		require.NoError(t, f.taskLists.Unshare(ctx, alice, key, bob))
		visible, err := f.taskLists.GetAll(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, visible)
	})
}

func TestOnlyOwnerMayDeleteTaskList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")

	list := f.createList(t, alice, "groceries")
	require.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))

	err := f.taskLists.Delete(ctx, bob, list.CompositeKey())
	assert.True(t, pkgerrors.IsForbidden(err))

	require.NoError(t, f.taskLists.Delete(ctx, alice, list.CompositeKey()))
}

func TestDeleteTaskListCascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")

	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")
	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), bob))

	require.NoError(t, f.taskLists.Delete(ctx, alice, list.CompositeKey()))

	_, err := f.taskLists.Get(ctx, alice, list.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = f.notes.Get(ctx, alice, note.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = f.notes.Get(ctx, bob, note.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))

	visible, err := f.taskLists.GetAll(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestRenameTaskList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")

	renamed, err := f.taskLists.Rename(ctx, alice, list.CompositeKey(), "weekend shopping")
	require.NoError(t, err)
	assert.Equal(t, "weekend shopping", renamed.Title)

	_, err = f.taskLists.Rename(ctx, alice, list.CompositeKey(), "")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestAddNotesAssignsDenseOrdering(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")

	f.addNote(t, alice, list, "milk")
	f.addNote(t, alice, list, "bread")
	f.addNote(t, alice, list, "eggs")

	loaded, err := f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	require.Len(t, loaded.Notes, 3)
	assert.Equal(t, []string{"milk", "bread", "eggs"}, noteTitles(loaded.Notes))
	for i, n := range loaded.Notes {
		assert.Equal(t, i, n.OrderingIndex)
	}
}

func TestNoteTitleUniquePerList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	other := f.createList(t, alice, "hardware")

	f.addNote(t, alice, list, "milk")

	_, err := f.notes.Add(ctx, alice, list.CompositeKey(), "milk", "again")
	assert.True(t, pkgerrors.IsDuplicateKey(err))

	// Uniqueness is scoped to the container.
	_, err = f.notes.Add(ctx, alice, other.CompositeKey(), "milk", "elsewhere")
	assert.NoError(t, err)
}

func TestGetNotePopulatesRelations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	loaded, err := f.notes.Get(ctx, alice, note.CompositeKey())
	require.NoError(t, err)
	require.NotNil(t, loaded.Container)
	assert.Equal(t, list.RowKey, loaded.Container.RowKey)
	require.NotNil(t, loaded.Owner)
	assert.Equal(t, alice.RowKey, loaded.Owner.RowKey)
	require.Len(t, loaded.Share, 1)
	assert.Equal(t, alice.RowKey, loaded.Share[0].RowKey)
}

func TestUpdateNoteKeepsTitleUnique(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	f.addNote(t, alice, list, "milk")
	note := f.addNote(t, alice, list, "bread")

	_, err := f.notes.Update(ctx, alice, note.CompositeKey(), "milk", "renamed")
	assert.True(t, pkgerrors.IsDuplicateKey(err))

	// Keeping the current title is not a collision with itself.
	updated, err := f.notes.Update(ctx, alice, note.CompositeKey(), "bread", "white loaf")
	require.NoError(t, err)
	assert.Equal(t, "white loaf", updated.Content)
}

func TestSetClosed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	closed, err := f.notes.SetClosed(ctx, alice, note.CompositeKey(), true)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)

	loaded, err := f.notes.Get(ctx, alice, note.CompositeKey())
	require.NoError(t, err)
	assert.True(t, loaded.IsClosed)

	// Setting the current state again is a no-op.
	_, err = f.notes.SetClosed(ctx, alice, note.CompositeKey(), true)
	require.NoError(t, err)
}

func TestMoveUpAndDown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")

	f.addNote(t, alice, list, "milk")
	bread := f.addNote(t, alice, list, "bread")
	f.addNote(t, alice, list, "eggs")

	require.NoError(t, f.notes.MoveUp(ctx, alice, bread.CompositeKey()))
	loaded, err := f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, []string{"bread", "milk", "eggs"}, noteTitles(loaded.Notes))

	// The first note cannot move further up.
	require.NoError(t, f.notes.MoveUp(ctx, alice, bread.CompositeKey()))
	loaded, err = f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, []string{"bread", "milk", "eggs"}, noteTitles(loaded.Notes))

	require.NoError(t, f.notes.MoveDown(ctx, alice, bread.CompositeKey()))
	loaded, err = f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, []string{"milk", "bread", "eggs"}, noteTitles(loaded.Notes))

	for i, n := range loaded.Notes {
		assert.Equal(t, i, n.OrderingIndex)
	}
}

func TestDeleteNoteRenumbersRemaining(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")

	f.addNote(t, alice, list, "milk")
	bread := f.addNote(t, alice, list, "bread")
	f.addNote(t, alice, list, "eggs")

	require.NoError(t, f.notes.Delete(ctx, alice, bread.CompositeKey()))

	loaded, err := f.taskLists.Get(ctx, alice, list.CompositeKey())
	require.NoError(t, err)
	require.Len(t, loaded.Notes, 2)
	assert.Equal(t, []string{"milk", "eggs"}, noteTitles(loaded.Notes))
	for i, n := range loaded.Notes {
		assert.Equal(t, i, n.OrderingIndex)
	}
}

func TestCopyNoteCarriesContentAndShares(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	source := f.createList(t, alice, "groceries")
	dest := f.createList(t, alice, "hardware")

	note := f.addNote(t, alice, source, "milk")
	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), bob))
	_, err := f.notes.SetClosed(ctx, alice, note.CompositeKey(), true)
	require.NoError(t, err)

	copied, err := f.notes.Copy(ctx, alice, note.CompositeKey(), dest.CompositeKey())
	require.NoError(t, err)

	assert.NotEqual(t, note.RowKey, copied.RowKey)
	assert.Equal(t, dest.RowKey, copied.PartitionKey)

	loaded, err := f.notes.Get(ctx, alice, copied.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, "milk", loaded.Title)
	assert.Equal(t, note.Content, loaded.Content)
	assert.True(t, loaded.IsClosed)

	shared := make([]string, 0, len(loaded.Share))
	for _, u := range loaded.Share {
		shared = append(shared, u.RowKey)
	}
	assert.ElementsMatch(t, []string{alice.RowKey, bob.RowKey}, shared)

	// The original stays in place.
	_, err = f.notes.Get(ctx, alice, note.CompositeKey())
	require.NoError(t, err)
}

func TestCopyRejectsDuplicateTitleInDestination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	source := f.createList(t, alice, "groceries")
	dest := f.createList(t, alice, "hardware")

	note := f.addNote(t, alice, source, "milk")
	f.addNote(t, alice, dest, "milk")

	_, err := f.notes.Copy(ctx, alice, note.CompositeKey(), dest.CompositeKey())
	assert.True(t, pkgerrors.IsDuplicateKey(err))
}

func TestMoveNote(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	source := f.createList(t, alice, "groceries")
	dest := f.createList(t, alice, "hardware")

	f.addNote(t, alice, source, "milk")
	note := f.addNote(t, alice, source, "bread")
	f.addNote(t, alice, source, "eggs")
	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), bob))

	moved, err := f.notes.Move(ctx, alice, note.CompositeKey(), dest.CompositeKey())
	require.NoError(t, err)

	// A move is a delete plus a re-create: the row key does not survive.
	assert.NotEqual(t, note.RowKey, moved.RowKey)
	assert.Equal(t, dest.RowKey, moved.PartitionKey)

	_, err = f.notes.Get(ctx, alice, note.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))

	loaded, err := f.notes.Get(ctx, alice, moved.CompositeKey())
	require.NoError(t, err)
	shared := make([]string, 0, len(loaded.Share))
	for _, u := range loaded.Share {
		shared = append(shared, u.RowKey)
	}
	assert.ElementsMatch(t, []string{alice.RowKey, bob.RowKey}, shared)

	// The source list is renumbered back to a dense run.
	sourceLoaded, err := f.taskLists.Get(ctx, alice, source.CompositeKey())
	require.NoError(t, err)
	require.Len(t, sourceLoaded.Notes, 2)
	assert.Equal(t, []string{"milk", "eggs"}, noteTitles(sourceLoaded.Notes))
	for i, n := range sourceLoaded.Notes {
		assert.Equal(t, i, n.OrderingIndex)
	}
}

func TestMoveToSameListIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	moved, err := f.notes.Move(ctx, alice, note.CompositeKey(), list.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, note.RowKey, moved.RowKey)
}

func TestMoveRequiresPermissionOnDestination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	source := f.createList(t, alice, "groceries")
	dest := f.createList(t, bob, "private")

	note := f.addNote(t, alice, source, "milk")

	_, err := f.notes.Move(ctx, alice, note.CompositeKey(), dest.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNoteShareGatesVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	_, err := f.notes.Get(ctx, bob, note.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), bob))

	loaded, err := f.notes.Get(ctx, bob, note.CompositeKey())
	require.NoError(t, err)
	assert.Equal(t, "milk", loaded.Title)

	require.NoError(t, f.notes.Unshare(ctx, alice, note.CompositeKey(), bob))
	_, err = f.notes.Get(ctx, bob, note.CompositeKey())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNoteOwnerShareIrrevocable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	err := f.notes.Unshare(ctx, alice, note.CompositeKey(), alice)
	assert.True(t, pkgerrors.IsForbidden(err))
}

func TestLifecycleEventsPublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")
	require.NoError(t, f.notes.Delete(ctx, alice, note.CompositeKey()))

	assert.Equal(t, []string{
		"user.created",
		"taskList.created",
		"note.created",
		"note.deleted",
	}, f.published.actions())

	last := f.published.events[len(f.published.events)-1]
	assert.Equal(t, note.CompositeKey(), last.EntityKey)
	assert.Equal(t, alice.RowKey, last.UserRowKey)
	assert.False(t, last.OccurredAt.IsZero())
}

func TestAddNoteEnforcesListCap(t *testing.T) {
	limits := ports.Limits{MaxNotesPerList: 2}
	f := newLimitedFixture(func() ports.Limits { return limits })
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	list := f.createList(t, alice, "groceries")
	f.addNote(t, alice, list, "milk")
	f.addNote(t, alice, list, "eggs")

	_, err := f.notes.Add(ctx, alice, list.CompositeKey(), "bread", "one loaf")
	assert.True(t, pkgerrors.IsValidation(err))

	// A raised limit takes effect on the next call without rewiring.
	limits.MaxNotesPerList = 3
	_, err = f.notes.Add(ctx, alice, list.CompositeKey(), "bread", "one loaf")
	assert.NoError(t, err)
}

func TestCopyRejectedWhenDestinationFull(t *testing.T) {
	f := newLimitedFixture(ports.FixedLimits(ports.Limits{MaxNotesPerList: 1}))
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	source := f.createList(t, alice, "groceries")
	destination := f.createList(t, alice, "pantry")
	note := f.addNote(t, alice, source, "milk")
	f.addNote(t, alice, destination, "flour")

	_, err := f.notes.Copy(ctx, alice, note.CompositeKey(), destination.CompositeKey())
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.notes.Move(ctx, alice, note.CompositeKey(), destination.CompositeKey())
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestCreateTaskListEnforcesUserCap(t *testing.T) {
	f := newLimitedFixture(ports.FixedLimits(ports.Limits{MaxTaskListsPerUser: 2}))
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	f.createList(t, alice, "groceries")

	// A list someone else shares with alice does not count against her cap.
	shared := f.createList(t, bob, "errands")
	require.NoError(t, f.taskLists.Share(ctx, bob, shared.CompositeKey(), alice))

	f.createList(t, alice, "pantry")
	_, err := f.taskLists.Create(ctx, alice, "overflow")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestShareEnforcesShareCap(t *testing.T) {
	f := newLimitedFixture(ports.FixedLimits(ports.Limits{MaxSharesPerEntity: 2}))
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	carol := f.registerUser(t, "carol")
	list := f.createList(t, alice, "groceries")

	// The owner's own grant counts, so one more user fits.
	require.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))
	err := f.taskLists.Share(ctx, alice, list.CompositeKey(), carol)
	assert.True(t, pkgerrors.IsValidation(err))

	// Re-granting an existing share stays a no-op at the cap.
	assert.NoError(t, f.taskLists.Share(ctx, alice, list.CompositeKey(), bob))
}

func TestNoteShareOrderDeterministic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.registerUser(t, "alice")
	bob := f.registerUser(t, "bob")
	carol := f.registerUser(t, "carol")
	list := f.createList(t, alice, "groceries")
	note := f.addNote(t, alice, list, "milk")

	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), carol))
	require.NoError(t, f.notes.Share(ctx, alice, note.CompositeKey(), bob))

	loaded, err := f.notes.Get(ctx, alice, note.CompositeKey())
	require.NoError(t, err)
	rowKeys := make([]string, 0, len(loaded.Share))
	for _, user := range loaded.Share {
		rowKeys = append(rowKeys, user.RowKey)
	}
	assert.Equal(t, []string{"alice-google", "bob-google", "carol-google"}, rowKeys)
}
