package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

func newTestModel(t *testing.T) *domain.Model {
	t.Helper()
	m, err := domain.NewModel(
		&domain.Entity{
			Name:       "Issue",
			Attributes: []string{"remoteID", "title"},
			Relationships: []*domain.Relationship{
				{Name: "author", Destination: "User"},
				{Name: "labels", Destination: "Label", ToMany: true, Ordered: true},
			},
		},
		&domain.Entity{Name: "Bug", Parent: "Issue", Attributes: []string{"severity"}},
		&domain.Entity{Name: "User", Attributes: []string{"remoteID", "login"}},
		&domain.Entity{Name: "Label", Attributes: []string{"remoteID", "name"}},
	)
	require.NoError(t, err)
	return m
}

func entity(t *testing.T, s *Store, name string) *domain.Entity {
	t.Helper()
	e, err := s.Model().Entity(name)
	require.NoError(t, err)
	return e
}

func insert(t *testing.T, s *Store, name string, values map[string]any) domain.Object {
	t.Helper()
	obj, err := s.Insert(entity(t, s, name))
	require.NoError(t, err)
	for k, v := range values {
		require.NoError(t, s.SetValue(obj, k, v))
	}
	return obj
}

func TestStore_InsertIssuesTemporaryIDs(t *testing.T) {
	s := NewStore(newTestModel(t))

	obj := insert(t, s, "Issue", map[string]any{"title": "a"})
	id := s.ObjectID(obj)

	assert.True(t, id.Temporary)
	assert.Equal(t, "Issue", id.Entity)
	got, err := s.Object(id)
	require.NoError(t, err)
	assert.Same(t, obj, got)
}

func TestStore_CommitIdentifiersKeepsTemporaryAlias(t *testing.T) {
	s := NewStore(newTestModel(t))
	obj := insert(t, s, "Issue", nil)
	tmp := s.ObjectID(obj)

	require.NoError(t, s.CommitIdentifiers([]domain.Object{obj}))

	perm := s.ObjectID(obj)
	assert.False(t, perm.Temporary)
	assert.NotEqual(t, tmp.Key, perm.Key)

	byTmp, err := s.Object(tmp)
	require.NoError(t, err)
	assert.Same(t, obj, byTmp)
	byPerm, err := s.Object(perm)
	require.NoError(t, err)
	assert.Same(t, obj, byPerm)
}

func TestStore_Object_NotFound(t *testing.T) {
	s := NewStore(newTestModel(t))
	_, err := s.Object(domain.ObjectID{Entity: "Issue", Key: "missing"})
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestStore_SetValue(t *testing.T) {
	s := NewStore(newTestModel(t))
	obj := insert(t, s, "Issue", map[string]any{"title": "a"})

	v, ok := s.Value(obj, "title")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	require.NoError(t, s.SetValue(obj, "title", nil))
	_, ok = s.Value(obj, "title")
	assert.False(t, ok)

	err := s.SetValue(obj, "nope", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidModel)
}

func TestStore_SetRelated_Validates(t *testing.T) {
	s := NewStore(newTestModel(t))
	issue := insert(t, s, "Issue", nil)
	u1 := insert(t, s, "User", nil)
	u2 := insert(t, s, "User", nil)
	label := insert(t, s, "Label", nil)

	err := s.SetRelated(issue, "author", []domain.Object{u1, u2})
	assert.ErrorIs(t, err, domain.ErrInvalidModel)

	err = s.SetRelated(issue, "author", []domain.Object{label})
	assert.ErrorIs(t, err, domain.ErrEntityMismatch)

	err = s.SetRelated(issue, "watchers", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownRelationship)

	require.NoError(t, s.SetRelated(issue, "author", []domain.Object{u1}))
	assert.Equal(t, []domain.Object{u1}, s.Related(issue, "author"))
}

func TestStore_RelatedReturnsCopy(t *testing.T) {
	s := NewStore(newTestModel(t))
	issue := insert(t, s, "Issue", nil)
	l1 := insert(t, s, "Label", nil)
	l2 := insert(t, s, "Label", nil)
	require.NoError(t, s.SetRelated(issue, "labels", []domain.Object{l1, l2}))

	got := s.Related(issue, "labels")
	got[0] = l2

	assert.Equal(t, []domain.Object{l1, l2}, s.Related(issue, "labels"))
}

func TestStore_DeleteRemovesReferences(t *testing.T) {
	s := NewStore(newTestModel(t))
	issue := insert(t, s, "Issue", nil)
	l1 := insert(t, s, "Label", nil)
	l2 := insert(t, s, "Label", nil)
	require.NoError(t, s.SetRelated(issue, "labels", []domain.Object{l1, l2}))
	id := s.ObjectID(l1)

	require.NoError(t, s.Delete(l1))

	assert.Equal(t, []domain.Object{l2}, s.Related(issue, "labels"))
	_, err := s.Object(id)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	assert.ErrorIs(t, s.Delete(l1), domain.ErrObjectDeleted)
}

func TestStore_FetchByUniquingKeys_IncludesSubentities(t *testing.T) {
	s := NewStore(newTestModel(t))
	a := insert(t, s, "Issue", map[string]any{"remoteID": int64(1)})
	b := insert(t, s, "Bug", map[string]any{"remoteID": int64(2)})
	insert(t, s, "Issue", map[string]any{"remoteID": int64(3)})
	insert(t, s, "User", map[string]any{"remoteID": int64(1)})

	got, err := s.FetchByUniquingKeys(entity(t, s, "Issue"), "remoteID", []any{int64(1), int64(2)})
	require.NoError(t, err)
	assert.Equal(t, []domain.Object{a, b}, got)

	_, err = s.FetchByUniquingKeys(entity(t, s, "Issue"), "remoteID", []any{[]int{1}})
	assert.Error(t, err)
}

func TestStore_FetchPredicateAndLimit(t *testing.T) {
	s := NewStore(newTestModel(t))
	a := insert(t, s, "Issue", map[string]any{"title": "x"})
	insert(t, s, "Issue", map[string]any{"title": "y"})
	c := insert(t, s, "Issue", map[string]any{"title": "x"})

	got, err := s.Fetch(&domain.FetchRequest{Entity: entity(t, s, "Issue"), Predicate: map[string]any{"title": "x"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.Object{a, c}, got)

	n, err := s.Count(&domain.FetchRequest{Entity: entity(t, s, "Issue"), Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Fetch(&domain.FetchRequest{})
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
}

func TestStore_ChangesAndRollback(t *testing.T) {
	s := NewStore(newTestModel(t))
	kept := insert(t, s, "Issue", map[string]any{"title": "kept"})
	gone := insert(t, s, "Issue", map[string]any{"title": "gone"})
	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.HasChanges())

	require.NoError(t, s.SetValue(kept, "title", "changed"))
	require.NoError(t, s.Delete(gone))
	fresh := insert(t, s, "Issue", nil)

	changes := s.Changes()
	assert.Equal(t, []domain.Object{fresh}, changes.Inserted)
	assert.Equal(t, []domain.Object{kept}, changes.Updated)
	assert.Equal(t, []domain.Object{gone}, changes.Deleted)

	require.NoError(t, s.Rollback())

	assert.False(t, s.HasChanges())
	assert.Equal(t, 2, s.Len())
	v, _ := s.Value(kept, "title")
	assert.Equal(t, "kept", v)
	v, _ = s.Value(gone, "title")
	assert.Equal(t, "gone", v)
	_, err := s.Object(s.ObjectID(fresh))
	assert.Error(t, err)
}

func TestStore_EqualValueIsNotAChange(t *testing.T) {
	s := NewStore(newTestModel(t))
	obj := insert(t, s, "Issue", map[string]any{"title": "a"})
	require.NoError(t, s.Save(context.Background()))

	require.NoError(t, s.SetValue(obj, "title", "a"))
	assert.False(t, s.HasChanges())
}

func TestStore_InsertThenDeleteIsNoChange(t *testing.T) {
	s := NewStore(newTestModel(t))
	obj := insert(t, s, "Issue", nil)
	require.NoError(t, s.Delete(obj))
	assert.False(t, s.HasChanges())
}

func TestStore_SaveCommitsAndPersists(t *testing.T) {
	records := NewRecordStore()
	model := newTestModel(t)
	s := NewStore(model, WithPersistence(records))

	issue := insert(t, s, "Issue", map[string]any{"title": "a", "remoteID": int64(7)})
	user := insert(t, s, "User", map[string]any{"login": "octo"})
	require.NoError(t, s.SetRelated(issue, "author", []domain.Object{user}))
	require.NoError(t, s.Save(context.Background()))

	assert.False(t, s.ObjectID(issue).Temporary)
	assert.Equal(t, 1, records.Applies())

	reopened, err := Open(context.Background(), model, WithPersistence(records))
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	got, err := reopened.Object(s.ObjectID(issue))
	require.NoError(t, err)
	v, _ := reopened.Value(got, "title")
	assert.Equal(t, "a", v)
	author := reopened.Related(got, "author")
	require.Len(t, author, 1)
	assert.Equal(t, s.ObjectID(user), reopened.ObjectID(author[0]))

	require.NoError(t, s.Delete(user))
	require.NoError(t, s.Save(context.Background()))
	recs, err := records.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Related)
}

type failingRecords struct{ *RecordStore }

func (failingRecords) Apply(context.Context, []domain.ObjectRecord, []domain.ObjectID) error {
	return errors.New("disk full")
}

func TestStore_SaveKeepsJournalOnFailure(t *testing.T) {
	s := NewStore(newTestModel(t), WithPersistence(failingRecords{NewRecordStore()}))
	insert(t, s, "Issue", nil)

	err := s.Save(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, s.HasChanges())
}

func TestStore_PerformHonoursCancelledContext(t *testing.T) {
	s := NewStore(newTestModel(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Perform(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
