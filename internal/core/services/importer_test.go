package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

type testRep = domain.FastImportRepresentation[testMeta]

func rep(e *domain.Entity, key any, attrs map[string]any) *testRep {
	r := &testRep{
		Entity:        e,
		UniquingKey:   key,
		Attributes:    make(map[string]domain.Field[any]),
		Relationships: make(map[string]domain.RelationshipImport[testMeta]),
	}
	for k, v := range attrs {
		if v == nil {
			r.Attributes[k] = domain.Null[any]()
		} else {
			r.Attributes[k] = domain.Set(v)
		}
	}
	return r
}

func withRel(r *testRep, name string, mt domain.MergeType, children ...*testRep) *testRep {
	r.Relationships[name] = domain.RelationshipImport[testMeta]{
		Values:    domain.Set(children),
		MergeType: mt,
	}
	return r
}

func withNullRel(r *testRep, name string) *testRep {
	r.Relationships[name] = domain.RelationshipImport[testMeta]{
		Values:    domain.Null[[]*testRep](),
		MergeType: domain.MergeReplace,
	}
	return r
}

func runImport(t *testing.T, store driven.Store, updating domain.Object, reps ...*testRep) ([]domain.Object, *SummaryBuilder[testMeta], error) {
	t.Helper()
	builder := NewSummaryBuilder[testMeta](store, nil)
	var objs []domain.Object
	err := store.Perform(context.Background(), func(context.Context) error {
		im := NewImporter[testMeta](store, "", nil)
		if err := im.Prepare(reps); err != nil {
			return err
		}
		var err error
		objs, err = im.Import(updating, builder)
		return err
	})
	return objs, builder, err
}

func TestImporter_InsertsWithRelationships(t *testing.T) {
	store := newTestStore(t)
	issue, user, label := entityOf(t, store, "Issue"), entityOf(t, store, "User"), entityOf(t, store, "Label")

	r := rep(issue, int64(1), map[string]any{"title": "first"})
	withRel(r, "author", domain.MergeReplace, rep(user, "u1", map[string]any{"login": "octo"}))
	withRel(r, "labels", domain.MergeReplace, rep(label, "l1", nil), rep(label, "l2", nil))

	objs, _, err := runImport(t, store, nil, r)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	assert.Equal(t, 4, store.Len())
	assert.Equal(t, "first", valueOf(store, objs[0], "title"))
	assert.Equal(t, int64(1), valueOf(store, objs[0], "remoteID"))

	author := store.Related(objs[0], "author")
	require.Len(t, author, 1)
	assert.Equal(t, "octo", valueOf(store, author[0], "login"))
	assert.Equal(t, []any{"l1", "l2"}, keysOf(store, store.Related(objs[0], "labels")))
}

func TestImporter_UniquingIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	issue, user := entityOf(t, store, "Issue"), entityOf(t, store, "User")

	build := func(title string) *testRep {
		r := rep(issue, int64(1), map[string]any{"title": title})
		return withRel(r, "author", domain.MergeReplace, rep(user, "u1", nil))
	}

	first, _, err := runImport(t, store, nil, build("v1"))
	require.NoError(t, err)
	second, builder, err := runImport(t, store, nil, build("v2"))
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.Same(t, first[0], second[0])
	assert.Equal(t, "v2", valueOf(store, second[0], "title"))

	changes := builder.Changes()
	assert.Empty(t, changes.Inserted)
	assert.Len(t, changes.Updated, 2)
}

func TestImporter_UniquesWithinOnePass(t *testing.T) {
	store := newTestStore(t)
	issue, user := entityOf(t, store, "Issue"), entityOf(t, store, "User")

	a := withRel(rep(issue, int64(1), nil), "author", domain.MergeReplace, rep(user, "u1", nil))
	b := withRel(rep(issue, int64(2), nil), "author", domain.MergeReplace, rep(user, "u1", nil))

	objs, _, err := runImport(t, store, nil, a, b)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Len())
	assert.Same(t, store.Related(objs[0], "author")[0], store.Related(objs[1], "author")[0])
}

func TestImporter_MergeTypes(t *testing.T) {
	tests := []struct {
		name  string
		merge domain.MergeType
		want  []any
	}{
		{"replace", domain.MergeReplace, []any{"l3", "l1"}},
		{"append", domain.MergeAppend, []any{"l1", "l2", "l3"}},
		{"insert at beginning", domain.MergeInsertAtBeginning, []any{"l3", "l1", "l2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			issue, label := entityOf(t, store, "Issue"), entityOf(t, store, "Label")

			initial := withRel(rep(issue, int64(1), nil), "labels", domain.MergeReplace,
				rep(label, "l1", nil), rep(label, "l2", nil))
			_, _, err := runImport(t, store, nil, initial)
			require.NoError(t, err)

			incoming := withRel(rep(issue, int64(1), nil), "labels", tt.merge,
				rep(label, "l3", nil), rep(label, "l1", nil), rep(label, "l3", nil))
			objs, _, err := runImport(t, store, nil, incoming)
			require.NoError(t, err)

			assert.Equal(t, tt.want, keysOf(store, store.Related(objs[0], "labels")))
		})
	}
}

func TestImporter_InsertAtBeginningOnUnorderedAppends(t *testing.T) {
	store := newTestStore(t)
	issue, user := entityOf(t, store, "Issue"), entityOf(t, store, "User")

	_, _, err := runImport(t, store, nil,
		withRel(rep(issue, int64(1), nil), "watchers", domain.MergeReplace, rep(user, "u1", nil)))
	require.NoError(t, err)

	objs, _, err := runImport(t, store, nil,
		withRel(rep(issue, int64(1), nil), "watchers", domain.MergeInsertAtBeginning, rep(user, "u2", nil)))
	require.NoError(t, err)

	assert.ElementsMatch(t, []any{"u1", "u2"}, keysOf(store, store.Related(objs[0], "watchers")))
}

func TestImporter_CustomMerge(t *testing.T) {
	store := newTestStore(t)
	issue, label := entityOf(t, store, "Issue"), entityOf(t, store, "Label")

	var got []domain.Object
	custom := domain.CustomMerge(func(_ domain.Object, relationship string, values []domain.Object) error {
		assert.Equal(t, "labels", relationship)
		got = values
		return nil
	})

	objs, _, err := runImport(t, store, nil,
		withRel(rep(issue, int64(1), nil), "labels", custom, rep(label, "l1", nil)))
	require.NoError(t, err)

	assert.Equal(t, []any{"l1"}, keysOf(store, got))
	assert.Empty(t, store.Related(objs[0], "labels"))
}

func TestImporter_ToOneKeepsFirstValue(t *testing.T) {
	store := newTestStore(t)
	issue, user := entityOf(t, store, "Issue"), entityOf(t, store, "User")

	objs, _, err := runImport(t, store, nil,
		withRel(rep(issue, int64(1), nil), "author", domain.MergeAppend,
			rep(user, "u1", nil), rep(user, "u2", nil)))
	require.NoError(t, err)

	assert.Equal(t, []any{"u1"}, keysOf(store, store.Related(objs[0], "author")))
	assert.Equal(t, 3, store.Len())
}

func TestImporter_NullAndUnsetFields(t *testing.T) {
	store := newTestStore(t)
	issue, user := entityOf(t, store, "Issue"), entityOf(t, store, "User")

	_, _, err := runImport(t, store, nil,
		withRel(rep(issue, int64(1), map[string]any{"title": "t", "state": "open"}),
			"author", domain.MergeReplace, rep(user, "u1", nil)))
	require.NoError(t, err)

	objs, _, err := runImport(t, store, nil,
		withNullRel(rep(issue, int64(1), map[string]any{"state": nil}), "author"))
	require.NoError(t, err)

	assert.Equal(t, "t", valueOf(store, objs[0], "title"))
	assert.Nil(t, valueOf(store, objs[0], "state"))
	assert.Empty(t, store.Related(objs[0], "author"))
}

func TestImporter_CommitsIdentifiers(t *testing.T) {
	store := newTestStore(t)
	issue := entityOf(t, store, "Issue")

	objs, builder, err := runImport(t, store, nil, rep(issue, int64(1), nil), rep(issue, nil, nil))
	require.NoError(t, err)

	for _, obj := range objs {
		assert.False(t, store.ObjectID(obj).Temporary)
	}
	summary, err := builder.Summary()
	require.NoError(t, err)
	require.Len(t, summary.Objects, 2)
	for _, o := range summary.Objects {
		assert.False(t, o.ID.Temporary)
	}
	assert.False(t, builder.HasTemporaryIDs())
}

func TestImporter_AppendedChildrenResolveAtRoot(t *testing.T) {
	store := newTestStore(t)
	issue, label := entityOf(t, store, "Issue"), entityOf(t, store, "Label")

	r := rep(issue, int64(1), map[string]any{"title": "root"})
	withRel(r, "labels", domain.MergeAppend, rep(label, "l1", nil), rep(label, "l2", nil))

	objs, builder, err := runImport(t, store, nil, r)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, 3, store.Len())

	summary, err := builder.Summary()
	require.NoError(t, err)
	require.Len(t, summary.Objects, 1)
	assert.False(t, summary.Objects[0].ID.Temporary)
	assert.Equal(t, store.ObjectID(objs[0]), summary.Objects[0].ID)

	detailed, err := builder.DetailedSummary()
	require.NoError(t, err)
	assert.Len(t, detailed.Objects[0].Relationships["labels"].Objects, 2)
}

func TestImporter_ForcedUpdateAdoptsKey(t *testing.T) {
	store := newTestStore(t)
	issue := entityOf(t, store, "Issue")
	local := seed(t, store, "Issue", map[string]any{"title": "local"})

	objs, _, err := runImport(t, store, local, rep(issue, int64(7), map[string]any{"title": "remote"}))
	require.NoError(t, err)

	require.Len(t, objs, 1)
	assert.Same(t, local, objs[0])
	assert.Equal(t, int64(7), valueOf(store, local, "remoteID"))
	assert.Equal(t, "remote", valueOf(store, local, "title"))
	assert.Equal(t, 1, store.Len())
}

func TestImporter_ForcedUpdateDeletesDuplicate(t *testing.T) {
	store := newTestStore(t)
	issue := entityOf(t, store, "Issue")
	existing := seed(t, store, "Issue", map[string]any{"remoteID": int64(7), "title": "old"})
	local := seed(t, store, "Issue", map[string]any{"title": "local"})
	localID := store.ObjectID(local)

	objs, builder, err := runImport(t, store, local, rep(issue, int64(7), map[string]any{"title": "remote"}))
	require.NoError(t, err)

	require.Len(t, objs, 1)
	assert.Same(t, existing, objs[0])
	assert.Equal(t, "remote", valueOf(store, existing, "title"))
	assert.Equal(t, 1, store.Len())

	_, err = store.Object(localID)
	assert.Error(t, err)
	assert.Len(t, builder.Changes().Deleted, 1)
}

func TestImporter_ForcedUpdateErrors(t *testing.T) {
	store := newTestStore(t)
	issue := entityOf(t, store, "Issue")
	user := seed(t, store, "User", map[string]any{"login": "octo"})
	local := seed(t, store, "Issue", nil)

	before := store.Len()

	_, _, err := runImport(t, store, local, rep(issue, int64(1), nil), rep(issue, int64(2), nil))
	assert.ErrorIs(t, err, domain.ErrTooManyRepresentations)
	assert.False(t, store.HasChanges())
	assert.Equal(t, before, store.Len())

	_, _, err = runImport(t, store, user, rep(issue, int64(1), nil))
	assert.ErrorIs(t, err, domain.ErrEntityMismatch)
}

func TestImporter_ForcedUpdateAcceptsSubentity(t *testing.T) {
	store := newTestStore(t)
	issue := entityOf(t, store, "Issue")
	bug := seed(t, store, "Bug", map[string]any{"severity": "high"})

	objs, _, err := runImport(t, store, bug, rep(issue, int64(3), map[string]any{"title": "crash"}))
	require.NoError(t, err)

	assert.Same(t, bug, objs[0])
	assert.Equal(t, "high", valueOf(store, bug, "severity"))
	assert.Equal(t, "crash", valueOf(store, bug, "title"))
}

func TestImporter_PrepareRejectsInvalidTrees(t *testing.T) {
	store := newTestStore(t)
	issue, label := entityOf(t, store, "Issue"), entityOf(t, store, "Label")

	tests := []struct {
		name string
		rep  *testRep
		want error
	}{
		{
			name: "unknown relationship",
			rep:  withRel(rep(issue, int64(1), nil), "assignee", domain.MergeReplace),
			want: domain.ErrUnknownRelationship,
		},
		{
			name: "key differs from attribute",
			rep:  rep(issue, int64(1), map[string]any{"remoteID": int64(2)}),
			want: domain.ErrUniquingConflict,
		},
		{
			name: "key not comparable",
			rep:  rep(issue, []int{1}, nil),
			want: domain.ErrUniquingConflict,
		},
		{
			name: "nested representation without entity",
			rep:  withRel(rep(issue, int64(1), nil), "labels", domain.MergeReplace, rep(nil, "l1", nil)),
			want: domain.ErrMissingRepresentation,
		},
		{
			name: "nested key not comparable",
			rep:  withRel(rep(issue, int64(1), nil), "labels", domain.MergeReplace, rep(label, map[string]int{}, nil)),
			want: domain.ErrUniquingConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runImport(t, store, nil, tt.rep)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestImporter_ImportRequiresPrepare(t *testing.T) {
	store := newTestStore(t)
	im := NewImporter[testMeta](store, "", nil)

	_, err := im.Import(nil, NewSummaryBuilder[testMeta](store, nil))
	assert.ErrorIs(t, err, domain.ErrNotFinished)
}
