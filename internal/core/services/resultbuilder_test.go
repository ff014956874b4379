package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

func TestSummaryBuilder_ResultsRequireFinishedImport(t *testing.T) {
	store := newTestStore(t)
	b := NewSummaryBuilder[testMeta](store, nil)

	_, err := b.ImportResult()
	assert.ErrorIs(t, err, domain.ErrNotFinished)
	_, err = b.Summary()
	assert.ErrorIs(t, err, domain.ErrNotFinished)
	_, err = b.DetailedSummary()
	assert.ErrorIs(t, err, domain.ErrNotFinished)

	require.NoError(t, b.FinishedImport())
	summary, err := b.Summary()
	require.NoError(t, err)
	assert.Empty(t, summary.Objects)
}

func TestSummaryBuilder_TreeAndSummaries(t *testing.T) {
	store := newTestStore(t)
	issue, err := store.Insert(entityOf(t, store, "Issue"))
	require.NoError(t, err)
	label, err := store.Insert(entityOf(t, store, "Label"))
	require.NoError(t, err)

	meta := &testMeta{Page: 2}
	root := NewSummaryBuilder(store, meta)
	assert.True(t, root.IsRoot())

	root.StartedImporting(issue)
	root.Inserted(issue)
	sub := root.StartImporting("labels", &testMeta{Page: 9})
	sub.StartedImporting(label)
	sub.Inserted(label)
	sub.FinishedImportingCurrentObject()
	require.NoError(t, sub.FinishedImport())
	root.FinishedImportingCurrentObject()

	assert.True(t, root.HasTemporaryIDs())
	require.NoError(t, store.CommitIdentifiers([]domain.Object{issue, label}))
	require.NoError(t, root.FinishedImport())
	assert.False(t, root.HasTemporaryIDs())

	summary, err := root.Summary()
	require.NoError(t, err)
	assert.Same(t, meta, summary.Metadata)
	require.Len(t, summary.Objects, 1)
	assert.Equal(t, store.ObjectID(issue), summary.Objects[0].ID)
	assert.False(t, summary.Objects[0].ID.Temporary)
	assert.Nil(t, summary.Objects[0].Relationships)

	detailed, err := root.DetailedSummary()
	require.NoError(t, err)
	labels := detailed.Objects[0].Relationships["labels"]
	require.NotNil(t, labels)
	assert.Equal(t, 9, labels.Metadata.Page)
	require.Len(t, labels.Objects, 1)
	assert.True(t, labels.Objects[0].ID.Temporary, "child identifiers are reported as captured")

	tree, err := root.ImportResult()
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 1)
	assert.Same(t, issue, tree.Nodes[0].Object)
	assert.Equal(t, []domain.Object{label}, tree.Nodes[0].Relationships["labels"].Objects())

	changes := root.Changes()
	assert.Equal(t, []domain.ObjectID{store.ObjectID(issue), store.ObjectID(label)}, changes.Inserted)
	assert.Empty(t, changes.Updated)
	assert.Empty(t, changes.Deleted)
}

func TestSummaryBuilder_KeepsImportOrder(t *testing.T) {
	store := newTestStore(t)
	a := seed(t, store, "Label", map[string]any{"name": "a"})
	b := seed(t, store, "Label", map[string]any{"name": "b"})

	root := NewSummaryBuilder[testMeta](store, nil)
	for _, obj := range []domain.Object{b, a} {
		root.StartedImporting(obj)
		root.Updated(obj)
		root.FinishedImportingCurrentObject()
	}
	require.NoError(t, root.FinishedImport())

	summary, err := root.Summary()
	require.NoError(t, err)
	assert.Equal(t, []domain.ObjectID{store.ObjectID(b), store.ObjectID(a)}, summary.IDs())
	assert.Len(t, root.Changes().Updated, 2)
}

func TestSummaryBuilder_IgnoresFinishWithoutCurrentObject(t *testing.T) {
	store := newTestStore(t)
	root := NewSummaryBuilder[testMeta](store, nil)

	root.FinishedImportingCurrentObject()
	require.NoError(t, root.FinishedImport())

	tree, err := root.ImportResult()
	require.NoError(t, err)
	assert.Empty(t, tree.Nodes)
}
