package services

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/backsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// testMeta is the bridge metadata used in tests.
type testMeta struct {
	Page int
}

func newTestModel(t *testing.T) *domain.Model {
	t.Helper()
	m, err := domain.NewModel(
		&domain.Entity{
			Name:       "Issue",
			Attributes: []string{"remoteID", "title", "state"},
			Relationships: []*domain.Relationship{
				{Name: "author", Destination: "User"},
				{Name: "labels", Destination: "Label", ToMany: true, Ordered: true},
				{Name: "watchers", Destination: "User", ToMany: true},
			},
		},
		&domain.Entity{Name: "Bug", Parent: "Issue", Attributes: []string{"severity"}},
		&domain.Entity{Name: "User", Attributes: []string{"remoteID", "login"}},
		&domain.Entity{Name: "Label", Attributes: []string{"remoteID", "name"}},
	)
	require.NoError(t, err)
	return m
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	return memory.NewStore(newTestModel(t))
}

func entityOf(t *testing.T, store driven.Store, name string) *domain.Entity {
	t.Helper()
	e, err := store.Model().Entity(name)
	require.NoError(t, err)
	return e
}

// seed inserts and saves an object.
func seed(t *testing.T, store driven.Store, entity string, values map[string]any) domain.Object {
	t.Helper()
	obj, err := store.Insert(entityOf(t, store, entity))
	require.NoError(t, err)
	for k, v := range values {
		require.NoError(t, store.SetValue(obj, k, v))
	}
	require.NoError(t, store.Save(context.Background()))
	return obj
}

func valueOf(store driven.Store, obj domain.Object, attr string) any {
	v, _ := store.Value(obj, attr)
	return v
}

// keysOf returns the remoteID of every object.
func keysOf(store driven.Store, objs []domain.Object) []any {
	out := make([]any, len(objs))
	for i, o := range objs {
		out[i] = valueOf(store, o, "remoteID")
	}
	return out
}

// testOp is a scripted remote operation.
type testOp struct {
	records []map[string]any
	err     error
	meta    *testMeta

	// gate, if set, blocks Run until closed or the context is done.
	gate chan struct{}
	// started is closed when Run begins.
	started chan struct{}

	runs atomic.Int32
}

func newTestOp(records ...map[string]any) *testOp {
	return &testOp{records: records, started: make(chan struct{})}
}

func (o *testOp) Run(ctx context.Context) error {
	if o.runs.Add(1) == 1 {
		close(o.started)
	}
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			o.err = ctx.Err()
		}
	}
	return o.err
}

// testBridge converts map records: "id" is the uniquing key and "type"
// selects a subentity of the expected entity.
type testBridge struct {
	mu sync.Mutex

	fetchOps  []*testOp
	objectOps map[domain.PartKind]*testOp
	merge     map[string]domain.MergeType
	metadata  *testMeta

	fetchCalls  int
	objectCalls map[domain.PartKind]int
}

func newTestBridge() *testBridge {
	return &testBridge{
		objectOps:   make(map[domain.PartKind]*testOp),
		merge:       make(map[string]domain.MergeType),
		objectCalls: make(map[domain.PartKind]int),
	}
}

var _ driven.Bridge[map[string]any, any, testMeta] = (*testBridge)(nil)

func (b *testBridge) calls() (int, map[domain.PartKind]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetchCalls, maps.Clone(b.objectCalls)
}

func (b *testBridge) NewUserInfo() any {
	return "root"
}

func (b *testBridge) ExpectedEntityForFetch(req *domain.FetchRequest, _ any) *domain.Entity {
	return req.Entity
}

func (b *testBridge) ExpectedEntityForObject(obj domain.Object, _ any) *domain.Entity {
	return obj.Entity()
}

// FetchOperation returns the part info when it is a *testOp, otherwise the
// next queued fetch operation.
func (b *testBridge) FetchOperation(_ *domain.FetchRequest, info any, _ *any) (driven.BackOperation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	if op, ok := info.(*testOp); ok {
		return op, nil
	}
	if len(b.fetchOps) == 0 {
		return newTestOp(), nil
	}
	op := b.fetchOps[0]
	b.fetchOps = b.fetchOps[1:]
	return op, nil
}

func (b *testBridge) objectOperation(kind domain.PartKind) (driven.BackOperation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objectCalls[kind]++
	if op, ok := b.objectOps[kind]; ok {
		return op, nil
	}
	return newTestOp(), nil
}

func (b *testBridge) InsertOperation(domain.Object, any, *any) (driven.BackOperation, error) {
	return b.objectOperation(domain.PartInsert)
}

func (b *testBridge) UpdateOperation(domain.Object, any, *any) (driven.BackOperation, error) {
	return b.objectOperation(domain.PartUpdate)
}

func (b *testBridge) DeleteOperation(domain.Object, any, *any) (driven.BackOperation, error) {
	return b.objectOperation(domain.PartDelete)
}

func (b *testBridge) OperationError(op driven.BackOperation) error {
	return op.(*testOp).err
}

func (b *testBridge) OperationUserInfo(_ driven.BackOperation, userInfo any) any {
	return userInfo
}

func (b *testBridge) OperationMetadata(op driven.BackOperation, _ any) *testMeta {
	if meta := op.(*testOp).meta; meta != nil {
		return meta
	}
	return b.metadata
}

func (b *testBridge) OperationRepresentations(op driven.BackOperation, _ any) ([]map[string]any, bool) {
	return op.(*testOp).records, true
}

func (b *testBridge) MixedRepresentation(rec map[string]any, expected *domain.Entity, _ any) (*domain.MixedRepresentation[any], error) {
	if expected == nil {
		return nil, nil
	}
	entity := expected
	if name, ok := rec["type"].(string); ok {
		for _, sub := range expected.Subentities() {
			if sub.Name == name {
				entity = sub
			}
		}
	}
	return domain.NewMixedRepresentation(entity, rec["id"], rec), nil
}

func (b *testBridge) SubUserInfo(relationship string, _ *domain.Entity, _ any) any {
	return relationship
}

func (b *testBridge) RelationshipMetadata(any, any) *testMeta {
	return nil
}

func (b *testBridge) RelationshipRepresentations(raw any, _ any) ([]map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}, true
	case []map[string]any:
		return v, true
	default:
		return nil, false
	}
}

func (b *testBridge) RelationshipMergeType(relationship string, _ *domain.Entity) domain.MergeType {
	if mt, ok := b.merge[relationship]; ok {
		return mt
	}
	return domain.MergeReplace
}

// testRequest is a request with caller-defined parts, all imported into
// store unless remoteOnly lists them.
type testRequest struct {
	store      driven.Store
	parts      map[string]domain.RequestPart
	remoteOnly map[string]bool
	enter      bool

	bridgeErrors atomic.Int32
}

func (r *testRequest) Store() driven.Store      { return r.store }
func (r *testRequest) EnterBridgeInStore() bool { return false }
func (r *testRequest) PartsInStore() bool       { return false }
func (r *testRequest) ProcessBridgeError(error) { r.bridgeErrors.Add(1) }
func (r *testRequest) LeaveBridge(context.Context) (bool, error) {
	return true, nil
}

func (r *testRequest) EnterBridge(context.Context) (bool, error) {
	return r.enter, nil
}

func (r *testRequest) Parts(context.Context) (map[string]domain.RequestPart, error) {
	return r.parts, nil
}

func (r *testRequest) ImportStore(id string, _ domain.RequestPart) driven.Store {
	if r.remoteOnly[id] {
		return nil
	}
	return r.store
}

var _ driven.Request[string] = (*testRequest)(nil)

// pagedBridge serves pages 1..last and follows testMeta.Page.
type pagedBridge struct {
	*testBridge
	last int
}

func (b *pagedBridge) NextPage(meta *testMeta) (any, bool) {
	if meta == nil || meta.Page >= b.last {
		return nil, false
	}
	return meta.Page + 1, true
}

var _ driven.Paginator[testMeta] = (*pagedBridge)(nil)
