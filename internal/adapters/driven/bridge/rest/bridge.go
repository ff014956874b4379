package rest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// defaultKeyField is the remote key field when a mapping names none.
const defaultKeyField = "id"

// ErrNoRemoteKey is returned when an update or delete targets an object
// that was never seen by the remote side.
var ErrNoRemoteKey = errors.New("rest: object has no remote key")

var (
	_ driven.Bridge[Record, any, PageInfo] = (*Bridge)(nil)
	_ driven.Paginator[PageInfo]           = (*Bridge)(nil)
)

// Bridge talks to a JSON-over-HTTP service.
type Bridge struct {
	source            domain.Source
	store             driven.Store
	base              *url.URL
	client            *http.Client
	limiter           *rate.Limiter
	uniquingAttribute string
	tokens            oauth2.TokenSource
	log               *logger.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithHTTPClient replaces the HTTP client. The source token is not applied
// to a replaced client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) {
		b.client = c
	}
}

// WithTokenSource authenticates requests with tokens from ts instead of the
// static source token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(b *Bridge) {
		b.tokens = ts
	}
}

// WithUniquingAttribute sets the default uniquing attribute.
func WithUniquingAttribute(name string) Option {
	return func(b *Bridge) {
		b.uniquingAttribute = name
	}
}

// New creates a bridge for src. Object values are read from store, which
// must be the store the source imports into.
func New(src domain.Source, store driven.Store, log *logger.Logger, opts ...Option) (*Bridge, error) {
	if err := validPaginator(src.Paginator); err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	base, err := url.Parse(strings.TrimSuffix(src.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("source %s: base url: %w", src.Name, err)
	}

	limit := rate.Inf
	if src.RatePerSecond > 0 {
		limit = rate.Limit(src.RatePerSecond)
	}

	b := &Bridge{
		source:            src,
		store:             store,
		base:              base,
		limiter:           rate.NewLimiter(limit, 1),
		uniquingAttribute: domain.DefaultUniquingAttribute,
		log:               logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tokens == nil && src.Token != "" {
		b.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: src.Token})
	}
	if b.client == nil {
		b.client = newHTTPClient(b.tokens)
	}
	return b, nil
}

func newHTTPClient(ts oauth2.TokenSource) *http.Client {
	if ts == nil {
		return &http.Client{Timeout: DefaultTimeout}
	}
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultTimeout
	return tc
}

// userInfo is the per-part state. entity is the entity the current
// records belong to.
type userInfo struct {
	entity *domain.Entity
}

// NewUserInfo returns an empty user info.
func (b *Bridge) NewUserInfo() any {
	return &userInfo{}
}

// mapping returns the mapping of entity or its closest mapped ancestor.
func (b *Bridge) mapping(entity *domain.Entity) (domain.EntityMapping, bool) {
	for e := entity; e != nil; e = e.Super() {
		if m, ok := b.source.Mappings[e.Name]; ok {
			return m, true
		}
	}
	return domain.EntityMapping{}, false
}

func keyField(m domain.EntityMapping) string {
	if m.Key != "" {
		return m.Key
	}
	return defaultKeyField
}

// ExpectedEntityForFetch returns the fetched entity if it is mapped.
func (b *Bridge) ExpectedEntityForFetch(req *domain.FetchRequest, _ any) *domain.Entity {
	if req == nil {
		return nil
	}
	if _, ok := b.mapping(req.Entity); !ok {
		return nil
	}
	return req.Entity
}

// ExpectedEntityForObject returns the entity of obj if it is mapped.
func (b *Bridge) ExpectedEntityForObject(obj domain.Object, _ any) *domain.Entity {
	if obj == nil {
		return nil
	}
	if _, ok := b.mapping(obj.Entity()); !ok {
		return nil
	}
	return obj.Entity()
}

// FetchOperation prepares a GET of the collection. info may be a *PageInfo
// selecting the page.
func (b *Bridge) FetchOperation(req *domain.FetchRequest, info any, ui *any) (driven.BackOperation, error) {
	m, ok := b.mapping(req.Entity)
	if !ok {
		return nil, nil
	}
	setEntity(ui, req.Entity)

	u := b.base.JoinPath(m.Path)
	q := u.Query()
	for _, attr := range slices.Sorted(maps.Keys(req.Predicate)) {
		q.Set(m.RemoteField(attr), fmt.Sprint(req.Predicate[attr]))
	}

	var page *PageInfo
	if b.source.Paginator != PaginatorNone {
		page = &PageInfo{Paginator: b.source.Paginator, Limit: b.pageSize()}
		if requested, ok := info.(*PageInfo); ok && requested != nil {
			*page = *requested
			page.Count, page.LastKey = 0, nil
		}
		page.apply(q)
	}
	u.RawQuery = q.Encode()

	return &operation{
		client:     b.client,
		limiter:    b.limiter,
		method:     http.MethodGet,
		url:        u.String(),
		resultsKey: m.ResultsKey,
		page:       page,
		keyField:   keyField(m),
	}, nil
}

func (b *Bridge) pageSize() int {
	if b.source.PageSize > 0 {
		return b.source.PageSize
	}
	return DefaultPageSize
}

// InsertOperation prepares a POST of the object's attributes.
func (b *Bridge) InsertOperation(obj domain.Object, _ any, ui *any) (driven.BackOperation, error) {
	m, ok := b.mapping(obj.Entity())
	if !ok {
		return nil, nil
	}
	setEntity(ui, obj.Entity())
	return &operation{
		client:  b.client,
		limiter: b.limiter,
		method:  http.MethodPost,
		url:     b.base.JoinPath(m.Path).String(),
		body:    b.body(obj, m),
	}, nil
}

// UpdateOperation prepares a PATCH of the object's attributes.
func (b *Bridge) UpdateOperation(obj domain.Object, _ any, ui *any) (driven.BackOperation, error) {
	m, ok := b.mapping(obj.Entity())
	if !ok {
		return nil, nil
	}
	u, err := b.memberURL(obj, m)
	if err != nil {
		return nil, err
	}
	setEntity(ui, obj.Entity())
	return &operation{
		client:  b.client,
		limiter: b.limiter,
		method:  http.MethodPatch,
		url:     u,
		body:    b.body(obj, m),
	}, nil
}

// DeleteOperation prepares a DELETE of the object.
func (b *Bridge) DeleteOperation(obj domain.Object, _ any, ui *any) (driven.BackOperation, error) {
	m, ok := b.mapping(obj.Entity())
	if !ok {
		return nil, nil
	}
	u, err := b.memberURL(obj, m)
	if err != nil {
		return nil, err
	}
	setEntity(ui, obj.Entity())
	return &operation{
		client:  b.client,
		limiter: b.limiter,
		method:  http.MethodDelete,
		url:     u,
	}, nil
}

func (b *Bridge) memberURL(obj domain.Object, m domain.EntityMapping) (string, error) {
	attr := obj.Entity().UniquingKeyAttribute(b.uniquingAttribute)
	key, ok := b.store.Value(obj, attr)
	if !ok || key == nil {
		return "", fmt.Errorf("%s: %w", b.store.ObjectID(obj), ErrNoRemoteKey)
	}
	return b.base.JoinPath(m.Path, fmt.Sprint(key)).String(), nil
}

// body renders the set attributes of obj under their remote names. The
// uniquing attribute is left to the remote side.
func (b *Bridge) body(obj domain.Object, m domain.EntityMapping) Record {
	entity := obj.Entity()
	keyAttr := entity.UniquingKeyAttribute(b.uniquingAttribute)
	body := make(Record)
	for _, attr := range entity.AllAttributes() {
		if attr == keyAttr {
			continue
		}
		if v, ok := b.store.Value(obj, attr); ok {
			body[m.RemoteField(attr)] = v
		}
	}
	return body
}

func setEntity(ui *any, entity *domain.Entity) {
	if ui == nil {
		return
	}
	if info, ok := (*ui).(*userInfo); ok {
		info.entity = entity
		return
	}
	*ui = &userInfo{entity: entity}
}

// OperationError returns the error of a finished operation.
func (b *Bridge) OperationError(op driven.BackOperation) error {
	o, ok := op.(*operation)
	if !ok {
		return fmt.Errorf("rest: foreign operation %T", op)
	}
	return o.err
}

// OperationUserInfo returns ui unchanged.
func (b *Bridge) OperationUserInfo(_ driven.BackOperation, ui any) any {
	return ui
}

// OperationMetadata returns the page of a fetch.
func (b *Bridge) OperationMetadata(op driven.BackOperation, _ any) *PageInfo {
	o, ok := op.(*operation)
	if !ok || o.page == nil {
		return nil
	}
	page := *o.page
	return &page
}

// OperationRepresentations returns the decoded records. Deletes have none.
func (b *Bridge) OperationRepresentations(op driven.BackOperation, _ any) ([]Record, bool) {
	o, ok := op.(*operation)
	if !ok || !o.decoded {
		return nil, false
	}
	return o.records, true
}

// MixedRepresentation maps a record onto expected using the entity mapping.
func (b *Bridge) MixedRepresentation(rec Record, expected *domain.Entity, _ any) (*domain.MixedRepresentation[any], error) {
	if expected == nil {
		return nil, nil
	}
	m, _ := b.mapping(expected)

	values := make(map[string]any)
	for _, attr := range expected.AllAttributes() {
		if v, ok := rec[m.RemoteField(attr)]; ok {
			values[attr] = v
		}
	}
	for _, rel := range expected.AllRelationships() {
		field := rel.Name
		if rm, ok := m.Relationships[rel.Name]; ok && rm.Field != "" {
			field = rm.Field
		}
		if v, ok := rec[field]; ok {
			values[rel.Name] = v
		}
	}

	key := normalize(rec[keyField(m)])
	if key != nil {
		values[expected.UniquingKeyAttribute(b.uniquingAttribute)] = key
	}
	return domain.NewMixedRepresentation(expected, key, values), nil
}

// SubUserInfo records the destination entity of the relationship.
func (b *Bridge) SubUserInfo(relationship string, entity *domain.Entity, _ any) any {
	info := &userInfo{}
	if rel, ok := entity.Relationship(relationship); ok {
		info.entity = rel.DestinationEntity()
	}
	return info
}

// RelationshipMetadata is always nil.
func (b *Bridge) RelationshipMetadata(any, any) *PageInfo {
	return nil
}

// RelationshipRepresentations turns a relationship value into records.
// Scalars are references by key.
func (b *Bridge) RelationshipRepresentations(raw any, ui any) ([]Record, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return []Record{v}, true
	case []any:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			out = append(out, b.reference(item, ui))
		}
		return out, true
	default:
		return []Record{b.reference(v, ui)}, true
	}
}

func (b *Bridge) reference(v any, ui any) Record {
	if rec, ok := v.(map[string]any); ok {
		return rec
	}
	field := defaultKeyField
	if info, ok := ui.(*userInfo); ok && info.entity != nil {
		if m, ok := b.mapping(info.entity); ok {
			field = keyField(m)
		}
	}
	return Record{field: v}
}

// RelationshipMergeType returns the configured merge type, replace by
// default.
func (b *Bridge) RelationshipMergeType(relationship string, entity *domain.Entity) domain.MergeType {
	m, ok := b.mapping(entity)
	if !ok {
		return domain.MergeReplace
	}
	rm, ok := m.Relationships[relationship]
	if !ok {
		return domain.MergeReplace
	}
	mt, err := domain.ParseMergeType(rm.Merge)
	if err != nil {
		b.log.Warn("%s.%s: %v, using replace", entity, relationship, err)
		return domain.MergeReplace
	}
	return mt
}

// NextPage implements driven.Paginator.
func (b *Bridge) NextPage(metadata *PageInfo) (any, bool) {
	if metadata == nil {
		return nil, false
	}
	next, ok := metadata.Next()
	if !ok {
		return nil, false
	}
	return next, true
}
