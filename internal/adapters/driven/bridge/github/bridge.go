package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 100

const timeFormat = time.RFC3339

var (
	_ driven.Bridge[Record, any, Page] = (*Bridge)(nil)
	_ driven.Paginator[Page]           = (*Bridge)(nil)
)

// Bridge maps the issues and labels of one repository onto the built-in
// model. Users are only imported through issues.
type Bridge struct {
	client   *Client
	store    driven.Store
	pageSize int
	log      *logger.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	tokens oauth2.TokenSource
}

// WithTokenSource authenticates calls with tokens from ts instead of the
// static source token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) {
		o.tokens = ts
	}
}

// New creates a bridge for a github source. store must be the store the
// source imports into.
func New(src domain.Source, store driven.Store, log *logger.Logger, opts ...Option) (*Bridge, error) {
	o := options{tokens: staticTokens(src.Token)}
	for _, opt := range opts {
		opt(&o)
	}
	client, err := newClient(src.Repository, o.tokens, src.BaseURL, src.RatePerSecond)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	return NewWithClient(client, store, src.PageSize, log), nil
}

// NewWithClient creates a bridge around an existing client.
func NewWithClient(client *Client, store driven.Store, pageSize int, log *logger.Logger) *Bridge {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Bridge{
		client:   client,
		store:    store,
		pageSize: pageSize,
		log:      logger.OrNop(log),
	}
}

// NewUserInfo returns nil; the bridge keeps no per-part state.
func (b *Bridge) NewUserInfo() any {
	return nil
}

func mutable(e *domain.Entity) bool {
	return e != nil && (e.Name == EntityIssue || e.Name == EntityLabel)
}

func (b *Bridge) ExpectedEntityForFetch(req *domain.FetchRequest, _ any) *domain.Entity {
	if req == nil || !mutable(req.Entity) {
		return nil
	}
	return req.Entity
}

func (b *Bridge) ExpectedEntityForObject(obj domain.Object, _ any) *domain.Entity {
	if obj == nil || !mutable(obj.Entity()) {
		return nil
	}
	return obj.Entity()
}

// FetchOperation lists one page. info is the page number; nil means the
// first page. A "state" predicate filters issues, which default to all.
func (b *Bridge) FetchOperation(req *domain.FetchRequest, info any, _ *any) (driven.BackOperation, error) {
	page := 1
	if n, ok := info.(int); ok && n > 0 {
		page = n
	}
	list := gh.ListOptions{Page: page, PerPage: b.pageSize}
	op := &operation{client: b.client, page: page, imports: true}

	switch req.Entity.Name {
	case EntityIssue:
		opts := &gh.IssueListByRepoOptions{State: "all", ListOptions: list}
		if state, ok := req.Predicate["state"]; ok {
			opts.State = fmt.Sprint(state)
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			issues, resp, err := b.client.ListIssues(ctx, opts)
			if err != nil {
				return nil, resp, err
			}
			records := make([]Record, 0, len(issues))
			for _, issue := range issues {
				if issue.IsPullRequest() {
					continue
				}
				records = append(records, Record{Issue: issue})
			}
			return records, resp, nil
		}
	case EntityLabel:
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			labels, resp, err := b.client.ListLabels(ctx, &list)
			if err != nil {
				return nil, resp, err
			}
			records := make([]Record, len(labels))
			for i, label := range labels {
				records[i] = Record{Label: label}
			}
			return records, resp, nil
		}
	default:
		return nil, nil
	}
	return op, nil
}

// InsertOperation opens an issue or creates a label.
func (b *Bridge) InsertOperation(obj domain.Object, _ any, _ *any) (driven.BackOperation, error) {
	op := &operation{client: b.client, imports: true}
	switch obj.Entity().Name {
	case EntityIssue:
		req := b.issueRequest(obj)
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			issue, err := b.client.CreateIssue(ctx, req)
			if err != nil {
				return nil, nil, err
			}
			return []Record{{Issue: issue}}, nil, nil
		}
	case EntityLabel:
		label := b.label(obj)
		if label.GetName() == "" {
			return nil, fmt.Errorf("%s: %w", b.store.ObjectID(obj), ErrNoLabelName)
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			created, err := b.client.CreateLabel(ctx, label)
			if err != nil {
				return nil, nil, err
			}
			return []Record{{Label: created}}, nil, nil
		}
	default:
		return nil, nil
	}
	return op, nil
}

// UpdateOperation edits an issue, or the color and description of a label.
// Labels are addressed by name, so renames are not pushed.
func (b *Bridge) UpdateOperation(obj domain.Object, _ any, _ *any) (driven.BackOperation, error) {
	op := &operation{client: b.client, imports: true}
	switch obj.Entity().Name {
	case EntityIssue:
		number, err := b.number(obj)
		if err != nil {
			return nil, err
		}
		req := b.issueRequest(obj)
		if state, ok := b.str(obj, "state"); ok {
			req.State = gh.Ptr(state)
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			issue, err := b.client.EditIssue(ctx, number, req)
			if err != nil {
				return nil, nil, err
			}
			return []Record{{Issue: issue}}, nil, nil
		}
	case EntityLabel:
		label := b.label(obj)
		if label.GetName() == "" {
			return nil, fmt.Errorf("%s: %w", b.store.ObjectID(obj), ErrNoLabelName)
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			edited, err := b.client.EditLabel(ctx, label.GetName(), label)
			if err != nil {
				return nil, nil, err
			}
			return []Record{{Label: edited}}, nil, nil
		}
	default:
		return nil, nil
	}
	return op, nil
}

// DeleteOperation closes an issue or deletes a label. Issues cannot be
// deleted through the REST API.
func (b *Bridge) DeleteOperation(obj domain.Object, _ any, _ *any) (driven.BackOperation, error) {
	op := &operation{client: b.client}
	switch obj.Entity().Name {
	case EntityIssue:
		number, err := b.number(obj)
		if err != nil {
			return nil, err
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			_, err := b.client.EditIssue(ctx, number, &gh.IssueRequest{State: gh.Ptr("closed")})
			return nil, nil, err
		}
	case EntityLabel:
		name, ok := b.str(obj, "name")
		if !ok || name == "" {
			return nil, fmt.Errorf("%s: %w", b.store.ObjectID(obj), ErrNoLabelName)
		}
		op.call = func(ctx context.Context) ([]Record, *gh.Response, error) {
			err := b.client.DeleteLabel(ctx, name)
			if errors.Is(err, ErrNotFound) {
				b.log.Debug("label %q already gone", name)
				return nil, nil, nil
			}
			return nil, nil, err
		}
	default:
		return nil, nil
	}
	return op, nil
}

func (b *Bridge) issueRequest(obj domain.Object) *gh.IssueRequest {
	req := &gh.IssueRequest{}
	if title, ok := b.str(obj, "title"); ok {
		req.Title = gh.Ptr(title)
	}
	if body, ok := b.str(obj, "body"); ok {
		req.Body = gh.Ptr(body)
	}
	return req
}

func (b *Bridge) label(obj domain.Object) *gh.Label {
	label := &gh.Label{}
	if name, ok := b.str(obj, "name"); ok {
		label.Name = gh.Ptr(name)
	}
	if color, ok := b.str(obj, "color"); ok {
		label.Color = gh.Ptr(color)
	}
	if desc, ok := b.str(obj, "description"); ok {
		label.Description = gh.Ptr(desc)
	}
	return label
}

func (b *Bridge) str(obj domain.Object, attr string) (string, bool) {
	v, ok := b.store.Value(obj, attr)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b *Bridge) number(obj domain.Object) (int, error) {
	v, _ := b.store.Value(obj, "number")
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s: %w", b.store.ObjectID(obj), ErrNoIssueNumber)
	}
}

func (b *Bridge) OperationError(op driven.BackOperation) error {
	o, ok := op.(*operation)
	if !ok {
		return fmt.Errorf("github: foreign operation %T", op)
	}
	return o.err
}

func (b *Bridge) OperationUserInfo(_ driven.BackOperation, ui any) any {
	return ui
}

func (b *Bridge) OperationMetadata(op driven.BackOperation, _ any) *Page {
	o, ok := op.(*operation)
	if !ok {
		return nil
	}
	return o.metadata()
}

func (b *Bridge) OperationRepresentations(op driven.BackOperation, _ any) ([]Record, bool) {
	o, ok := op.(*operation)
	if !ok || !o.imports || o.err != nil {
		return nil, false
	}
	return o.records, true
}

// MixedRepresentation converts a record. Timestamps become RFC 3339
// strings and numbers int64.
func (b *Bridge) MixedRepresentation(rec Record, expected *domain.Entity, _ any) (*domain.MixedRepresentation[any], error) {
	if expected == nil {
		return nil, nil
	}
	switch expected.Name {
	case EntityIssue:
		if rec.Issue == nil {
			return nil, fmt.Errorf("github: expected an issue record")
		}
		return issueRepresentation(expected, rec.Issue), nil
	case EntityUser:
		if rec.User == nil {
			return nil, fmt.Errorf("github: expected a user record")
		}
		return domain.NewMixedRepresentation(expected, rec.User.GetID(), map[string]any{
			UniquingAttribute: rec.User.GetID(),
			"login":           rec.User.GetLogin(),
		}), nil
	case EntityLabel:
		if rec.Label == nil {
			return nil, fmt.Errorf("github: expected a label record")
		}
		values := map[string]any{
			UniquingAttribute: rec.Label.GetID(),
			"name":            rec.Label.GetName(),
			"color":           rec.Label.GetColor(),
		}
		if rec.Label.Description != nil {
			values["description"] = rec.Label.GetDescription()
		}
		return domain.NewMixedRepresentation(expected, rec.Label.GetID(), values), nil
	default:
		return nil, fmt.Errorf("github: unsupported entity %s", expected)
	}
}

func issueRepresentation(entity *domain.Entity, issue *gh.Issue) *domain.MixedRepresentation[any] {
	values := map[string]any{
		UniquingAttribute: issue.GetID(),
		"number":          int64(issue.GetNumber()),
		"title":           issue.GetTitle(),
		"body":            issue.GetBody(),
		"state":           issue.GetState(),
		"url":             issue.GetHTMLURL(),
		"labels":          issue.Labels,
		"assignees":       issue.Assignees,
	}
	if issue.CreatedAt != nil {
		values["createdAt"] = issue.GetCreatedAt().UTC().Format(timeFormat)
	}
	if issue.UpdatedAt != nil {
		values["updatedAt"] = issue.GetUpdatedAt().UTC().Format(timeFormat)
	}
	if issue.User != nil {
		values["author"] = issue.User
	} else {
		values["author"] = nil
	}
	return domain.NewMixedRepresentation(entity, issue.GetID(), values)
}

func (b *Bridge) SubUserInfo(string, *domain.Entity, any) any {
	return nil
}

func (b *Bridge) RelationshipMetadata(any, any) *Page {
	return nil
}

// RelationshipRepresentations wraps users and labels embedded in issues.
func (b *Bridge) RelationshipRepresentations(raw any, _ any) ([]Record, bool) {
	switch v := raw.(type) {
	case *gh.User:
		if v == nil {
			return nil, false
		}
		return []Record{{User: v}}, true
	case []*gh.User:
		records := make([]Record, 0, len(v))
		for _, u := range v {
			if u != nil {
				records = append(records, Record{User: u})
			}
		}
		return records, true
	case []*gh.Label:
		records := make([]Record, 0, len(v))
		for _, l := range v {
			if l != nil {
				records = append(records, Record{Label: l})
			}
		}
		return records, true
	default:
		return nil, false
	}
}

func (b *Bridge) RelationshipMergeType(string, *domain.Entity) domain.MergeType {
	return domain.MergeReplace
}

// NextPage implements driven.Paginator.
func (b *Bridge) NextPage(metadata *Page) (any, bool) {
	if metadata == nil || metadata.Next == 0 {
		return nil, false
	}
	return metadata.Next, true
}
