package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client wraps the go-github client for one repository.
type Client struct {
	gh       *gh.Client
	owner    string
	repo     string
	throttle *throttle
}

// NewClient creates a client for owner/repo. An empty token makes
// unauthenticated calls; a non-empty baseURL replaces the public API root.
func NewClient(repository, token, baseURL string, ratePerSecond float64) (*Client, error) {
	return newClient(repository, staticTokens(token), baseURL, ratePerSecond)
}

// staticTokens returns nil for an empty token, leaving calls anonymous.
func staticTokens(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func newClient(repository string, tokens oauth2.TokenSource, baseURL string, ratePerSecond float64) (*Client, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("github: repository %q must be owner/name", repository)
	}

	httpClient := &http.Client{Timeout: DefaultTimeout}
	if tokens != nil {
		httpClient = oauth2.NewClient(context.Background(), tokens)
		httpClient.Timeout = DefaultTimeout
	}

	client := gh.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Client{
		gh:       client,
		owner:    owner,
		repo:     repo,
		throttle: newThrottle(ratePerSecond),
	}, nil
}

// Repository returns owner/name.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// Quota returns the quota reported by the last response.
func (c *Client) Quota() Quota {
	return c.throttle.current()
}

// ListIssues lists one page of issues, pull requests included.
func (c *Client) ListIssues(ctx context.Context, opts *gh.IssueListByRepoOptions) ([]*gh.Issue, *gh.Response, error) {
	return call(ctx, c, "list issues", func(ctx context.Context) ([]*gh.Issue, *gh.Response, error) {
		return c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	})
}

// ListLabels lists one page of labels.
func (c *Client) ListLabels(ctx context.Context, opts *gh.ListOptions) ([]*gh.Label, *gh.Response, error) {
	return call(ctx, c, "list labels", func(ctx context.Context) ([]*gh.Label, *gh.Response, error) {
		return c.gh.Issues.ListLabels(ctx, c.owner, c.repo, opts)
	})
}

// CreateIssue opens an issue.
func (c *Client) CreateIssue(ctx context.Context, req *gh.IssueRequest) (*gh.Issue, error) {
	issue, _, err := call(ctx, c, "create issue", func(ctx context.Context) (*gh.Issue, *gh.Response, error) {
		return c.gh.Issues.Create(ctx, c.owner, c.repo, req)
	})
	return issue, err
}

// EditIssue edits the issue with the given number.
func (c *Client) EditIssue(ctx context.Context, number int, req *gh.IssueRequest) (*gh.Issue, error) {
	issue, _, err := call(ctx, c, "edit issue", func(ctx context.Context) (*gh.Issue, *gh.Response, error) {
		return c.gh.Issues.Edit(ctx, c.owner, c.repo, number, req)
	})
	return issue, err
}

// CreateLabel creates a label.
func (c *Client) CreateLabel(ctx context.Context, label *gh.Label) (*gh.Label, error) {
	created, _, err := call(ctx, c, "create label", func(ctx context.Context) (*gh.Label, *gh.Response, error) {
		return c.gh.Issues.CreateLabel(ctx, c.owner, c.repo, label)
	})
	return created, err
}

// EditLabel edits the label currently named name.
func (c *Client) EditLabel(ctx context.Context, name string, label *gh.Label) (*gh.Label, error) {
	edited, _, err := call(ctx, c, "edit label", func(ctx context.Context) (*gh.Label, *gh.Response, error) {
		return c.gh.Issues.EditLabel(ctx, c.owner, c.repo, name, label)
	})
	return edited, err
}

// DeleteLabel deletes the label named name.
func (c *Client) DeleteLabel(ctx context.Context, name string) error {
	_, _, err := call(ctx, c, "delete label", func(ctx context.Context) (struct{}, *gh.Response, error) {
		resp, err := c.gh.Issues.DeleteLabel(ctx, c.owner, c.repo, name)
		return struct{}{}, resp, err
	})
	return err
}

// call waits for the throttle, runs fn and records the reported quota.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, *gh.Response, error)) (T, *gh.Response, error) {
	var zero T
	if err := c.throttle.wait(ctx); err != nil {
		return zero, nil, err
	}
	v, resp, err := fn(ctx)
	c.throttle.observe(resp)
	if err != nil {
		return zero, resp, newCallError(op, err)
	}
	return v, resp, nil
}

func newCallError(op string, err error) *CallError {
	ce := &CallError{Op: op, err: err}

	var limited *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	var resp *gh.ErrorResponse
	switch {
	case errors.As(err, &limited):
		ce.RetryAt = limited.Rate.Reset.Time
		ce.Message = limited.Message
	case errors.As(err, &abuse):
		ce.RetryAt = time.Now()
		if abuse.RetryAfter != nil {
			ce.RetryAt = ce.RetryAt.Add(*abuse.RetryAfter)
		}
		ce.Message = abuse.Message
	case errors.As(err, &resp):
		ce.Message = resp.Message
		if resp.Response != nil {
			ce.Status = resp.Response.StatusCode
		}
	}
	return ce
}
