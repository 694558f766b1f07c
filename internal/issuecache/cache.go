// Package issuecache is the JIRA Metadata Cache: an author-scoped, time-bounded
// read-through view of the issues relevant to each author, with an unscoped
// key search as fallback.
package issuecache

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

// issueKeyPattern matches codes that look like real JIRA keys. Only these
// justify forcing a refresh of a cached scope.
var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`)

// Options configures a Cache. Zero values select defaults.
type Options struct {
	TTL     time.Duration // how long an author's scope stays fresh
	Size    int           // maximum number of author scopes kept
	Timeout time.Duration // bound on every upstream call
}

const (
	defaultTTL     = 5 * time.Minute
	defaultSize    = 64
	defaultTimeout = 10 * time.Second
)

// scope is the set of issues fetched for one author. missed holds keys that
// were looked up and absent; they never force another refresh of this scope.
type scope struct {
	issues    []model.IssueMeta
	byKey     map[string]model.IssueMeta
	fetchedAt time.Time

	mu     sync.Mutex
	missed map[string]struct{}
}

func (s *scope) markMissed(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missed == nil {
		s.missed = make(map[string]struct{})
	}
	s.missed[key] = struct{}{}
}

func (s *scope) wasMissed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.missed[key]
	return ok
}

func newScope(issues []model.IssueMeta, at time.Time) *scope {
	byKey := make(map[string]model.IssueMeta, len(issues))
	for _, issue := range issues {
		byKey[issue.Key] = issue
	}
	return &scope{issues: issues, byKey: byKey, fetchedAt: at}
}

// Cache resolves codes against the tracker. Safe for concurrent use.
type Cache struct {
	tracker claimer.IssueTracker
	scopes  *expirable.LRU[string, *scope]
	fills   singleflight.Group
	timeout time.Duration
	logger  claimer.Logger
	clock   claimer.Clock
}

// New creates a Cache in front of tracker.
func New(tracker claimer.IssueTracker, opts Options, logger claimer.Logger, clock claimer.Clock) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Size <= 0 {
		opts.Size = defaultSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	if clock == nil {
		clock = claimer.RealClock{}
	}
	return &Cache{
		tracker: tracker,
		scopes:  expirable.NewLRU[string, *scope](opts.Size, nil, opts.TTL),
		timeout: opts.Timeout,
		logger:  logger,
		clock:   clock,
	}
}

// Resolve maps code to issue metadata. The author's scope is consulted first,
// refreshed once if a plausible key is missing from a cached scope, and the
// unscoped key search is the last resort. A key missing from a scope refreshes
// it at most once until the scope expires. Every failure degrades to a
// *claimer.NotFoundError.
func (c *Cache) Resolve(ctx context.Context, author, code string) (*model.IssueMeta, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &claimer.NotFoundError{Kind: "issue", Key: code}
	}

	sc, cached, err := c.scope(ctx, author, false)
	if err != nil {
		c.logger.Warn("jira scope fetch failed", "autor", author, "error", err)
	} else if issue, ok := sc.byKey[code]; ok {
		return &issue, nil
	}

	if err == nil && cached && issueKeyPattern.MatchString(code) && !sc.wasMissed(code) {
		c.logger.Debug("code missing from cached scope, refreshing", "autor", author, "code", code)
		sc, _, err = c.scope(ctx, author, true)
		if err != nil {
			c.logger.Warn("jira scope refresh failed", "autor", author, "error", err)
		} else if issue, ok := sc.byKey[code]; ok {
			return &issue, nil
		}
	}
	if err == nil {
		sc.markMissed(code)
	}

	issue, err := c.searchKey(ctx, code)
	if err != nil {
		c.logger.Warn("jira key search failed", "code", code, "error", err)
		return nil, &claimer.NotFoundError{Kind: "issue", Key: code, Err: err}
	}
	if issue == nil {
		return nil, &claimer.NotFoundError{Kind: "issue", Key: code}
	}
	return issue, nil
}

// FetchParent always asks the tracker; parent links are never cached.
func (c *Cache) FetchParent(ctx context.Context, key string) (*model.ParentRef, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parent, err := c.tracker.Parent(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching parent of %s: %w", key, err)
	}
	return parent, nil
}

// Issues returns the author's scope, fetching it when absent, expired or
// when refresh is set.
func (c *Cache) Issues(ctx context.Context, author string, refresh bool) ([]model.IssueMeta, error) {
	sc, _, err := c.scope(ctx, author, refresh)
	if err != nil {
		return nil, err
	}
	return sc.issues, nil
}

// Invalidate discards the author's scope.
func (c *Cache) Invalidate(author string) {
	c.scopes.Remove(author)
}

// Len returns the number of author scopes currently held.
func (c *Cache) Len() int {
	return c.scopes.Len()
}

// scope returns the author's issues and whether they came from the cache.
// Concurrent fills for the same author share one upstream call.
func (c *Cache) scope(ctx context.Context, author string, refresh bool) (*scope, bool, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return newScope(nil, c.clock.Now()), false, nil
	}
	if !refresh {
		if sc, ok := c.scopes.Get(author); ok {
			return sc, true, nil
		}
	}

	v, err, _ := c.fills.Do(author, func() (any, error) {
		// The fill outlives a single caller's cancellation but not the timeout.
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		start := c.clock.Now()
		issues, err := c.tracker.SearchAssigned(fillCtx, author)
		if err != nil {
			return nil, err
		}
		sc := newScope(issues, c.clock.Now())
		c.scopes.Add(author, sc)
		c.logger.Debug("jira scope loaded", "autor", author, "issues", len(issues), "took", c.clock.Now().Sub(start))
		return sc, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("loading issues for %s: %w", author, err)
	}
	return v.(*scope), false, nil
}

func (c *Cache) searchKey(ctx context.Context, key string) (*model.IssueMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.tracker.SearchKey(ctx, key)
}

var _ claimer.IssueResolver = (*Cache)(nil)
