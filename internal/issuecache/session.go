package issuecache

import (
	"context"
	"strings"
	"sync"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

// Session binds a Cache to one acting author at a time. Switching author
// discards the previous author's scope. Every lookup names its author, so the
// acting author is whoever made the latest call.
type Session struct {
	cache *Cache

	mu      sync.Mutex
	current string
}

// NewSession creates a Session over cache.
func NewSession(cache *Cache) *Session {
	return &Session{cache: cache}
}

// Use makes author the acting author.
func (s *Session) Use(author string) {
	author = strings.TrimSpace(author)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" && s.current != author {
		s.cache.Invalidate(s.current)
	}
	s.current = author
}

// Author returns the acting author.
func (s *Session) Author() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Resolve switches to author and resolves code through the cache.
func (s *Session) Resolve(ctx context.Context, author, code string) (*model.IssueMeta, error) {
	s.Use(author)
	return s.cache.Resolve(ctx, author, code)
}

func (s *Session) FetchParent(ctx context.Context, key string) (*model.ParentRef, error) {
	return s.cache.FetchParent(ctx, key)
}

// Issues switches to author and returns their scope.
func (s *Session) Issues(ctx context.Context, author string, refresh bool) ([]model.IssueMeta, error) {
	s.Use(author)
	return s.cache.Issues(ctx, author, refresh)
}

var _ claimer.IssueResolver = (*Session)(nil)
