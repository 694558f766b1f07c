package issuecache

import (
	"context"
	"testing"

	"github.com/michal-palko/smart-claimer/internal/testutil"
)

func TestSession_SwitchingAuthorInvalidates(t *testing.T) {
	tracker := testutil.NewFakeTracker()
	tracker.AddIssue("Jan", fixBug)
	tracker.AddIssue("Eva", review)
	c := newTestCache(tracker)
	s := NewSession(c)
	ctx := context.Background()

	if _, err := s.Resolve(ctx, "Jan", "CARTV-5"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	if _, err := s.Resolve(ctx, "Eva", "CARTV-6"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if s.Author() != "Eva" {
		t.Errorf("Author() = %q, want Eva", s.Author())
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want only Eva's scope", c.Len())
	}

	// Same author keeps the scope.
	s.Use("Eva")
	issues, err := s.Issues(ctx, "Eva", false)
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Key != "CARTV-6" {
		t.Errorf("Issues() = %+v, want CARTV-6", issues)
	}
	if tracker.SearchAssignedCalls != 2 {
		t.Errorf("SearchAssignedCalls = %d, want 2", tracker.SearchAssignedCalls)
	}
}
