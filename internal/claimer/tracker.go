package claimer

import (
	"context"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// IssueTracker is the JIRA collaborator.
type IssueTracker interface {
	// SearchAssigned returns recently updated issues assigned to author.
	SearchAssigned(ctx context.Context, author string) ([]model.IssueMeta, error)

	// SearchKey looks an issue up by key regardless of assignee or status.
	// Returns nil, nil when no such issue exists.
	SearchKey(ctx context.Context, key string) (*model.IssueMeta, error)

	// Parent returns the parent of the issue, or nil, nil when it has none.
	Parent(ctx context.Context, key string) (*model.ParentRef, error)

	// IssueDetails returns the expanded issue, or nil, nil when it does not exist.
	IssueDetails(ctx context.Context, key string) (*model.IssueDetails, error)
}

// IssueResolver resolves task and JIRA codes for the reconciler.
// Implementations never fail with transport errors: anything that cannot be
// resolved is reported as a *NotFoundError.
type IssueResolver interface {
	// Resolve maps a code to its issue metadata using the author's view first.
	Resolve(ctx context.Context, author, code string) (*model.IssueMeta, error)

	// FetchParent returns the current parent of key, bypassing any cache.
	// Returns nil, nil when there is no parent or it cannot be determined.
	FetchParent(ctx context.Context, key string) (*model.ParentRef, error)
}
