package claimer

import (
	"context"
	"sync"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// Service is the orchestration layer behind the HTTP API and the CLI.
// It owns the Entry Reconciler (create, edit, duplicate) and the External
// Submission Gateway (submit, import).
type Service struct {
	database Database
	resolver IssueResolver
	crm      CRM
	logger   Logger
	clock    Clock
	submits  keyedMutex
}

// NewService creates a new Service with the provided dependencies.
// resolver and crm may be nil when JIRA or MetaApp are not configured.
func NewService(database Database, resolver IssueResolver, crm CRM, logger Logger, clock Clock) *Service {
	if resolver == nil {
		resolver = unresolvable{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		database: database,
		resolver: resolver,
		crm:      crm,
		logger:   logger,
		clock:    clock,
		submits:  keyedMutex{locks: make(map[int64]*keyedLock)},
	}
}

// unresolvable is used when no JIRA connection is configured.
type unresolvable struct{}

func (unresolvable) Resolve(_ context.Context, _, code string) (*model.IssueMeta, error) {
	return nil, &NotFoundError{Kind: "issue", Key: code}
}

func (unresolvable) FetchParent(context.Context, string) (*model.ParentRef, error) {
	return nil, nil
}

// keyedMutex serialises work per entry id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until id is free and returns the matching unlock function.
func (k *keyedMutex) Lock(id int64) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
