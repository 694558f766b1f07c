package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

// FakeTracker is an in-memory claimer.IssueTracker.
// Assigned maps an author to the issue keys assigned to them.
type FakeTracker struct {
	mu       sync.Mutex
	issues   map[string]model.IssueMeta
	assigned map[string][]string
	details  map[string]model.IssueDetails

	// Err, when set, is returned by every call.
	Err error
	// Delay is slept (respecting ctx) before every call.
	Delay time.Duration

	SearchAssignedCalls int
	SearchKeyCalls      int
	ParentCalls         int
}

func NewFakeTracker() *FakeTracker {
	return &FakeTracker{
		issues:   make(map[string]model.IssueMeta),
		assigned: make(map[string][]string),
		details:  make(map[string]model.IssueDetails),
	}
}

// AddIssue registers issue and, when author is non-empty, assigns it to author.
func (f *FakeTracker) AddIssue(author string, issue model.IssueMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[issue.Key] = issue
	if author != "" {
		f.assigned[author] = append(f.assigned[author], issue.Key)
	}
}

// AddDetails registers the expanded view of an issue.
func (f *FakeTracker) AddDetails(d model.IssueDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.Key] = d
}

func (f *FakeTracker) SearchAssigned(ctx context.Context, author string) ([]model.IssueMeta, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchAssignedCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	var out []model.IssueMeta
	for _, key := range f.assigned[author] {
		out = append(out, f.issues[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *FakeTracker) SearchKey(ctx context.Context, key string) (*model.IssueMeta, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SearchKeyCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, nil
	}
	return &issue, nil
}

func (f *FakeTracker) Parent(ctx context.Context, key string) (*model.ParentRef, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ParentCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	issue, ok := f.issues[key]
	if !ok || issue.ParentKey == "" {
		return nil, nil
	}
	return &model.ParentRef{Key: issue.ParentKey, Summary: issue.ParentSummary}, nil
}

func (f *FakeTracker) IssueDetails(ctx context.Context, key string) (*model.IssueDetails, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	d, ok := f.details[key]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *FakeTracker) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ claimer.IssueTracker = (*FakeTracker)(nil)

// FakeResolver is a claimer.IssueResolver backed by fixed maps.
type FakeResolver struct {
	mu      sync.Mutex
	Issues  map[string]model.IssueMeta
	Parents map[string]model.ParentRef

	// ParentErr, when set, is returned by FetchParent.
	ParentErr error

	ResolveCalls     int
	FetchParentCalls int
}

func NewFakeResolver(issues ...model.IssueMeta) *FakeResolver {
	r := &FakeResolver{
		Issues:  make(map[string]model.IssueMeta),
		Parents: make(map[string]model.ParentRef),
	}
	for _, issue := range issues {
		r.Issues[issue.Key] = issue
		if issue.ParentKey != "" {
			r.Parents[issue.Key] = model.ParentRef{Key: issue.ParentKey, Summary: issue.ParentSummary}
		}
	}
	return r
}

func (r *FakeResolver) Resolve(_ context.Context, _, code string) (*model.IssueMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResolveCalls++
	issue, ok := r.Issues[code]
	if !ok {
		return nil, &claimer.NotFoundError{Kind: "issue", Key: code}
	}
	return &issue, nil
}

func (r *FakeResolver) FetchParent(_ context.Context, key string) (*model.ParentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FetchParentCalls++
	if r.ParentErr != nil {
		return nil, r.ParentErr
	}
	parent, ok := r.Parents[key]
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

var _ claimer.IssueResolver = (*FakeResolver)(nil)

// ErrFakeCRM is the default failure injected into FakeCRM.
var ErrFakeCRM = errors.New("metaapp unavailable")

// FakeCRM is an in-memory claimer.CRM that records every call.
type FakeCRM struct {
	mu      sync.Mutex
	nextID  int64
	Records []model.ExternalEntry
	Tasks   []model.CRMTask

	// InsertErr and ListErr, when set, fail the respective calls.
	InsertErr error
	ListErr   error
	// BeforeInsert runs inside InsertEntry before the record is stored.
	BeforeInsert func()

	InsertCalls int
	ListCalls   int
}

func NewFakeCRM() *FakeCRM {
	return &FakeCRM{nextID: 1000}
}

// AddRecord stores an externally-owned record and returns its id.
func (f *FakeCRM) AddRecord(r model.ExternalEntry) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.VykazID == 0 {
		f.nextID++
		r.VykazID = f.nextID
	}
	f.Records = append(f.Records, r)
	return r.VykazID
}

func (f *FakeCRM) InsertEntry(_ context.Context, entry *model.TimeEntry) (int64, error) {
	f.mu.Lock()
	f.InsertCalls++
	hook := f.BeforeInsert
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return 0, f.InsertErr
	}
	f.nextID++
	uloha := entry.Uloha
	f.Records = append(f.Records, model.ExternalEntry{
		VykazID: f.nextID,
		Autor:   entry.Autor,
		Datum:   entry.Datum,
		Hodiny:  entry.Hodiny,
		Minuty:  entry.Minuty,
		Jira:    entry.Jira,
		Popis:   entry.Popis,
		Uloha:   &uloha,
	})
	return f.nextID, nil
}

func (f *FakeCRM) ListEntries(_ context.Context, author string) ([]model.ExternalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []model.ExternalEntry
	for _, r := range f.Records {
		if r.Autor == author {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeCRM) ListTasks(_ context.Context, author string) ([]model.CRMTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []model.CRMTask
	for _, t := range f.Tasks {
		if t.Login == author {
			out = append(out, t)
		}
	}
	return out, nil
}

var _ claimer.CRM = (*FakeCRM)(nil)
