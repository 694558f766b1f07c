package metaapp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

// MemoryCRM is an in-process MetaApp used for local development and demos.
// It applies the same checks the stored function does: the login must be
// known and every entry needs a task code.
type MemoryCRM struct {
	mu      sync.Mutex
	users   map[string]bool
	tasks   []model.CRMTask
	records []model.ExternalEntry
	nextID  int64
}

var _ claimer.CRM = (*MemoryCRM)(nil)

// NewMemoryCRM creates an empty CRM. With no users registered every login is accepted.
func NewMemoryCRM() *MemoryCRM {
	return &MemoryCRM{users: make(map[string]bool), nextID: 1}
}

// AddUser registers a login.
func (m *MemoryCRM) AddUser(login string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[login] = true
}

// AddTask assigns a task to its login.
func (m *MemoryCRM) AddTask(task model.CRMTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *MemoryCRM) InsertEntry(ctx context.Context, entry *model.TimeEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.users) > 0 && !m.users[entry.Autor] {
		return 0, &claimer.RemoteError{Service: "metaapp", Detail: fmt.Sprintf("User with login %s not found", entry.Autor)}
	}
	if entry.Uloha == "" {
		return 0, &claimer.RemoteError{Service: "metaapp", Detail: "No uloha found for epic tag"}
	}

	id := m.nextID
	m.nextID++
	uloha := entry.Uloha
	m.records = append(m.records, model.ExternalEntry{
		VykazID: id,
		Autor:   entry.Autor,
		Datum:   entry.Datum,
		Hodiny:  entry.Hodiny,
		Minuty:  entry.Minuty,
		Jira:    entry.Jira,
		Popis:   entry.Popis,
		Uloha:   &uloha,
	})
	return id, nil
}

func (m *MemoryCRM) ListEntries(ctx context.Context, author string) ([]model.ExternalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.ExternalEntry
	for _, r := range m.records {
		if r.Autor == author {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Datum.After(out[j].Datum) })
	return out, nil
}

func (m *MemoryCRM) ListTasks(ctx context.Context, author string) ([]model.CRMTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.CRMTask
	for _, t := range m.tasks {
		if t.Login == author {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryCRM) Ping(context.Context) error { return nil }

func (m *MemoryCRM) Close() error { return nil }
