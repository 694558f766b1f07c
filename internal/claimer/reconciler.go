package claimer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// EntryInput is raw user input for a create, edit or duplicate.
type EntryInput struct {
	Uloha  string
	Autor  string
	Datum  time.Time
	Hodiny int
	Minuty int
	Jira   string
	Popis  string

	// Confirmed acknowledges a date outside the usual window.
	Confirmed bool
}

// resolution is the task code and metadata snapshot derived for a write.
type resolution struct {
	uloha     string
	ulohaName *string
	jiraName  *string
}

// CreateEntry validates input, resolves its JIRA metadata and persists a new entry.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (*model.TimeEntry, error) {
	start := s.clock.Now()
	entry, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	created, err := s.database.CreateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	s.logger.Info("entry created",
		"id", created.ID, "autor", created.Autor, "uloha", created.Uloha,
		"jira", deref(created.Jira), "took", s.clock.Now().Sub(start))
	return created, nil
}

// EditEntry replaces the fields of an existing entry. Only its author may edit it.
// The author and submission state are preserved; an already submitted entry
// stays submitted and the change is not propagated to MetaApp.
func (s *Service) EditEntry(ctx context.Context, actor string, id int64, in EntryInput) (*model.TimeEntry, error) {
	existing, err := s.ownedEntry(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in.Autor = existing.Autor
	entry, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	entry.ID = id

	updated, err := s.database.UpdateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("updating entry: %w", err)
	}
	if updated == nil {
		return nil, &NotFoundError{Kind: "entry", Key: fmt.Sprint(id)}
	}

	if existing.IsSubmitted() {
		s.logger.Warn("edited entry already submitted; MetaApp keeps the old values",
			"id", id, "vykaz_id", *existing.MetaappVykazID)
	}
	s.logger.Info("entry updated", "id", id, "autor", updated.Autor)
	return updated, nil
}

// DuplicateEntry creates a new entry seeded from an existing one. The copy
// gets a fresh id and timestamps and is never marked as submitted.
func (s *Service) DuplicateEntry(ctx context.Context, actor string, id int64, confirmed bool) (*model.TimeEntry, error) {
	existing, err := s.ownedEntry(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	in := SeedFromEntry(existing)
	in.Confirmed = confirmed
	created, err := s.CreateEntry(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("entry duplicated", "source_id", id, "id", created.ID)
	return created, nil
}

// DeleteEntry removes an entry. Only its author may delete it.
func (s *Service) DeleteEntry(ctx context.Context, actor string, id int64) error {
	if _, err := s.ownedEntry(ctx, actor, id); err != nil {
		return err
	}

	deleted, err := s.database.DeleteEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	if !deleted {
		return &NotFoundError{Kind: "entry", Key: fmt.Sprint(id)}
	}

	s.logger.Info("entry deleted", "id", id, "autor", actor)
	return nil
}

// GetEntry returns a single entry.
func (s *Service) GetEntry(ctx context.Context, id int64) (*model.TimeEntry, error) {
	entry, err := s.database.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading entry: %w", err)
	}
	if entry == nil {
		return nil, &NotFoundError{Kind: "entry", Key: fmt.Sprint(id)}
	}
	return entry, nil
}

// ListEntries returns entries newest first.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]*model.TimeEntry, error) {
	entries, err := s.database.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// SeedFromEntry converts an entry back into form input, dropping identity,
// timestamps, snapshots and submission state.
func SeedFromEntry(e *model.TimeEntry) EntryInput {
	return EntryInput{
		Uloha:  e.Uloha,
		Autor:  e.Autor,
		Datum:  e.Datum,
		Hodiny: e.Hodiny,
		Minuty: e.Minuty,
		Jira:   deref(e.Jira),
		Popis:  deref(e.Popis),
	}
}

// ownedEntry loads an entry and checks that actor is its author.
func (s *Service) ownedEntry(ctx context.Context, actor string, id int64) (*model.TimeEntry, error) {
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if res := CanMutate(OwnershipContext{Kind: "entry", ID: id, Owner: existing.Autor, Actor: actor}); !res.Allowed {
		return nil, res.Err
	}
	return existing, nil
}

// prepare runs the validation pipeline and builds the entry to persist.
// Every failure aborts before any write.
func (s *Service) prepare(ctx context.Context, in EntryInput) (*model.TimeEntry, error) {
	jira := strings.TrimSpace(in.Jira)
	uloha := strings.TrimSpace(in.Uloha)
	autor := strings.TrimSpace(in.Autor)

	if err := ValidateDuration(in.Hodiny, in.Minuty); err != nil {
		return nil, err
	}
	if err := ValidateCodes(jira, uloha); err != nil {
		return nil, err
	}
	if autor == "" {
		return nil, &ValidationError{Field: "autor", Reason: "author is required"}
	}
	if in.Datum.IsZero() {
		return nil, &ValidationError{Field: "datum", Reason: "date is required"}
	}

	res, err := s.resolve(ctx, autor, jira, uloha)
	if err != nil {
		return nil, err
	}

	if err := CheckDate(in.Datum, s.clock.Now(), in.Confirmed); err != nil {
		return nil, err
	}

	return &model.TimeEntry{
		Uloha:     res.uloha,
		Autor:     autor,
		Datum:     civilDay(in.Datum),
		Hodiny:    in.Hodiny,
		Minuty:    in.Minuty,
		Jira:      optional(jira),
		Popis:     optional(strings.TrimSpace(in.Popis)),
		JiraName:  res.jiraName,
		UlohaName: res.ulohaName,
	}, nil
}

// resolve derives the task code and snapshots the JIRA metadata.
// Task code precedence: explicit > parent of the resolved JIRA issue > rejected.
func (s *Service) resolve(ctx context.Context, autor, jira, uloha string) (resolution, error) {
	res := resolution{uloha: uloha}

	if jira != "" {
		issue := s.lookup(ctx, autor, jira)
		if issue == nil {
			if uloha == "" {
				return res, &ValidationError{
					Field:  "uloha",
					Reason: fmt.Sprintf("JIRA issue %s could not be resolved; a task code is required", jira),
				}
			}
		} else {
			res.jiraName = optional(issue.Summary)
			if uloha == "" {
				res.uloha, res.ulohaName = s.parentOf(ctx, issue)
			} else {
				res.ulohaName = optional(issue.ParentSummary)
			}
		}
	}

	if res.uloha == "" {
		return res, &ValidationError{
			Field:  "uloha",
			Reason: fmt.Sprintf("JIRA issue %s has no parent task; a task code is required", jira),
		}
	}

	if res.ulohaName == nil && uloha != "" {
		if task := s.lookup(ctx, autor, uloha); task != nil {
			res.ulohaName = optional(task.Summary)
		}
	}
	return res, nil
}

// parentOf fetches the issue's parent fresh, falling back to the parent the
// resolved issue carried when the fresh lookup yields nothing.
func (s *Service) parentOf(ctx context.Context, issue *model.IssueMeta) (string, *string) {
	parent, err := s.resolver.FetchParent(ctx, issue.Key)
	if err != nil {
		s.logger.Warn("parent lookup failed", "jira", issue.Key, "error", err)
	}
	if parent != nil && parent.Key != "" {
		return parent.Key, optional(parent.Summary)
	}
	return issue.ParentKey, optional(issue.ParentSummary)
}

// lookup resolves a code, treating every failure as "not found".
func (s *Service) lookup(ctx context.Context, autor, code string) *model.IssueMeta {
	start := s.clock.Now()
	issue, err := s.resolver.Resolve(ctx, autor, code)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("issue resolution failed", "code", code, "error", err)
		} else {
			s.logger.Debug("issue not resolved", "code", code)
		}
		return nil
	}
	s.logger.Debug("issue resolved", "code", code, "summary", issue.Summary, "took", s.clock.Now().Sub(start))
	return issue
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
