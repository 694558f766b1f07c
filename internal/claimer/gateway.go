package claimer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/michal-palko/smart-claimer/internal/model"
)

// rejectionMarkers identify CRM failures caused by bad input rather than by the service.
var rejectionMarkers = []string{
	"User with login",
	"No uloha found for epic tag",
}

// ImportResult summarises an import run.
type ImportResult struct {
	Imported   int
	Skipped    int
	TotalFound int
}

// SubmitEntry pushes one local entry to MetaApp at most once.
//
// An entry that already carries an external id is rejected before any remote
// call. On remote failure the entry is left unchanged. On success the external
// id and submission timestamp are written together in one conditional update.
func (s *Service) SubmitEntry(ctx context.Context, id int64) (*model.TimeEntry, error) {
	if s.crm == nil {
		return nil, &RemoteError{Service: "metaapp", Detail: "MetaApp is not configured"}
	}

	unlock := s.submits.Lock(id)
	defer unlock()

	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsSubmitted() {
		return nil, &AlreadySubmittedError{EntryID: id, ExternalID: *entry.MetaappVykazID}
	}

	start := s.clock.Now()
	vykazID, err := s.crm.InsertEntry(ctx, entry)
	if err != nil {
		rerr := asRemoteError("metaapp", err)
		s.logger.Error("metaapp submission failed", "id", id, "error", err)
		return nil, rerr
	}

	marked, err := s.database.MarkSubmitted(ctx, id, vykazID, s.clock.Now())
	if err != nil {
		s.logger.Error("recording submission failed; MetaApp row exists without a local reference",
			"id", id, "vykaz_id", vykazID, "error", err)
		return nil, fmt.Errorf("recording submission of entry %d: %w", id, err)
	}
	if !marked {
		s.logger.Error("entry changed during submission; MetaApp may hold a duplicate row",
			"id", id, "vykaz_id", vykazID)
		return nil, &AlreadySubmittedError{EntryID: id, ExternalID: vykazID}
	}

	s.logger.Info("entry submitted to metaapp", "id", id, "vykaz_id", vykazID, "took", s.clock.Now().Sub(start))
	return s.GetEntry(ctx, id)
}

// ImportFromExternal pulls MetaApp records owned by author into the local store.
// Records are deduplicated by external id, so repeated runs import nothing new.
func (s *Service) ImportFromExternal(ctx context.Context, author string) (*ImportResult, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return nil, &ValidationError{Field: "autor", Reason: "author is required"}
	}
	if s.crm == nil {
		return nil, &RemoteError{Service: "metaapp", Detail: "MetaApp is not configured"}
	}

	records, err := s.crm.ListEntries(ctx, author)
	if err != nil {
		s.logger.Error("metaapp export read failed", "autor", author, "error", err)
		return nil, asRemoteError("metaapp", err)
	}
	result := &ImportResult{TotalFound: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.VykazID)
	}
	known, err := s.database.FindExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("checking imported ids: %w", err)
	}

	now := s.clock.Now()
	seen := make(map[int64]bool, len(records))
	var fresh []*model.TimeEntry
	for _, r := range records {
		if known[r.VykazID] || seen[r.VykazID] {
			result.Skipped++
			continue
		}
		seen[r.VykazID] = true
		entry := importedEntry(r, now)
		if err := ValidateDuration(entry.Hodiny, entry.Minuty); err != nil {
			s.logger.Warn("skipping metaapp record with invalid duration", "vykaz_id", r.VykazID, "error", err)
			result.Skipped++
			continue
		}
		fresh = append(fresh, entry)
	}

	inserted, err := s.database.InsertImported(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("inserting imported entries: %w", err)
	}
	// Rows lost to a concurrent import count as skipped.
	result.Imported = inserted
	result.Skipped += len(fresh) - inserted

	s.logger.Info("metaapp import finished",
		"autor", author, "found", result.TotalFound, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ListCRMTasks returns the MetaApp tasks an author may book against.
func (s *Service) ListCRMTasks(ctx context.Context, author string) ([]model.CRMTask, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return nil, &ValidationError{Field: "autor", Reason: "author is required"}
	}
	if s.crm == nil {
		return nil, &RemoteError{Service: "metaapp", Detail: "MetaApp is not configured"}
	}
	tasks, err := s.crm.ListTasks(ctx, author)
	if err != nil {
		return nil, asRemoteError("metaapp", err)
	}
	return tasks, nil
}

// importedEntry mirrors an external record as an already-submitted local entry.
func importedEntry(r model.ExternalEntry, now time.Time) *model.TimeEntry {
	vykazID := r.VykazID
	submittedAt := now
	// MetaApp does not cap minutes; carry overflow into hours.
	hodiny, minuty := r.Hodiny, r.Minuty
	if minuty > 59 {
		hodiny += minuty / 60
		minuty %= 60
	}
	return &model.TimeEntry{
		Uloha:                deref(r.Uloha),
		Autor:                r.Autor,
		Datum:                civilDay(r.Datum),
		Hodiny:               hodiny,
		Minuty:               minuty,
		Jira:                 optional(strings.TrimSpace(deref(r.Jira))),
		Popis:                optional(deref(r.Popis)),
		SubmittedToMetaappAt: &submittedAt,
		MetaappVykazID:       &vykazID,
	}
}

// asRemoteError wraps a collaborator failure, keeping the upstream message verbatim.
func asRemoteError(service string, err error) error {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		if !rerr.Rejected && isRejection(rerr.Detail) {
			cp := *rerr
			cp.Rejected = true
			return &cp
		}
		return rerr
	}
	detail := err.Error()
	return &RemoteError{Service: service, Rejected: isRejection(detail), Detail: detail, Err: err}
}

func isRejection(detail string) bool {
	for _, marker := range rejectionMarkers {
		if strings.Contains(detail, marker) {
			return true
		}
	}
	return false
}
