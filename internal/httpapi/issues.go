package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

var errJiraDisabled = &claimer.RemoteError{Service: "jira", Detail: "JIRA is not configured"}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	if s.issues == nil {
		s.writeError(w, r, errJiraDisabled)
		return
	}
	q := r.URL.Query()
	autor := strings.TrimSpace(q.Get("autor"))
	if autor == "" {
		s.writeError(w, r, &claimer.ValidationError{Field: "autor", Reason: "author is required"})
		return
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	issues, err := s.issues.Issues(r.Context(), autor, refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]issueResponse, 0, len(issues))
	for _, m := range issues {
		out = append(out, toIssueResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// validateIssue looks the key up across all issues. Lookup failures are
// reported in the body rather than as an error status.
func (s *Server) validateIssue(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		s.writeError(w, r, &claimer.ValidationError{Field: "key", Reason: "key is required"})
		return
	}
	if s.tracker == nil {
		writeJSON(w, http.StatusOK, validateResponse{Error: errJiraDisabled.Detail})
		return
	}

	issue, err := s.tracker.SearchKey(r.Context(), key)
	if err != nil {
		s.logger.Warn("jira key validation failed", "key", key, "error", err)
		writeJSON(w, http.StatusOK, validateResponse{Error: err.Error()})
		return
	}
	if issue == nil {
		writeJSON(w, http.StatusOK, validateResponse{})
		return
	}
	resp := toIssueResponse(*issue)
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Issue: &resp})
}

func (s *Server) issueDetails(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		s.writeError(w, r, &claimer.ValidationError{Field: "key", Reason: "Issue key is required"})
		return
	}
	if s.tracker == nil {
		s.writeError(w, r, errJiraDisabled)
		return
	}

	details, err := s.tracker.IssueDetails(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if details == nil {
		s.writeError(w, r, &claimer.NotFoundError{Kind: "issue", Key: key})
		return
	}
	writeJSON(w, http.StatusOK, toDetailsResponse(details))
}
