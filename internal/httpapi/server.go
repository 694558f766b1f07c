// Package httpapi exposes the claimer service as the JSON API used by the
// browser entry form.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/michal-palko/smart-claimer/internal/assist"
	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

// RefreshHeader tells the form to reload its entry list after a write.
const RefreshHeader = "X-Refresh-Entries"

// IssueLister returns the issues assigned to an author.
type IssueLister interface {
	Issues(ctx context.Context, author string, refresh bool) ([]model.IssueMeta, error)
}

// Assistant completes chat requests.
type Assistant interface {
	Chat(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// Deps are the collaborators of a Server. Issues, Tracker and Assistant may be
// nil when the matching integration is not configured.
type Deps struct {
	Service   *claimer.Service
	Issues    IssueLister
	Tracker   claimer.IssueTracker
	Assistant Assistant
	Frontend  assist.FrontendConfig
	Logger    claimer.Logger
}

type Server struct {
	svc       *claimer.Service
	issues    IssueLister
	tracker   claimer.IssueTracker
	assistant Assistant
	frontend  assist.FrontendConfig
	logger    claimer.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	return &Server{
		svc:       deps.Service,
		issues:    deps.Issues,
		tracker:   deps.Tracker,
		assistant: deps.Assistant,
		frontend:  deps.Frontend,
		logger:    logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/config", s.getConfig)

	r.Route("/time-entries", func(r chi.Router) {
		r.Get("/", s.listEntries)
		r.Post("/", s.createEntry)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getEntry)
			r.Put("/", s.editEntry)
			r.Delete("/", s.deleteEntry)
			r.Post("/duplicate", s.duplicateEntry)
			r.Post("/submit-to-metaapp", s.submitEntry)
		})
	})
	r.Post("/import-from-metaapp", s.importEntries)
	r.Get("/metaapp-tasks", s.listTasks)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.listTemplates)
		r.Post("/", s.createTemplate)
		r.Delete("/{id}", s.deleteTemplate)
	})

	r.Get("/jira-issues", s.listIssues)
	r.Get("/api/validate-jira", s.validateIssue)
	r.Get("/jira-issue-details/{key}", s.issueDetails)
	r.Get("/api/jira/{key}", s.issueDetails)

	r.Post(assist.ProxyPath, s.chat)
	return r
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		args := []any{"request_id", id, "method", r.Method, "path", r.URL.Path, "status", status, "duration", time.Since(start)}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", args...)
			return
		}
		s.logger.Info("request", args...)
	})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.frontend)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: assist.ErrNotConfigured.Error()})
		return
	}
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid JSON body"})
		return
	}
	out, err := s.assistant.Chat(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
