package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/michal-palko/smart-claimer/internal/assist"
	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/config"
	"github.com/michal-palko/smart-claimer/internal/issuecache"
	"github.com/michal-palko/smart-claimer/internal/model"
	"github.com/michal-palko/smart-claimer/internal/testutil"
)

var fixBug = model.IssueMeta{
	Key:           "CARTV-5",
	Summary:       "Fix bug",
	ParentKey:     "CARTV-1",
	ParentSummary: "Epic A",
	SprintName:    "Sprint 7",
}

type stubAssistant struct {
	reply json.RawMessage
	err   error
}

func (a *stubAssistant) Chat(context.Context, json.RawMessage) (json.RawMessage, error) {
	return a.reply, a.err
}

type harness struct {
	srv     *httptest.Server
	tracker *testutil.FakeTracker
	crm     *testutil.FakeCRM
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t, clock)

	tracker := testutil.NewFakeTracker()
	tracker.AddIssue("Jan", fixBug)
	tracker.AddIssue("", model.IssueMeta{Key: "CARTV-1", Summary: "Epic A"})
	tracker.AddDetails(model.IssueDetails{
		Key:      "CARTV-5",
		Summary:  "Fix bug",
		Status:   "In Progress",
		Priority: "High",
		Comments: []model.IssueComment{{ID: "1", Body: "<p>done?</p>", Author: "Eva"}},
		BaseURL:  "https://jira.example.com",
	})
	issues := issuecache.NewSession(issuecache.New(tracker, issuecache.Options{}, nil, clock))
	crm := testutil.NewFakeCRM()

	cfg := config.NewConfig(t.TempDir())
	api := New(Deps{
		Service:   claimer.NewService(db, issues, crm, nil, clock),
		Issues:    issues,
		Tracker:   tracker,
		Assistant: &stubAssistant{reply: json.RawMessage(`{"choices":[]}`)},
		Frontend:  assist.PublicConfig(cfg.OpenAI, cfg.Whisper),
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, tracker: tracker, crm: crm}
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (h *harness) createEntry(t *testing.T, body string) entryResponse {
	t.Helper()
	resp, data := h.do(t, http.MethodPost, "/time-entries", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, data)
	}
	var e entryResponse
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatal(err)
	}
	return e
}

func decodeDetail(t *testing.T, data []byte) errorBody {
	t.Helper()
	var b errorBody
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("error body %s: %v", data, err)
	}
	return b
}

func TestEntries(t *testing.T) {
	t.Run("create derives task from jira parent", func(t *testing.T) {
		h := newHarness(t)
		resp, data := h.do(t, http.MethodPost, "/time-entries",
			`{"autor":"Jan","datum":"2024-01-15","hodiny":"2.5","jira":"CARTV-5","popis":"fixing"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
		}
		if resp.Header.Get(RefreshHeader) != "1" {
			t.Errorf("missing %s header", RefreshHeader)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id")
		}
		var e entryResponse
		json.Unmarshal(data, &e)
		if e.Uloha != "CARTV-1" || e.Hodiny != 2 || e.Minuty != 30 || e.Datum != "2024-01-15" {
			t.Errorf("entry = %+v", e)
		}
		if e.UlohaName == nil || *e.UlohaName != "Epic A" || e.JiraName == nil || *e.JiraName != "Fix bug" {
			t.Errorf("names = %v, %v", e.UlohaName, e.JiraName)
		}
	})

	t.Run("numeric hours are accepted", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1.25,"minuty":0,"uloha":"OPS-1"}`)
		if e.Hodiny != 1 || e.Minuty != 15 {
			t.Errorf("duration = %dh %dm, want 1h 15m", e.Hodiny, e.Minuty)
		}
	})

	t.Run("validation failure is 400", func(t *testing.T) {
		h := newHarness(t)
		resp, data := h.do(t, http.MethodPost, "/time-entries", `{"autor":"Jan","datum":"2024-01-15","uloha":"OPS-1"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, body = %s", resp.StatusCode, data)
		}
	})

	t.Run("old date needs confirmation", func(t *testing.T) {
		h := newHarness(t)
		body := `{"autor":"Jan","datum":"2023-10-02","hodiny":1,"uloha":"OPS-1"%s}`

		resp, data := h.do(t, http.MethodPost, "/time-entries", fmt.Sprintf(body, ""))
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d, want 409", resp.StatusCode)
		}
		if !decodeDetail(t, data).ConfirmationRequired {
			t.Errorf("body = %s, want confirmation_required", data)
		}

		_, list := h.do(t, http.MethodGet, "/time-entries", "")
		if strings.TrimSpace(string(list)) != "[]" {
			t.Errorf("entries = %s, want none before confirmation", list)
		}

		h.createEntry(t, fmt.Sprintf(body, `,"confirmed":true`))
	})

	t.Run("list filters by date range", func(t *testing.T) {
		h := newHarness(t)
		h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)
		h.createEntry(t, `{"autor":"Jan","datum":"2024-01-10","hodiny":1,"uloha":"OPS-1"}`)

		_, data := h.do(t, http.MethodGet, "/time-entries?from=2024-01-12&to=2024-01-31", "")
		var got []entryResponse
		json.Unmarshal(data, &got)
		if len(got) != 1 || got[0].Datum != "2024-01-15" {
			t.Errorf("entries = %s", data)
		}

		resp, _ := h.do(t, http.MethodGet, "/time-entries?from=15.1.2024", "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("bad date status = %d", resp.StatusCode)
		}
	})

	t.Run("edit by another author is 403", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)

		resp, _ := h.do(t, http.MethodPut, fmt.Sprintf("/time-entries/%d", e.ID),
			`{"autor":"Eva","datum":"2024-01-15","hodiny":2,"uloha":"OPS-1"}`)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}

		resp, data := h.do(t, http.MethodPut, fmt.Sprintf("/time-entries/%d", e.ID),
			`{"autor":"Jan","datum":"2024-01-15","hodiny":2,"uloha":"OPS-1"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("owner edit status = %d, body = %s", resp.StatusCode, data)
		}
	})

	t.Run("duplicate and delete", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)

		resp, data := h.do(t, http.MethodPost, fmt.Sprintf("/time-entries/%d/duplicate?autor=Jan", e.ID), "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("duplicate status = %d, body = %s", resp.StatusCode, data)
		}
		var dup entryResponse
		json.Unmarshal(data, &dup)
		if dup.ID == e.ID || dup.Uloha != e.Uloha {
			t.Errorf("duplicate = %+v", dup)
		}

		resp, _ = h.do(t, http.MethodDelete, fmt.Sprintf("/time-entries/%d?autor=Eva", e.ID), "")
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("foreign delete status = %d", resp.StatusCode)
		}
		resp, _ = h.do(t, http.MethodDelete, fmt.Sprintf("/time-entries/%d?autor=Jan", e.ID), "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("delete status = %d", resp.StatusCode)
		}
		resp, _ = h.do(t, http.MethodGet, fmt.Sprintf("/time-entries/%d", e.ID), "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("get deleted status = %d", resp.StatusCode)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		h := newHarness(t)
		resp, _ := h.do(t, http.MethodGet, "/time-entries/abc", "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestSubmitAndImport(t *testing.T) {
	t.Run("submit once", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)
		path := fmt.Sprintf("/time-entries/%d/submit-to-metaapp", e.ID)

		resp, data := h.do(t, http.MethodPost, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
		}
		var got entryResponse
		json.Unmarshal(data, &got)
		if got.MetaappVykazID == nil || got.SubmittedToMetaappAt == nil {
			t.Errorf("entry = %s, want submission fields", data)
		}

		resp, _ = h.do(t, http.MethodPost, path, "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("second submit status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("crm rejection is 400 with upstream text", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)
		h.crm.InsertErr = errors.New("User with login Jan not found")

		resp, data := h.do(t, http.MethodPost, fmt.Sprintf("/time-entries/%d/submit-to-metaapp", e.ID), "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, body = %s", resp.StatusCode, data)
		}
		if d := decodeDetail(t, data).Detail; !strings.Contains(d, "User with login Jan not found") {
			t.Errorf("detail = %q", d)
		}
	})

	t.Run("crm outage is 502", func(t *testing.T) {
		h := newHarness(t)
		e := h.createEntry(t, `{"autor":"Jan","datum":"2024-01-15","hodiny":1,"uloha":"OPS-1"}`)
		h.crm.InsertErr = errors.New("connection reset")

		resp, _ := h.do(t, http.MethodPost, fmt.Sprintf("/time-entries/%d/submit-to-metaapp", e.ID), "")
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})

	t.Run("import is idempotent", func(t *testing.T) {
		h := newHarness(t)
		h.crm.AddRecord(model.ExternalEntry{VykazID: 77, Autor: "Jan", Datum: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), Hodiny: 1})

		for i, want := range []importResponse{{1, 0, 1}, {0, 1, 1}} {
			resp, data := h.do(t, http.MethodPost, "/import-from-metaapp", `{"autor":"Jan"}`)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("run %d status = %d, body = %s", i, resp.StatusCode, data)
			}
			var got importResponse
			json.Unmarshal(data, &got)
			if got != want {
				t.Errorf("run %d = %+v, want %+v", i, got, want)
			}
		}
	})

	t.Run("import requires author", func(t *testing.T) {
		h := newHarness(t)
		resp, _ := h.do(t, http.MethodPost, "/import-from-metaapp", `{}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("tasks", func(t *testing.T) {
		h := newHarness(t)
		h.crm.Tasks = append(h.crm.Tasks, model.CRMTask{Code: "OPS-1", Summary: "Operations", Login: "Jan"})
		_, data := h.do(t, http.MethodGet, "/metaapp-tasks?autor=Jan", "")
		var got []taskResponse
		json.Unmarshal(data, &got)
		if len(got) != 1 || got[0].Code != "OPS-1" {
			t.Errorf("tasks = %s", data)
		}
	})
}

func TestTemplates(t *testing.T) {
	h := newHarness(t)

	resp, data := h.do(t, http.MethodPost, "/templates", `{"name":"Standup","autor":"Jan","uloha":"OPS-1","hodiny":0,"minuty":"15"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, data)
	}
	var tmpl templateResponse
	json.Unmarshal(data, &tmpl)
	if tmpl.Hodiny == nil || *tmpl.Hodiny != "0" || tmpl.Minuty == nil || *tmpl.Minuty != "15" {
		t.Errorf("template = %s", data)
	}

	_, data = h.do(t, http.MethodGet, "/templates?autor=Eva", "")
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("templates for Eva = %s", data)
	}

	resp, _ = h.do(t, http.MethodDelete, fmt.Sprintf("/templates/%d?autor=Eva", tmpl.ID), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", resp.StatusCode)
	}
	resp, _ = h.do(t, http.MethodDelete, fmt.Sprintf("/templates/%d?autor=Jan", tmpl.ID), "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
}

func TestIssues(t *testing.T) {
	t.Run("assigned issues", func(t *testing.T) {
		h := newHarness(t)
		_, data := h.do(t, http.MethodGet, "/jira-issues?autor=Jan", "")
		var got []issueResponse
		json.Unmarshal(data, &got)
		if len(got) != 1 || got[0].Key != "CARTV-5" || *got[0].ParentKey != "CARTV-1" || got[0].ParentColor != nil {
			t.Errorf("issues = %s", data)
		}
		h.do(t, http.MethodGet, "/jira-issues?autor=Jan&refresh=true", "")
		if h.tracker.SearchAssignedCalls != 2 {
			t.Errorf("SearchAssignedCalls = %d, want 2 after refresh", h.tracker.SearchAssignedCalls)
		}
	})

	t.Run("switching author drops the previous scope", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodGet, "/jira-issues?autor=Jan", "")
		h.do(t, http.MethodGet, "/jira-issues?autor=Jan", "")
		h.do(t, http.MethodGet, "/jira-issues?autor=Eva", "")
		h.do(t, http.MethodGet, "/jira-issues?autor=Jan", "")
		if h.tracker.SearchAssignedCalls != 3 {
			t.Errorf("SearchAssignedCalls = %d, want 3", h.tracker.SearchAssignedCalls)
		}
	})

	t.Run("validate", func(t *testing.T) {
		h := newHarness(t)
		_, data := h.do(t, http.MethodGet, "/api/validate-jira?key=CARTV-1", "")
		var got validateResponse
		json.Unmarshal(data, &got)
		if !got.Valid || got.Issue == nil || got.Issue.Key != "CARTV-1" {
			t.Errorf("validate = %s", data)
		}

		_, data = h.do(t, http.MethodGet, "/api/validate-jira?key=NOPE-1", "")
		got = validateResponse{}
		json.Unmarshal(data, &got)
		if got.Valid || got.Issue != nil {
			t.Errorf("validate unknown = %s", data)
		}
	})

	t.Run("details", func(t *testing.T) {
		h := newHarness(t)
		for _, path := range []string{"/jira-issue-details/CARTV-5", "/api/jira/CARTV-5"} {
			resp, data := h.do(t, http.MethodGet, path, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s status = %d", path, resp.StatusCode)
			}
			var got detailsResponse
			json.Unmarshal(data, &got)
			if got.Status.Name != "In Progress" || len(got.Comments) != 1 || got.Comments[0].Author.DisplayName != "Eva" {
				t.Errorf("%s = %s", path, data)
			}
		}
		resp, _ := h.do(t, http.MethodGet, "/jira-issue-details/NOPE-1", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("missing issue status = %d", resp.StatusCode)
		}
	})
}

func TestConfigAndChat(t *testing.T) {
	h := newHarness(t)

	_, data := h.do(t, http.MethodGet, "/api/config", "")
	var cfg assist.FrontendConfig
	json.Unmarshal(data, &cfg)
	if cfg.OpenAI.APIURL != assist.ProxyPath || cfg.Whisper.Language != "sk" {
		t.Errorf("config = %s", data)
	}

	resp, data := h.do(t, http.MethodPost, assist.ProxyPath, `{"messages":[]}`)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != `{"choices":[]}` {
		t.Errorf("chat = %d %s", resp.StatusCode, data)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &claimer.ValidationError{Field: "x", Reason: "bad"}, http.StatusBadRequest},
		{"confirmation", &claimer.ConfirmationRequiredError{Reason: "old"}, http.StatusConflict},
		{"ownership", &claimer.OwnershipError{Kind: "entry", ID: 1, Owner: "Jan", Actor: "Eva"}, http.StatusForbidden},
		{"not found", &claimer.NotFoundError{Kind: "entry", Key: "1"}, http.StatusNotFound},
		{"already submitted", &claimer.AlreadySubmittedError{EntryID: 1, ExternalID: 2}, http.StatusConflict},
		{"rejected", &claimer.RemoteError{Service: "metaapp", Rejected: true, Detail: "No uloha found for epic tag"}, http.StatusBadRequest},
		{"remote", &claimer.RemoteError{Service: "jira", Status: 503, Detail: "down"}, http.StatusBadGateway},
		{"openai passthrough", &claimer.RemoteError{Service: "openai", Status: 429, Detail: "slow down"}, http.StatusTooManyRequests},
		{"wrapped", fmt.Errorf("outer: %w", &claimer.NotFoundError{Kind: "entry"}), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
