package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.svc.ListEntries(r.Context(), claimer.EntryFilter{From: from, To: to, Autor: q.Get("autor")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	entry, err := s.svc.GetEntry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := s.svc.CreateEntry(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(RefreshHeader, "1")
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// editEntry uses the autor in the body as the acting author.
func (s *Server) editEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	entry, err := s.svc.EditEntry(r.Context(), in.Autor, id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(RefreshHeader, "1")
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) duplicateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	confirmed, _ := strconv.ParseBool(q.Get("confirmed"))

	entry, err := s.svc.DuplicateEntry(r.Context(), q.Get("autor"), id, confirmed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set(RefreshHeader, "1")
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	if err := s.svc.DeleteEntry(r.Context(), r.URL.Query().Get("autor"), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) submitEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	entry, err := s.svc.SubmitEntry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) importEntries(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid JSON body"})
		return
	}
	res, err := s.svc.ImportFromExternal(r.Context(), req.Autor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		ImportedCount: res.Imported,
		SkippedCount:  res.Skipped,
		TotalFound:    res.TotalFound,
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListCRMTasks(r.Context(), r.URL.Query().Get("autor"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse{Code: t.Code, Summary: t.Summary, Login: t.Login})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.ListTemplates(r.Context(), r.URL.Query().Get("autor"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid JSON body: " + err.Error()})
		return
	}
	tmpl, err := s.svc.CreateTemplate(r.Context(), req.template())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid template id"})
		return
	}
	if err := s.svc.DeleteTemplate(r.Context(), r.URL.Query().Get("autor"), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) decodeEntry(w http.ResponseWriter, r *http.Request) (claimer.EntryInput, bool) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid JSON body: " + err.Error()})
		return claimer.EntryInput{}, false
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return claimer.EntryInput{}, false
	}
	return in, true
}

func (s *Server) entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid entry id"})
		return 0, false
	}
	return id, true
}
