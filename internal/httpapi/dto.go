package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

const dateLayout = "2006-01-02"

// flexNumber accepts a JSON number or string and keeps its text, so "2.5",
// 2.5 and "2,5" all reach ParseDuration unchanged.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*f = flexNumber(n.String())
	return nil
}

type entryRequest struct {
	Uloha     string     `json:"uloha"`
	Autor     string     `json:"autor"`
	Datum     string     `json:"datum"`
	Hodiny    flexNumber `json:"hodiny"`
	Minuty    flexNumber `json:"minuty"`
	Jira      *string    `json:"jira"`
	Popis     *string    `json:"popis"`
	Confirmed bool       `json:"confirmed"`
}

func (req entryRequest) input() (claimer.EntryInput, error) {
	hodiny, minuty, err := claimer.ParseDuration(string(req.Hodiny), string(req.Minuty))
	if err != nil {
		return claimer.EntryInput{}, err
	}
	datum, err := parseDate("datum", req.Datum)
	if err != nil {
		return claimer.EntryInput{}, err
	}
	return claimer.EntryInput{
		Uloha:     req.Uloha,
		Autor:     req.Autor,
		Datum:     datum,
		Hodiny:    hodiny,
		Minuty:    minuty,
		Jira:      value(req.Jira),
		Popis:     value(req.Popis),
		Confirmed: req.Confirmed,
	}, nil
}

type entryResponse struct {
	ID                   int64      `json:"id"`
	Uloha                string     `json:"uloha"`
	Autor                string     `json:"autor"`
	Datum                string     `json:"datum"`
	Hodiny               int        `json:"hodiny"`
	Minuty               int        `json:"minuty"`
	Jira                 *string    `json:"jira"`
	Popis                *string    `json:"popis"`
	JiraName             *string    `json:"jira_name"`
	UlohaName            *string    `json:"uloha_name"`
	CreatedAt            time.Time  `json:"created_at"`
	ModifiedAt           time.Time  `json:"modified_at"`
	SubmittedToMetaappAt *time.Time `json:"submitted_to_metaapp_at"`
	MetaappVykazID       *int64     `json:"metaapp_vykaz_id"`
}

func toEntryResponse(e *model.TimeEntry) entryResponse {
	return entryResponse{
		ID:                   e.ID,
		Uloha:                e.Uloha,
		Autor:                e.Autor,
		Datum:                e.Datum.Format(dateLayout),
		Hodiny:               e.Hodiny,
		Minuty:               e.Minuty,
		Jira:                 e.Jira,
		Popis:                e.Popis,
		JiraName:             e.JiraName,
		UlohaName:            e.UlohaName,
		CreatedAt:            e.CreatedAt,
		ModifiedAt:           e.ModifiedAt,
		SubmittedToMetaappAt: e.SubmittedToMetaappAt,
		MetaappVykazID:       e.MetaappVykazID,
	}
}

type templateRequest struct {
	Name   string      `json:"name"`
	Autor  string      `json:"autor"`
	Uloha  *string     `json:"uloha"`
	Hodiny *flexNumber `json:"hodiny"`
	Minuty *flexNumber `json:"minuty"`
	Jira   *string     `json:"jira"`
	Popis  *string     `json:"popis"`
}

func (req templateRequest) template() *model.Template {
	return &model.Template{
		Name:   req.Name,
		Autor:  req.Autor,
		Uloha:  req.Uloha,
		Hodiny: (*string)(req.Hodiny),
		Minuty: (*string)(req.Minuty),
		Jira:   req.Jira,
		Popis:  req.Popis,
	}
}

type templateResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Autor  string  `json:"autor"`
	Uloha  *string `json:"uloha"`
	Hodiny *string `json:"hodiny"`
	Minuty *string `json:"minuty"`
	Jira   *string `json:"jira"`
	Popis  *string `json:"popis"`
}

func toTemplateResponse(t *model.Template) templateResponse {
	return templateResponse{
		ID:     t.ID,
		Name:   t.Name,
		Autor:  t.Autor,
		Uloha:  t.Uloha,
		Hodiny: t.Hodiny,
		Minuty: t.Minuty,
		Jira:   t.Jira,
		Popis:  t.Popis,
	}
}

type issueResponse struct {
	Key           string  `json:"key"`
	Summary       *string `json:"summary"`
	ParentKey     *string `json:"parent_key"`
	ParentSummary *string `json:"parent_summary"`
	ParentColor   *string `json:"parent_color"`
	SprintName    *string `json:"sprint_name"`
}

func toIssueResponse(m model.IssueMeta) issueResponse {
	return issueResponse{
		Key:           m.Key,
		Summary:       nullable(m.Summary),
		ParentKey:     nullable(m.ParentKey),
		ParentSummary: nullable(m.ParentSummary),
		ParentColor:   nullable(m.ParentColor),
		SprintName:    nullable(m.SprintName),
	}
}

type validateResponse struct {
	Valid bool           `json:"valid"`
	Issue *issueResponse `json:"issue"`
	Error string         `json:"error,omitempty"`
}

type namedRef struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type commentAuthor struct {
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

type commentResponse struct {
	ID      string        `json:"id"`
	Body    string        `json:"body"`
	Author  commentAuthor `json:"author"`
	Created string        `json:"created"`
}

type detailsResponse struct {
	Key         string            `json:"key"`
	Summary     string            `json:"summary"`
	Status      namedRef          `json:"status"`
	Priority    namedRef          `json:"priority"`
	Description string            `json:"description"`
	Comments    []commentResponse `json:"comments"`
	BaseURL     string            `json:"baseUrl"`
}

func toDetailsResponse(d *model.IssueDetails) detailsResponse {
	out := detailsResponse{
		Key:         d.Key,
		Summary:     d.Summary,
		Status:      namedRef{Name: d.Status, Color: d.StatusColor},
		Priority:    namedRef{Name: d.Priority},
		Description: d.Description,
		Comments:    make([]commentResponse, 0, len(d.Comments)),
		BaseURL:     d.BaseURL,
	}
	for _, c := range d.Comments {
		out.Comments = append(out.Comments, commentResponse{
			ID:      c.ID,
			Body:    c.Body,
			Author:  commentAuthor{DisplayName: c.Author, AvatarURL: nullable(c.AvatarURL)},
			Created: c.Created,
		})
	}
	return out
}

type taskResponse struct {
	Code    string `json:"code"`
	Summary string `json:"summary"`
	Login   string `json:"login"`
}

type importRequest struct {
	Autor string `json:"autor"`
}

type importResponse struct {
	ImportedCount int `json:"imported_count"`
	SkippedCount  int `json:"skipped_count"`
	TotalFound    int `json:"total_found"`
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &claimer.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
