// Package jira is a REST client for the JIRA Cloud API.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/model"
)

const (
	userAgent = "smart-claimer/1.0"

	// Custom fields of the JIRA Cloud instance.
	fieldSprint     = "customfield_10020"
	fieldEpicColor  = "customfield_10011"
	fieldEpicName   = "customfield_10016"
	reviewPrefix    = "Review -"
	epicColorMemory = 128
)

var sprintNamePattern = regexp.MustCompile(`name=([^,]+)`)

// Options configures a Client. Zero values select defaults.
type Options struct {
	Timeout      time.Duration
	LookbackDays int
	MaxResults   int
}

// Client implements claimer.IssueTracker over the JIRA REST API.
type Client struct {
	http         *resty.Client
	baseURL      string
	lookbackDays int
	maxResults   int
	epicColors   *lru.Cache[string, string]
	logger       claimer.Logger
}

// New creates a Client on top of an authenticated resty client.
func New(rc *resty.Client, baseURL string, opts Options, logger claimer.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if logger == nil {
		logger = claimer.NewNopLogger()
	}
	colors, _ := lru.New[string, string](epicColorMemory)

	baseURL = strings.TrimRight(baseURL, "/")
	rc.SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	return &Client{
		http:         rc,
		baseURL:      baseURL,
		lookbackDays: opts.LookbackDays,
		maxResults:   opts.MaxResults,
		epicColors:   colors,
		logger:       logger,
	}
}

// BaseURL returns the JIRA site URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type searchResponse struct {
	Issues []issue `json:"issues"`
}

type issue struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Summary  string          `json:"summary"`
	Parent   *parentField    `json:"parent"`
	Sprint   json.RawMessage `json:"customfield_10020"`
	Status   *statusField    `json:"status"`
	Assignee *userField      `json:"assignee"`
}

type parentField struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

type statusField struct {
	Name           string `json:"name"`
	StatusCategory struct {
		ColorName string `json:"colorName"`
	} `json:"statusCategory"`
}

type userField struct {
	DisplayName string            `json:"displayName"`
	AvatarURLs  map[string]string `json:"avatarUrls"`
}

var searchFields = []string{"key", "summary", "parent", "status", "assignee", fieldSprint}

// SearchAssigned returns issues assigned to author and updated within the
// lookback window, sorted by key.
func (c *Client) SearchAssigned(ctx context.Context, author string) ([]model.IssueMeta, error) {
	jql := fmt.Sprintf("assignee = '%s' AND updated >= -%dd ORDER BY updated DESC", quoteJQL(author), c.lookbackDays)

	var resp searchResponse
	r, err := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"jql":        jql,
			"fields":     searchFields,
			"maxResults": c.maxResults,
		}).
		SetResult(&resp).
		Post("/rest/api/3/search")
	if err != nil {
		return nil, c.transportError(err)
	}
	if r.IsError() {
		// Some instances only accept the query string form.
		c.logger.Debug("jira search POST rejected, retrying with GET", "status", r.StatusCode())
		r, err = c.http.R().SetContext(ctx).
			SetQueryParams(map[string]string{
				"jql":        jql,
				"fields":     strings.Join(searchFields, ","),
				"maxResults": fmt.Sprint(c.maxResults),
			}).
			SetResult(&resp).
			Get("/rest/api/3/search")
		if err != nil {
			return nil, c.transportError(err)
		}
		if r.IsError() {
			return nil, statusError(r)
		}
	}

	out := make([]model.IssueMeta, 0, len(resp.Issues))
	for _, is := range resp.Issues {
		out = append(out, c.toMeta(ctx, is))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SearchKey looks an issue up by key regardless of assignee, status or sprint.
func (c *Client) SearchKey(ctx context.Context, key string) (*model.IssueMeta, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	var resp searchResponse
	r, err := c.http.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"jql":        fmt.Sprintf("key = '%s'", quoteJQL(key)),
			"fields":     strings.Join(searchFields, ","),
			"maxResults": "1",
		}).
		SetResult(&resp).
		Get("/rest/api/2/search")
	if err != nil {
		return nil, c.transportError(err)
	}
	// JQL errors for unknown keys come back as 400.
	if r.StatusCode() == http.StatusBadRequest || r.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if r.IsError() {
		return nil, statusError(r)
	}
	if len(resp.Issues) == 0 {
		return nil, nil
	}
	meta := c.toMeta(ctx, resp.Issues[0])
	return &meta, nil
}

// Parent returns the parent of key. Review sub-tasks report their
// grandparent, the epic the review belongs to.
func (c *Client) Parent(ctx context.Context, key string) (*model.ParentRef, error) {
	is, err := c.getIssue(ctx, key, "summary,parent")
	if err != nil || is == nil || is.Fields.Parent == nil {
		return nil, err
	}
	parentKey, parentSummary := c.effectiveParent(ctx, is.Fields.Summary, is.Fields.Parent)
	if parentKey == "" {
		return nil, nil
	}
	return &model.ParentRef{Key: parentKey, Summary: parentSummary}, nil
}

type detailsResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary  string       `json:"summary"`
		Status   *statusField `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		Description json.RawMessage `json:"description"`
		Comment     struct {
			Comments []rawComment `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
	RenderedFields struct {
		Description json.RawMessage `json:"description"`
		Comment     struct {
			Comments []rawComment `json:"comments"`
		} `json:"comment"`
	} `json:"renderedFields"`
}

type rawComment struct {
	ID      string          `json:"id"`
	Body    json.RawMessage `json:"body"`
	Author  userField       `json:"author"`
	Created string          `json:"created"`
}

// IssueDetails returns the expanded issue with description and comments
// rendered as simplified HTML.
func (c *Client) IssueDetails(ctx context.Context, key string) (*model.IssueDetails, error) {
	var resp detailsResponse
	r, err := c.http.R().SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParams(map[string]string{
			"fields": "summary,status,priority,description,comment",
			"expand": "renderedFields",
		}).
		SetResult(&resp).
		Get("/rest/api/3/issue/{key}")
	if err != nil {
		return nil, c.transportError(err)
	}
	if r.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if r.IsError() {
		return nil, statusError(r)
	}

	d := &model.IssueDetails{
		Key:      resp.Key,
		Summary:  resp.Fields.Summary,
		Status:   "Unknown",
		Priority: "Medium",
		BaseURL:  c.baseURL,
	}
	if d.Key == "" {
		d.Key = key
	}
	if s := resp.Fields.Status; s != nil {
		d.Status = s.Name
		d.StatusColor = s.StatusCategory.ColorName
	}
	if p := resp.Fields.Priority; p != nil && p.Name != "" {
		d.Priority = p.Name
	}
	if hasContent(resp.RenderedFields.Description) {
		d.Description = RenderBody(resp.RenderedFields.Description)
	} else {
		d.Description = RenderBody(resp.Fields.Description)
	}

	rendered := make(map[string]json.RawMessage, len(resp.RenderedFields.Comment.Comments))
	for _, rc := range resp.RenderedFields.Comment.Comments {
		rendered[rc.ID] = rc.Body
	}
	for _, cm := range resp.Fields.Comment.Comments {
		body := cm.Body
		if rb, ok := rendered[cm.ID]; ok && hasContent(rb) {
			body = rb
		}
		author := cm.Author.DisplayName
		if author == "" {
			author = "Unknown"
		}
		d.Comments = append(d.Comments, model.IssueComment{
			ID:        cm.ID,
			Body:      RenderBody(body),
			Author:    author,
			AvatarURL: cm.Author.AvatarURLs["24x24"],
			Created:   cm.Created,
		})
	}
	return d, nil
}

func (c *Client) toMeta(ctx context.Context, is issue) model.IssueMeta {
	meta := model.IssueMeta{
		Key:        is.Key,
		Summary:    is.Fields.Summary,
		SprintName: sprintName(is.Fields.Sprint),
	}
	if s := is.Fields.Status; s != nil {
		meta.Status = s.Name
	}
	if a := is.Fields.Assignee; a != nil {
		meta.Assignee = a.DisplayName
	}
	meta.ParentKey, meta.ParentSummary = c.effectiveParent(ctx, is.Fields.Summary, is.Fields.Parent)
	if meta.ParentKey != "" {
		meta.ParentColor = c.epicColor(ctx, meta.ParentKey)
	}
	return meta
}

// effectiveParent promotes the grandparent for "Review -" issues. Lookup
// failures keep the direct parent.
func (c *Client) effectiveParent(ctx context.Context, summary string, parent *parentField) (string, string) {
	if parent == nil {
		return "", ""
	}
	key, name := parent.Key, parent.Fields.Summary
	if !strings.HasPrefix(strings.TrimSpace(summary), reviewPrefix) {
		return key, name
	}

	p, err := c.getIssue(ctx, key, "parent")
	if err != nil {
		c.logger.Warn("jira grandparent lookup failed", "parent", key, "error", err)
		return key, name
	}
	if p != nil && p.Fields.Parent != nil {
		return p.Fields.Parent.Key, p.Fields.Parent.Fields.Summary
	}
	return key, name
}

// epicColor is memoised, including misses.
func (c *Client) epicColor(ctx context.Context, epicKey string) string {
	if color, ok := c.epicColors.Get(epicKey); ok {
		return color
	}

	var resp struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	color := ""
	r, err := c.http.R().SetContext(ctx).
		SetPathParam("key", epicKey).
		SetQueryParam("fields", fieldEpicColor+","+fieldEpicName).
		SetResult(&resp).
		Get("/rest/api/3/issue/{key}")
	if err == nil && !r.IsError() {
		for _, name := range []string{fieldEpicColor, "epic_color"} {
			var s string
			if raw, ok := resp.Fields[name]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
				color = s
				break
			}
		}
	}
	c.epicColors.Add(epicKey, color)
	return color
}

// getIssue returns nil, nil for a missing issue.
func (c *Client) getIssue(ctx context.Context, key, fields string) (*issue, error) {
	var is issue
	r, err := c.http.R().SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParam("fields", fields).
		SetResult(&is).
		Get("/rest/api/3/issue/{key}")
	if err != nil {
		return nil, c.transportError(err)
	}
	if r.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if r.IsError() {
		return nil, statusError(r)
	}
	return &is, nil
}

// sprintName extracts the latest sprint's name. Older instances send the
// sprint as a serialised string, newer ones as objects.
func sprintName(raw json.RawMessage) string {
	if !hasContent(raw) {
		return ""
	}
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		if len(legacy) == 0 {
			return ""
		}
		if m := sprintNamePattern.FindStringSubmatch(legacy[len(legacy)-1]); m != nil {
			return m[1]
		}
		return ""
	}
	var sprints []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &sprints); err == nil && len(sprints) > 0 {
		return sprints[len(sprints)-1].Name
	}
	return ""
}

func hasContent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != `""`
}

func quoteJQL(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

func (c *Client) transportError(err error) error {
	return &claimer.RemoteError{Service: "jira", Detail: err.Error(), Err: err}
}

func statusError(r *resty.Response) error {
	detail := strings.TrimSpace(r.String())
	if detail == "" {
		detail = r.Status()
	}
	return &claimer.RemoteError{Service: "jira", Status: r.StatusCode(), Detail: detail}
}

var _ claimer.IssueTracker = (*Client)(nil)
