package jira

import (
	"encoding/json"
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`(<[^>]*>)`)

// adfNode is one node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// RenderBody turns a description or comment body into simplified HTML.
// Bodies arrive either as rendered HTML strings or as ADF documents.
// Paragraphs and bullet/ordered lists survive; other nodes are dropped.
func RenderBody(raw json.RawMessage) string {
	if !hasContent(raw) {
		return ""
	}

	var html string
	if err := json.Unmarshal(raw, &html); err == nil {
		return cleanHTML(html)
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cleanText(string(raw))
	}

	var b strings.Builder
	for _, block := range doc.Content {
		switch block.Type {
		case "paragraph":
			if text := paragraphText(block); text != "" {
				b.WriteString("<p>" + text + "</p>")
			}
		case "bulletList":
			b.WriteString(renderList("ul", block))
		case "orderedList":
			b.WriteString(renderList("ol", block))
		}
	}
	return b.String()
}

func renderList(tag string, list adfNode) string {
	var items strings.Builder
	for _, item := range list.Content {
		if item.Type != "listItem" {
			continue
		}
		var text strings.Builder
		for _, p := range item.Content {
			if p.Type == "paragraph" {
				text.WriteString(paragraphText(p))
			}
		}
		if t := strings.TrimSpace(text.String()); t != "" {
			items.WriteString("<li>" + t + "</li>")
		}
	}
	if items.Len() == 0 {
		return ""
	}
	return "<" + tag + ">" + items.String() + "</" + tag + ">"
}

func paragraphText(p adfNode) string {
	var b strings.Builder
	for _, n := range p.Content {
		if n.Type == "text" {
			b.WriteString(cleanText(n.Text))
		}
	}
	return strings.TrimSpace(b.String())
}

// cleanHTML collapses whitespace in text runs and keeps tags as they are.
func cleanHTML(s string) string {
	parts := htmlTagPattern.Split(s, -1)
	tags := htmlTagPattern.FindAllString(s, -1)

	var b strings.Builder
	for i, part := range parts {
		b.WriteString(cleanText(part))
		if i < len(tags) {
			b.WriteString(tags[i])
		}
	}
	return b.String()
}

// cleanText collapses all runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
