package jira

import "strings"

// Document is the Atlassian Document Format (ADF) shape Jira uses for rich
// text fields such as issue descriptions. Only the nesting this system
// produces and reads is modelled, arbitrary marks and media are ignored.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Node is a single ADF content node. Text is set for leaf text nodes,
// Content for container nodes such as paragraphs.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// NewDocument wraps plain text into a single-paragraph ADF document, the
// shape Jira expects when creating or updating a description.
func NewDocument(text string) *Document {
	return &Document{
		Type:    "doc",
		Version: 1,
		Content: []Node{
			{
				Type: "paragraph",
				Content: []Node{
					{Type: "text", Text: text},
				},
			},
		},
	}
}

// Text extracts the plain text of a document by joining all leaf text nodes
// with spaces. A nil document yields an empty string.
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	var texts []string
	for _, content := range d.Content {
		for _, item := range content.Content {
			if item.Type == "text" && item.Text != "" {
				texts = append(texts, item.Text)
			}
		}
	}
	return strings.Join(texts, " ")
}
