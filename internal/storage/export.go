package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportMarkdown renders snippets as a markdown document with one fenced
// code block each.
func ExportMarkdown(snippets []Snippet) string {
	var b strings.Builder

	b.WriteString("# Snippets\n\n")
	for _, s := range snippets {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", title))
		b.WriteString(fmt.Sprintf("- **ID:** %s\n", s.ID))
		b.WriteString(fmt.Sprintf("- **Language:** %s\n", s.Language))
		if s.Favorite {
			b.WriteString("- **Favorite:** yes\n")
		}
		b.WriteString(fmt.Sprintf("- **Updated:** %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05")))
		if s.Description != "" {
			b.WriteString(fmt.Sprintf("\n%s\n", s.Description))
		}
		b.WriteString(fmt.Sprintf("\n```%s\n%s\n```\n\n", s.Language, strings.TrimRight(s.Code, "\n")))
	}

	return b.String()
}

// ExportJSON renders snippets as formatted JSON.
func ExportJSON(snippets []Snippet) ([]byte, error) {
	export := struct {
		Snippets []Snippet `json:"snippets"`
	}{
		Snippets: snippets,
	}
	return json.MarshalIndent(export, "", "  ")
}

// ExportYAML renders snippets as YAML, suitable for editing and re-importing.
func ExportYAML(snippets []Snippet) ([]byte, error) {
	export := struct {
		Snippets []Snippet `yaml:"snippets"`
	}{
		Snippets: snippets,
	}
	return yaml.Marshal(export)
}

// ImportYAML parses a document produced by ExportYAML.
func ImportYAML(data []byte) ([]Snippet, error) {
	var doc struct {
		Snippets []Snippet `yaml:"snippets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing snippets: %w", err)
	}
	return doc.Snippets, nil
}
