// Package notefmt encodes and decodes the on-disk note format: a ---
// delimited metadata header of key: value lines followed by a blank line
// and the raw Markdown body.
package notefmt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
)

const delim = "---"

// Encode serializes a note into its persisted text form. Tags are encoded
// as a JSON array so that decoding reproduces them byte-identically.
func Encode(n *models.Note) []byte {
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))

	var b bytes.Buffer
	b.WriteString(delim + "\n")
	fmt.Fprintf(&b, "title: %s\n", n.Title)
	fmt.Fprintf(&b, "category: %s\n", n.Category)
	fmt.Fprintf(&b, "tags: %s\n", tagsJSON)
	fmt.Fprintf(&b, "createdAt: %s\n", n.CreatedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "updatedAt: %s\n", n.UpdatedAt.Format(time.RFC3339Nano))
	b.WriteString(delim + "\n\n")
	b.WriteString(n.Markdown)
	b.WriteString("\n")
	return b.Bytes()
}

// Decode parses persisted note data. A file without a metadata header is
// not an error: it decodes to an all-defaults note whose entire content is
// the body. Corrupt header fields degrade to their defaults field by field.
//
// The Content field is always recomputed from the Markdown body via Render;
// the rendered form is a cache, never a source of truth.
func Decode(id string, data []byte) *models.Note {
	now := time.Now().UTC()
	n := &models.Note{
		ID:        id,
		Title:     models.DefaultTitle,
		Category:  models.DefaultCategory,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	header, body, ok := splitHeader(data)
	if !ok {
		n.Markdown = strings.TrimSpace(string(data))
		n.Content = Render(n.Markdown)
		return n
	}

	for _, line := range strings.Split(header, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			if value != "" {
				n.Title = value
			}
		case "category":
			if value != "" {
				n.Category = value
			}
		case "tags":
			var tags []string
			if err := json.Unmarshal([]byte(value), &tags); err == nil {
				n.Tags = tags
			}
		case "createdAt":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				n.CreatedAt = t
			}
		case "updatedAt":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				n.UpdatedAt = t
			}
		}
	}

	n.Markdown = strings.TrimSpace(body)
	n.Content = Render(n.Markdown)
	return n
}

// splitHeader separates the metadata header (between leading --- delimiters)
// from the body. ok is false when no complete header is present.
func splitHeader(data []byte) (header, body string, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) {
		return "", "", false
	}
	rest := trimmed[len(delim)+1:]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return "", "", false
	}
	header = string(rest[:idx])
	after := rest[idx+1+len(delim):]
	return header, strings.TrimLeft(string(after), "\n\r"), true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
