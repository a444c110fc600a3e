package schema

import (
	"strings"
)

// Format selects how a ranked list is written out.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// RecordFields is the stable column contract for structured (CSV/JSON) output.
var RecordFields = []Field{
	{Name: "rank", Type: "INTEGER"},
	{Name: "index", Type: "INTEGER"},
	{Name: "video_id", Type: "STRING"},
	{Name: "title", Type: "STRING"},
	{Name: "views", Type: "LONG"},
	{Name: "thumbnail_url", Type: "STRING", Nullable: true},
	{Name: "permalink", Type: "STRING"},
}

// Header returns the field names of RecordFields, in order.
func Header() []string {
	out := make([]string, len(RecordFields))
	for i, f := range RecordFields {
		out[i] = f.Name
	}
	return out
}

// NormalizeFormat maps user input to a Format. ok is false for unknown values.
// Empty input selects Markdown.
func NormalizeFormat(raw string) (Format, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "", "markdown", "md":
		return FormatMarkdown, true
	case "text", "txt", "plain":
		return FormatText, true
	case "csv":
		return FormatCSV, true
	case "json":
		return FormatJSON, true
	default:
		return "", false
	}
}
