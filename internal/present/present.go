// Package present renders ranked lists for people (text, Markdown) and for
// other programs (CSV, JSON).
package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shpitdev/playlistrank/internal/enrich"
	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/pipeline/io/local"
	"github.com/shpitdev/playlistrank/pkg/pipeline/schema"
)

// Limit returns the first limit records of list. 0 means all; a limit past the end
// returns the whole list.
func Limit(list enrich.RankedList, limit int) (enrich.RankedList, error) {
	if limit < 0 {
		return nil, errs.Validation("display limit must be >= 0 (got %d)", limit)
	}
	if limit == 0 || limit > len(list) {
		return list, nil
	}
	return list[:limit], nil
}

// FormatCount formats n with English thousands separators, e.g. 1,234,567.
func FormatCount(n uint64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Render returns one Markdown block per emitted record: a heading with rank and
// title, the grouped view count, and the thumbnail image linked to the watch page.
func Render(list enrich.RankedList, limit int) ([]string, error) {
	shown, err := Limit(list, limit)
	if err != nil {
		return nil, err
	}
	p := message.NewPrinter(language.English)
	out := make([]string, 0, len(shown))
	for i, rec := range shown {
		out = append(out, markdownBlock(p, i+1, rec))
	}
	return out, nil
}

func markdownBlock(p *message.Printer, rank int, rec enrich.Record) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "### %d. %s\n\n", rank, rec.Title)
	_, _ = p.Fprintf(&b, "**%d** views\n\n", rec.Views)
	_, _ = fmt.Fprintf(&b, "[![%s](%s)](%s)\n", escapeAlt(rec.Title), thumbnail(rec), rec.Permalink)
	return b.String()
}

// Lines returns the console form of each emitted record: "<title>: <views>".
func Lines(list enrich.RankedList, limit int) ([]string, error) {
	shown, err := Limit(list, limit)
	if err != nil {
		return nil, err
	}
	p := message.NewPrinter(language.English)
	out := make([]string, 0, len(shown))
	for _, rec := range shown {
		out = append(out, p.Sprintf("%s: %d", rec.Title, rec.Views))
	}
	return out, nil
}

// Write renders list to w in the given format.
func Write(w io.Writer, list enrich.RankedList, limit int, format schema.Format) error {
	switch format {
	case schema.FormatMarkdown:
		blocks, err := Render(list, limit)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, strings.Join(blocks, "\n"))
		return err
	case schema.FormatText:
		lines, err := Lines(list, limit)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, l); err != nil {
				return err
			}
		}
		return nil
	case schema.FormatCSV:
		shown, err := Limit(list, limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(shown))
		for i, rec := range shown {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				strconv.Itoa(rec.Index),
				rec.VideoID,
				rec.Title,
				strconv.FormatUint(rec.Views, 10),
				rec.ThumbnailURL,
				rec.Permalink,
			})
		}
		return local.WriteCSV(w, schema.Header(), rows)
	case schema.FormatJSON:
		shown, err := Limit(list, limit)
		if err != nil {
			return err
		}
		type rankedRecord struct {
			Rank int `json:"rank"`
			enrich.Record
		}
		out := make([]rankedRecord, 0, len(shown))
		for i, rec := range shown {
			out = append(out, rankedRecord{Rank: i + 1, Record: rec})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return errs.Validation("unknown output format %q", format)
	}
}

// thumbnail falls back to the default-quality image the CDN serves for every video.
func thumbnail(rec enrich.Record) string {
	if rec.ThumbnailURL != "" {
		return rec.ThumbnailURL
	}
	return "https://i.ytimg.com/vi/" + rec.VideoID + "/default.jpg"
}

var altEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

func escapeAlt(s string) string {
	return altEscaper.Replace(s)
}
