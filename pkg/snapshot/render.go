package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
)

const (
	markdownHeadings = 6
	markdownSample   = 220
)

// WriteJSON writes the snapshot as indented JSON.
func (s *Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteMarkdown writes a review document grouped by collection.
func (s *Snapshot) WriteMarkdown(w io.Writer) error {
	doc := md.NewMarkdown(w)
	doc.H1("Inbox snapshot").
		PlainTextf("Generated %s. %d documents across %d collections in %s.",
			s.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
			s.TotalDocuments, len(s.Collections), md.Code(s.InboxName)).
		LF()

	for _, c := range s.Collections {
		doc.H2f("%s (collection %d, inbox %d)", c.Name, c.ID, c.InboxID)

		if len(c.SubCollections) > 0 {
			rows := make([][]string, 0, len(c.SubCollections))
			for _, sc := range c.SubCollections {
				rows = append(rows, []string{sc.ID.String(), sc.Name, fmt.Sprint(sc.DocumentCount)})
			}
			doc.Table(md.TableSet{Header: []string{"ID", "Sub-collection", "Documents"}, Rows: rows})
		}

		if len(c.Documents) == 0 {
			doc.PlainText(md.Italic("Inbox is empty.")).LF()
			continue
		}
		items := make([]string, 0, len(c.Documents))
		for _, d := range c.Documents {
			items = append(items, documentLine(d))
		}
		doc.BulletList(items...)
	}
	return doc.Build()
}

func documentLine(d Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", md.Bold(d.ID.String()), d.Title)
	if len(d.Headings) > 0 {
		headings := d.Headings
		if len(headings) > markdownHeadings {
			headings = headings[:markdownHeadings]
		}
		fmt.Fprintf(&sb, " | headings: %s", strings.Join(headings, "; "))
	}
	if d.TextSample != "" {
		sample := Truncate(d.TextSample, markdownSample)
		if len(sample) < len(d.TextSample) {
			sample += "..."
		}
		fmt.Fprintf(&sb, " | sample: %s", sample)
	}
	return sb.String()
}

// Save writes inbox-snapshot-<timestamp>.json and .md into dir and returns
// both paths.
func (s *Snapshot) Save(dir string) (jsonPath, mdPath string, err error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return "", "", errors.WrapIO("mkdir", dir, err)
	}
	base := filepath.Join(dir, "inbox-snapshot-"+s.GeneratedAt.Format("20060102-150405"))
	jsonPath, mdPath = base+".json", base+".md"

	if err := writeFile(jsonPath, s.WriteJSON); err != nil {
		return "", "", err
	}
	if err := writeFile(mdPath, s.WriteMarkdown); err != nil {
		return "", "", err
	}
	return jsonPath, mdPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return errors.WrapIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.WrapIO("close", path, err)
	}
	return nil
}
