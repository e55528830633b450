package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/librarian/internal/audit"
	"github.com/agentstation/librarian/pkg/differ"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/report"
)

// Reports renders stage reports, one table row per action.
type Reports []*report.Report

// Raw implements Tabular.
func (r Reports) Raw() any { return []*report.Report(r) }

// Table implements Tabular.
func (r Reports) Table() Data {
	d := Data{
		Headers:   []string{"Stage", "Outcome", "Kind", "Subject", "Name", "From", "To", "Detail"},
		Alignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
	var footer []string
	for _, rep := range r {
		for _, a := range rep.Actions {
			detail := a.Reason
			if a.Error != "" {
				detail = a.Error
			}
			d.Rows = append(d.Rows, []string{
				rep.Stage, string(a.Outcome), string(a.Kind), id(a.Subject), a.Name, id(a.From), id(a.To), detail,
			})
		}
		footer = append(footer, rep.String())
		for _, f := range rep.Failures {
			footer = append(footer, fmt.Sprintf("  failed %s %s %q: %s", f.Kind, id(f.Subject), f.Name, f.Error))
		}
	}
	d.Footer = strings.Join(footer, "\n")
	return d
}

// Runs renders the audit history.
type Runs []audit.Run

// Raw implements Tabular.
func (r Runs) Raw() any { return []audit.Run(r) }

// Table implements Tabular.
func (r Runs) Table() Data {
	d := Data{
		Headers:   []string{"Run", "Mode", "Started", "Stages", "Changed", "No-op", "Failed", "Pending"},
		Alignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight},
	}
	for _, run := range r {
		d.Rows = append(d.Rows, []string{
			run.ID, string(run.Mode), run.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(run.Stages), strconv.Itoa(run.Changed), strconv.Itoa(run.NoOp),
			strconv.Itoa(run.Failed), strconv.Itoa(run.Pending),
		})
	}
	if len(r) == 0 {
		d.Footer = "no runs recorded"
	}
	return d
}

// Classification is one title matched against a candidate list.
type Classification struct {
	Title     string     `json:"title" yaml:"title"`
	Matched   bool       `json:"matched" yaml:"matched"`
	Target    library.ID `json:"target,omitempty" yaml:"target,omitempty"`
	Container string     `json:"container,omitempty" yaml:"container,omitempty"`
	Reason    string     `json:"reason" yaml:"reason"`
}

// Classifications renders classifier results.
type Classifications []Classification

// Raw implements Tabular.
func (c Classifications) Raw() any { return []Classification(c) }

// Table implements Tabular.
func (c Classifications) Table() Data {
	d := Data{Headers: []string{"Title", "Container", "Reason"}}
	for _, cl := range c {
		container := "-"
		if cl.Matched {
			container = fmt.Sprintf("%s (%s)", cl.Container, cl.Target)
		}
		d.Rows = append(d.Rows, []string{cl.Title, container, cl.Reason})
	}
	return d
}

func id(v library.ID) string {
	if v == 0 {
		return ""
	}
	return v.String()
}

// Diff renders a snapshot changeset.
type Diff struct {
	*differ.Changeset
}

// Raw implements Tabular.
func (d Diff) Raw() any { return d.Changeset }

// Table implements Tabular.
func (d Diff) Table() Data {
	data := Data{Headers: []string{"Change", "Kind", "ID", "Name", "Fields"}}
	for _, ch := range d.All() {
		fields := make([]string, len(ch.Changes))
		for i, f := range ch.Changes {
			fields[i] = f.String()
		}
		data.Rows = append(data.Rows, []string{string(ch.Type), string(ch.Kind), id(ch.ID), ch.Name, strings.Join(fields, "; ")})
	}
	data.Footer = d.String()
	return data
}
