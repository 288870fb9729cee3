package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Print writes data in format. For tables, toTable converts data first;
// structured formats encode data as is.
func Print(w io.Writer, format Format, data any, toTable func() Data) error {
	if format == FormatTable || format == "" {
		return NewFormatter(FormatTable).Format(w, toTable())
	}
	return NewFormatter(format).Format(w, data)
}

// SummaryTable renders pass summaries, one row per origin.
func SummaryTable(summaries []reconcile.Summary) Data {
	d := Data{
		Headers: []string{"Origin", "Source", "Mirror", "Added", "Updated", "Deleted", "Duplicates", "Failures", "Duration"},
		ColumnAlignment: []Align{
			AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight,
			AlignRight, AlignRight, AlignRight, AlignRight,
		},
	}
	for _, s := range summaries {
		origin := string(s.Origin)
		if s.DryRun {
			origin += " (dry run)"
		}
		d.Rows = append(d.Rows, []string{
			origin,
			strconv.Itoa(s.SourceCount),
			strconv.Itoa(s.MirrorCount),
			strconv.Itoa(s.Added),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Deleted),
			strconv.Itoa(s.Duplicates),
			strconv.Itoa(s.Failures),
			s.Duration,
		})
	}
	return d
}

// FailuresTable lists failed writes across summaries.
func FailuresTable(summaries []reconcile.Summary) Data {
	d := Data{Headers: []string{"Origin", "Registration Number", "Op", "Error"}}
	for _, s := range summaries {
		for _, f := range s.FailedWrites {
			d.Rows = append(d.Rows, []string{string(s.Origin), f.Key, f.Op, f.Error})
		}
	}
	return d
}

// MergedTable renders the merged view. Each side shows its field count,
// or "-" when the key is missing from that mirror.
func MergedTable(merged []records.MergedRecord) Data {
	d := Data{
		Headers:         []string{"Registration Number", "Typeform", "Airtable"},
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight},
	}
	side := func(f records.Fields) string {
		if f == nil {
			return "-"
		}
		return fmt.Sprintf("%d fields", len(f))
	}
	for _, m := range merged {
		d.Rows = append(d.Rows, []string{m.Key, side(m.Form), side(m.Sheet)})
	}
	return d
}

// QuarantineTable renders quarantine entries with the fields on which the
// conflicting records disagree.
func QuarantineTable(entries []records.QuarantineRecord) Data {
	d := Data{
		Headers:         []string{"Origin", "Registration Number", "Count", "Differing Fields"},
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
	for _, e := range entries {
		differing := DifferingFields(e.ConflictingFieldSets)
		cell := strings.Join(differing, ", ")
		if cell == "" {
			cell = "-"
		}
		d.Rows = append(d.Rows, []string{
			string(e.Origin),
			e.Key,
			strconv.Itoa(len(e.ConflictingFieldSets)),
			cell,
		})
	}
	return d
}

// DifferingFields returns the sorted names of fields whose rendered values
// are not identical across sets.
func DifferingFields(sets []records.Fields) []string {
	if len(sets) < 2 {
		return nil
	}
	names := map[string]struct{}{}
	for _, s := range sets {
		for k := range s {
			names[k] = struct{}{}
		}
	}
	var out []string
	for name := range names {
		first := render(sets[0], name)
		for _, s := range sets[1:] {
			if render(s, name) != first {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func render(f records.Fields, name string) string {
	v, ok := f[name]
	if !ok {
		return "\x00missing"
	}
	return fmt.Sprintf("%v", v)
}
