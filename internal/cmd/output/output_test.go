package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("wide")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestPrintStructured(t *testing.T) {
	merged := []records.MergedRecord{{Key: "A", Sheet: records.Fields{"morphology": 4.0}}}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, merged, func() Data { return MergedTable(merged) }))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "A", decoded[0]["registration_number"])
	assert.Equal(t, map[string]any{}, decoded[0]["typeform_data"])

	buf.Reset()
	require.NoError(t, Print(&buf, FormatYAML, merged, nil))
	assert.Contains(t, buf.String(), "registration_number: A")
}

func TestPrintTable(t *testing.T) {
	summaries := []reconcile.Summary{
		{Origin: records.OriginSheet, SourceCount: 5, MirrorCount: 3, Added: 2, Duplicates: 1, Duration: "12ms"},
		{Origin: records.OriginForm, DryRun: true, Duration: "3ms"},
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, summaries, func() Data { return SummaryTable(summaries) }))
	out := strings.ToUpper(buf.String())
	for _, want := range []string{"ORIGIN", "SHEET", "FORM (DRY RUN)", "12MS"} {
		assert.Contains(t, out, want)
	}
}

func TestFailuresTable(t *testing.T) {
	d := FailuresTable([]reconcile.Summary{{
		Origin:       records.OriginForm,
		FailedWrites: []reconcile.WriteFailure{{Key: "A", Op: "add", Error: "throttled"}},
	}})
	require.Len(t, d.Rows, 1)
	assert.Equal(t, []string{"form", "A", "add", "throttled"}, d.Rows[0])
}

func TestMergedTable(t *testing.T) {
	d := MergedTable([]records.MergedRecord{{Key: "A", Form: records.Fields{"email": "a@x"}}})
	assert.Equal(t, []string{"A", "1 fields", "-"}, d.Rows[0])
}

func TestQuarantineTable(t *testing.T) {
	d := QuarantineTable([]records.QuarantineRecord{{
		Origin: records.OriginSheet,
		Key:    "C",
		ConflictingFieldSets: []records.Fields{
			{"morphology": 4.0, "total_motility": 10.0},
			{"morphology": 4.0, "total_motility": 11.0, "notes": "x"},
		},
	}})
	require.Len(t, d.Rows, 1)
	assert.Equal(t, []string{"sheet", "C", "2", "notes, total_motility"}, d.Rows[0])
}

func TestReflectTableFallback(t *testing.T) {
	type row struct {
		Name  string `json:"full_name"`
		Count int    `json:",omitempty"`
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []row{{"x", 1}}))
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "FULL NAME")
	assert.Contains(t, out, "COUNT")
}
