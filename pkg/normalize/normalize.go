// Package normalize turns raw registry payloads into source records keyed by
// the business key. Records without a usable key are dropped, not errors.
package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/mirrorsync/pkg/compare"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Normalizer applies a Schema to raw registry records.
type Normalizer struct {
	schema Schema
}

// New returns a Normalizer for schema.
func New(schema Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Default returns a Normalizer for DefaultSchema.
func Default() *Normalizer {
	return New(DefaultSchema())
}

// Schema returns the mapping in use.
func (n *Normalizer) Schema() Schema {
	return n.schema
}

// Normalize dispatches on the raw record type. It reports false when raw is
// not a known registry shape or lacks a key.
func (n *Normalizer) Normalize(raw any) (records.SourceRecord, bool) {
	switch r := raw.(type) {
	case FormResponse:
		return n.Form(r)
	case *FormResponse:
		return n.Form(*r)
	case SheetRecord:
		return n.Sheet(r)
	case *SheetRecord:
		return n.Sheet(*r)
	}
	return records.SourceRecord{}, false
}

// Form normalizes one form submission.
func (n *Normalizer) Form(resp FormResponse) (records.SourceRecord, bool) {
	var key string
	for _, ref := range n.schema.Form.KeyRefs {
		if a, ok := findAnswer(resp.Answers, ref); ok {
			if key = Key(a.Value()); key != "" {
				break
			}
		}
	}
	if key == "" {
		return records.SourceRecord{}, false
	}

	fields := records.Fields{"response_id": resp.ResponseID}
	if resp.LandingID != "" {
		fields["landing_id"] = resp.LandingID
	}
	if !resp.SubmittedAt.IsZero() {
		fields["submitted_at"] = resp.SubmittedAt.UTC().Format(time.RFC3339)
	}
	for _, m := range n.schema.Form.Fields {
		value := ""
		if a, ok := findAnswer(resp.Answers, m.Ref); ok {
			value = a.Value()
		}
		fields[m.Name] = value
	}

	return records.SourceRecord{Key: key, Fields: fields, Origin: records.OriginForm}, true
}

// keyText renders a key cell. Numeric cells count unless zero; other
// non-string values are not keys.
func keyText(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case float64, float32, int, int64, json.Number:
		if f, ok := compare.Number(k); ok && f == 0 {
			return ""
		}
		return compare.String(k)
	}
	return ""
}

// Sheet normalizes one sheet row.
func (n *Normalizer) Sheet(rec SheetRecord) (records.SourceRecord, bool) {
	key := Key(keyText(rec.Fields[n.schema.Sheet.KeyColumn]))
	if key == "" || (n.schema.Sheet.RequireRecordID && rec.ID == "") {
		return records.SourceRecord{}, false
	}

	fields := records.Fields{"record_id": rec.ID}
	for _, m := range n.schema.Sheet.Fields {
		v, ok := rec.Fields[m.Column]
		if !ok || empty(v) {
			v = m.Default
		}
		fields[m.Name] = v
	}

	return records.SourceRecord{Key: key, Fields: fields, Origin: records.OriginSheet}, true
}

// Key canonicalizes a business key: surrounding space is trimmed and the
// text is put in Unicode NFC so composed and decomposed forms match.
func Key(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func findAnswer(answers []FormAnswer, ref string) (FormAnswer, bool) {
	for _, a := range answers {
		if a.Field.Ref == ref {
			return a, true
		}
	}
	return FormAnswer{}, false
}

// empty mirrors the registry's notion of a blank cell.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}
