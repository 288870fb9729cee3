package normalize

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/mirrorsync/pkg/errors"
)

// Schema maps both registries' raw layouts onto record fields.
type Schema struct {
	Form  FormSchema  `yaml:"form"`
	Sheet SheetSchema `yaml:"sheet"`
}

// FormSchema maps form answers, addressed by question ref, to fields.
type FormSchema struct {
	// KeyRefs are tried in order; the first non-empty answer is the key.
	KeyRefs []string       `yaml:"key_refs"`
	Fields  []FormFieldMap `yaml:"fields"`
}

// FormFieldMap maps the answer to question Ref onto the field Name.
type FormFieldMap struct {
	Name string `yaml:"name"`
	Ref  string `yaml:"ref"`
}

// SheetSchema maps sheet columns to fields.
type SheetSchema struct {
	KeyColumn       string          `yaml:"key_column"`
	RequireRecordID bool            `yaml:"require_record_id"`
	Fields          []SheetFieldMap `yaml:"fields"`
}

// SheetFieldMap maps Column onto the field Name. Default replaces absent
// or empty column values.
type SheetFieldMap struct {
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	Default any    `yaml:"default"`
}

// DefaultSchema returns the mapping for the production form and base.
func DefaultSchema() Schema {
	return Schema{
		Form: FormSchema{
			KeyRefs: []string{
				"123077da-fa0f-473e-9b73-649c4578fb72",
				"1f9ef7f7-7885-4210-9d9e-e39534dbed1e",
			},
			Fields: []FormFieldMap{
				{Name: "firstName", Ref: "01G0DPK147RA5SVVB2HY268ZYE"},
				{Name: "lastName", Ref: "c98e6c56-15fb-424c-9f32-ce1a36bf6a55"},
				{Name: "email", Ref: "b0732c72-5275-419a-8673-bd2d5d5c3e63"},
				{Name: "phoneNumber", Ref: "d3a9680b-b67a-47b3-8719-3a71ffc88084"},
			},
		},
		Sheet: SheetSchema{
			KeyColumn:       "Name",
			RequireRecordID: true,
			Fields: []SheetFieldMap{
				{Name: "vial1_volume", Column: "Vial 1 Volume", Default: ""},
				{Name: "vial2_volume", Column: "Vial 2 Volume", Default: ""},
				{Name: "total_motility", Column: "Total Motility", Default: 0.0},
				{Name: "morphology", Column: "Morphology", Default: 0.0},
				{Name: "fp", Column: "FP (1-4)", Default: ""},
				{Name: "agglutination", Column: "Agglutination", Default: ""},
				{Name: "viscosity", Column: "Viscosity", Default: ""},
				{Name: "debris", Column: "Debris", Default: ""},
				{Name: "comments", Column: "Comments", Default: ""},
				{Name: "date_received", Column: "Date Sample Received at Lab", Default: ""},
				{Name: "date_tested", Column: "Date Sample Tested", Default: ""},
				{Name: "days_of_abstinence", Column: "Days of Abstinence (Patient)", Default: ""},
			},
		},
	}
}

// LoadSchema reads a YAML schema file. Sections missing from the file keep
// their defaults.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, errors.WrapIO("read", path, err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return Schema{}, err
	}
	return s, nil
}

// ParseSchema decodes a YAML schema document on top of DefaultSchema.
func ParseSchema(data []byte) (Schema, error) {
	var raw struct {
		Form  *FormSchema  `yaml:"form"`
		Sheet *SheetSchema `yaml:"sheet"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Schema{}, errors.WrapParse("yaml", "", err)
	}

	s := DefaultSchema()
	if raw.Form != nil {
		s.Form = *raw.Form
	}
	if raw.Sheet != nil {
		s.Sheet = *raw.Sheet
		for i := range s.Sheet.Fields {
			s.Sheet.Fields[i].Default = jsonValue(s.Sheet.Fields[i].Default)
		}
	}
	return s, s.Validate()
}

// Validate checks that both mappings can produce a key and that field names are unique.
func (s Schema) Validate() error {
	if len(s.Form.KeyRefs) == 0 {
		return errors.NewValidationError("form.key_refs", nil, "at least one key ref is required")
	}
	if s.Sheet.KeyColumn == "" {
		return errors.NewValidationError("sheet.key_column", nil, "key column is required")
	}

	seen := map[string]bool{"response_id": true, "landing_id": true, "submitted_at": true}
	for _, f := range s.Form.Fields {
		if f.Name == "" || f.Ref == "" {
			return errors.NewValidationError("form.fields", f, "name and ref are required")
		}
		if seen[f.Name] {
			return errors.NewValidationError("form.fields", f.Name, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}

	seen = map[string]bool{"record_id": true}
	for _, f := range s.Sheet.Fields {
		if f.Name == "" || f.Column == "" {
			return errors.NewValidationError("sheet.fields", f, "name and column are required")
		}
		if seen[f.Name] {
			return errors.NewValidationError("sheet.fields", f.Name, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}
	return nil
}

// jsonValue converts YAML integers to float64 so defaults match values decoded from JSON.
func jsonValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return v
}
