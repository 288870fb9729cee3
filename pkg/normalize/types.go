package normalize

import (
	"strconv"
	"strings"
	"time"
)

// FormResponse is one submission as returned by the form registry.
type FormResponse struct {
	ResponseID  string       `json:"response_id"`
	LandingID   string       `json:"landing_id"`
	Token       string       `json:"token"`
	LandedAt    time.Time    `json:"landed_at"`
	SubmittedAt time.Time    `json:"submitted_at"`
	Answers     []FormAnswer `json:"answers"`
}

// FormField identifies the question an answer belongs to.
type FormField struct {
	ID   string `json:"id"`
	Ref  string `json:"ref"`
	Type string `json:"type"`
}

// FormChoice is a single selected option.
type FormChoice struct {
	Label string `json:"label"`
	Other string `json:"other,omitempty"`
}

// FormChoices is a multiple selection.
type FormChoices struct {
	Labels []string `json:"labels"`
	Other  string   `json:"other,omitempty"`
}

// FormAnswer is one answer inside a FormResponse. Only the member named by
// Type is populated.
type FormAnswer struct {
	Field       FormField    `json:"field"`
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Email       string       `json:"email,omitempty"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	URL         string       `json:"url,omitempty"`
	FileURL     string       `json:"file_url,omitempty"`
	Date        string       `json:"date,omitempty"`
	Number      *float64     `json:"number,omitempty"`
	Boolean     *bool        `json:"boolean,omitempty"`
	Choice      *FormChoice  `json:"choice,omitempty"`
	Choices     *FormChoices `json:"choices,omitempty"`
}

// Value returns the answer rendered as text.
func (a FormAnswer) Value() string {
	switch a.Type {
	case "text":
		return a.Text
	case "email":
		return a.Email
	case "phone_number":
		return a.PhoneNumber
	case "url":
		return a.URL
	case "file_url":
		return a.FileURL
	case "date":
		return a.Date
	case "number":
		if a.Number != nil {
			return strconv.FormatFloat(*a.Number, 'f', -1, 64)
		}
	case "boolean":
		if a.Boolean != nil {
			return strconv.FormatBool(*a.Boolean)
		}
	case "choice":
		if a.Choice != nil {
			if a.Choice.Label != "" {
				return a.Choice.Label
			}
			return a.Choice.Other
		}
	case "choices":
		if a.Choices != nil {
			return strings.Join(a.Choices.Labels, ", ")
		}
	}
	return a.Text
}

// SheetRecord is one row as returned by the sheet registry.
type SheetRecord struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}
