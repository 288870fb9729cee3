// Package typeform fetches completed responses of one form and normalizes
// them into form-origin source records.
package typeform

import (
	"context"
	"net/url"
	"strconv"

	"github.com/agentstation/mirrorsync/internal/transport"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/normalize"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Name identifies the registry in errors and logs.
const Name = "typeform"

// Config configures a Client.
type Config struct {
	AccessToken string
	FormID      string
	BaseURL     string
	PageSize    int
}

// responsesPage is one page of GET /forms/{id}/responses.
type responsesPage struct {
	TotalItems int                      `json:"total_items"`
	PageCount  int                      `json:"page_count"`
	Items      []normalize.FormResponse `json:"items"`
}

// Client is a sources.Source for the form registry.
type Client struct {
	cfg        Config
	transport  *transport.Client
	normalizer *normalize.Normalizer
}

// New validates cfg and returns a Client.
func New(cfg Config, normalizer *normalize.Normalizer, opts ...transport.Option) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, errors.NewAuthenticationError(Name, "bearer", "access token is required", errors.ErrAPIKeyRequired)
	}
	if cfg.FormID == "" {
		return nil, errors.NewConfigError(Name, "form id is required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.TypeformBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > constants.FormPageSize {
		cfg.PageSize = constants.FormPageSize
	}
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	return &Client{
		cfg:        cfg,
		transport:  transport.New(Name, cfg.AccessToken, transport.BearerAuth{}, opts...),
		normalizer: normalizer,
	}, nil
}

// Origin implements sources.Source.
func (c *Client) Origin() records.Origin {
	return records.OriginForm
}

// Fetch pages backwards through completed responses with the "before"
// cursor until a short page, then normalizes them.
func (c *Client) Fetch(ctx context.Context) ([]records.SourceRecord, error) {
	log := logging.FromContext(ctx).With().Str("source", Name).Logger()

	var (
		responses []normalize.FormResponse
		before    string
		total     int
	)
	for {
		page, err := c.page(ctx, before)
		if err != nil {
			return nil, err
		}
		if total == 0 {
			total = page.TotalItems
		}
		responses = append(responses, page.Items...)
		if len(page.Items) < c.cfg.PageSize {
			break
		}
		last := page.Items[len(page.Items)-1].Token
		if last == "" || last == before {
			break
		}
		before = last
	}

	if total != 0 && total != len(responses) {
		log.Warn().Int("expected", total).Int("received", len(responses)).Msg("Response count differs from total_items")
	}

	seen := make(map[string]bool, len(responses))
	out := make([]records.SourceRecord, 0, len(responses))
	dropped := 0
	for _, resp := range responses {
		if resp.ResponseID != "" {
			if seen[resp.ResponseID] {
				log.Warn().Str("response_id", resp.ResponseID).Msg("Skipping repeated response")
				continue
			}
			seen[resp.ResponseID] = true
		}
		rec, ok := c.normalizer.Form(resp)
		if !ok {
			dropped++
			log.Debug().Str("response_id", resp.ResponseID).Msg("Dropping response without registration number")
			continue
		}
		out = append(out, rec)
	}

	log.Debug().Int("records", len(out)).Int("dropped", dropped).Msg("Fetched form responses")
	return out, nil
}

func (c *Client) page(ctx context.Context, before string) (*responsesPage, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(c.cfg.PageSize))
	q.Set("response_type", "completed")
	if before != "" {
		q.Set("before", before)
	}
	u := c.cfg.BaseURL + "/forms/" + url.PathEscape(c.cfg.FormID) + "/responses?" + q.Encode()

	var page responsesPage
	if err := c.transport.GetJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
