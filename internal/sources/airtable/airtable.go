// Package airtable fetches every row of one table and normalizes them into
// sheet-origin source records.
package airtable

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/agentstation/mirrorsync/internal/transport"
	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/normalize"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Name identifies the registry in errors and logs.
const Name = "airtable"

// Config configures a Client.
type Config struct {
	APIKey   string
	BaseID   string
	TableID  string
	BaseURL  string
	PageSize int
}

// listPage is one page of GET /v0/{base}/{table}.
type listPage struct {
	Records []normalize.SheetRecord `json:"records"`
	Offset  string                  `json:"offset"`
}

// Client is a sources.Source for the sheet registry.
type Client struct {
	cfg        Config
	transport  *transport.Client
	normalizer *normalize.Normalizer
}

// New validates cfg and returns a Client.
func New(cfg Config, normalizer *normalize.Normalizer, opts ...transport.Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewAuthenticationError(Name, "bearer", "API key is required", errors.ErrAPIKeyRequired)
	}
	if cfg.BaseID == "" || cfg.TableID == "" {
		return nil, errors.NewConfigError(Name, "base id and table id are required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.AirtableBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > constants.DefaultPageSize {
		cfg.PageSize = constants.DefaultPageSize
	}
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	return &Client{
		cfg:        cfg,
		transport:  transport.New(Name, cfg.APIKey, transport.BearerAuth{}, opts...),
		normalizer: normalizer,
	}, nil
}

// Origin implements sources.Source.
func (c *Client) Origin() records.Origin {
	return records.OriginSheet
}

// Fetch follows the offset cursor to the last page. Rows are returned newest
// first by creation time.
func (c *Client) Fetch(ctx context.Context) ([]records.SourceRecord, error) {
	log := logging.FromContext(ctx).With().Str("source", Name).Logger()

	var (
		rows   []normalize.SheetRecord
		offset string
	)
	for {
		page, err := c.page(ctx, offset)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Records...)
		if page.Offset == "" || page.Offset == offset {
			break
		}
		offset = page.Offset
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedTime.After(rows[j].CreatedTime)
	})

	seen := make(map[string]bool, len(rows))
	out := make([]records.SourceRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if row.ID != "" {
			if seen[row.ID] {
				log.Warn().Str("record_id", row.ID).Msg("Skipping repeated row")
				continue
			}
			seen[row.ID] = true
		}
		rec, ok := c.normalizer.Sheet(row)
		if !ok {
			dropped++
			log.Debug().Str("record_id", row.ID).Msg("Dropping row without registration number")
			continue
		}
		out = append(out, rec)
	}

	log.Debug().Int("records", len(out)).Int("dropped", dropped).Msg("Fetched sheet rows")
	return out, nil
}

func (c *Client) page(ctx context.Context, offset string) (*listPage, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	if offset != "" {
		q.Set("offset", offset)
	}
	u := c.cfg.BaseURL + "/v0/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(c.cfg.TableID) + "?" + q.Encode()

	var page listPage
	if err := c.transport.GetJSON(ctx, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
