package handlers

import (
	"net/http"

	"github.com/agentstation/mirrorsync/internal/matcher"
	"github.com/agentstation/mirrorsync/internal/server/cache"
	"github.com/agentstation/mirrorsync/internal/server/response"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// HandleMerged handles GET /api/data/merged[?match=pattern]: both mirrors
// joined by registration number. A side missing from one mirror renders as {}.
func (h *Handlers) HandleMerged(w http.ResponseWriter, r *http.Request) {
	m, err := matcher.Parse(r.URL.Query().Get("match"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	client, err := h.app.Client()
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	merged, hit, err := cache.Load(h.cache, cache.MergedKey, func() ([]records.MergedRecord, error) {
		return client.Merged(r.Context())
	})
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	if merged == nil {
		merged = []records.MergedRecord{}
	}
	setCacheHeader(w, hit)
	response.OK(w, matcher.Filter(m, merged, func(r records.MergedRecord) string { return r.Key }))
}

// HandleQuarantine handles GET /api/data/quarantine?origin=form|sheet&match=pattern.
// Without origin both are listed.
func (h *Handlers) HandleQuarantine(w http.ResponseWriter, r *http.Request) {
	m, err := matcher.Parse(r.URL.Query().Get("match"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	var origin records.Origin
	if raw := r.URL.Query().Get("origin"); raw != "" {
		o, err := records.ParseOrigin(raw)
		if err != nil {
			response.ErrorFromType(w, err)
			return
		}
		origin = o
	}

	client, err := h.app.Client()
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	entries, hit, err := cache.Load(h.cache, cache.QuarantineKey(origin), func() ([]records.QuarantineRecord, error) {
		return client.Quarantined(r.Context(), origin)
	})
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	if entries == nil {
		entries = []records.QuarantineRecord{}
	}
	setCacheHeader(w, hit)
	response.OK(w, matcher.Filter(m, entries, func(q records.QuarantineRecord) string { return q.Key }))
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}
