package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/internal/server/response"
	"github.com/agentstation/mirrorsync/pkg/logging"
	"github.com/agentstation/mirrorsync/pkg/reconcile"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// HandleSync handles POST /api/data/sync/{origin}.
// Query: dry_run=true computes the pass without writing.
// Responds 200 with the pass summary, 400 for an unknown origin, 502 when
// a fetch failed.
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	origin, err := records.ParseOrigin(chi.URLParam(r, "origin"))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	h.syncOrigin(w, r, origin)
}

// SyncOrigin returns a handler running a pass for a fixed origin.
func (h *Handlers) SyncOrigin(origin records.Origin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.syncOrigin(w, r, origin)
	}
}

func (h *Handlers) syncOrigin(w http.ResponseWriter, r *http.Request, origin records.Origin) {
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}

	client, err := h.app.Client()
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	res, err := client.Sync(r.Context(), origin, mirrorsync.SyncWithDryRun(dryRun))
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("origin", string(origin)).Msg("Sync request failed")
		response.ErrorFromType(w, err)
		return
	}

	h.invalidate(res)
	response.Summary(w, res.Summary())
}

// HandleSyncAll handles POST /api/data/sync. Both origins run concurrently;
// any failed pass fails the request.
func (h *Handlers) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := parseDryRun(w, r)
	if !ok {
		return
	}

	client, err := h.app.Client()
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	results, err := client.SyncAll(r.Context(), mirrorsync.SyncWithDryRun(dryRun))
	for _, res := range results {
		h.invalidate(res)
	}
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("Sync request failed")
		response.ErrorFromType(w, err)
		return
	}

	summaries := make([]reconcile.Summary, len(results))
	for i, res := range results {
		summaries[i] = res.Summary()
	}
	response.Summary(w, summaries)
}

// invalidate drops cached views after a pass that could have written.
func (h *Handlers) invalidate(res *reconcile.Result) {
	if !res.DryRun {
		h.cache.Invalidate()
	}
}

func parseDryRun(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("dry_run")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		response.BadRequest(w, "Invalid dry_run parameter", "dry_run must be a boolean")
		return false, false
	}
	return v, true
}
