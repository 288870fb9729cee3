package reconcile

import (
	"slices"

	"github.com/agentstation/mirrorsync/pkg/constants"
	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Policy parameterizes a pass for one origin.
type Policy struct {
	Origin records.Origin
	// WatchedFields are compared to detect updates. With no watched fields a
	// record already in the mirror is never rewritten.
	WatchedFields []string
}

// DefaultPolicy returns the policy used for origin: the sheet origin watches
// its lab measurements, the form origin only adds and deletes.
func DefaultPolicy(origin records.Origin) Policy {
	p := Policy{Origin: origin}
	if origin == records.OriginSheet {
		p.WatchedFields = slices.Clone(constants.SheetWatchedFields)
	}
	return p
}

// DetectsUpdates reports whether the policy compares field content.
func (p Policy) DetectsUpdates() bool {
	return len(p.WatchedFields) > 0
}

// Validate checks the origin.
func (p Policy) Validate() error {
	if !p.Origin.Valid() {
		return errors.NewValidationError("origin", p.Origin, "unknown origin")
	}
	return nil
}
