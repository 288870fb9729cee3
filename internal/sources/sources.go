// Package sources defines the registry clients a sync pass pulls from.
package sources

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/mirrorsync/pkg/errors"
	"github.com/agentstation/mirrorsync/pkg/records"
)

// Source fetches the complete, normalized record set of one registry.
// Records sharing a business key are all returned; only transport-level
// repeats of the same registry record are removed.
type Source interface {
	Origin() records.Origin
	Fetch(ctx context.Context) ([]records.SourceRecord, error)
}

// Set holds at most one Source per origin.
type Set struct {
	mu      sync.RWMutex
	sources map[records.Origin]Source
}

// NewSet returns a Set holding srcs.
func NewSet(srcs ...Source) *Set {
	s := &Set{sources: make(map[records.Origin]Source)}
	for _, src := range srcs {
		s.Register(src)
	}
	return s
}

// Register adds or replaces the source for its origin.
func (s *Set) Register(src Source) {
	if src == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.Origin()] = src
}

// Get returns the source for origin.
func (s *Set) Get(origin records.Origin) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[origin]
	if !ok {
		return nil, errors.NewNotFoundError("source", string(origin))
	}
	return src, nil
}

// Origins returns the registered origins in stable order.
func (s *Set) Origins() []records.Origin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []records.Origin
	for _, o := range records.Origins() {
		if _, ok := s.sources[o]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Static is a Source serving a fixed record set. Err, when set, is returned by Fetch.
type Static struct {
	From    records.Origin
	Records []records.SourceRecord
	Err     error

	mu sync.Mutex
}

// Origin implements Source.
func (s *Static) Origin() records.Origin { return s.From }

// Fetch implements Source.
func (s *Static) Fetch(ctx context.Context) ([]records.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return slices.Clone(s.Records), nil
}

// Set replaces the records served by Fetch.
func (s *Static) Set(recs []records.SourceRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = recs
	s.Err = err
}
