package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync"
	"github.com/agentstation/mirrorsync/pkg/errors"
)

var _ Application = (*Mock)(nil)

// Mock is an Application for tests. Unset funcs fall back to zero values.
type Mock struct {
	ClientFunc func() (mirrorsync.Client, error)
	LoggerFunc func() *zerolog.Logger
	Format     string
	VersionStr string
}

// Client implements Application.
func (m *Mock) Client() (mirrorsync.Client, error) {
	if m.ClientFunc == nil {
		return nil, errNoClient
	}
	return m.ClientFunc()
}

// Logger implements Application.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc == nil {
		l := zerolog.Nop()
		return &l
	}
	return m.LoggerFunc()
}

// OutputFormat implements Application.
func (m *Mock) OutputFormat() string { return m.Format }

// Version implements Application.
func (m *Mock) Version() string {
	if m.VersionStr == "" {
		return "dev"
	}
	return m.VersionStr
}

// Commit implements Application.
func (m *Mock) Commit() string { return "none" }

// Date implements Application.
func (m *Mock) Date() string { return "unknown" }

// BuiltBy implements Application.
func (m *Mock) BuiltBy() string { return "test" }

var errNoClient = errors.NewConfigError("application", "no client configured", nil)
