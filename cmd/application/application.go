// Package application defines what commands and the HTTP server need from
// the running program.
//
// Commands accept the Application interface rather than the concrete App,
// so tests can pass a Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (mirrorsync.Client, error) {
//	        return testClient, nil
//	    },
//	}
//	cmd := sync.NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/mirrorsync"
)

// Application provides the application interface that commands need.
// The App struct from cmd/mirrorsync/app implements it.
//
// All methods must be safe for concurrent access.
type Application interface {
	// Client returns the shared sync client, building the store gateway and
	// registry clients on first use.
	Client() (mirrorsync.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
