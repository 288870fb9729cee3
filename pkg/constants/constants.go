// Package constants provides shared constants used throughout mirrorsync.
// This includes timeouts, page sizes, file permissions and the default
// names of the registries, tables and watched fields.
package constants

import "time"

// Timeout constants.
const (
	// DefaultHTTPTimeout bounds every request to an external registry.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for short operations such as store pings.
	DefaultTimeout = 10 * time.Second

	// SyncTimeout bounds one scheduled sync pass.
	SyncTimeout = 10 * time.Minute

	// DefaultSyncInterval is the default interval between scheduled passes.
	DefaultSyncInterval = 15 * time.Minute

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	ShutdownTimeout = 15 * time.Second

	// ReadHeaderTimeout bounds reading request headers on the HTTP server.
	ReadHeaderTimeout = 10 * time.Second
)

// File permission constants.
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x).
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--).
	FilePermissions = 0644
)

// Paging constants.
const (
	// DefaultPageSize is the page size used when scanning store tables and the sheet registry.
	DefaultPageSize = 100

	// FormPageSize is the largest page the form registry serves.
	FormPageSize = 1000
)

// Registry endpoints.
const (
	TypeformBaseURL = "https://api.typeform.com"
	AirtableBaseURL = "https://api.airtable.com"
)

// Default store table names.
const (
	FormTable       = "mirror_form"
	SheetTable      = "mirror_sheet"
	QuarantineTable = "quarantine"
)

// DefaultKeyAttribute is the attribute holding the business key in DynamoDB items.
const DefaultKeyAttribute = "registration_number"

// NumericTolerance is the absolute difference under which two numeric field values are equal.
const NumericTolerance = 1e-4

// SheetWatchedFields are the sheet fields whose changes trigger an update.
var SheetWatchedFields = []string{"vial1_volume", "vial2_volume", "total_motility", "morphology"}
