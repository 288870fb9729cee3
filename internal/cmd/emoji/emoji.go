// Package emoji provides the status symbols used in CLI output.
package emoji

// Status symbols.
const (
	// Success marks a completed pass or operation.
	Success = "✓"

	// Error marks a failed pass or missing configuration.
	Error = "✗"

	// Stop marks a shutdown.
	Stop = "✗"

	// Warning marks write failures and other non-fatal problems.
	Warning = "!"

	// Info marks informational lines such as dry-run notices.
	Info = "i"
)
