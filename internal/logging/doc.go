// Package logging provides structured logging for the Salus tools.
//
// This package wraps a zap logger with convenience functions used throughout
// the client, the poll loop and the state feed server.
//
// # Log Levels
//
//   - Debug: vendor requests, raw payload dumps, token refreshes
//   - Info: state changes, commands, server lifecycle
//   - Warn: failed poll cycles, recovered token expiry
//   - Error: startup failures, command failures
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// SALUS_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that JSON output from the CLI stays clean.
//
// # Secrets
//
// Passwords and session tokens must go through Redact before being logged.
package logging
