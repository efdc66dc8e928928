// Package logging provides file-based logging with rotation for ragex.
// Structured JSON logs are written to ~/.ragex/logs/server.log at info
// level by default; the --debug flag lowers the level to debug.
//
// CLI commands mirror the records to stderr; the daemon writes them to the
// rotating file only.
package logging
