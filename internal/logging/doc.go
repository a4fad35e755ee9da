// Package logging provides file-based structured logging with rotation for
// docindex. Logs are written as JSON to ~/.docindex/logs/docindex.log by
// default, with a mirrored stream to stderr unless disabled.
package logging
