// Package logging provides file-based logging with rotation for CodeNav.
// When the --debug flag is set, debug-level logs are written to ~/.codenavd/logs/
// (and to stderr) for debugging and troubleshooting.
//
// Without --debug, the index command still writes info-level logs to that
// file (not to stderr); other commands log through slog's default stderr
// logger.
package logging
