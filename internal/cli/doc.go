// Package cli parses command-line arguments into the app configuration and
// defines the process-level ExitError used to pick exit codes.
package cli
