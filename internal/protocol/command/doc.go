// Package command owns the command catalog and per-command payload layouts.
//
// Ownership boundary:
// - code -> name/decoder lookup (immutable, extensible by copy)
// - request and response payload decoders
// - payload builders for the same layouts
// - response status-code table
package command
