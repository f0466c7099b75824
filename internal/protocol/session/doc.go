// Package session owns per-connection correlation.
//
// Ownership boundary:
// - one frame.Reassembler per direction
// - FIFO pending-request queue
// - request/response pairing and close-time reporting
//
// A Session never blocks. Bytes are pushed in by the caller (the tap, the decode
// command, tests); each direction may be fed from its own goroutine.
package session
