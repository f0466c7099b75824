// Package protocol owns frame -> message decoding.
//
// Ownership boundary:
// - request/response message model
// - command dispatch through the catalog
// - response identity resolution once a request is correlated
//
// Framing lives in protocol/frame, payload layouts in protocol/command and the
// request/response pairing in protocol/session.
package protocol
