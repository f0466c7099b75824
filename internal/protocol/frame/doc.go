// Package frame owns framing: the per-direction reassembler that turns fragmented
// bytes into complete request and response frames, and the frame encoders.
package frame
