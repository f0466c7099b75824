package frame

import (
	"encoding/binary"

	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/rs/zerolog/log"
)

// compactThreshold is the consumed prefix size after which the buffer is shifted.
const compactThreshold = 64 * 1024

// Reassembler turns arbitrarily fragmented bytes of one direction into frames.
// It is not safe for concurrent use; callers confine it to one writer.
type Reassembler struct {
	dir    Direction
	limits Limits
	buf    []byte
	off    int
	err    error
	frames uint64
}

func NewReassembler(dir Direction, limits Limits) *Reassembler {
	if limits.MaxFrameBytes == 0 {
		limits = DefaultLimits()
	}
	return &Reassembler{dir: dir, limits: limits}
}

func (r *Reassembler) Direction() Direction {
	return r.dir
}

// Feed appends p to the stream buffer. p is copied. After a FrameTooLarge fault
// the direction is desynchronized and Feed keeps returning that fault.
func (r *Reassembler) Feed(p []byte) error {
	if r.err != nil {
		return r.err
	}
	r.buf = append(r.buf, p...)
	return nil
}

// Next extracts one complete frame. It returns ok=false with a nil error when more
// bytes are needed.
func (r *Reassembler) Next() (Frame, bool, error) {
	if r.err != nil {
		return Frame{}, false, r.err
	}
	avail := r.buf[r.off:]
	hdr := r.dir.headerLen()
	if len(avail) < hdr {
		return Frame{}, false, nil
	}
	length := binary.LittleEndian.Uint32(avail[hdr-4 : hdr])
	if length > r.limits.MaxFrameBytes {
		r.err = fault.Newf(fault.FrameTooLarge, "length", "%s frame declares %d bytes, limit %d",
			r.dir, length, r.limits.MaxFrameBytes)
		log.Error().
			Str("direction", r.dir.String()).
			Uint32("length", length).
			Uint32("limit", r.limits.MaxFrameBytes).
			Uint64("frames", r.frames).
			Msg("frame.Reassembler halted")
		return Frame{}, false, r.err
	}
	total := hdr + int(length)
	if len(avail) < total {
		return Frame{}, false, nil
	}

	raw := make([]byte, total)
	copy(raw, avail[:total])
	r.off += total
	r.compact()
	r.frames++

	f := parse(r.dir, raw)
	log.Trace().
		Str("direction", r.dir.String()).
		Uint32("length", f.Length).
		Int("buffered", r.Buffered()).
		Msg("frame.Reassembler extracted frame")
	return f, true, nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (r *Reassembler) Buffered() int {
	return len(r.buf) - r.off
}

// Frames returns the number of frames extracted since the last Reset.
func (r *Reassembler) Frames() uint64 {
	return r.frames
}

// Err returns the halting fault, if any.
func (r *Reassembler) Err() error {
	return r.err
}

// Reset drops buffered bytes and clears a halt.
func (r *Reassembler) Reset() {
	r.buf = nil
	r.off = 0
	r.err = nil
	r.frames = 0
}

func (r *Reassembler) compact() {
	if r.off == len(r.buf) {
		r.buf = r.buf[:0]
		r.off = 0
		return
	}
	if r.off < compactThreshold {
		return
	}
	n := copy(r.buf, r.buf[r.off:])
	r.buf = r.buf[:n]
	r.off = 0
}
