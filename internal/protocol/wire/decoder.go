package wire

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/danmuck/iggywire/internal/protocol/fault"
)

// Decoder walks a little-endian payload and records named fields in order.
//
// The first read past the end of the payload records a TruncatedPayload fault
// marker and makes every later read a no-op, so layouts can be written as
// straight-line code and still yield the partial field set. Invalid UTF-8 only
// faults the affected field.
type Decoder struct {
	buf    []byte
	off    int
	fields Fields
	err    error
}

func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

// Len returns the number of unread bytes.
func (d *Decoder) Len() int {
	if d.err != nil {
		return 0
	}
	return len(d.buf) - d.off
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.off
}

// Err returns the truncation fault, if any.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) Fields() Fields {
	return d.fields
}

// Add appends an already decoded field.
func (d *Decoder) Add(f Field) {
	d.fields = append(d.fields, f)
}

func (d *Decoder) take(name string, n int) ([]byte, bool) {
	if d.err != nil {
		return nil, false
	}
	if n < 0 || len(d.buf)-d.off < n {
		have := len(d.buf) - d.off
		rest := d.buf[d.off:]
		d.off = len(d.buf)
		flt := fault.Newf(fault.TruncatedPayload, name, "need %d bytes, have %d", n, have)
		d.fields = append(d.fields, NewFaultField(name, fault.TruncatedPayload, rest, flt.Detail))
		d.err = flt
		return nil, false
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, true
}

func (d *Decoder) Uint8(name string) uint8 {
	b, ok := d.take(name, 1)
	if !ok {
		return 0
	}
	d.fields = append(d.fields, NewUint8Field(name, b[0]))
	return b[0]
}

func (d *Decoder) Uint32(name string) uint32 {
	b, ok := d.take(name, 4)
	if !ok {
		return 0
	}
	v := binary.LittleEndian.Uint32(b)
	d.fields = append(d.fields, NewUint32Field(name, v))
	return v
}

func (d *Decoder) Uint64(name string) uint64 {
	b, ok := d.take(name, 8)
	if !ok {
		return 0
	}
	v := binary.LittleEndian.Uint64(b)
	d.fields = append(d.fields, NewUint64Field(name, v))
	return v
}

// String reads n bytes of UTF-8 text.
func (d *Decoder) String(name string, n int) (string, bool) {
	b, ok := d.take(name, n)
	if !ok {
		return "", false
	}
	if !utf8.Valid(b) {
		d.fields = append(d.fields, NewFaultField(name, fault.InvalidEncoding, b, "invalid utf-8"))
		return "", false
	}
	s := string(b)
	d.fields = append(d.fields, NewStringField(name, s))
	return s, true
}

func (d *Decoder) Bytes(name string, n int) []byte {
	b, ok := d.take(name, n)
	if !ok {
		return nil
	}
	f := NewBytesField(name, b)
	d.fields = append(d.fields, f)
	return f.Value.Bytes
}

// String8 reads a u8 length named name+"_len" followed by that many bytes of text.
func (d *Decoder) String8(name string) (string, bool) {
	n := d.Uint8(name + "_len")
	if d.err != nil {
		return "", false
	}
	return d.String(name, int(n))
}

// String32 is String8 with a u32 length.
func (d *Decoder) String32(name string) (string, bool) {
	n := d.Uint32(name + "_len")
	if d.err != nil {
		return "", false
	}
	return d.String(name, int(n))
}

// Rest records the unread bytes, if any, as one bytes field.
func (d *Decoder) Rest(name string) []byte {
	if d.Len() == 0 {
		return nil
	}
	return d.Bytes(name, d.Len())
}

// Finish records trailing bytes and returns the decoded fields.
func (d *Decoder) Finish() (Fields, error) {
	d.Rest("trailing")
	return d.fields, d.err
}
