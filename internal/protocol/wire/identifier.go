package wire

import (
	"fmt"

	"github.com/danmuck/iggywire/internal/protocol/fault"
)

// Identifier kinds.
const (
	IdentifierNumeric uint8 = 1
	IdentifierString  uint8 = 2
)

const numericIdentifierLen = 4

// IdentifierKindName returns the display name of an identifier kind.
func IdentifierKindName(kind uint8) string {
	switch kind {
	case IdentifierNumeric:
		return "Numeric"
	case IdentifierString:
		return "String"
	default:
		return fmt.Sprintf("Unknown: %d", kind)
	}
}

// Identifier is a decoded kind+length+value triplet.
type Identifier struct {
	Kind    uint8
	Numeric uint32
	Text    string
}

func NumericID(v uint32) Identifier {
	return Identifier{Kind: IdentifierNumeric, Numeric: v}
}

func StringID(v string) Identifier {
	return Identifier{Kind: IdentifierString, Text: v}
}

func (id Identifier) String() string {
	if id.Kind == IdentifierNumeric {
		return fmt.Sprintf("%d", id.Numeric)
	}
	return id.Text
}

// Identifier decodes name+"_kind", name+"_len" and the value field name.
// A numeric id must be exactly 4 bytes; unknown kinds and bad numeric lengths
// are kept as raw bytes with an InvalidEncoding fault.
func (d *Decoder) Identifier(name string) (Identifier, bool) {
	kind := d.Uint8(name + "_kind")
	n := d.Uint8(name + "_len")
	if d.err != nil {
		return Identifier{}, false
	}
	switch {
	case kind == IdentifierNumeric && n == numericIdentifierLen:
		v := d.Uint32(name)
		return NumericID(v), d.err == nil
	case kind == IdentifierString:
		s, ok := d.String(name, int(n))
		return StringID(s), ok
	}
	b, ok := d.take(name, int(n))
	if !ok {
		return Identifier{}, false
	}
	detail := fmt.Sprintf("identifier kind %s with length %d", IdentifierKindName(kind), n)
	d.fields = append(d.fields, NewFaultField(name, fault.InvalidEncoding, b, detail))
	return Identifier{Kind: kind}, false
}

// PutIdentifier appends kind, length and value.
func (w *Writer) PutIdentifier(id Identifier) *Writer {
	if id.Kind == IdentifierNumeric {
		w.PutUint8(IdentifierNumeric)
		w.PutUint8(numericIdentifierLen)
		return w.PutUint32(id.Numeric)
	}
	w.PutUint8(IdentifierString)
	w.PutUint8(uint8(len(id.Text)))
	w.buf = append(w.buf, id.Text...)
	return w
}
