package wire

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/iggywire/internal/protocol/fault"
)

var (
	ErrFieldTypeMismatch = errors.New("wire: field type mismatch")
	ErrFieldNotFound     = errors.New("wire: field not found")
)

// ValueKind identifies the decoded type of a field value.
type ValueKind uint8

const (
	KindUint8 ValueKind = iota + 1
	KindUint32
	KindUint64
	KindString
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindUint32:
		return "u32"
	case KindUint64:
		return "u64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded field value.
type Value struct {
	Kind   ValueKind
	Uint8  uint8
	Uint32 uint32
	Uint64 uint64
	String string
	Bytes  []byte
}

// Field is one named, decoded payload field. A field with a non-nil Fault is a
// fault marker; its Value holds whatever raw bytes were recovered.
type Field struct {
	Name  string
	Value Value
	Fault *fault.Fault
}

// Fields preserves wire order.
type Fields []Field

func NewUint8Field(name string, v uint8) Field {
	return Field{Name: name, Value: Value{Kind: KindUint8, Uint8: v}}
}

func NewUint32Field(name string, v uint32) Field {
	return Field{Name: name, Value: Value{Kind: KindUint32, Uint32: v}}
}

func NewUint64Field(name string, v uint64) Field {
	return Field{Name: name, Value: Value{Kind: KindUint64, Uint64: v}}
}

func NewStringField(name, v string) Field {
	return Field{Name: name, Value: Value{Kind: KindString, String: v}}
}

// NewBytesField copies v.
func NewBytesField(name string, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{Name: name, Value: Value{Kind: KindBytes, Bytes: buf}}
}

// NewFaultField creates a fault marker field.
func NewFaultField(name string, kind fault.Kind, raw []byte, detail string) Field {
	f := NewBytesField(name, raw)
	flt := fault.New(kind, name, detail)
	f.Fault = &flt
	return f
}

func (f Field) Faulted() bool {
	return f.Fault != nil
}

// Any returns the value as a plain Go value.
func (f Field) Any() any {
	switch f.Value.Kind {
	case KindUint8:
		return f.Value.Uint8
	case KindUint32:
		return f.Value.Uint32
	case KindUint64:
		return f.Value.Uint64
	case KindString:
		return f.Value.String
	default:
		return f.Value.Bytes
	}
}

// Text renders the value for display.
func (f Field) Text() string {
	switch f.Value.Kind {
	case KindUint8:
		return strconv.FormatUint(uint64(f.Value.Uint8), 10)
	case KindUint32:
		return strconv.FormatUint(uint64(f.Value.Uint32), 10)
	case KindUint64:
		return strconv.FormatUint(f.Value.Uint64, 10)
	case KindString:
		return strconv.Quote(f.Value.String)
	default:
		return fmt.Sprintf("%d bytes %x", len(f.Value.Bytes), f.Value.Bytes)
	}
}

// Get returns the first field with the given name.
func (fs Fields) Get(name string) (Field, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (fs Fields) Uint8(name string) (uint8, error) {
	f, err := fs.lookup(name, KindUint8)
	if err != nil {
		return 0, err
	}
	return f.Value.Uint8, nil
}

func (fs Fields) Uint32(name string) (uint32, error) {
	f, err := fs.lookup(name, KindUint32)
	if err != nil {
		return 0, err
	}
	return f.Value.Uint32, nil
}

func (fs Fields) Uint64(name string) (uint64, error) {
	f, err := fs.lookup(name, KindUint64)
	if err != nil {
		return 0, err
	}
	return f.Value.Uint64, nil
}

func (fs Fields) String(name string) (string, error) {
	f, err := fs.lookup(name, KindString)
	if err != nil {
		return "", err
	}
	return f.Value.String, nil
}

// Bytes returns a copy of a bytes field.
func (fs Fields) Bytes(name string) ([]byte, error) {
	f, err := fs.lookup(name, KindBytes)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value.Bytes))
	copy(buf, f.Value.Bytes)
	return buf, nil
}

// Faults collects the fault markers in wire order.
func (fs Fields) Faults() []fault.Fault {
	var out []fault.Fault
	for _, f := range fs {
		if f.Fault != nil {
			out = append(out, *f.Fault)
		}
	}
	return out
}

func (fs Fields) lookup(name string, kind ValueKind) (Field, error) {
	f, ok := fs.Get(name)
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	if f.Fault != nil {
		return Field{}, *f.Fault
	}
	if f.Value.Kind != kind {
		return Field{}, fmt.Errorf("%w: %s is %s, want %s", ErrFieldTypeMismatch, name, f.Value.Kind, kind)
	}
	return f, nil
}
