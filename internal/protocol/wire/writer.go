package wire

import "encoding/binary"

// Writer builds little-endian payloads in the same layouts Decoder reads.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) PutUint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) PutUint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) PutUint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *Writer) PutBytes(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// PutString8 appends a u8 length and the text. Text longer than 255 bytes is cut.
func (w *Writer) PutString8(s string) *Writer {
	if len(s) > 0xff {
		s = s[:0xff]
	}
	w.PutUint8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// PutString32 appends a u32 length and the text.
func (w *Writer) PutString32(s string) *Writer {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the built payload. The slice is owned by the writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}
