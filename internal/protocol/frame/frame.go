package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	RequestHeaderLen  = 4 // length
	ResponseHeaderLen = 8 // status, length
	CodeLen           = 4
)

var (
	ErrInvalidDirection = errors.New("frame: invalid direction")
	ErrPayloadTooLarge  = errors.New("frame: payload exceeds u32 length")
)

// Direction is the side of a connection a frame travels on.
type Direction uint8

const (
	Request  Direction = iota + 1 // client -> server
	Response                      // server -> client
)

func (d Direction) String() string {
	switch d {
	case Request:
		return "request"
	case Response:
		return "response"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func (d Direction) Valid() bool {
	return d == Request || d == Response
}

// headerLen is the number of bytes up to and including the length field.
func (d Direction) headerLen() int {
	if d == Response {
		return ResponseHeaderLen
	}
	return RequestHeaderLen
}

// ParseDirection accepts request/response and the client/server aliases.
func ParseDirection(raw string) (Direction, error) {
	switch raw {
	case "request", "req", "client":
		return Request, nil
	case "response", "resp", "server":
		return Response, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}
}

// Frame is one complete wire unit. Length is the declared byte count that follows
// the length field: code plus payload for requests, payload for responses.
// Code is only meaningful for requests, Status only for responses.
type Frame struct {
	Direction Direction
	Length    uint32
	Code      uint32
	Status    uint32
	Payload   []byte
}

// HasCode reports whether a request frame was long enough to carry a command code.
func (f Frame) HasCode() bool {
	return f.Direction == Request && f.Length >= CodeLen
}

// Size is the total number of wire bytes the frame occupied.
func (f Frame) Size() int {
	return f.Direction.headerLen() + int(f.Length)
}

// Limits constrains reassembly memory use.
type Limits struct {
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 64 * 1024 * 1024,
	}
}

// AppendRequest appends length|code|payload.
func AppendRequest(dst []byte, code uint32, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(CodeLen+len(payload)))
	dst = binary.LittleEndian.AppendUint32(dst, code)
	return append(dst, payload...)
}

// AppendResponse appends status|length|payload.
func AppendResponse(dst []byte, status uint32, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, status)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// Encode returns the wire bytes for f. Length is recomputed from the payload.
func Encode(f Frame) ([]byte, error) {
	if uint64(len(f.Payload))+CodeLen > uint64(^uint32(0)) {
		return nil, ErrPayloadTooLarge
	}
	switch f.Direction {
	case Request:
		return AppendRequest(make([]byte, 0, RequestHeaderLen+CodeLen+len(f.Payload)), f.Code, f.Payload), nil
	case Response:
		return AppendResponse(make([]byte, 0, ResponseHeaderLen+len(f.Payload)), f.Status, f.Payload), nil
	default:
		return nil, ErrInvalidDirection
	}
}

func WriteFrame(w io.Writer, f Frame) error {
	b, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// parse splits a complete frame. raw holds exactly header+length bytes.
func parse(dir Direction, raw []byte) Frame {
	f := Frame{Direction: dir}
	switch dir {
	case Request:
		f.Length = binary.LittleEndian.Uint32(raw[0:4])
		body := raw[RequestHeaderLen:]
		if len(body) >= CodeLen {
			f.Code = binary.LittleEndian.Uint32(body[0:4])
			f.Payload = body[CodeLen:]
		} else {
			f.Payload = body
		}
	case Response:
		f.Status = binary.LittleEndian.Uint32(raw[0:4])
		f.Length = binary.LittleEndian.Uint32(raw[4:8])
		f.Payload = raw[ResponseHeaderLen:]
	}
	return f
}
