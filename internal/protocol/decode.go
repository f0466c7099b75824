package protocol

import (
	"github.com/danmuck/iggywire/internal/protocol/command"
	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

// OpaqueField names the bytes field used when no payload layout can be applied.
const OpaqueField = "payload"

// Decoder turns complete frames into messages. It holds no per-connection state
// and is safe for concurrent use.
type Decoder struct {
	catalog *command.Catalog
}

// NewDecoder binds a decoder to c. A nil catalog selects command.Default().
func NewDecoder(c *command.Catalog) *Decoder {
	if c == nil {
		c = command.Default()
	}
	return &Decoder{catalog: c}
}

func (d *Decoder) Catalog() *command.Catalog {
	return d.catalog
}

// DecodeRequest decodes a request frame. Unknown codes keep the frame-level
// fields and report the payload as one opaque bytes field.
func (d *Decoder) DecodeRequest(f frame.Frame) Message {
	m := Message{
		Direction:      frame.Request,
		Code:           f.Code,
		DeclaredLength: f.Length,
		Payload:        f.Payload,
	}
	if !f.HasCode() {
		m.Fields = wire.Fields{wire.NewFaultField("code", fault.TruncatedPayload, f.Payload, "frame shorter than command code")}
		m.Faults = m.Fields.Faults()
		log.Warn().Uint32("length", f.Length).Msg("protocol.DecodeRequest frame without command code")
		return m
	}

	desc, ok := d.catalog.Lookup(f.Code)
	if !ok {
		m.Fields = opaque(f.Payload)
		log.Debug().Uint32("code", f.Code).Int("payload", len(f.Payload)).Msg("protocol.DecodeRequest unknown command")
		return m
	}
	m.CommandName = desc.Name
	m.Fields = d.runDecoder(desc.Request, f.Payload)
	m.Faults = m.Fields.Faults()
	logFaults("protocol.DecodeRequest", m)
	return m
}

// DecodeResponse decodes the frame-level part of a response. The command it
// answers is unknown here; Resolve completes the message after correlation.
func (d *Decoder) DecodeResponse(f frame.Frame) Message {
	return Message{
		Direction:      frame.Response,
		Status:         f.Status,
		StatusName:     command.StatusName(f.Status),
		DeclaredLength: f.Length,
		Payload:        f.Payload,
		Fields:         opaque(f.Payload),
	}
}

// Resolve attaches the identity of the request m answers and decodes its payload.
// The response layout only applies to status 0; error responses keep an opaque
// payload.
func (d *Decoder) Resolve(m Message, code uint32) Message {
	if !m.IsResponse() {
		return m
	}
	m.Code = code
	desc, ok := d.catalog.Lookup(code)
	if !ok {
		m.Fields = opaque(m.Payload)
		return m
	}
	m.CommandName = desc.Name
	if m.Status != command.StatusOK {
		m.Fields = opaque(m.Payload)
		return m
	}
	m.Fields = d.runDecoder(desc.Response, m.Payload)
	m.Faults = append(m.Faults, m.Fields.Faults()...)
	logFaults("protocol.Resolve", m)
	return m
}

func (d *Decoder) runDecoder(fn command.DecodeFunc, payload []byte) wire.Fields {
	if fn == nil {
		return opaque(payload)
	}
	// the error is already recorded as a fault marker field
	fields, _ := fn(payload)
	return fields
}

func opaque(payload []byte) wire.Fields {
	if len(payload) == 0 {
		return nil
	}
	return wire.Fields{wire.NewBytesField(OpaqueField, payload)}
}

func logFaults(op string, m Message) {
	for _, f := range m.Faults {
		log.Warn().
			Str("direction", m.Direction.String()).
			Str("command", m.CommandName).
			Str("fault", f.Kind.String()).
			Str("field", f.Field).
			Str("detail", f.Detail).
			Msg(op + " field fault")
	}
}
