package protocol

import (
	"fmt"

	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/wire"
)

// Message is one decoded request or response.
//
// CommandName is empty when the command is unknown, and for responses until they
// are correlated with a request. Faults collects the field faults of Fields plus
// message-level faults such as UnmatchedResponse.
type Message struct {
	Direction      frame.Direction
	Seq            uint64
	Code           uint32
	Status         uint32
	StatusName     string
	CommandName    string
	DeclaredLength uint32
	Fields         wire.Fields
	Payload        []byte
	Faults         []fault.Fault

	// Set on responses that were paired with a request.
	RequestSeq uint64
	Matched    bool
}

func (m Message) IsRequest() bool {
	return m.Direction == frame.Request
}

func (m Message) IsResponse() bool {
	return m.Direction == frame.Response
}

// Known reports whether the command identity is resolved.
func (m Message) Known() bool {
	return m.CommandName != ""
}

// HasFault reports whether any fault of kind is attached.
func (m Message) HasFault(kind fault.Kind) bool {
	for _, f := range m.Faults {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// AddFault attaches a message-level fault.
func (m *Message) AddFault(f fault.Fault) {
	m.Faults = append(m.Faults, f)
}

// Field returns the named decoded field.
func (m Message) Field(name string) (wire.Field, bool) {
	return m.Fields.Get(name)
}

// Summary renders a one-line description of the message.
func (m Message) Summary() string {
	name := m.CommandName
	if name == "" {
		name = "Unknown"
	}
	switch m.Direction {
	case frame.Request:
		return fmt.Sprintf("Request: %s (code=%d, length=%d)", name, m.Code, m.DeclaredLength)
	case frame.Response:
		if !m.Known() {
			name = "Unmatched"
		}
		if m.Status == 0 {
			return fmt.Sprintf("Response: %s %s (length=%d)", name, m.StatusName, m.DeclaredLength)
		}
		return fmt.Sprintf("Response: %s %s (status=%d, length=%d)", name, m.StatusName, m.Status, m.DeclaredLength)
	default:
		return fmt.Sprintf("Message: %s (length=%d)", m.Direction, m.DeclaredLength)
	}
}
