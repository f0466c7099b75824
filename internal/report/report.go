// Package report renders decoded messages and correlation faults as text or
// JSON lines.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/danmuck/iggywire/internal/protocol"
	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/session"
	"github.com/danmuck/iggywire/internal/protocol/wire"
)

var ErrUnknownFormat = errors.New("report: unknown format")

const (
	FormatText = "text"
	FormatJSON = "json"
)

const (
	RecordMessage    = "message"
	RecordUnanswered = "unanswered"
	RecordHalt       = "halt"
)

// FieldRecord is the JSON form of one decoded field.
type FieldRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
	Fault string `json:"fault,omitempty"`
}

type FaultRecord struct {
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Record is one JSON line.
type Record struct {
	Type       string        `json:"type"`
	Session    string        `json:"session,omitempty"`
	Direction  string        `json:"direction"`
	Seq        uint64        `json:"seq,omitempty"`
	Code       uint32        `json:"code"`
	Command    string        `json:"command,omitempty"`
	Status     *uint32       `json:"status,omitempty"`
	StatusName string        `json:"status_name,omitempty"`
	Length     uint32        `json:"length"`
	RequestSeq uint64        `json:"request_seq,omitempty"`
	Matched    bool          `json:"matched,omitempty"`
	Summary    string        `json:"summary,omitempty"`
	Fields     []FieldRecord `json:"fields,omitempty"`
	Faults     []FaultRecord `json:"faults,omitempty"`
}

// Writer serializes reports onto one output. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	fields bool
	enc    *json.Encoder
}

// NewWriter creates a writer. fields controls whether decoded fields are
// included next to the summary.
func NewWriter(out io.Writer, format string, fields bool) (*Writer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &Writer{
		out:    out,
		format: format,
		fields: fields,
		enc:    json.NewEncoder(out),
	}, nil
}

func (w *Writer) Message(sessionID string, m protocol.Message) error {
	rec := MessageRecord(sessionID, m)
	if !w.fields {
		rec.Fields = nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.format == FormatJSON {
		return w.enc.Encode(rec)
	}
	return w.writeText(sessionID, m)
}

func (w *Writer) Unanswered(sessionID string, u session.Unanswered) error {
	rec := Record{
		Type:      RecordUnanswered,
		Session:   sessionID,
		Direction: frame.Request.String(),
		Seq:       u.Seq,
		Code:      u.Code,
		Command:   u.Name,
		Faults:    []FaultRecord{faultRecord(u.Fault)},
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.format == FormatJSON {
		return w.enc.Encode(rec)
	}
	_, err := fmt.Fprintf(w.out, "%s! %s\n", prefix(sessionID, u.Seq), u.Fault.Error())
	return err
}

// Halt reports a direction that stopped reassembling.
func (w *Writer) Halt(sessionID string, dir frame.Direction, err error) error {
	flt, ok := fault.As(err)
	if !ok {
		flt = fault.New(fault.FrameTooLarge, "", err.Error())
	}
	rec := Record{
		Type:      RecordHalt,
		Session:   sessionID,
		Direction: dir.String(),
		Faults:    []FaultRecord{faultRecord(flt)},
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.format == FormatJSON {
		return w.enc.Encode(rec)
	}
	_, werr := fmt.Fprintf(w.out, "%s! %s halted: %s\n", prefix(sessionID, 0), dir, flt.Error())
	return werr
}

func (w *Writer) writeText(sessionID string, m protocol.Message) error {
	var b strings.Builder
	b.WriteString(prefix(sessionID, m.Seq))
	b.WriteString(m.Summary())
	if m.Matched {
		fmt.Fprintf(&b, " [request #%d]", m.RequestSeq)
	}
	b.WriteByte('\n')
	if w.fields {
		for _, f := range m.Fields {
			if f.Faulted() {
				continue
			}
			fmt.Fprintf(&b, "    %s = %s\n", f.Name, displayValue(f))
		}
	}
	for _, f := range m.Faults {
		fmt.Fprintf(&b, "    ! %s\n", f.Error())
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

// MessageRecord converts m to its JSON record.
func MessageRecord(sessionID string, m protocol.Message) Record {
	rec := Record{
		Type:       RecordMessage,
		Session:    sessionID,
		Direction:  m.Direction.String(),
		Seq:        m.Seq,
		Code:       m.Code,
		Command:    m.CommandName,
		Length:     m.DeclaredLength,
		RequestSeq: m.RequestSeq,
		Matched:    m.Matched,
		Summary:    m.Summary(),
	}
	if m.IsResponse() {
		status := m.Status
		rec.Status = &status
		rec.StatusName = m.StatusName
	}
	for _, f := range m.Fields {
		fr := FieldRecord{Name: f.Name, Type: f.Value.Kind.String(), Value: f.Any()}
		if f.Fault != nil {
			fr.Fault = f.Fault.Kind.String()
		}
		rec.Fields = append(rec.Fields, fr)
	}
	for _, f := range m.Faults {
		rec.Faults = append(rec.Faults, faultRecord(f))
	}
	return rec
}

func faultRecord(f fault.Fault) FaultRecord {
	return FaultRecord{Kind: f.Kind.String(), Field: f.Field, Detail: f.Detail}
}

func prefix(sessionID string, seq uint64) string {
	var b strings.Builder
	if sessionID != "" {
		b.WriteString("[" + sessionID + "] ")
	}
	if seq != 0 {
		fmt.Fprintf(&b, "#%d ", seq)
	}
	return b.String()
}

// identifier kinds are shown by name next to the numeric value
func displayValue(f wire.Field) string {
	if strings.HasSuffix(f.Name, "_id_kind") && f.Value.Kind == wire.KindUint8 {
		return fmt.Sprintf("%d (%s)", f.Value.Uint8, wire.IdentifierKindName(f.Value.Uint8))
	}
	return f.Text()
}
