package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/iggywire/internal/protocol"
	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("session: closed")

// Observer receives decode events. Implementations must be safe for concurrent
// use because the two directions may be fed from different goroutines.
type Observer interface {
	ObserveFrame(dir frame.Direction, size int)
	ObserveMessage(m protocol.Message)
	ObserveFault(dir frame.Direction, f fault.Fault)
}

type Option func(*Session)

func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

type stream struct {
	mu  sync.Mutex
	r   *frame.Reassembler
	seq uint64
}

// Session decodes and correlates both directions of one connection.
type Session struct {
	id        string
	cfg       Config
	decoder   *protocol.Decoder
	observer  Observer
	startedAt time.Time

	req     stream
	resp    stream
	pending *PendingQueue

	closed    atomic.Bool
	requests  atomic.Uint64
	responses atomic.Uint64
	unmatched atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// NewSession creates a session. A nil decoder uses the default catalog.
func NewSession(id string, cfg Config, decoder *protocol.Decoder, opts ...Option) *Session {
	if decoder == nil {
		decoder = protocol.NewDecoder(nil)
	}
	if cfg.Limits.MaxFrameBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	s := &Session{
		id:        id,
		cfg:       cfg,
		decoder:   decoder,
		startedAt: time.Now(),
		pending:   NewPendingQueue(),
	}
	s.req.r = frame.NewReassembler(frame.Request, cfg.Limits)
	s.resp.r = frame.NewReassembler(frame.Response, cfg.Limits)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) stream(dir frame.Direction) (*stream, error) {
	switch dir {
	case frame.Request:
		return &s.req, nil
	case frame.Response:
		return &s.resp, nil
	default:
		return nil, fmt.Errorf("%w: %d", frame.ErrInvalidDirection, dir)
	}
}

// OnBytes feeds p into dir and returns every message completed by it, in wire
// order. A FrameTooLarge halt is returned together with the messages decoded
// before it; the direction stays halted until Reset.
func (s *Session) OnBytes(dir frame.Direction, p []byte) ([]protocol.Message, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	st, err := s.stream(dir)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if dir == frame.Request {
		s.bytesIn.Add(uint64(len(p)))
	} else {
		s.bytesOut.Add(uint64(len(p)))
	}
	if err := st.r.Feed(p); err != nil {
		return nil, err
	}

	var out []protocol.Message
	for {
		f, ok, err := st.r.Next()
		if err != nil {
			if flt, isFault := fault.As(err); isFault && s.observer != nil {
				s.observer.ObserveFault(dir, flt)
			}
			log.Error().Err(err).Str("session", s.id).Str("direction", dir.String()).Msg("session.OnBytes direction halted")
			return out, err
		}
		if !ok {
			return out, nil
		}
		st.seq++
		if s.observer != nil {
			s.observer.ObserveFrame(dir, f.Size())
		}
		var m protocol.Message
		if dir == frame.Request {
			m = s.onRequest(f, st.seq)
		} else {
			m = s.onResponse(f, st.seq)
		}
		if s.observer != nil {
			s.observer.ObserveMessage(m)
		}
		if s.cfg.LogFrames {
			log.Debug().Str("session", s.id).Uint64("seq", m.Seq).Int("faults", len(m.Faults)).Msg(m.Summary())
		}
		out = append(out, m)
	}
}

func (s *Session) onRequest(f frame.Frame, seq uint64) protocol.Message {
	m := s.decoder.DecodeRequest(f)
	m.Seq = seq
	s.pending.Push(Pending{Seq: seq, Code: m.Code, Name: m.CommandName})
	s.requests.Add(1)
	return m
}

func (s *Session) onResponse(f frame.Frame, seq uint64) protocol.Message {
	m := s.decoder.DecodeResponse(f)
	m.Seq = seq
	s.responses.Add(1)
	p, ok := s.pending.Pop()
	if !ok {
		s.unmatched.Add(1)
		m.AddFault(fault.Newf(fault.UnmatchedResponse, "", "response #%d with no pending request", seq))
		log.Warn().Str("session", s.id).Uint64("seq", seq).Uint32("status", m.Status).Msg("session.onResponse unmatched response")
		return m
	}
	m = s.decoder.Resolve(m, p.Code)
	m.Matched = true
	m.RequestSeq = p.Seq
	return m
}

// OnClose ends the session and reports every request still waiting for a
// response, oldest first.
func (s *Session) OnClose() []Unanswered {
	if s.closed.Swap(true) {
		return nil
	}
	drained := s.pending.Drain()
	out := make([]Unanswered, 0, len(drained))
	for _, p := range drained {
		flt := fault.Newf(fault.UnansweredRequest, "", "request #%d (%s, code=%d) closed without response", p.Seq, displayName(p.Name), p.Code)
		out = append(out, Unanswered{Pending: p, Fault: flt})
		if s.observer != nil {
			s.observer.ObserveFault(frame.Request, flt)
		}
	}
	log.Debug().
		Str("session", s.id).
		Int("unanswered", len(out)).
		Int("request_buffered", s.buffered(&s.req)).
		Int("response_buffered", s.buffered(&s.resp)).
		Msg("session.OnClose")
	return out
}

// Reset drops the buffered bytes of one direction and clears a halt.
func (s *Session) Reset(dir frame.Direction) error {
	st, err := s.stream(dir)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.r.Reset()
	log.Info().Str("session", s.id).Str("direction", dir.String()).Msg("session.Reset")
	return nil
}

// Pending returns the outstanding requests in arrival order.
func (s *Session) Pending() []Pending {
	return s.pending.List()
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Stats is a point-in-time view of a session.
type Stats struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Requests  uint64    `json:"requests"`
	Responses uint64    `json:"responses"`
	Unmatched uint64    `json:"unmatched"`
	Pending   int       `json:"pending"`
	BytesIn   uint64    `json:"bytes_in"`
	BytesOut  uint64    `json:"bytes_out"`
	Halted    []string  `json:"halted,omitempty"`
}

func (s *Session) Stats() Stats {
	st := Stats{
		ID:        s.id,
		StartedAt: s.startedAt,
		Requests:  s.requests.Load(),
		Responses: s.responses.Load(),
		Unmatched: s.unmatched.Load(),
		Pending:   s.pending.Len(),
		BytesIn:   s.bytesIn.Load(),
		BytesOut:  s.bytesOut.Load(),
	}
	for _, dir := range []frame.Direction{frame.Request, frame.Response} {
		sm, _ := s.stream(dir)
		sm.mu.Lock()
		if sm.r.Err() != nil {
			st.Halted = append(st.Halted, dir.String())
		}
		sm.mu.Unlock()
	}
	return st
}

// Buffered returns the bytes of dir still waiting for a complete frame.
func (s *Session) Buffered(dir frame.Direction) int {
	st, err := s.stream(dir)
	if err != nil {
		return 0
	}
	return s.buffered(st)
}

func (s *Session) buffered(st *stream) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.r.Buffered()
}

func displayName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
