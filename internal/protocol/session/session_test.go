package session

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/danmuck/iggywire/internal/protocol"
	"github.com/danmuck/iggywire/internal/protocol/command"
	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/wire"
	"github.com/danmuck/iggywire/internal/testutil/testlog"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(t.Name(), DefaultConfig(), protocol.NewDecoder(command.Default()))
}

func feed(t *testing.T, s *Session, dir frame.Direction, raw []byte) []protocol.Message {
	t.Helper()
	msgs, err := s.OnBytes(dir, raw)
	if err != nil {
		t.Fatalf("on bytes %s: %v", dir, err)
	}
	return msgs
}

func loginFrame() []byte {
	payload := command.LoginUser{Username: "testuser", Password: "testpass"}.Payload()
	return frame.AppendRequest(nil, command.CodeLoginUser, payload)
}

func TestPingRequest(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	msgs := feed(t, s, frame.Request, []byte{0x04, 0, 0, 0, 0x01, 0, 0, 0})
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	m := msgs[0]
	if !m.IsRequest() || m.Code != 1 || m.CommandName != "Ping" || len(m.Fields) != 0 {
		t.Fatalf("unexpected ping: %+v", m)
	}
	if s.pending.Len() != 1 {
		t.Fatalf("ping should be pending, len=%d", s.pending.Len())
	}
}

func TestPingResponseMatched(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	feed(t, s, frame.Request, []byte{0x04, 0, 0, 0, 0x01, 0, 0, 0})
	msgs := feed(t, s, frame.Response, []byte{0, 0, 0, 0, 0, 0, 0, 0})
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	m := msgs[0]
	if !m.Matched || m.CommandName != "Ping" || m.RequestSeq != 1 {
		t.Fatalf("response not matched to ping: %+v", m)
	}
	if m.Status != 0 || m.StatusName != "OK" || len(m.Fields) != 0 || len(m.Faults) != 0 {
		t.Fatalf("unexpected ping response: %+v", m)
	}
	if s.pending.Len() != 0 {
		t.Fatalf("queue should be empty, len=%d", s.pending.Len())
	}
}

func TestLoginUserFragmentationInvariance(t *testing.T) {
	testlog.Start(t)
	raw := loginFrame()
	whole := feed(t, newTestSession(t), frame.Request, raw)
	if len(whole) != 1 {
		t.Fatalf("expected one message, got %d", len(whole))
	}
	if v, _ := whole[0].Fields.Uint8("username_len"); v != 8 {
		t.Fatalf("username_len got=%d", v)
	}
	if v, _ := whole[0].Fields.Uint8("password_len"); v != 8 {
		t.Fatalf("password_len got=%d", v)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		a := 1 + rng.Intn(len(raw)-2)
		b := a + 1 + rng.Intn(len(raw)-a-1)
		s := newTestSession(t)
		var got []protocol.Message
		for _, part := range [][]byte{raw[:a], raw[a:b], raw[b:]} {
			got = append(got, feed(t, s, frame.Request, part)...)
		}
		if !reflect.DeepEqual(got, whole) {
			t.Fatalf("split %d/%d: got=%+v want=%+v", a, b, got, whole)
		}
	}
}

func createTopicExchange() ([]byte, []byte) {
	req := command.CreateTopic{
		StreamID:        wire.NumericID(1),
		Name:            "orders",
		PartitionsCount: 3,
		MessageExpiry:   60,
	}.Payload()
	resp := command.CreateTopicResult{
		TopicID:         7,
		CreatedAt:       1_700_000_000_000_000,
		Name:            "orders",
		PartitionsCount: 3,
		Size:            4096,
		MessagesCount:   12,
	}.Payload()
	return frame.AppendRequest(nil, command.CodeCreateTopic, req),
		frame.AppendResponse(nil, command.StatusOK, resp)
}

// feedResponse queues the CreateTopic request on a fresh session and feeds the
// response in the given parts.
func feedResponse(t *testing.T, req []byte, parts ...[]byte) []protocol.Message {
	t.Helper()
	s := newTestSession(t)
	if got := feed(t, s, frame.Request, req); len(got) != 1 {
		t.Fatalf("expected one request, got %d", len(got))
	}
	var out []protocol.Message
	for _, part := range parts {
		out = append(out, feed(t, s, frame.Response, part)...)
	}
	return out
}

func TestCreateTopicResponseFragmentationInvariance(t *testing.T) {
	testlog.Start(t)
	req, raw := createTopicExchange()
	whole := feedResponse(t, req, raw)
	if len(whole) != 1 {
		t.Fatalf("expected one response, got %d", len(whole))
	}
	m := whole[0]
	if !m.Matched || m.CommandName != "CreateTopic" || len(m.Faults) != 0 {
		t.Fatalf("unexpected whole response: %+v", m)
	}
	if v, _ := m.Fields.Uint32("topic_id"); v != 7 {
		t.Fatalf("topic_id got=%d", v)
	}
	if v, _ := m.Fields.Uint64("messages_count"); v != 12 {
		t.Fatalf("messages_count got=%d", v)
	}

	var bytewise [][]byte
	for i := range raw {
		bytewise = append(bytewise, raw[i:i+1])
	}
	if got := feedResponse(t, req, bytewise...); !reflect.DeepEqual(got, whole) {
		t.Fatalf("byte at a time: got=%+v want=%+v", got, whole)
	}

	// every cut inside the 8 byte header: status, status/length boundary, length
	for cut := 1; cut <= 8; cut++ {
		if got := feedResponse(t, req, raw[:cut], raw[cut:]); !reflect.DeepEqual(got, whole) {
			t.Fatalf("header cut %d: got=%+v want=%+v", cut, got, whole)
		}
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		a := 1 + rng.Intn(len(raw)-2)
		b := a + 1 + rng.Intn(len(raw)-a-1)
		if got := feedResponse(t, req, raw[:a], raw[a:b], raw[b:]); !reflect.DeepEqual(got, whole) {
			t.Fatalf("split %d/%d: got=%+v want=%+v", a, b, got, whole)
		}
	}
}

func TestUnmatchedResponse(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	msgs := feed(t, s, frame.Response, []byte{0x01, 0, 0, 0, 0, 0, 0, 0})
	if len(msgs) != 1 {
		t.Fatalf("unmatched response must still be emitted, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Matched || !m.HasFault(fault.UnmatchedResponse) {
		t.Fatalf("expected unmatched fault: %+v", m)
	}
	if m.Status != 1 || m.StatusName != "Error" {
		t.Fatalf("status got=%d %q", m.Status, m.StatusName)
	}
	if got := s.Stats().Unmatched; got != 1 {
		t.Fatalf("unmatched stat got=%d", got)
	}
}

func TestUnknownCommandRequest(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	payload := bytes.Repeat([]byte{0xab}, 10)
	msgs := feed(t, s, frame.Request, frame.AppendRequest(nil, 9999, payload))
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.CommandName != "" || m.Code != 9999 || len(m.Faults) != 0 {
		t.Fatalf("unexpected unknown request: %+v", m)
	}
	blob, err := m.Fields.Bytes(protocol.OpaqueField)
	if err != nil || len(blob) != 10 {
		t.Fatalf("opaque blob got=%d err=%v", len(blob), err)
	}
}

func TestResponsesPairInArrivalOrder(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	var reqs []byte
	reqs = frame.AppendRequest(reqs, command.CodePing, nil)
	reqs = append(reqs, loginFrame()...)
	feed(t, s, frame.Request, reqs)

	var resps []byte
	resps = frame.AppendResponse(resps, command.StatusOK, nil)
	resps = frame.AppendResponse(resps, command.StatusOK, command.LoginUserResult{UserID: 9}.Payload())
	msgs := feed(t, s, frame.Response, resps)
	if len(msgs) != 2 {
		t.Fatalf("expected two responses, got %d", len(msgs))
	}
	if msgs[0].CommandName != "Ping" || msgs[1].CommandName != "LoginUser" {
		t.Fatalf("pairing got %q, %q", msgs[0].CommandName, msgs[1].CommandName)
	}
	if v, _ := msgs[1].Fields.Uint32("user_id"); v != 9 {
		t.Fatalf("user_id got=%d", v)
	}
	if msgs[1].RequestSeq != 2 {
		t.Fatalf("request seq got=%d", msgs[1].RequestSeq)
	}
}

func TestOnCloseReportsUnanswered(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	var reqs []byte
	reqs = frame.AppendRequest(reqs, command.CodePing, nil)
	reqs = frame.AppendRequest(reqs, command.CodeGetStats, nil)
	feed(t, s, frame.Request, reqs)

	out := s.OnClose()
	if len(out) != 2 {
		t.Fatalf("expected two unanswered, got %d", len(out))
	}
	if out[0].Name != "Ping" || out[1].Name != "GetStats" {
		t.Fatalf("unanswered order got %q, %q", out[0].Name, out[1].Name)
	}
	if !errors.Is(out[0].Fault, fault.ErrUnansweredRequest) {
		t.Fatalf("expected unanswered fault, got %v", out[0].Fault)
	}
	if again := s.OnClose(); len(again) != 0 {
		t.Fatalf("second close should report nothing, got %d", len(again))
	}
	if _, err := s.OnBytes(frame.Request, []byte{0}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestFrameTooLargeHaltsDirection(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Limits.MaxFrameBytes = 16
	s := NewSession("halt", cfg, nil)

	raw := frame.AppendRequest(nil, command.CodePing, nil)
	raw = append(raw, 0xff, 0xff, 0, 0)
	msgs, err := s.OnBytes(frame.Request, raw)
	if !errors.Is(err, fault.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	if len(msgs) != 1 || msgs[0].CommandName != "Ping" {
		t.Fatalf("frames before the halt must be returned: %+v", msgs)
	}
	if _, err := s.OnBytes(frame.Request, frame.AppendRequest(nil, command.CodePing, nil)); !errors.Is(err, fault.ErrFrameTooLarge) {
		t.Fatalf("direction should stay halted, got %v", err)
	}
	if halted := s.Stats().Halted; len(halted) != 1 || halted[0] != "request" {
		t.Fatalf("halted got=%v", halted)
	}

	// the other direction is unaffected
	feed(t, s, frame.Response, frame.AppendResponse(nil, command.StatusOK, nil))

	if err := s.Reset(frame.Request); err != nil {
		t.Fatalf("reset: %v", err)
	}
	msgs = feed(t, s, frame.Request, frame.AppendRequest(nil, command.CodeGetStats, nil))
	if len(msgs) != 1 || msgs[0].CommandName != "GetStats" {
		t.Fatalf("after reset got %+v", msgs)
	}
}

func TestInvalidDirection(t *testing.T) {
	testlog.Start(t)
	s := newTestSession(t)
	if _, err := s.OnBytes(frame.Direction(9), []byte{1}); !errors.Is(err, frame.ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	frames   int
	messages []protocol.Message
	faults   []fault.Fault
}

func (o *recordingObserver) ObserveFrame(frame.Direction, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames++
}

func (o *recordingObserver) ObserveMessage(m protocol.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, m)
}

func (o *recordingObserver) ObserveFault(_ frame.Direction, f fault.Fault) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.faults = append(o.faults, f)
}

func TestObserverAndConcurrentDirections(t *testing.T) {
	testlog.Start(t)
	obs := &recordingObserver{}
	s := NewSession("observed", DefaultConfig(), nil, WithObserver(obs))

	const n = 100
	var reqs []byte
	for i := 0; i < n; i++ {
		reqs = frame.AppendRequest(reqs, command.CodePing, nil)
	}
	feed(t, s, frame.Request, reqs)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, err := s.OnBytes(frame.Response, frame.AppendResponse(nil, command.StatusOK, nil)); err != nil {
				t.Errorf("response %d: %v", i, err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_ = s.Stats()
			_ = s.Pending()
		}
	}()
	wg.Wait()

	if obs.frames != 2*n || len(obs.messages) != 2*n {
		t.Fatalf("observer got frames=%d messages=%d", obs.frames, len(obs.messages))
	}
	st := s.Stats()
	if st.Requests != n || st.Responses != n || st.Pending != 0 || st.Unmatched != 0 {
		t.Fatalf("stats got=%+v", st)
	}
}

func TestPendingQueueFIFO(t *testing.T) {
	testlog.Start(t)
	q := NewPendingQueue()
	if _, ok := q.Pop(); ok {
		t.Fatalf("empty queue should not pop")
	}
	for i := uint64(1); i <= 3; i++ {
		q.Push(Pending{Seq: i})
	}
	if p, _ := q.Peek(); p.Seq != 1 {
		t.Fatalf("peek got=%d", p.Seq)
	}
	if p, _ := q.Pop(); p.Seq != 1 {
		t.Fatalf("pop got=%d", p.Seq)
	}
	q.Push(Pending{Seq: 4})
	if got := q.List(); len(got) != 3 || got[0].Seq != 2 || got[2].Seq != 4 {
		t.Fatalf("list got=%+v", got)
	}
	drained := q.Drain()
	if len(drained) != 3 || q.Len() != 0 {
		t.Fatalf("drain got=%+v len=%d", drained, q.Len())
	}
}
