package frame

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/danmuck/iggywire/internal/protocol/fault"
	"github.com/danmuck/iggywire/internal/testutil/testlog"
)

func drain(t *testing.T, r *Reassembler) []Frame {
	t.Helper()
	var out []Frame
	for {
		f, ok, err := r.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func TestPingRequestFrame(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Request, DefaultLimits())
	if err := r.Feed([]byte{0x04, 0, 0, 0, 0x01, 0, 0, 0}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	frames := drain(t, r)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Length != 4 || f.Code != 1 || len(f.Payload) != 0 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if r.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", r.Buffered())
	}
}

func TestResponseFrameReadsLengthAfterStatus(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Response, DefaultLimits())
	raw := AppendResponse(nil, 42, []byte{1, 2, 3})
	raw = AppendResponse(raw, 0, nil)
	if err := r.Feed(raw); err != nil {
		t.Fatalf("feed: %v", err)
	}
	frames := drain(t, r)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Status != 42 || frames[0].Length != 3 || !bytes.Equal(frames[0].Payload, []byte{1, 2, 3}) {
		t.Fatalf("unexpected first frame: %+v", frames[0])
	}
	if frames[1].Status != 0 || frames[1].Length != 0 {
		t.Fatalf("unexpected second frame: %+v", frames[1])
	}
}

func TestIncompleteHeaderAndPayload(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Request, DefaultLimits())
	raw := AppendRequest(nil, 38, []byte("abcdef"))
	_ = r.Feed(raw[:3])
	if _, ok, err := r.Next(); ok || err != nil {
		t.Fatalf("short header: ok=%v err=%v", ok, err)
	}
	_ = r.Feed(raw[3:9])
	if _, ok, err := r.Next(); ok || err != nil {
		t.Fatalf("short payload: ok=%v err=%v", ok, err)
	}
	_ = r.Feed(raw[9:])
	f, ok, err := r.Next()
	if !ok || err != nil {
		t.Fatalf("complete frame: ok=%v err=%v", ok, err)
	}
	if f.Code != 38 || string(f.Payload) != "abcdef" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestFragmentationInvariance(t *testing.T) {
	testlog.Start(t)
	var stream []byte
	stream = AppendRequest(stream, 1, nil)
	stream = AppendRequest(stream, 38, bytes.Repeat([]byte{'x'}, 300))
	stream = AppendRequest(stream, 9999, []byte("0123456789"))
	stream = AppendRequest(stream, 10, nil)

	whole := NewReassembler(Request, DefaultLimits())
	_ = whole.Feed(stream)
	want := drain(t, whole)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		r := NewReassembler(Request, DefaultLimits())
		var got []Frame
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(len(rest))
			if err := r.Feed(rest[:n]); err != nil {
				t.Fatalf("feed: %v", err)
			}
			rest = rest[n:]
			got = append(got, drain(t, r)...)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: got %d frames want %d", round, len(got), len(want))
		}
		for i := range want {
			if got[i].Code != want[i].Code || got[i].Length != want[i].Length || !bytes.Equal(got[i].Payload, want[i].Payload) {
				t.Fatalf("round %d frame %d mismatch: got=%+v want=%+v", round, i, got[i], want[i])
			}
		}
	}
}

func TestLengthInvariant(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Request, DefaultLimits())
	_ = r.Feed(AppendRequest(nil, 302, make([]byte, 17)))
	f, ok, _ := r.Next()
	if !ok {
		t.Fatalf("expected frame")
	}
	if int(f.Length) != CodeLen+len(f.Payload) {
		t.Fatalf("declared length %d does not match consumed %d", f.Length, CodeLen+len(f.Payload))
	}
	if f.Size() != 4+4+17 {
		t.Fatalf("size got=%d", f.Size())
	}
}

func TestFrameTooLargeHaltsDirection(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Request, Limits{MaxFrameBytes: 16})
	_ = r.Feed([]byte{0xff, 0xff, 0, 0, 1, 0, 0, 0})
	_, ok, err := r.Next()
	if ok || !errors.Is(err, fault.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got ok=%v err=%v", ok, err)
	}
	if err := r.Feed(AppendRequest(nil, 1, nil)); !errors.Is(err, fault.ErrFrameTooLarge) {
		t.Fatalf("feed after halt should keep failing, got %v", err)
	}
	if _, _, err := r.Next(); !errors.Is(err, fault.ErrFrameTooLarge) {
		t.Fatalf("next after halt should keep failing, got %v", err)
	}
	r.Reset()
	_ = r.Feed(AppendRequest(nil, 1, nil))
	if frames := drain(t, r); len(frames) != 1 {
		t.Fatalf("expected recovery after reset, got %d frames", len(frames))
	}
}

func TestShortRequestKeepsFraming(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(Request, DefaultLimits())
	raw := []byte{2, 0, 0, 0, 0xaa, 0xbb}
	raw = AppendRequest(raw, 1, nil)
	_ = r.Feed(raw)
	frames := drain(t, r)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].HasCode() || !bytes.Equal(frames[0].Payload, []byte{0xaa, 0xbb}) {
		t.Fatalf("unexpected short frame: %+v", frames[0])
	}
	if frames[1].Code != 1 {
		t.Fatalf("frame after short frame got code=%d", frames[1].Code)
	}
}

func TestWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	in := Frame{Direction: Response, Status: 0, Payload: []byte{9, 8, 7, 6}}
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	r := NewReassembler(Response, DefaultLimits())
	_ = r.Feed(buf.Bytes())
	out, ok, err := r.Next()
	if !ok || err != nil {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if out.Length != 4 || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if err := WriteFrame(&buf, Frame{}); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	testlog.Start(t)
	if d, err := ParseDirection("client"); err != nil || d != Request {
		t.Fatalf("client got=%v err=%v", d, err)
	}
	if d, err := ParseDirection("response"); err != nil || d != Response {
		t.Fatalf("response got=%v err=%v", d, err)
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}
