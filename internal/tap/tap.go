package tap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/iggywire/internal/observability"
	"github.com/danmuck/iggywire/internal/protocol"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/session"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoUpstream     = errors.New("tap: upstream address required")
	ErrAlreadyStarted = errors.New("tap: already listening")
)

const readBufferSize = 32 * 1024

// Sink receives decode output. report.Writer implements it.
type Sink interface {
	Message(sessionID string, m protocol.Message) error
	Unanswered(sessionID string, u session.Unanswered) error
	Halt(sessionID string, dir frame.Direction, err error) error
}

type Config struct {
	Name        string
	Listen      string
	Upstream    string
	DialTimeout time.Duration
	Session     session.Config
}

type Option func(*Tap)

func WithSink(s Sink) Option {
	return func(t *Tap) {
		t.sink = s
	}
}

func WithDecoder(d *protocol.Decoder) Option {
	return func(t *Tap) {
		t.decoder = d
	}
}

// WithMetrics records decode and session metrics under node.
func WithMetrics(node string) Option {
	return func(t *Tap) {
		t.metricsNode = node
	}
}

// Tap accepts client connections, dials the upstream for each and pumps bytes
// in both directions through a decoding session.
type Tap struct {
	cfg         Config
	decoder     *protocol.Decoder
	sink        Sink
	metricsNode string

	listener net.Listener
	sessions *xsync.MapOf[string, *session.Session]
	seq      atomic.Uint64
}

func New(cfg Config, opts ...Option) (*Tap, error) {
	if strings.TrimSpace(cfg.Upstream) == "" {
		return nil, ErrNoUpstream
	}
	if cfg.Name == "" {
		cfg.Name = "iggywire"
	}
	t := &Tap{
		cfg:      cfg,
		sessions: xsync.NewMapOf[string, *session.Session](),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.decoder == nil {
		t.decoder = protocol.NewDecoder(nil)
	}
	return t, nil
}

// Listen binds the listen address. Serve calls it when needed.
func (t *Tap) Listen() error {
	if t.listener != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", t.cfg.Listen)
	if err != nil {
		return fmt.Errorf("tap listen %s: %w", t.cfg.Listen, err)
	}
	t.listener = ln
	return nil
}

func (t *Tap) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Serve accepts connections until ctx is canceled.
func (t *Tap) Serve(ctx context.Context) error {
	if t.listener == nil {
		if err := t.Listen(); err != nil {
			return err
		}
	}
	log.Info().
		Str("name", t.cfg.Name).
		Str("listen", t.listener.Addr().String()).
		Str("upstream", t.cfg.Upstream).
		Msg("tap.Serve started")

	go func() {
		<-ctx.Done()
		_ = t.listener.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("name", t.cfg.Name).Msg("tap.Serve stopped")
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			log.Error().Err(err).Msg("tap.Serve accept failed")
			return err
		}
		go t.handle(ctx, conn)
	}
}

// Sessions lists live sessions ordered by id.
func (t *Tap) Sessions() []session.Stats {
	out := make([]session.Stats, 0, t.sessions.Size())
	t.sessions.Range(func(_ string, s *session.Session) bool {
		out = append(out, s.Stats())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Tap) handle(ctx context.Context, client net.Conn) {
	defer client.Close()
	id := fmt.Sprintf("%s-%d", t.cfg.Name, t.seq.Add(1))
	logger := observability.ComponentLogger("tap", t.cfg.Name).With().Str("session", id).Str("client", client.RemoteAddr().String()).Logger()

	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", t.cfg.Upstream)
	if err != nil {
		logger.Error().Err(err).Str("upstream", t.cfg.Upstream).Msg("tap.handle dial upstream failed")
		return
	}
	defer upstream.Close()

	var opts []session.Option
	if t.metricsNode != "" {
		opts = append(opts, session.WithObserver(observability.NewDecodeObserver(t.metricsNode)))
		observability.RecordSessionOpened(t.metricsNode)
		defer observability.RecordSessionClosed(t.metricsNode)
	}
	s := session.NewSession(id, t.cfg.Session, t.decoder, opts...)
	t.sessions.Store(id, s)
	defer t.sessions.Delete(id)
	logger.Info().Msg("tap.handle session opened")

	group, child := errgroup.WithContext(ctx)
	group.Go(func() error {
		return t.pump(child, s, frame.Request, client, upstream)
	})
	group.Go(func() error {
		return t.pump(child, s, frame.Response, upstream, client)
	})
	go func() {
		<-child.Done()
		_ = client.Close()
		_ = upstream.Close()
	}()
	err = group.Wait()

	for _, u := range s.OnClose() {
		t.emitUnanswered(id, u)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		logger.Warn().Err(err).Msg("tap.handle session closed with error")
		return
	}
	logger.Info().Msg("tap.handle session closed")
}

// pump copies src to dst, decoding every chunk before it is forwarded. A halted
// direction keeps forwarding; only decoding stops.
func (t *Tap) pump(ctx context.Context, s *session.Session, dir frame.Direction, src, dst net.Conn) error {
	buf := make([]byte, readBufferSize)
	halted := false
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if !halted {
				msgs, derr := s.OnBytes(dir, buf[:n])
				for _, m := range msgs {
					t.emitMessage(s.ID(), m)
				}
				if derr != nil {
					halted = true
					t.emitHalt(s.ID(), dir, derr)
				}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%s write: %w", dir, werr)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				closeWrite(dst)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s read: %w", dir, rerr)
		}
	}
}

type halfCloser interface {
	CloseWrite() error
}

func closeWrite(c net.Conn) {
	if hc, ok := c.(halfCloser); ok {
		_ = hc.CloseWrite()
		return
	}
	_ = c.Close()
}

func (t *Tap) emitMessage(id string, m protocol.Message) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Message(id, m); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("tap sink message failed")
	}
}

func (t *Tap) emitUnanswered(id string, u session.Unanswered) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Unanswered(id, u); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("tap sink unanswered failed")
	}
}

func (t *Tap) emitHalt(id string, dir frame.Direction, err error) {
	if t.sink == nil {
		return
	}
	if serr := t.sink.Halt(id, dir, err); serr != nil {
		log.Warn().Err(serr).Str("session", id).Msg("tap sink halt failed")
	}
}
