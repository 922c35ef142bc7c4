package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
)

// Connection errors.
var (
	// ErrNotConnected is returned by Send when the socket is not up.
	ErrNotConnected = errors.New("conn: not connected")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("conn: already started")

	// ErrStopTimeout is returned when the reader loop does not exit
	// within the stop grace period.
	ErrStopTimeout = errors.New("conn: stop timeout")
)

// DocumentHandler consumes decoded documents. It is invoked from the
// reader goroutine in extraction order and must not block.
type DocumentHandler func(*frame.Document)

// ShutdownInfo reports whether the server previously announced its own
// shutdown. It is consulted during disconnect classification so a
// server-initiated close is not treated as an emergency.
type ShutdownInfo interface {
	ServerShuttingDown() bool
}

// Dialer opens the transport socket. Injectable for tests.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Config holds connection settings.
type Config struct {
	// Addr is the server address in host:port form.
	Addr string

	// DialTimeout bounds the initial connect. Default 10s.
	DialTimeout time.Duration

	// ReadTimeout is the per-read deadline of the reader loop. Timeouts
	// are retries, not errors; a short value keeps shutdown responsive.
	// Default 2s.
	ReadTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the reader loop to
	// exit. Default 5s.
	StopTimeout time.Duration

	// ReadBufferSize is the socket read chunk size. Default 4096.
	ReadBufferSize int
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 4096
	}
}

// Conn owns the server socket, the reader loop feeding the frame decoder,
// and the serialized write path. A Conn is single-use: after Stop or a
// disconnect it cannot be restarted; callers create a new instance to
// reconnect.
type Conn struct {
	cfg    Config
	logger log.Logger
	dialer Dialer

	handler      DocumentHandler
	shutdownInfo ShutdownInfo
	onUnexpected func()

	sm      stateMachine
	writeMu sync.Mutex
	sock    net.Conn

	stopRequested atomic.Bool
	readerStarted atomic.Bool
	stopOnce      sync.Once
	closeOnce     sync.Once
	classifyOnce  sync.Once
	stopCh        chan struct{}
	readerDone    chan struct{}
}

// New creates a connection to the given address. The logger may be nil,
// in which case output is discarded.
func New(cfg Config, logger log.Logger) *Conn {
	cfg.SetDefaults()
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Conn{
		cfg:        cfg,
		logger:     logger,
		dialer:     defaultDialer,
		stopCh:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// SetDialer replaces the transport dialer. Must be called before Start.
func (c *Conn) SetDialer(d Dialer) {
	if d != nil {
		c.dialer = d
	}
}

// SetDocumentHandler registers the handler invoked for every decoded
// document. Must be called before Start.
func (c *Conn) SetDocumentHandler(h DocumentHandler) {
	c.handler = h
}

// SetShutdownInfo registers the source consulted during disconnect
// classification. Must be called before Start.
func (c *Conn) SetShutdownInfo(s ShutdownInfo) {
	c.shutdownInfo = s
}

// OnUnexpectedDisconnect registers the callback fired when the socket is
// lost without a prior Stop or server-announced shutdown. Must be called
// before Start. Panics inside the callback are recovered and logged.
func (c *Conn) OnUnexpectedDisconnect(fn func()) {
	c.onUnexpected = fn
}

// State returns the current connection state.
func (c *Conn) State() State {
	return c.sm.current()
}

// Start dials the server and spawns the reader loop. It returns once the
// socket is established.
func (c *Conn) Start(ctx context.Context) error {
	if err := c.sm.transitionTo(StateConnecting); err != nil {
		return ErrAlreadyStarted
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	sock, err := c.dialer(dialCtx, c.cfg.Addr)
	if err != nil {
		c.sm.force(StateDisconnected)
		return fmt.Errorf("conn: dial %s: %w", c.cfg.Addr, err)
	}
	if tcp, ok := sock.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			c.logger.Warn("failed to enable TCP_NODELAY", log.Err(err))
		}
	}
	c.sock = sock

	if err := c.sm.transitionTo(StateConnected); err != nil {
		c.closeSocket()
		return err
	}
	c.logger.Info("connected", log.String("addr", c.cfg.Addr))

	c.readerStarted.Store(true)
	go c.readLoop()
	return nil
}

// Send serializes a command into the wire format and writes it. Safe for
// concurrent use; a write mutex keeps partial writes from interleaving.
func (c *Conn) Send(msgType, body string) error {
	if s := c.sm.current(); s != StateConnected {
		return fmt.Errorf("%w: state %s", ErrNotConnected, s)
	}

	msg := frame.Encode(msgType, body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.sock.Write(msg); err != nil {
		return fmt.Errorf("conn: send %s: %w", msgType, err)
	}
	c.logger.Debug("sent message",
		log.String("type", msgType),
		log.Int("bytes", len(msg)),
	)
	return nil
}

// Stop signals the reader loop to exit, waits for it with a bounded
// grace period, and closes the socket. Idempotent and safe to call
// concurrently with reader-initiated teardown.
func (c *Conn) Stop() error {
	c.stopRequested.Store(true)

	switch c.sm.current() {
	case StateDisconnected, StateStopped:
		c.closeSocket()
		return nil
	}
	_ = c.sm.transitionTo(StateStopping)
	c.stopOnce.Do(func() { close(c.stopCh) })

	// A Stop racing a still-dialing Start has no reader loop to wait
	// for; closing the socket and stopCh is enough to abort the dial's
	// aftermath.
	var err error
	if c.readerStarted.Load() {
		select {
		case <-c.readerDone:
		case <-time.After(c.cfg.StopTimeout):
			c.logger.Warn("reader loop did not exit in time",
				log.Duration("timeout", c.cfg.StopTimeout))
			err = ErrStopTimeout
		}
	}

	c.closeSocket()
	c.sm.force(StateStopped)
	return err
}

// readLoop drains the socket into the frame decoder and dispatches
// complete documents in order. It owns the decoder exclusively.
func (c *Conn) readLoop() {
	defer close(c.readerDone)

	dec := frame.NewDecoder()
	buf := make([]byte, c.cfg.ReadBufferSize)

	for {
		select {
		case <-c.stopCh:
			c.classifyDisconnect(nil)
			return
		default:
		}

		if err := c.sock.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			c.classifyDisconnect(err)
			return
		}
		n, err := c.sock.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			c.drainDocuments(dec)
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			c.classifyDisconnect(err)
			return
		}
	}
}

// drainDocuments extracts every currently complete document and hands it
// to the handler. A malformed document is dropped and logged; framing
// state stays valid.
func (c *Conn) drainDocuments(dec *frame.Decoder) {
	for {
		doc, err := dec.Next()
		if err != nil {
			c.logger.Error("dropping malformed document", log.Err(err))
			continue
		}
		if doc == nil {
			return
		}
		if c.handler != nil {
			c.handler(doc)
		}
	}
}

// classifyDisconnect runs exactly once per reader-loop exit. A caller
// stop is a normal shutdown; a server-announced shutdown is a graceful
// close; anything else fires the emergency callback.
func (c *Conn) classifyDisconnect(cause error) {
	c.classifyOnce.Do(func() {
		if c.stopRequested.Load() {
			c.logger.Debug("reader loop stopped by caller")
			return
		}

		c.closeSocket()
		c.sm.force(StateDisconnected)

		if c.shutdownInfo != nil && c.shutdownInfo.ServerShuttingDown() {
			c.logger.Info("server announced shutdown, connection closed gracefully")
			return
		}

		c.logger.Error("unexpected disconnect", log.Err(cause))
		if c.onUnexpected != nil {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("disconnect callback panicked", log.Any("panic", r))
				}
			}()
			c.onUnexpected()
		}
	})
}

func (c *Conn) closeSocket() {
	c.closeOnce.Do(func() {
		if c.sock != nil {
			_ = c.sock.Close()
		}
	})
}

func defaultDialer(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}
