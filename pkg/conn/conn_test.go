package conn

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/log"
)

const testDecl = `<?xml version="1.0" encoding="UTF-8"?>`

// pipeDialer returns a Dialer handing out the client end of a net.Pipe
// and the server end for the test to drive.
func pipeDialer() (Dialer, net.Conn) {
	client, server := net.Pipe()
	d := func(ctx context.Context, addr string) (net.Conn, error) {
		return client, nil
	}
	return d, server
}

// staticShutdownInfo reports a fixed server-shutdown flag.
type staticShutdownInfo struct {
	mu           sync.Mutex
	shuttingDown bool
}

func (s *staticShutdownInfo) ServerShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

func (s *staticShutdownInfo) set(v bool) {
	s.mu.Lock()
	s.shuttingDown = v
	s.mu.Unlock()
}

func newTestConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	dialer, server := pipeDialer()
	c := New(Config{
		Addr:        "test:8051",
		ReadTimeout: 50 * time.Millisecond,
		StopTimeout: time.Second,
	}, log.NewNoopLogger())
	c.SetDialer(dialer)
	return c, server
}

func writeServerMsg(t *testing.T, server net.Conn, payload string) {
	t.Helper()
	msg := []byte(testDecl + "\n" + payload + "\n\x00")
	if _, err := server.Write(msg); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func TestConn_DispatchesDocumentsInOrder(t *testing.T) {
	c, server := newTestConn(t)

	docCh := make(chan string, 8)
	c.SetDocumentHandler(func(doc *frame.Document) {
		docCh <- doc.Root.Children[0].Name
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if got := c.State(); got != StateConnected {
		t.Fatalf("state = %v, want Connected", got)
	}

	writeServerMsg(t, server, `<clock hour="8" minute="0"/>`)
	writeServerMsg(t, server, `<fb id="fb1" state="true"/>`)

	want := []string{"clock", "fb"}
	for i, name := range want {
		select {
		case got := <-docCh:
			if got != name {
				t.Errorf("document %d = %q, want %q", i, got, name)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for document %d", i)
		}
	}
}

func TestConn_SendWritesWireFormat(t *testing.T) {
	c, server := newTestConn(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	readCh := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := server.Read(buf)
		readCh <- buf[:n]
	}()

	if err := c.Send("sys", `<sys cmd="go"/>`); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-readCh:
		want := "<xmlh><xml size=\"15\" name=\"sys\"/></xmlh><sys cmd=\"go\"/>\n\x00"
		if string(got) != want {
			t.Errorf("wire bytes = %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wire bytes")
	}
}

func TestConn_SendBeforeStart(t *testing.T) {
	c, _ := newTestConn(t)
	if err := c.Send("sys", `<sys cmd="go"/>`); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send on unstarted conn = %v, want ErrNotConnected", err)
	}
}

func TestConn_UnexpectedDisconnectFiresOnce(t *testing.T) {
	c, server := newTestConn(t)
	c.SetShutdownInfo(&staticShutdownInfo{})

	var mu sync.Mutex
	fired := 0
	firedCh := make(chan struct{}, 2)
	c.OnUnexpectedDisconnect(func() {
		mu.Lock()
		fired++
		mu.Unlock()
		firedCh <- struct{}{}
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Simulated crash: peer closes without announcement.
	server.Close()

	select {
	case <-firedCh:
	case <-time.After(time.Second):
		t.Fatal("disconnect callback never fired")
	}

	// Reader has exited; give a misbehaving implementation a chance to
	// double-fire before asserting.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	got := fired
	mu.Unlock()
	if got != 1 {
		t.Errorf("disconnect callback fired %d times, want 1", got)
	}

	if c.State() != StateDisconnected {
		t.Errorf("state = %v, want Disconnected", c.State())
	}
}

func TestConn_GracefulServerShutdownDoesNotFire(t *testing.T) {
	c, server := newTestConn(t)
	info := &staticShutdownInfo{}
	info.set(true)
	c.SetShutdownInfo(info)

	c.OnUnexpectedDisconnect(func() {
		t.Error("disconnect callback fired for graceful shutdown")
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	server.Close()

	// Wait for the reader loop to observe the close and classify it.
	select {
	case <-c.readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader loop did not exit")
	}
	time.Sleep(50 * time.Millisecond)
}

func TestConn_StopSuppressesDisconnectCallback(t *testing.T) {
	c, _ := newTestConn(t)
	c.OnUnexpectedDisconnect(func() {
		t.Error("disconnect callback fired for caller-initiated stop")
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != StateStopped {
		t.Errorf("state = %v, want Stopped", c.State())
	}
}

func TestConn_StopIsIdempotent(t *testing.T) {
	c, _ := newTestConn(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	// Concurrent stops must also be safe.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Stop()
		}()
	}
	wg.Wait()
}

func TestConn_StopDuringDialReturnsPromptly(t *testing.T) {
	dialStarted := make(chan struct{})
	release := make(chan struct{})
	c := New(Config{
		Addr:        "test:8051",
		DialTimeout: 2 * time.Second,
		StopTimeout: 5 * time.Second,
	}, log.NewNoopLogger())
	c.SetDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		close(dialStarted)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, errors.New("dial aborted")
	})

	startDone := make(chan error, 1)
	go func() { startDone <- c.Start(context.Background()) }()
	<-dialStarted

	// No reader loop exists yet; Stop must not sit out StopTimeout
	// waiting for one.
	stopDone := make(chan error, 1)
	go func() { stopDone <- c.Stop() }()
	select {
	case err := <-stopDone:
		if err != nil {
			t.Errorf("Stop during dial = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop blocked waiting for a reader that never started")
	}

	close(release)
	if err := <-startDone; err == nil {
		t.Error("Start should fail once the connection was stopped")
	}
}

func TestConn_StartTwice(t *testing.T) {
	c, _ := newTestConn(t)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestConn_MalformedDocumentDoesNotKillReader(t *testing.T) {
	c, server := newTestConn(t)

	docCh := make(chan string, 4)
	c.SetDocumentHandler(func(doc *frame.Document) {
		docCh <- doc.Root.Children[0].Name
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	writeServerMsg(t, server, `<clock hour="1" minute="2">`) // unclosed
	writeServerMsg(t, server, `<fb id="fb1" state="true"/>`)

	select {
	case got := <-docCh:
		if got != "fb" {
			t.Errorf("document after malformed one = %q, want fb", got)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not recover from malformed document")
	}
}
