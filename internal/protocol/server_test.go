package protocol

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// failingListener fails every Accept until it is closed.
type failingListener struct {
	accepts atomic.Int64
	once    sync.Once
	closed  chan struct{}
}

func newFailingListener() *failingListener {
	return &failingListener{closed: make(chan struct{})}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.accepts.Add(1)
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("accept: too many open files")
	}
}

func (l *failingListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5433}
}

func TestNextAcceptDelay(t *testing.T) {
	var d time.Duration
	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, w := range want {
		d = nextAcceptDelay(d)
		if d != w {
			t.Fatalf("step %d: delay = %v, want %v", i, d, w)
		}
	}

	for i := 0; i < 20; i++ {
		d = nextAcceptDelay(d)
	}
	if d != maxAcceptDelay {
		t.Errorf("delay should cap at %v, got %v", maxAcceptDelay, d)
	}
}

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	s := NewServer(0, nil, "test", nil, nil)
	l := newFailingListener()

	errCh := make(chan error, 1)
	go func() { errCh <- s.serve(l) }()
	<-s.Ready()

	time.Sleep(100 * time.Millisecond)
	// 5+10+20+40ms of sleeps fit in 100ms; a spinning loop would call Accept
	// thousands of times.
	if n := l.accepts.Load(); n > 10 {
		t.Errorf("accept called %d times in 100ms", n)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("serve returned %v after close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after close")
	}
}

func TestServer_CloseWaitsForTrackedConnections(t *testing.T) {
	s := NewServer(0, nil, "test", nil, nil)
	server, client := net.Pipe()
	defer client.Close()

	if !s.track(server) {
		t.Fatal("track should accept connections before close")
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a connection was still tracked")
	case <-time.After(50 * time.Millisecond):
	}

	s.done(server)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the connection finished")
	}

	other, peer := net.Pipe()
	defer other.Close()
	defer peer.Close()
	if s.track(other) {
		t.Error("track should reject connections after close")
	}
}
