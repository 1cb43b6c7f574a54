package card

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// stubBackend lets tests script ProcessAPDU behavior and observe lifecycle
// calls.
type stubBackend struct {
	initErr   error
	resp      []byte
	err       error
	calls     int
	shutdowns int
}

func (s *stubBackend) Init(ctx context.Context) error { return s.initErr }

func (s *stubBackend) ProcessAPDU(command []byte) ([]byte, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubBackend) Shutdown() error {
	s.shutdowns++
	return nil
}

func openAdapter(t *testing.T, b Backend, warmup time.Duration) *Adapter {
	t.Helper()
	a, err := Open(context.Background(), b, warmup)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return a
}

func TestOpenFailsWhenBackendInitFails(t *testing.T) {
	b := &stubBackend{initErr: errors.New("token missing")}
	if _, err := Open(context.Background(), b, 5*time.Second); err == nil {
		t.Fatal("expected init error")
	}
}

func TestTransmitDuringWarmupSkipsBackend(t *testing.T) {
	b := &stubBackend{resp: []byte{0x90, 0x00}}
	a := openAdapter(t, b, 5*time.Second)

	resp := a.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	if !bytes.Equal(resp, FallbackResponse()) {
		t.Fatalf("resp = % X, want 6D 82", resp)
	}
	if b.calls != 0 {
		t.Fatalf("backend invoked %d times during warm-up", b.calls)
	}
}

func TestTransmitAfterWarmupForwardsCommand(t *testing.T) {
	b := &stubBackend{resp: []byte{0x01, 0x02, 0x90, 0x00}}
	a := openAdapter(t, b, 5*time.Second)
	a.now = func() time.Time { return a.t0.Add(6 * time.Second) }

	resp := a.Transmit([]byte{0x00, 0xB0, 0x00, 0x00})
	if !bytes.Equal(resp, b.resp) {
		t.Fatalf("resp = % X, want % X", resp, b.resp)
	}
	if b.calls != 1 {
		t.Fatalf("backend invoked %d times, want 1", b.calls)
	}
}

func TestTransmitBoundaryIsInclusive(t *testing.T) {
	b := &stubBackend{resp: []byte{0x90, 0x00}}
	a := openAdapter(t, b, 5*time.Second)

	// now - t0 == warmup still counts as warming up.
	a.now = func() time.Time { return a.t0.Add(5 * time.Second) }
	if resp := a.Transmit(nil); !bytes.Equal(resp, FallbackResponse()) {
		t.Fatalf("resp = % X, want fallback at boundary", resp)
	}
}

func TestTransmitBackendErrorFallsBack(t *testing.T) {
	b := &stubBackend{err: errors.New("card removed")}
	a := openAdapter(t, b, 0)
	a.now = func() time.Time { return a.t0.Add(time.Second) }

	resp := a.Transmit([]byte{0x00})
	if !bytes.Equal(resp, FallbackResponse()) {
		t.Fatalf("resp = % X, want 6D 82 fallback", resp)
	}
}

func TestTransmitFromUsesSessionOrigin(t *testing.T) {
	b := &stubBackend{resp: []byte{0x90, 0x00}}
	a := openAdapter(t, b, 5*time.Second)
	a.now = func() time.Time { return a.t0.Add(time.Hour) }

	// A session that just started is still inside its own window even
	// though the process-wide window has long passed.
	sessionStart := a.t0.Add(time.Hour).Add(-time.Second)
	if resp := a.TransmitFrom(sessionStart, nil); !bytes.Equal(resp, FallbackResponse()) {
		t.Fatalf("resp = % X, want fallback for fresh session", resp)
	}

	if resp := a.TransmitFrom(a.t0, nil); !bytes.Equal(resp, b.resp) {
		t.Fatalf("resp = % X, want backend response for old origin", resp)
	}
}

func TestCloseShutsDownBackendOnce(t *testing.T) {
	b := &stubBackend{}
	a := openAdapter(t, b, 0)

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if b.shutdowns != 1 {
		t.Fatalf("Shutdown called %d times, want 1", b.shutdowns)
	}
}

func TestLoopbackLifecycle(t *testing.T) {
	l := NewLoopback()

	if _, err := l.ProcessAPDU([]byte{0x00}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized before Init", err)
	}

	if err := l.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	resp, err := l.ProcessAPDU([]byte{0x00, 0xA4})
	if err != nil {
		t.Fatalf("ProcessAPDU failed: %v", err)
	}
	if !bytes.Equal(resp, []byte{0x90, 0x00}) {
		t.Fatalf("resp = % X, want 90 00", resp)
	}

	if err := l.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if _, err := l.ProcessAPDU(nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized after Shutdown", err)
	}
}
