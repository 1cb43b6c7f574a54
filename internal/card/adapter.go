package card

import (
	"context"
	"sync"
	"time"

	"softcard/bridge/internal/metrics"
)

// swUnsupported is the ISO 7816 status word for "instruction not supported".
// It doubles as the warm-up placeholder and the fail-soft fallback so a bad
// command never terminates a session.
var swUnsupported = []byte{0x6D, 0x82}

// FallbackResponse returns the placeholder APDU response used during warm-up
// and after backend failures.
func FallbackResponse() []byte {
	out := make([]byte, len(swUnsupported))
	copy(out, swUnsupported)
	return out
}

// Adapter wraps a Backend and owns the warm-up policy: for the configured
// window after Open, command APDUs are answered with the fixed placeholder
// without touching the backend at all. The adapter is shared by every
// session and serializes ProcessAPDU, since the simulated card state is not
// reentrant.
type Adapter struct {
	backend Backend
	warmup  time.Duration
	t0      time.Time

	mu   sync.Mutex
	once sync.Once
	now  func() time.Time
}

// Open initializes the backend and returns an adapter whose warm-up window
// starts now. An init failure is returned as-is; the caller must not begin
// accepting connections.
func Open(ctx context.Context, b Backend, warmup time.Duration) (*Adapter, error) {
	if err := b.Init(ctx); err != nil {
		return nil, err
	}
	return &Adapter{
		backend: b,
		warmup:  warmup,
		t0:      time.Now(),
		now:     time.Now,
	}, nil
}

// StartedAt reports when the backend finished initializing. This is the
// process-wide warm-up origin.
func (a *Adapter) StartedAt() time.Time { return a.t0 }

// Warmup reports the configured warm-up window.
func (a *Adapter) Warmup() time.Duration { return a.warmup }

// Transmit forwards a command APDU subject to the process-wide warm-up gate.
func (a *Adapter) Transmit(command []byte) []byte {
	return a.TransmitFrom(a.t0, command)
}

// TransmitFrom applies the warm-up gate relative to origin, for deployments
// where the window is measured per session rather than from backend init.
// Inside the window the backend is not invoked. Outside it, a backend error
// is swallowed and replaced by the fixed placeholder.
func (a *Adapter) TransmitFrom(origin time.Time, command []byte) []byte {
	if a.now().Sub(origin) <= a.warmup {
		metrics.WarmupShortCircuits.Inc()
		return FallbackResponse()
	}

	a.mu.Lock()
	resp, err := a.backend.ProcessAPDU(command)
	a.mu.Unlock()
	if err != nil {
		metrics.BackendErrors.Inc()
		return FallbackResponse()
	}
	return resp
}

// Close releases the backend exactly once.
func (a *Adapter) Close() error {
	var err error
	a.once.Do(func() {
		err = a.backend.Shutdown()
	})
	return err
}
