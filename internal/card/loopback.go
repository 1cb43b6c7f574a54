package card

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned when the loopback token is used before Init
// or after Shutdown.
var ErrNotInitialized = errors.New("card: backend not initialized")

// swOK is the ISO 7816 "success" status word.
var swOK = []byte{0x90, 0x00}

// Loopback is a simulated soft token for deployments without a native card
// module and for tests. It accepts any command APDU and answers with a bare
// success status word.
type Loopback struct {
	mu   sync.Mutex
	open bool
}

// NewLoopback returns an uninitialized loopback token.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	return nil
}

func (l *Loopback) ProcessAPDU(command []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return nil, ErrNotInitialized
	}
	out := make([]byte, len(swOK))
	copy(out, swOK)
	return out, nil
}

func (l *Loopback) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
	return nil
}
