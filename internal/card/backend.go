package card

import "context"

// Backend is the card-processing capability behind the bridge. In production
// it is satisfied by a native soft-token module; how that module is located
// and loaded is the implementation's concern, never the dispatcher's.
type Backend interface {
	// Init prepares the backend for ProcessAPDU calls. Called once at
	// process startup; failure must prevent the server from listening.
	Init(ctx context.Context) error

	// ProcessAPDU executes one command APDU and returns the response bytes.
	ProcessAPDU(command []byte) ([]byte, error)

	// Shutdown releases the backend. Called once at process exit.
	Shutdown() error
}
