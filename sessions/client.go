package sessions

import "context"

// Client is the external messaging capability backing one matricula's
// session. It is an opaque handle: the registry never sees the underlying
// protocol, only the lifecycle surface below. The client persists its own
// credential material in the directory it was built with, so a restart can
// resume without a fresh QR handshake.
type Client interface {
	// Initialize starts the client. Authentication progress is reported
	// asynchronously through the subscribed handlers, not the return value.
	Initialize(ctx context.Context) error

	// Logout ends the session on the messaging network and invalidates the
	// persisted credentials.
	Logout(ctx context.Context) error

	// Destroy force-closes the client without a network logout.
	Destroy(ctx context.Context) error

	// Subscribe registers the lifecycle event handlers. Called exactly once,
	// before Initialize.
	Subscribe(handlers Handlers)
}

// Handlers receives a client's asynchronous lifecycle events. The session
// registry is the sole subscriber; handlers may be invoked from arbitrary
// goroutines.
type Handlers struct {
	OnQR           func(code string)
	OnReady        func()
	OnAuthFailure  func(reason string)
	OnDisconnected func(reason string)
}

// ClientFactory builds one client per matricula. credentialDir is the
// directory the client must use for its persisted session material.
type ClientFactory interface {
	New(matricula, credentialDir string) Client
}
