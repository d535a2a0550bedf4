package sessions

// State is a session's position in its lifecycle.
type State int

const (
	StateInitializing State = iota
	StateQRPending
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateQRPending:
		return "qr_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session binds one matricula to one client handle and its credential
// directory. A disconnected session is never revived: the supervisor creates
// a brand-new Session (with a higher generation) in its place.
type Session struct {
	ID            string // correlates one client handle's lifecycle in logs
	Matricula     string
	Generation    uint64
	CredentialDir string

	// Guarded by the registry lock. Written only by the session's own event
	// handlers (single writer).
	state  State
	client Client
}
