package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/internal/obs"
)

// StatusKind mirrors the polling contract the browser frontend consumes.
type StatusKind string

const (
	StatusAuthenticated StatusKind = "AUTHENTICATED"
	StatusQRCodeReady   StatusKind = "QR_CODE_READY"
	StatusInitializing  StatusKind = "INITIALIZING"
)

// Status is the answer to a poll: what the tenant should do next. QRCode is
// set only for StatusQRCodeReady.
type Status struct {
	Kind   StatusKind
	QRCode string
}

// Registry owns all per-matricula session state: the live session map, the
// QR store and the per-matricula generation counters that invalidate stale
// timers and events. At most one session exists per matricula at any instant
// (create-if-absent), and all transitions for one matricula are serialized
// under the registry lock. Client I/O never happens under the lock, so one
// tenant's slow startup or logout cannot stall another's.
type Registry struct {
	factory        ClientFactory
	dataDir        string
	reconnectDelay time.Duration
	qr             *QRStore
	supervisor     *Supervisor

	lock        sync.RWMutex
	sessions    map[string]*Session
	generations map[string]uint64
}

// RegistryOption defines a function type to modify the Registry instance.
type RegistryOption func(*Registry)

// WithReconnectDelay overrides the pause between a disconnect and the
// recreation of the session.
func WithReconnectDelay(delay time.Duration) RegistryOption {
	return func(r *Registry) {
		r.reconnectDelay = delay
	}
}

// NewRegistry creates a registry whose sessions persist their credential
// material under dataDir, one subdirectory per matricula.
func NewRegistry(factory ClientFactory, dataDir string, options ...RegistryOption) *Registry {
	registry := &Registry{
		factory:        factory,
		dataDir:        dataDir,
		reconnectDelay: DefaultReconnectDelay,
		qr:             NewQRStore(),
		sessions:       make(map[string]*Session),
		generations:    make(map[string]uint64),
	}
	for _, opt := range options {
		opt(registry)
	}
	registry.supervisor = newSupervisor(registry, registry.reconnectDelay)
	return registry
}

// Ensure guarantees a session exists, or is under construction, for the
// matricula. It is a no-op when one is already registered: callers get no
// fresh state back, only the guarantee. Initialization runs asynchronously;
// if it fails the session stays in Initializing with no automatic retry,
// recoverable only through an explicit Destroy and re-Ensure. Disconnects, by
// contrast, do retry (see Supervisor): a persistently broken startup
// configuration should not cause a retry storm.
func (r *Registry) Ensure(matricula string) {
	sess := r.register(matricula, 0, false)
	if sess == nil {
		log.Debug().Str("matricula", matricula).Msg("client already initializing")
		return
	}
	r.start(sess)
}

// recreate is Ensure with a generation precondition, for the supervisor's
// scheduled task: the new session is registered only if the matricula's
// generation still equals the disconnected session's, checked under the same
// lock that registers it. A Destroy landing right at the timer firing bumps
// the generation first and the recreation stands down.
func (r *Registry) recreate(matricula string, generation uint64) bool {
	sess := r.register(matricula, generation, true)
	if sess == nil {
		return false
	}
	r.start(sess)
	return true
}

// register adds a fresh session under the lock. Returns nil when one already
// exists, or when mustMatch is set and the generation has moved on.
func (r *Registry) register(matricula string, expectedGeneration uint64, mustMatch bool) *Session {
	r.lock.Lock()
	defer r.lock.Unlock()

	if mustMatch && r.generations[matricula] != expectedGeneration {
		return nil
	}
	if _, ok := r.sessions[matricula]; ok {
		return nil
	}

	r.generations[matricula]++
	sess := &Session{
		ID:            uuid.New().String(),
		Matricula:     matricula,
		Generation:    r.generations[matricula],
		CredentialDir: r.credentialDir(matricula),
		state:         StateInitializing,
	}
	sess.client = r.factory.New(matricula, sess.CredentialDir)
	r.sessions[matricula] = sess
	return sess
}

// start wires the event handlers and kicks off the client, outside the lock.
func (r *Registry) start(sess *Session) {
	obs.SessionRegistered()
	log.Info().
		Str("matricula", sess.Matricula).
		Str("session_id", sess.ID).
		Str("state", StateInitializing.String()).
		Msg("initializing client")

	sess.client.Subscribe(Handlers{
		OnQR:           func(code string) { r.handleQR(sess, code) },
		OnReady:        func() { r.handleReady(sess) },
		OnAuthFailure:  func(reason string) { r.handleAuthFailure(sess, reason) },
		OnDisconnected: func(reason string) { r.handleDisconnected(sess, reason) },
	})

	go func() {
		if err := sess.client.Initialize(context.Background()); err != nil {
			log.Error().Err(err).Str("matricula", sess.Matricula).Str("session_id", sess.ID).Msg("client initialization failed")
		}
	}()
}

// Status reports what the matricula's tenant should do next, derived from the
// live session's state. Authenticated wins over a pending QR code, which wins
// over the Initializing default.
func (r *Registry) Status(matricula string) Status {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if sess, ok := r.sessions[matricula]; ok && sess.state == StateAuthenticated {
		return Status{Kind: StatusAuthenticated}
	}
	if dataURL, ok := r.qr.Get(matricula); ok {
		return Status{Kind: StatusQRCodeReady, QRCode: dataURL}
	}
	return Status{Kind: StatusInitializing}
}

// Destroy logs the client out and permanently removes every trace of the
// matricula's session: registry entry, QR entry and credential directory. The
// removal sequence always runs to completion, even when logout fails (a
// forced destroy is attempted instead). Idempotent: destroying an absent
// session leaves nothing touched, not even the filesystem. Bumping the
// generation cancels any pending reconnect timer and orphans stale client
// events, so nothing can resurrect the old session afterwards.
func (r *Registry) Destroy(ctx context.Context, matricula string) {
	r.lock.Lock()
	sess, existed := r.sessions[matricula]
	delete(r.sessions, matricula)
	r.generations[matricula]++
	r.qr.Delete(matricula)
	wasAuthenticated := existed && sess.state == StateAuthenticated
	r.lock.Unlock()

	if !existed {
		log.Debug().Str("matricula", matricula).Msg("logout requested for unknown matricula")
		return
	}

	obs.SessionRemoved()
	if wasAuthenticated {
		obs.SessionDeauthenticated()
	}
	log.Info().Str("matricula", matricula).Str("session_id", sess.ID).Msg("logging out client")

	if err := sess.client.Logout(ctx); err != nil {
		log.Warn().Err(err).Str("matricula", matricula).Msg("logout failed, forcing client destroy")
		if err := sess.client.Destroy(ctx); err != nil {
			log.Warn().Err(err).Str("matricula", matricula).Msg("forced client destroy failed")
		}
	}
	removeDirSafely(r.credentialDir(matricula))
	log.Info().Str("matricula", matricula).Msg("session removed permanently")
}

func (r *Registry) handleQR(sess *Session, code string) {
	dataURL, err := qrDataURL(code)
	if err != nil {
		log.Error().Err(err).Str("matricula", sess.Matricula).Msg("failed to render QR code")
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.isCurrentLocked(sess) {
		return
	}
	sess.state = StateQRPending
	r.qr.Put(sess.Matricula, dataURL)
	log.Info().
		Str("matricula", sess.Matricula).
		Str("state", sess.state.String()).
		Msg("QR code generated")
}

func (r *Registry) handleReady(sess *Session) {
	r.lock.Lock()
	if !r.isCurrentLocked(sess) {
		r.lock.Unlock()
		return
	}
	sess.state = StateAuthenticated
	r.qr.Delete(sess.Matricula)
	state := sess.state
	r.lock.Unlock()

	obs.SessionAuthenticated()
	log.Info().
		Str("matricula", sess.Matricula).
		Str("session_id", sess.ID).
		Str("state", state.String()).
		Msg("client ready")
}

// handleAuthFailure unregisters the session without scheduling a recreation:
// failed credentials would just fail again until a human intervenes.
func (r *Registry) handleAuthFailure(sess *Session, reason string) {
	r.lock.Lock()
	if !r.isCurrentLocked(sess) {
		r.lock.Unlock()
		return
	}
	wasAuthenticated := sess.state == StateAuthenticated
	sess.state = StateDisconnected
	delete(r.sessions, sess.Matricula)
	r.qr.Delete(sess.Matricula)
	r.lock.Unlock()

	obs.SessionRemoved()
	if wasAuthenticated {
		obs.SessionDeauthenticated()
	}
	log.Error().
		Str("matricula", sess.Matricula).
		Str("state", StateDisconnected.String()).
		Str("reason", reason).
		Msg("client authentication failure")
}

func (r *Registry) handleDisconnected(sess *Session, reason string) {
	log.Warn().
		Str("matricula", sess.Matricula).
		Str("state", StateDisconnected.String()).
		Str("reason", reason).
		Msg("client disconnected")
	r.supervisor.OnDisconnected(sess)
}

// isCurrentLocked reports whether sess is still the registered session for
// its matricula. Events from a superseded or destroyed session fail this
// check and are dropped.
func (r *Registry) isCurrentLocked(sess *Session) bool {
	current, ok := r.sessions[sess.Matricula]
	return ok && current == sess
}

func (r *Registry) generationIs(matricula string, generation uint64) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.generations[matricula] == generation
}
