package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/internal/obs"
)

// DefaultReconnectDelay is the pause between tearing down a disconnected
// session and creating its replacement. It gives the external client time to
// release filesystem and process handles before the credential directory is
// deleted and a fresh client claims the same path.
const DefaultReconnectDelay = 2 * time.Second

// Supervisor reacts to client disconnects: the dead session is unregistered
// immediately (so concurrent polls see Initializing, never a stale
// Authenticated) and exactly one recreation is scheduled. No backoff, no
// retry cap: if the recreated session's own startup fails, recovery is
// manual.
type Supervisor struct {
	registry *Registry
	delay    time.Duration
}

func newSupervisor(registry *Registry, delay time.Duration) *Supervisor {
	return &Supervisor{registry: registry, delay: delay}
}

// OnDisconnected tears sess down and schedules its recreation. The scheduled
// task carries sess's generation, which the recreation re-checks under the
// registry lock: if a Destroy or a newer session has bumped the matricula's
// generation by then, the task is stale and does nothing.
func (sv *Supervisor) OnDisconnected(sess *Session) {
	r := sv.registry

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

	// The handle is abandoned whether or not destroy succeeds.
	go func() {
		if err := sess.client.Destroy(context.Background()); err != nil {
			log.Warn().Err(err).Str("matricula", sess.Matricula).Msg("destroying disconnected client failed")
		}
	}()

	obs.ReconnectScheduled()
	log.Info().
		Str("matricula", sess.Matricula).
		Dur("delay", sv.delay).
		Msg("scheduling client recreation")

	time.AfterFunc(sv.delay, func() {
		if !r.generationIs(sess.Matricula, sess.Generation) {
			log.Debug().Str("matricula", sess.Matricula).Msg("skipping stale reconnect")
			return
		}
		removeDirSafely(sess.CredentialDir)
		if !r.recreate(sess.Matricula, sess.Generation) {
			log.Debug().Str("matricula", sess.Matricula).Msg("skipping stale reconnect")
			return
		}
		log.Info().Str("matricula", sess.Matricula).Msg("client recreated after disconnect")
	})
}
