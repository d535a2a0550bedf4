package clientfake

import (
	"sync"

	"github.com/zapconecta/session-server/sessions"
)

var _ sessions.ClientFactory = (*Factory)(nil)

// Factory builds FakeClients and remembers the latest one per matricula so
// tests can reach the handle the registry is driving.
type Factory struct {
	lock          sync.Mutex
	clients       map[string]*FakeClient
	builds        map[string]int
	initializeErr error
	script        func(*FakeClient)
}

// FactoryOption defines a function type to modify the Factory instance.
type FactoryOption func(*Factory)

// WithScript runs fn after every successful Initialize, letting the factory
// auto-play a handshake (emit a QR, then ready).
func WithScript(fn func(*FakeClient)) FactoryOption {
	return func(f *Factory) {
		f.script = fn
	}
}

// WithInitializeErr makes every built client fail its Initialize call.
func WithInitializeErr(err error) FactoryOption {
	return func(f *Factory) {
		f.initializeErr = err
	}
}

func NewFactory(options ...FactoryOption) *Factory {
	factory := &Factory{
		clients: make(map[string]*FakeClient),
		builds:  make(map[string]int),
	}
	for _, opt := range options {
		opt(factory)
	}
	return factory
}

func (f *Factory) New(matricula, credentialDir string) sessions.Client {
	f.lock.Lock()
	defer f.lock.Unlock()
	client := &FakeClient{
		Matricula:     matricula,
		CredentialDir: credentialDir,
		initializeErr: f.initializeErr,
		script:        f.script,
	}
	f.clients[matricula] = client
	f.builds[matricula]++
	return client
}

// Client returns the latest client built for the matricula, or nil.
func (f *Factory) Client(matricula string) *FakeClient {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.clients[matricula]
}

// Builds returns how many clients have been built for the matricula.
func (f *Factory) Builds(matricula string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.builds[matricula]
}
