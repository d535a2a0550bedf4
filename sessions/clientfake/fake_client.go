package clientfake

import (
	"context"
	"sync"

	"github.com/zapconecta/session-server/sessions"
)

var _ sessions.Client = (*FakeClient)(nil)

// FakeClient is a scripted stand-in for the external messaging capability.
// Tests drive the session state machine by firing Emit* methods; the Script
// hook lets a factory auto-play a handshake after Initialize.
type FakeClient struct {
	Matricula     string
	CredentialDir string

	lock     sync.Mutex
	handlers sessions.Handlers

	initializeErr error
	logoutErr     error
	destroyErr    error
	script        func(*FakeClient)

	initializeCalls int
	logoutCalls     int
	destroyCalls    int
}

func (fc *FakeClient) Subscribe(handlers sessions.Handlers) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.handlers = handlers
}

func (fc *FakeClient) Initialize(_ context.Context) error {
	fc.lock.Lock()
	fc.initializeCalls++
	err := fc.initializeErr
	script := fc.script
	fc.lock.Unlock()

	if err != nil {
		return err
	}
	if script != nil {
		script(fc)
	}
	return nil
}

func (fc *FakeClient) Logout(_ context.Context) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.logoutCalls++
	return fc.logoutErr
}

func (fc *FakeClient) Destroy(_ context.Context) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.destroyCalls++
	return fc.destroyErr
}

func (fc *FakeClient) SetInitializeErr(err error) { fc.set(func() { fc.initializeErr = err }) }
func (fc *FakeClient) SetLogoutErr(err error)     { fc.set(func() { fc.logoutErr = err }) }
func (fc *FakeClient) SetDestroyErr(err error)    { fc.set(func() { fc.destroyErr = err }) }

func (fc *FakeClient) InitializeCalls() int { return fc.count(&fc.initializeCalls) }
func (fc *FakeClient) LogoutCalls() int     { return fc.count(&fc.logoutCalls) }
func (fc *FakeClient) DestroyCalls() int    { return fc.count(&fc.destroyCalls) }

// EmitQR delivers a qr event as the real client would, from outside the
// registry lock.
func (fc *FakeClient) EmitQR(code string) {
	if h := fc.snapshot().OnQR; h != nil {
		h(code)
	}
}

func (fc *FakeClient) EmitReady() {
	if h := fc.snapshot().OnReady; h != nil {
		h()
	}
}

func (fc *FakeClient) EmitAuthFailure(reason string) {
	if h := fc.snapshot().OnAuthFailure; h != nil {
		h(reason)
	}
}

func (fc *FakeClient) EmitDisconnected(reason string) {
	if h := fc.snapshot().OnDisconnected; h != nil {
		h(reason)
	}
}

func (fc *FakeClient) snapshot() sessions.Handlers {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.handlers
}

func (fc *FakeClient) set(fn func()) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fn()
}

func (fc *FakeClient) count(n *int) int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return *n
}
