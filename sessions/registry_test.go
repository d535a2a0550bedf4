package sessions_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zapconecta/session-server/sessions"
	"github.com/zapconecta/session-server/sessions/clientfake"
)

const (
	testMatricula  = "12345"
	reconnectDelay = 20 * time.Millisecond
	waitTimeout    = 2 * time.Second
	waitTick       = 5 * time.Millisecond
)

type registryFixture struct {
	factory  *clientfake.Factory
	registry *sessions.Registry
	dataDir  string
}

func setupRegistryFixture(t *testing.T, options ...clientfake.FactoryOption) *registryFixture {
	t.Helper()

	f := &registryFixture{
		factory: clientfake.NewFactory(options...),
		dataDir: t.TempDir(),
	}
	f.registry = sessions.NewRegistry(f.factory, f.dataDir, sessions.WithReconnectDelay(reconnectDelay))
	return f
}

// seedCredentialDir simulates the external client having persisted session
// material on disk.
func (f *registryFixture) seedCredentialDir(t *testing.T, matricula string) string {
	t.Helper()
	dir := filepath.Join(f.dataDir, matricula)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{}"), 0o644))
	return dir
}

func TestEnsureIsIdempotent(t *testing.T) {
	f := setupRegistryFixture(t)

	f.registry.Ensure(testMatricula)
	f.registry.Ensure(testMatricula)

	require.Equal(t, 1, f.factory.Builds(testMatricula))
	require.Eventually(t, func() bool {
		return f.factory.Client(testMatricula).InitializeCalls() == 1
	}, waitTimeout, waitTick)
}

func TestStatusLifecycle(t *testing.T) {
	f := setupRegistryFixture(t)

	require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)

	f.registry.Ensure(testMatricula)
	require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)

	client := f.factory.Client(testMatricula)
	require.NotNil(t, client)

	client.EmitQR("handshake-1")
	status := f.registry.Status(testMatricula)
	require.Equal(t, sessions.StatusQRCodeReady, status.Kind)
	require.Contains(t, status.QRCode, "data:image/png;base64,")

	// A repeated qr event overwrites the stored artifact: latest wins.
	client.EmitQR("handshake-2")
	overwritten := f.registry.Status(testMatricula)
	require.Equal(t, sessions.StatusQRCodeReady, overwritten.Kind)
	require.NotEqual(t, status.QRCode, overwritten.QRCode)

	client.EmitReady()
	authenticated := f.registry.Status(testMatricula)
	require.Equal(t, sessions.StatusAuthenticated, authenticated.Kind)
	require.Empty(t, authenticated.QRCode)
}

func TestLateReadyAfterDisconnectDoesNotAuthenticate(t *testing.T) {
	f := setupRegistryFixture(t)
	f.registry.Ensure(testMatricula)

	client := f.factory.Client(testMatricula)
	client.EmitQR("handshake")
	client.EmitDisconnected("NAVIGATION")

	// A ready event straggling in from the torn-down session must not flip
	// the poll answer to Authenticated.
	client.EmitReady()
	require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)
}

func TestInitializationFailureHasNoAutomaticRetry(t *testing.T) {
	f := setupRegistryFixture(t, clientfake.WithInitializeErr(errors.New("browser did not start")))

	f.registry.Ensure(testMatricula)
	require.Eventually(t, func() bool {
		return f.factory.Client(testMatricula).InitializeCalls() == 1
	}, waitTimeout, waitTick)

	time.Sleep(5 * reconnectDelay)
	require.Equal(t, 1, f.factory.Builds(testMatricula))
	require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)

	// Recovery is explicit: destroy, then ensure again.
	f.registry.Destroy(context.Background(), testMatricula)
	f.registry.Ensure(testMatricula)
	require.Equal(t, 2, f.factory.Builds(testMatricula))
}

func TestAuthFailureUnregistersWithoutReinit(t *testing.T) {
	f := setupRegistryFixture(t)
	f.registry.Ensure(testMatricula)

	client := f.factory.Client(testMatricula)
	client.EmitReady()
	require.Equal(t, sessions.StatusAuthenticated, f.registry.Status(testMatricula).Kind)

	client.EmitAuthFailure("unpaired")
	require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)

	time.Sleep(5 * reconnectDelay)
	require.Equal(t, 1, f.factory.Builds(testMatricula))

	f.registry.Ensure(testMatricula)
	require.Equal(t, 2, f.factory.Builds(testMatricula))
}

func TestDestroy(t *testing.T) {
	t.Run("unknown matricula is a quiet no-op", func(t *testing.T) {
		f := setupRegistryFixture(t)
		f.registry.Destroy(context.Background(), testMatricula)
		require.Equal(t, 0, f.factory.Builds(testMatricula))
	})

	t.Run("unknown matricula leaves credential material untouched", func(t *testing.T) {
		f := setupRegistryFixture(t)
		credDir := f.seedCredentialDir(t, testMatricula)

		f.registry.Destroy(context.Background(), testMatricula)
		require.DirExists(t, credDir)
	})

	t.Run("logs out and removes everything", func(t *testing.T) {
		f := setupRegistryFixture(t)
		f.registry.Ensure(testMatricula)
		credDir := f.seedCredentialDir(t, testMatricula)

		client := f.factory.Client(testMatricula)
		client.EmitReady()

		f.registry.Destroy(context.Background(), testMatricula)
		require.Equal(t, 1, client.LogoutCalls())
		require.Equal(t, 0, client.DestroyCalls())
		require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)
		require.NoDirExists(t, credDir)
	})

	t.Run("falls back to forced destroy when logout fails", func(t *testing.T) {
		f := setupRegistryFixture(t)
		f.registry.Ensure(testMatricula)
		credDir := f.seedCredentialDir(t, testMatricula)

		client := f.factory.Client(testMatricula)
		client.SetLogoutErr(errors.New("network gone"))
		client.SetDestroyErr(errors.New("already dead"))

		// Cleanup still runs to completion.
		f.registry.Destroy(context.Background(), testMatricula)
		require.Equal(t, 1, client.LogoutCalls())
		require.Equal(t, 1, client.DestroyCalls())
		require.NoDirExists(t, credDir)
	})

	t.Run("stale events cannot resurrect a destroyed session", func(t *testing.T) {
		f := setupRegistryFixture(t)
		f.registry.Ensure(testMatricula)

		client := f.factory.Client(testMatricula)
		f.registry.Destroy(context.Background(), testMatricula)

		client.EmitQR("late-handshake")
		require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)
		client.EmitReady()
		require.Equal(t, sessions.StatusInitializing, f.registry.Status(testMatricula).Kind)
	})
}
