package server_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zapconecta/session-server/authz"
	"github.com/zapconecta/session-server/authz/authorityfake"
	"github.com/zapconecta/session-server/internal/config"
	"github.com/zapconecta/session-server/server"
	"github.com/zapconecta/session-server/sessions"
	"github.com/zapconecta/session-server/sessions/clientfake"
)

const (
	testMatricula = "12345"
	farExpiration = "2999-12-31"
)

type serverFixture struct {
	authority *authorityfake.FakeAuthority
	factory   *clientfake.Factory
	registry  *sessions.Registry
	server    *server.Server
}

func setupServerFixture(t *testing.T, users ...authz.AuthorizedUser) *serverFixture {
	t.Helper()

	f := &serverFixture{
		authority: authorityfake.NewFakeAuthority(users...),
		factory:   clientfake.NewFactory(),
	}
	f.registry = sessions.NewRegistry(f.factory, t.TempDir(), sessions.WithReconnectDelay(20*time.Millisecond))

	cache := authz.NewCache(f.authority)
	authzService, err := authz.NewService(cache, f.registry)
	require.NoError(t, err)

	srv, err := server.New(config.New(), authzService, f.registry)
	require.NoError(t, err)
	f.server = srv
	return f
}

type responseBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	QRCode  string `json:"qrCode"`
}

func (f *serverFixture) do(t *testing.T, method, target, body string) (int, responseBody) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var decoded responseBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	return rec.Code, decoded
}

func TestAuthenticateEndpoint(t *testing.T) {
	t.Run("authorized matricula starts a session", func(t *testing.T) {
		f := setupServerFixture(t, authz.AuthorizedUser{Matricula: testMatricula, ExpirationDate: farExpiration})

		code, body := f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "`+testMatricula+`"}`)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "AUTHORIZED", body.Status)
		require.Equal(t, 1, f.factory.Builds(testMatricula))
	})

	t.Run("unknown matricula is forbidden and no session starts", func(t *testing.T) {
		f := setupServerFixture(t, authz.AuthorizedUser{Matricula: testMatricula, ExpirationDate: farExpiration})

		code, body := f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "99999"}`)
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "UNAUTHORIZED", body.Status)
		require.Equal(t, 0, f.factory.Builds("99999"))
	})

	t.Run("expired licence is forbidden", func(t *testing.T) {
		yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		f := setupServerFixture(t, authz.AuthorizedUser{Matricula: testMatricula, ExpirationDate: yesterday})

		code, body := f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "`+testMatricula+`"}`)
		require.Equal(t, http.StatusForbidden, code)
		require.Equal(t, "EXPIRED", body.Status)
	})

	t.Run("missing matricula is rejected before any lookup", func(t *testing.T) {
		f := setupServerFixture(t)

		for _, payload := range []string{`{}`, `{"matricula": "   "}`, `not json`} {
			code, body := f.do(t, http.MethodPost, server.RouteAuthenticate, payload)
			require.Equal(t, http.StatusBadRequest, code)
			require.Equal(t, "INVALID_REQUEST", body.Status)
		}
		require.Equal(t, 0, f.authority.FetchCount())
	})

	t.Run("unreachable authority with empty cache is a server error", func(t *testing.T) {
		f := setupServerFixture(t)
		f.authority.SetError(errors.New("upstream down"))

		code, body := f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "`+testMatricula+`"}`)
		require.Equal(t, http.StatusInternalServerError, code)
		require.Equal(t, "ERROR", body.Status)
	})
}

func TestQRStatusEndpoint(t *testing.T) {
	f := setupServerFixture(t, authz.AuthorizedUser{Matricula: testMatricula, ExpirationDate: farExpiration})

	code, body := f.do(t, http.MethodGet, "/get-qr/"+testMatricula, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "INITIALIZING", body.Status)

	_, _ = f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "`+testMatricula+`"}`)
	client := f.factory.Client(testMatricula)
	require.NotNil(t, client)

	client.EmitQR("handshake")
	code, body = f.do(t, http.MethodGet, "/get-qr/"+testMatricula, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "QR_CODE_READY", body.Status)
	require.Contains(t, body.QRCode, "data:image/png;base64,")

	client.EmitReady()
	code, body = f.do(t, http.MethodGet, "/get-qr/"+testMatricula, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "AUTHENTICATED", body.Status)
	require.Empty(t, body.QRCode)
}

func TestLogoutEndpoint(t *testing.T) {
	f := setupServerFixture(t, authz.AuthorizedUser{Matricula: testMatricula, ExpirationDate: farExpiration})
	_, _ = f.do(t, http.MethodPost, server.RouteAuthenticate, `{"matricula": "`+testMatricula+`"}`)

	code, body := f.do(t, http.MethodPost, server.RouteLogout, `{"matricula": "`+testMatricula+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "LOGGED_OUT", body.Status)
	require.Equal(t, 1, f.factory.Client(testMatricula).LogoutCalls())

	// Idempotent: logging out a matricula with no session is still a 200.
	code, body = f.do(t, http.MethodPost, server.RouteLogout, `{"matricula": "`+testMatricula+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "LOGGED_OUT", body.Status)
}
