package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/authz"
	"github.com/zapconecta/session-server/internal/config"
	"github.com/zapconecta/session-server/internal/obs"
	"github.com/zapconecta/session-server/server"
	"github.com/zapconecta/session-server/sessions"
	"github.com/zapconecta/session-server/sessions/clientfake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	obs.Init()
	displayAppname(c.GetAppName())

	authorityURL := c.GetAuthorityURL()
	if authorityURL == "" {
		return errors.New("AUTHORITY_URL is required")
	}

	cache := authz.NewCache(authz.NewHTTPAuthority(authorityURL), authz.WithTTL(c.GetAuthCacheTTL()))
	registry := sessions.NewRegistry(messagingFactory(), c.GetDataFolder(), sessions.WithReconnectDelay(c.GetReconnectDelay()))
	authzService, err := authz.NewService(cache, registry)
	if err != nil {
		return fmt.Errorf("authz.NewService: %w", err)
	}

	handler, err := server.New(c, authzService, registry)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// messagingFactory returns the capability that backs each matricula's
// session. The scripted stand-in emits a QR code on startup so the whole
// authenticate/poll/logout surface is exercisable end to end; a production
// deployment swaps in a factory wrapping the real messaging client.
func messagingFactory() sessions.ClientFactory {
	log.Warn().Msg("using the scripted demo messaging client")
	return clientfake.NewFactory(clientfake.WithScript(func(fc *clientfake.FakeClient) {
		fc.EmitQR("demo-handshake:" + fc.Matricula)
	}))
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
