package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/authz"
	"github.com/zapconecta/session-server/internal/config"
	"github.com/zapconecta/session-server/internal/obs"
	"github.com/zapconecta/session-server/sessions"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "production")
	mux      *http.ServeMux
	handler  http.Handler
	routes   []string
	config   config.Config
	authz    *authz.Service
	registry *sessions.Registry
}

func New(config config.Config, authzService *authz.Service, registry *sessions.Registry) (*Server, error) {
	if authzService == nil {
		return nil, errors.New("[Server New] authorization service is required")
	}
	if registry == nil {
		return nil, errors.New("[Server New] session registry is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		authz:    authzService,
		registry: registry,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.handler = obs.Instrument(s.mux)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteAuthenticate, s.AuthenticateHandler())
	s.RegisterRouteFunc("GET "+RouteQRStatus, s.QRStatusHandler())
	s.RegisterRouteFunc("POST "+RouteLogout, s.LogoutHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, obs.Handler())
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}
