package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zapconecta/session-server/authz"
	"github.com/zapconecta/session-server/sessions"
)

// statusResponse is the JSON body every endpoint answers with. The status
// strings and Portuguese messages are the contract the frontend switches on.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	QRCode  string `json:"qrCode,omitempty"`
}

type matriculaRequest struct {
	Matricula string `json:"matricula"`
}

// AuthenticateHandler checks the matricula against the authority's
// allow-list and, when authorized, starts (or no-ops on) its session.
func (s *Server) AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body matriculaRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Status:  "INVALID_REQUEST",
				Message: "O campo matrícula é obrigatório.",
			})
			return
		}

		decision, err := s.authz.Authorize(r.Context(), body.Matricula)
		switch {
		case errors.Is(err, authz.MissingMatriculaErr):
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Status:  "INVALID_REQUEST",
				Message: "O campo matrícula é obrigatório.",
			})
		case err != nil:
			log.Error().Err(err).Str("matricula", body.Matricula).Msg("authorization failed")
			writeJSON(w, http.StatusInternalServerError, statusResponse{
				Status:  "ERROR",
				Message: "Não foi possível conectar ao serviço de autorização.",
			})
		case decision == authz.DecisionUnauthorized:
			writeJSON(w, http.StatusForbidden, statusResponse{
				Status:  string(decision),
				Message: fmt.Sprintf("A matrícula %s não foi autorizada.", authz.NormalizeMatricula(body.Matricula)),
			})
		case decision == authz.DecisionExpired:
			writeJSON(w, http.StatusForbidden, statusResponse{
				Status:  string(decision),
				Message: "Sua licença de uso para o sistema expirou.",
			})
		default:
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  string(decision),
				Message: "Autenticação válida. Iniciando cliente...",
			})
		}
	}
}

// QRStatusHandler is the poll endpoint: it tells the frontend whether the
// session is authenticated, waiting for a QR scan, or still starting up.
func (s *Server) QRStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matricula := authz.NormalizeMatricula(r.PathValue("matricula"))
		if matricula == "" {
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Status:  "INVALID_REQUEST",
				Message: "O campo matrícula é obrigatório.",
			})
			return
		}

		status := s.registry.Status(matricula)
		switch status.Kind {
		case sessions.StatusAuthenticated:
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  string(status.Kind),
				Message: "✅ Conectado com sucesso!",
			})
		case sessions.StatusQRCodeReady:
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  string(status.Kind),
				Message: "Leia o QR Code com o seu celular.",
				QRCode:  status.QRCode,
			})
		default:
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  string(sessions.StatusInitializing),
				Message: "Inicializando Cliente / Gerando QR Code",
			})
		}
	}
}

// LogoutHandler removes the matricula's session permanently. Idempotent: a
// logout for an unknown matricula still answers 200.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body matriculaRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Status:  "INVALID_REQUEST",
				Message: "O campo matrícula é obrigatório.",
			})
			return
		}
		matricula := authz.NormalizeMatricula(body.Matricula)
		if matricula == "" {
			writeJSON(w, http.StatusBadRequest, statusResponse{
				Status:  "INVALID_REQUEST",
				Message: "O campo matrícula é obrigatório.",
			})
			return
		}

		s.registry.Destroy(r.Context(), matricula)
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "LOGGED_OUT",
			Message: "Sessão removida permanentemente.",
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body statusResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}
