package authz

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of an authorization request.
type Decision string

const (
	DecisionAuthorized   Decision = "AUTHORIZED"
	DecisionUnauthorized Decision = "UNAUTHORIZED"
	DecisionExpired      Decision = "EXPIRED"
)

// SessionStarter is the piece of the session registry the authorization
// service needs: kicking off a session for a freshly authorized matricula.
type SessionStarter interface {
	Ensure(matricula string)
}

// Service decides whether a matricula may open a messaging session and, on a
// positive decision, asks the registry to ensure one exists.
type Service struct {
	cache    *Cache
	sessions SessionStarter
	nowTime  func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithServiceNowTime sets the now time function (primarily for testing)
func WithServiceNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func NewService(cache *Cache, sessions SessionStarter, options ...ServiceOption) (*Service, error) {
	if cache == nil {
		return nil, errors.New("[NewService] cache is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewService] session starter is required")
	}

	service := &Service{
		cache:    cache,
		sessions: sessions,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Authorize validates the matricula, checks it against the cached allow-list
// and its expiration date, and on success starts a session. Unauthorized and
// Expired are ordinary decisions, not errors; the error return covers
// validation failures and an unreachable authority with an empty cache.
func (s *Service) Authorize(ctx context.Context, matricula string) (Decision, error) {
	normalized := NormalizeMatricula(matricula)
	if normalized == "" {
		return "", MissingMatriculaErr
	}

	user, err := s.cache.Lookup(ctx, normalized)
	if err != nil {
		if errors.Is(err, NotAuthorizedErr) {
			log.Warn().Str("matricula", normalized).Msg("access denied: matricula not authorized")
			return DecisionUnauthorized, nil
		}
		return "", errors.Wrap(err, "[Authorize] cache lookup")
	}

	if user.ExpiredAt(s.nowTime()) {
		log.Warn().Str("matricula", normalized).Str("expired", user.ExpirationDate).Msg("access blocked: licence expired")
		return DecisionExpired, nil
	}

	log.Info().Str("matricula", normalized).Msg("access authorized, starting client")
	s.sessions.Ensure(normalized)
	return DecisionAuthorized, nil
}
