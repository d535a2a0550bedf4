package authz

import "errors"

var (
	MissingMatriculaErr    = errors.New("matricula is required")
	NotAuthorizedErr       = errors.New("matricula not in the authorized list")
	UpstreamUnavailableErr = errors.New("authorization authority unavailable")
)
