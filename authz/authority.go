package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Authority is the external service holding the ground-truth allow-list of
// matriculas permitted to open a messaging session.
type Authority interface {
	FetchAuthorizedUsers(ctx context.Context) ([]AuthorizedUser, error)
}

// HTTPAuthority fetches the allow-list from a single unauthenticated GET
// endpoint returning {"usuarios": [{"matricula": ..., "dataExpiracao": ...}]}.
type HTTPAuthority struct {
	url    string
	client *http.Client
}

func NewHTTPAuthority(url string) *HTTPAuthority {
	return &HTTPAuthority{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *HTTPAuthority) FetchAuthorizedUsers(ctx context.Context) ([]AuthorizedUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[FetchAuthorizedUsers] http.NewRequestWithContext")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[FetchAuthorizedUsers] request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[FetchAuthorizedUsers] unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Usuarios []AuthorizedUser `json:"usuarios"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "[FetchAuthorizedUsers] decoding response")
	}

	return body.Usuarios, nil
}
