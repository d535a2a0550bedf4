package authz

import (
	"strings"
	"time"
)

const expirationDateLayout = "2006-01-02"

// AuthorizedUser is one entry of the authority's allow-list: a matricula and
// the last calendar day on which it may open a session. Entries are immutable
// once fetched; a cache refresh replaces the whole list.
type AuthorizedUser struct {
	Matricula      string `json:"matricula"`
	ExpirationDate string `json:"dataExpiracao"` // YYYY-MM-DD, no time component
}

// ExpiredAt reports whether the licence has lapsed relative to now.
// Comparison is at day granularity in the local zone: a licence expiring
// today is still valid. An unparseable date never expires, mirroring the
// authority's own comparison semantics.
func (u AuthorizedUser) ExpiredAt(now time.Time) bool {
	expiration, err := time.ParseInLocation(expirationDateLayout, u.ExpirationDate, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.After(expiration)
}

// NormalizeMatricula trims the surrounding whitespace clients routinely send.
// All lookups and registry keys use the normalized form.
func NormalizeMatricula(matricula string) string {
	return strings.TrimSpace(matricula)
}
