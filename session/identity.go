package session

import (
	"fmt"
	"strings"

	"github.com/taglme/console/am"
)

// Identity keys the nfcd connection. A change in any field requires a new
// client, a new event stream and a fresh handler registration.
type Identity struct {
	BaseURL string
	Locale  string
	AppKey  string
}

// IdentityFromConfig derives the connection identity from configuration
func IdentityFromConfig(cfg *am.Config) Identity {
	return Identity{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.Service.BaseURL), "/"),
		Locale:  strings.TrimSpace(cfg.Service.Locale),
		AppKey:  cfg.Service.AppKey,
	}
}

// String formats the identity with the app key redacted
func (id Identity) String() string {
	key := "<unset>"
	if id.AppKey != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("%s [locale=%s key=%s]", id.BaseURL, id.Locale, key)
}
