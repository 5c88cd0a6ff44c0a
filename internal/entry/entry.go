package entry

import (
	"errors"
	"fmt"

	"overkiz2mqtt/pkg/overkiz"
)

// data map keys
const (
	KeyAPIType  = "api_type"
	KeyHost     = "host"
	KeyToken    = "token"
	KeyUsername = "username"
	KeyPassword = "password"
	KeyServer   = "server"
	// KeyHub only appears in schema v1 entries, Migrate renames it to
	// KeyServer.
	KeyHub = "hub"
)

var ErrInvalidEntry = errors.New("invalid entry data")

// Entry is one configured gateway connection. Data carries the raw key value
// pairs of the stored schema, Credentials returns their typed form.
type Entry struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Version  int               `json:"version"`
	UniqueID string            `json:"unique_id,omitempty"`
	Data     map[string]string `json:"data"`
}

// LocalConfig connects straight to a gateway on the LAN. It carries no
// account credentials, the bearer token is the whole authentication.
type LocalConfig struct {
	Host  string
	Token string
}

// CloudConfig connects through one of the vendor cloud servers.
type CloudConfig struct {
	Username  string
	Password  string
	ServerKey string
	Server    overkiz.Server
}

// Credentials is the validated form of an entry's data map. Exactly one of
// Local or Cloud is set, matching APIType.
type Credentials struct {
	APIType overkiz.APIType
	Local   *LocalConfig
	Cloud   *CloudConfig
}

// Credentials validates the entry data against its schema and returns the
// typed credentials. Entries must be migrated to the current schema first.
func (e *Entry) Credentials() (*Credentials, error) {
	if e.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: schema version %d, entry not migrated", ErrInvalidEntry, e.Version)
	}
	switch apiType := overkiz.APIType(e.Data[KeyAPIType]); apiType {
	case overkiz.APITypeLocal:
		host, token := e.Data[KeyHost], e.Data[KeyToken]
		if host == "" || token == "" {
			return nil, fmt.Errorf("%w: local entry needs %s and %s", ErrInvalidEntry, KeyHost, KeyToken)
		}
		return &Credentials{
			APIType: overkiz.APITypeLocal,
			Local:   &LocalConfig{Host: host, Token: token},
		}, nil
	case overkiz.APITypeCloud:
		username, password, serverKey := e.Data[KeyUsername], e.Data[KeyPassword], e.Data[KeyServer]
		if username == "" || password == "" || serverKey == "" {
			return nil, fmt.Errorf("%w: cloud entry needs %s, %s and %s",
				ErrInvalidEntry, KeyUsername, KeyPassword, KeyServer)
		}
		server, ok := overkiz.SupportedServers[serverKey]
		if !ok {
			return nil, fmt.Errorf("%w: unknown server %q", ErrInvalidEntry, serverKey)
		}
		return &Credentials{
			APIType: overkiz.APITypeCloud,
			Cloud: &CloudConfig{
				Username:  username,
				Password:  password,
				ServerKey: serverKey,
				Server:    server,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown api type %q", ErrInvalidEntry, apiType)
	}
}
