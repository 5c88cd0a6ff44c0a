package entry

import (
	"overkiz2mqtt/internal/core/port"
	"overkiz2mqtt/pkg/overkiz"

	"go.uber.org/zap"
)

// BuildClient returns a hub client for the given credentials. Every call
// creates a fresh client with its own session, so concurrently loaded entries
// never share cookies. The local variant authenticates with the bearer token
// alone and reads no account fields.
func BuildClient(creds *Credentials, logger *zap.Logger) overkiz.Client {
	if creds.APIType == overkiz.APITypeLocal {
		return overkiz.NewLocalClient(creds.Local.Host, creds.Local.Token, logger)
	}
	return overkiz.NewCloudClient(creds.Cloud.Username, creds.Cloud.Password, creds.Cloud.Server, logger)
}

// Clients is the real port.ClientProvider, backed by the REST API.
type Clients struct {
	Logger *zap.Logger
}

func (c Clients) CloudClient(username, password string, server overkiz.Server) port.ProvisioningClient {
	return overkiz.NewCloudClient(username, password, server, c.Logger)
}

func (c Clients) LocalClient(host, token string) port.ProvisioningClient {
	return overkiz.NewLocalClient(host, token, c.Logger)
}
