package port

import (
	"context"

	"overkiz2mqtt/pkg/overkiz"
)

// ProvisioningClient is the slice of the hub API the provisioning service
// needs to validate credentials and issue local tokens.
type ProvisioningClient interface {
	Login(ctx context.Context) error
	GetGateways(ctx context.Context) ([]overkiz.Gateway, error)
	GetSetupOption(ctx context.Context, option string) (*overkiz.SetupOption, error)
	GenerateLocalToken(ctx context.Context, gatewayID string) (string, error)
	ActivateLocalToken(ctx context.Context, gatewayID, token, label string) (string, error)
}

// ClientProvider builds hub clients for the provisioning service. Each call
// returns a fresh client with its own session.
type ClientProvider interface {
	CloudClient(username, password string, server overkiz.Server) ProvisioningClient
	LocalClient(host, token string) ProvisioningClient
}
