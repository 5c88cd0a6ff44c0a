package service

import (
	"context"
	"path/filepath"
	"testing"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/port"
	"overkiz2mqtt/internal/entry"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClient struct {
	loginErr    error
	logins      int
	gateways    []overkiz.Gateway
	options     map[string]*overkiz.SetupOption
	token       string
	activations []string
}

func (c *stubClient) Login(ctx context.Context) error {
	c.logins++
	return c.loginErr
}

func (c *stubClient) GetGateways(ctx context.Context) ([]overkiz.Gateway, error) {
	return c.gateways, nil
}

func (c *stubClient) GetSetupOption(ctx context.Context, option string) (*overkiz.SetupOption, error) {
	return c.options[option], nil
}

func (c *stubClient) GenerateLocalToken(ctx context.Context, gatewayID string) (string, error) {
	return c.token, nil
}

func (c *stubClient) ActivateLocalToken(ctx context.Context, gatewayID, token, label string) (string, error) {
	c.activations = append(c.activations, gatewayID+"/"+token)
	return "activation-1", nil
}

type stubClients struct {
	cloud      *stubClient
	local      *stubClient
	localHosts []string
}

func (p *stubClients) CloudClient(username, password string, server overkiz.Server) port.ProvisioningClient {
	return p.cloud
}

func (p *stubClients) LocalClient(host, token string) port.ProvisioningClient {
	p.localHosts = append(p.localHosts, host)
	return p.local
}

func newTestProvisioner(t *testing.T, clients *stubClients) *Provisioner {
	store := entry.NewStore(filepath.Join(t.TempDir(), "entries.json"))
	require.NoError(t, store.Load())
	return &Provisioner{
		Clients: clients,
		Store:   store,
		Logger:  zap.NewNop(),
	}
}

func TestProvisionCloudEntry(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{
				{ID: "SOMFY_PROTECT-0000-1111"},
				{ID: "1234-5678-9012"},
			},
		},
	}
	p := newTestProvisioner(t, clients)

	e, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeCloud,
		Username: "user@example.com",
		Password: "hunter2",
		Server:   overkiz.ServerSomfyEurope,
	})
	require.NoError(err)

	assert.Equal(t, "1234-5678-9012", e.UniqueID, "third party bridge ids never take the unique id")
	assert.Equal(t, "Somfy (Europe)", e.Title)
	assert.Equal(t, entry.CurrentVersion, e.Version)
	assert.Equal(t, string(overkiz.APITypeCloud), e.Data[entry.KeyAPIType])
	assert.Equal(t, "user@example.com", e.Data[entry.KeyUsername])
	assert.Equal(t, overkiz.ServerSomfyEurope, e.Data[entry.KeyServer])
	assert.Equal(t, 1, p.Store.Len())
	assert.NotNil(t, p.Store.FindByUniqueID("1234-5678-9012"))
}

func TestProvisionRejectsDuplicateGateway(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{{ID: "1234-5678-9012"}},
		},
	}
	p := newTestProvisioner(t, clients)

	req := domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeCloud,
		Username: "user@example.com",
		Password: "hunter2",
		Server:   overkiz.ServerSomfyEurope,
	}
	_, err := p.Provision(context.Background(), req)
	require.NoError(err)

	_, err = p.Provision(context.Background(), req)
	require.ErrorIs(err, ErrDuplicateEntry)
	assert.Equal(t, 1, p.Store.Len())
}

func TestProvisionUnknownServer(t *testing.T) {

	require := require.New(t)

	p := newTestProvisioner(t, &stubClients{cloud: &stubClient{}})

	_, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeCloud,
		Username: "user@example.com",
		Password: "hunter2",
		Server:   "acme_home",
	})
	require.ErrorIs(err, ErrUnknownServer)
}

func TestProvisionLocalEntry(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{{ID: "1234-5678-9012"}},
			options: map[string]*overkiz.SetupOption{
				"developerMode-1234-5678-9012": {OptionName: "developerMode-1234-5678-9012"},
			},
			token: "local-token-abc",
		},
		local: &stubClient{},
	}
	p := newTestProvisioner(t, clients)

	e, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeLocal,
		Host:     "gateway-1234-5678-9012.local:8443",
		Username: "user@example.com",
		Password: "hunter2",
	})
	require.NoError(err)

	assert.Equal(t, "1234-5678-9012", e.UniqueID)
	assert.Equal(t, string(overkiz.APITypeLocal), e.Data[entry.KeyAPIType])
	assert.Equal(t, "gateway-1234-5678-9012.local:8443", e.Data[entry.KeyHost])
	assert.Equal(t, "local-token-abc", e.Data[entry.KeyToken])
	assert.Empty(t, e.Data[entry.KeyUsername], "cloud account is never stored for local entries")
	assert.Equal(t, []string{"1234-5678-9012/local-token-abc"}, clients.cloud.activations)
	assert.Equal(t, 1, clients.local.logins, "token is verified against the gateway")
}

func TestProvisionLocalDeveloperModeDisabled(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{{ID: "1234-5678-9012"}},
		},
		local: &stubClient{},
	}
	p := newTestProvisioner(t, clients)

	_, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeLocal,
		Host:     "gateway-1234-5678-9012.local:8443",
		Username: "user@example.com",
		Password: "hunter2",
	})
	require.ErrorIs(err, ErrDeveloperModeDisabled)
	assert.Equal(t, 0, p.Store.Len())
}

func TestReauthUpdatesCredentials(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{{ID: "1234-5678-9012"}},
		},
	}
	p := newTestProvisioner(t, clients)

	e, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeCloud,
		Username: "user@example.com",
		Password: "hunter2",
		Server:   overkiz.ServerSomfyEurope,
	})
	require.NoError(err)

	updated, err := p.Reauth(context.Background(), domain.ReauthEntryRequest{
		EntryID:  e.ID,
		Username: "user@example.com",
		Password: "correct-horse",
	})
	require.NoError(err)

	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, "correct-horse", updated.Data[entry.KeyPassword])
	assert.Equal(t, "1234-5678-9012", updated.UniqueID)
}

func TestReauthRejectsOtherAccount(t *testing.T) {

	require := require.New(t)

	clients := &stubClients{
		cloud: &stubClient{
			gateways: []overkiz.Gateway{{ID: "1234-5678-9012"}},
		},
	}
	p := newTestProvisioner(t, clients)

	e, err := p.Provision(context.Background(), domain.ProvisionEntryRequest{
		APIType:  overkiz.APITypeCloud,
		Username: "user@example.com",
		Password: "hunter2",
		Server:   overkiz.ServerSomfyEurope,
	})
	require.NoError(err)

	clients.cloud.gateways = []overkiz.Gateway{{ID: "9999-8888-7777"}}

	_, err = p.Reauth(context.Background(), domain.ReauthEntryRequest{
		EntryID:  e.ID,
		Username: "other@example.com",
		Password: "hunter2",
	})
	require.ErrorIs(err, ErrAccountMismatch)

	kept := p.Store.Get(e.ID)
	assert.Equal(t, "user@example.com", kept.Data[entry.KeyUsername], "failed reauth keeps old credentials")
}

func TestReauthUnknownEntry(t *testing.T) {

	require := require.New(t)

	p := newTestProvisioner(t, &stubClients{cloud: &stubClient{}})

	_, err := p.Reauth(context.Background(), domain.ReauthEntryRequest{
		EntryID:  "missing",
		Username: "user@example.com",
		Password: "hunter2",
	})
	require.ErrorIs(err, ErrEntryNotFound)
}
