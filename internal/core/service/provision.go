package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/port"
	"overkiz2mqtt/internal/entry"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownServer         = errors.New("unknown server")
	ErrNoLocalAPI            = errors.New("server does not support the local API")
	ErrGatewayNotFound       = errors.New("no gateway on this account")
	ErrDeveloperModeDisabled = errors.New("developer mode is disabled on the gateway")
	ErrDuplicateEntry        = errors.New("gateway is already configured")
	ErrAccountMismatch       = errors.New("credentials belong to a different gateway")
	ErrEntryNotFound         = errors.New("entry not found")
)

const localTokenLabel = "Overkiz2MQTT local token"

var hostGatewayIDPattern = regexp.MustCompile(`\d{4}-\d{4}-\d{4}`)

// Provisioner validates gateway credentials and persists entries. Local
// entries need a cloud login once to mint the local API bearer token, after
// that the cloud account is never stored.
type Provisioner struct {
	Clients port.ClientProvider
	Store   *entry.Store
	Logger  *zap.Logger
}

// Validated is the outcome of a credential check. UniqueID is the main
// gateway id when the account has one, empty otherwise.
type Validated struct {
	UniqueID string
	Data     map[string]string
}

func (p *Provisioner) ValidateCloud(ctx context.Context, username, password, serverKey string) (*Validated, error) {
	server, ok := overkiz.SupportedServers[serverKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, serverKey)
	}
	client := p.Clients.CloudClient(username, password, server)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	gatewayID, err := mainGatewayID(ctx, client)
	if err != nil {
		return nil, err
	}
	return &Validated{
		UniqueID: gatewayID,
		Data: map[string]string{
			entry.KeyAPIType:  string(overkiz.APITypeCloud),
			entry.KeyUsername: username,
			entry.KeyPassword: password,
			entry.KeyServer:   serverKey,
		},
	}, nil
}

// ValidateLocal mints a local API token for the gateway at host. The cloud
// account only serves token generation, the returned data holds host and
// token alone.
func (p *Provisioner) ValidateLocal(ctx context.Context, host, username, password, serverKey string) (*Validated, error) {
	server, ok := overkiz.SupportedServers[serverKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, serverKey)
	}
	if !overkiz.HasLocalAPI(serverKey) {
		return nil, fmt.Errorf("%w: %q", ErrNoLocalAPI, serverKey)
	}

	cloud := p.Clients.CloudClient(username, password, server)
	if err := cloud.Login(ctx); err != nil {
		return nil, err
	}
	gatewayID, err := localGatewayID(ctx, cloud, host)
	if err != nil {
		return nil, err
	}

	option, err := cloud.GetSetupOption(ctx, "developerMode-"+gatewayID)
	if err != nil {
		return nil, err
	}
	if option == nil {
		return nil, ErrDeveloperModeDisabled
	}

	token, err := cloud.GenerateLocalToken(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	if _, err := cloud.ActivateLocalToken(ctx, gatewayID, token, localTokenLabel); err != nil {
		return nil, err
	}

	local := p.Clients.LocalClient(host, token)
	if err := local.Login(ctx); err != nil {
		return nil, err
	}

	p.Logger.Info("local token activated", zap.String("gateway", overkiz.ObfuscateID(gatewayID)))

	return &Validated{
		UniqueID: gatewayID,
		Data: map[string]string{
			entry.KeyAPIType: string(overkiz.APITypeLocal),
			entry.KeyHost:    host,
			entry.KeyToken:   token,
		},
	}, nil
}

// Provision validates the request and persists a new entry. A gateway that
// is already configured under another entry is rejected.
func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisionEntryRequest) (*entry.Entry, error) {
	validated, title, err := p.validate(ctx, req.APIType, req.Host, req.Username, req.Password, req.Server)
	if err != nil {
		return nil, err
	}
	if validated.UniqueID != "" && p.Store.FindByUniqueID(validated.UniqueID) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, overkiz.ObfuscateID(validated.UniqueID))
	}
	if req.Title != "" {
		title = req.Title
	}

	e := &entry.Entry{
		ID:       uuid.NewString(),
		Title:    title,
		Version:  entry.CurrentVersion,
		UniqueID: validated.UniqueID,
		Data:     validated.Data,
	}
	p.Store.Add(e)
	if err := p.Store.Save(); err != nil {
		return nil, err
	}

	p.Logger.Info("entry provisioned", zap.String("entry", e.ID),
		zap.String("gateway", overkiz.ObfuscateID(e.UniqueID)))
	return e, nil
}

// Reauth revalidates an existing entry with fresh account credentials. The
// credentials must resolve to the gateway the entry was created for. Local
// entries get a fresh token minted through the cloud account.
func (p *Provisioner) Reauth(ctx context.Context, req domain.ReauthEntryRequest) (*entry.Entry, error) {
	e := p.Store.Get(req.EntryID)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, req.EntryID)
	}

	apiType := overkiz.APIType(e.Data[entry.KeyAPIType])
	serverKey := e.Data[entry.KeyServer]
	if apiType == overkiz.APITypeLocal {
		// local entries keep no account, token renewal goes through the
		// only cloud with a local API
		serverKey = overkiz.ServerSomfyEurope
	}

	validated, _, err := p.validate(ctx, apiType, e.Data[entry.KeyHost], req.Username, req.Password, serverKey)
	if err != nil {
		return nil, err
	}
	if e.UniqueID != "" && validated.UniqueID != e.UniqueID {
		return nil, ErrAccountMismatch
	}

	e.UniqueID = validated.UniqueID
	e.Data = validated.Data
	if err := p.Store.Save(); err != nil {
		return nil, err
	}

	p.Logger.Info("entry reauthenticated", zap.String("entry", e.ID))
	return e, nil
}

func (p *Provisioner) validate(ctx context.Context, apiType overkiz.APIType, host, username, password, serverKey string) (*Validated, string, error) {
	switch apiType {
	case overkiz.APITypeLocal:
		if serverKey == "" {
			serverKey = overkiz.ServerSomfyEurope
		}
		validated, err := p.ValidateLocal(ctx, host, username, password, serverKey)
		if err != nil {
			return nil, "", err
		}
		return validated, overkiz.NewLocalServer(host).Name, nil
	default:
		validated, err := p.ValidateCloud(ctx, username, password, serverKey)
		if err != nil {
			return nil, "", err
		}
		return validated, overkiz.SupportedServers[serverKey].Name, nil
	}
}

// mainGatewayID picks the first gateway with an Overkiz id shape. Shared
// platforms can list third party bridges first, those never take the
// unique id.
func mainGatewayID(ctx context.Context, client port.ProvisioningClient) (string, error) {
	gateways, err := client.GetGateways(ctx)
	if err != nil {
		return "", err
	}
	for _, gw := range gateways {
		if overkiz.IsGatewayID(gw.ID) {
			return gw.ID, nil
		}
	}
	return "", nil
}

// localGatewayID resolves which account gateway the host points at. Hosts in
// the "gateway-1234-5678-9012.local:8443" form carry the id, otherwise the
// main gateway is assumed.
func localGatewayID(ctx context.Context, client port.ProvisioningClient, host string) (string, error) {
	if id := hostGatewayIDPattern.FindString(host); id != "" {
		return id, nil
	}
	id, err := mainGatewayID(ctx, client)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrGatewayNotFound
	}
	return id, nil
}
