package overkiz

import (
	"context"
	"fmt"
)

// TestClient is an in memory Client with canned inventory, used by actor and
// service tests. Error fields, when set, are returned by the matching call.
type TestClient struct {
	ServerDesc Server
	Type       APIType

	LoginErr     error
	SetupErr     error
	ScenariosErr error
	RegisterErr  error
	FetchErr     error
	ExecuteErr   error

	Inventory Setup
	Scenarios []Scenario
	Options   map[string]SetupOption

	// Events holds one batch per FetchEvents call, drained front to back.
	Events [][]Event

	LoginCalls int
	Listener   string
	Executed   []string
}

// NewTestClient returns a cloud TestClient populated with a small but
// representative inventory: one gateway, mapped and unmapped devices, a
// stateless RTS device and two scenarios.
func NewTestClient() *TestClient {
	return &TestClient{
		ServerDesc: SupportedServers[ServerSomfyEurope],
		Type:       APITypeCloud,
		Inventory: Setup{
			Gateways: []Gateway{TestGateway()},
			Devices: []Device{
				{
					DeviceURL: "io://1234-5678-9012/1",
					Label:     "Living Room Shutter",
					UIClass:   UIClassRollerShutter,
					Widget:    "PositionableRollerShutter",
					States: []DeviceState{
						{Name: "core:ClosureState", Type: 1, Value: float64(25)},
						{Name: "core:OpenClosedState", Type: 3, Value: "open"},
					},
					Available: true,
					Enabled:   true,
				},
				{
					DeviceURL: "hue://1234-5678-9012/2",
					Label:     "Kitchen Light",
					UIClass:   UIClassLight,
					Widget:    "DimmerLight",
					States: []DeviceState{
						{Name: "core:OnOffState", Type: 3, Value: "off"},
					},
					Available: true,
					Enabled:   true,
				},
				{
					DeviceURL: "rts://1234-5678-9012/3",
					Label:     "Terrace Awning",
					UIClass:   UIClassAwning,
					Widget:    "PositionableHorizontalAwningRTS",
					Available: true,
					Enabled:   true,
				},
				{
					DeviceURL: "io://1234-5678-9012/4",
					Label:     "Garden Siren",
					UIClass:   UIClassSiren,
					Widget:    UIWidgetSirenStatus,
					States: []DeviceState{
						{Name: "core:StatusState", Type: 3, Value: "available"},
					},
					Available: true,
					Enabled:   true,
				},
				{
					DeviceURL: "internal://1234-5678-9012/pod/0",
					Label:     "Pod",
					UIClass:   UIClassPod,
					States: []DeviceState{
						{Name: "core:CountryCodeState", Type: 3, Value: "ES"},
					},
					Available: true,
					Enabled:   true,
				},
			},
			RootPlace: Place{
				OID:   "8a1b2c3d-root",
				Label: "All House",
				SubPlaces: []Place{
					{OID: "8a1b2c3d-0001", Label: "Living Room", Type: 21},
				},
			},
		},
		Scenarios: []Scenario{
			{OID: "1fab5e3c-8a7d-4444-9d3f-000000000001", Label: "Good Night"},
			{OID: "1fab5e3c-8a7d-4444-9d3f-000000000002", Label: "Leaving Home"},
		},
	}
}

// TestGateway returns the gateway used by NewTestClient fixtures.
func TestGateway() Gateway {
	return Gateway{
		ID:      "1234-5678-9012",
		Type:    GatewayTypeTahoma,
		SubType: GatewaySubTypeTahomaPremium,
		Connectivity: GatewayConnectivity{
			Status:          "OK",
			ProtocolVersion: "2023.1.4-11",
		},
		UpToDate: true,
	}
}

// StatelessTestClient returns a TestClient whose devices all lack confirmed
// state, the shape of an RTS only installation.
func StatelessTestClient() *TestClient {
	c := NewTestClient()
	var stateless []Device
	for _, d := range c.Inventory.Devices {
		if d.Protocol() == ProtocolRTS {
			stateless = append(stateless, d)
		}
	}
	c.Inventory.Devices = stateless
	return c
}

func (c *TestClient) Server() Server {
	return c.ServerDesc
}

func (c *TestClient) APIType() APIType {
	if c.Type == "" {
		return APITypeCloud
	}
	return c.Type
}

func (c *TestClient) Login(ctx context.Context) error {
	c.LoginCalls++
	return c.LoginErr
}

func (c *TestClient) GetSetup(ctx context.Context) (*Setup, error) {
	if c.SetupErr != nil {
		return nil, c.SetupErr
	}
	setup := c.Inventory
	return &setup, nil
}

func (c *TestClient) GetGateways(ctx context.Context) ([]Gateway, error) {
	if c.SetupErr != nil {
		return nil, c.SetupErr
	}
	return c.Inventory.Gateways, nil
}

func (c *TestClient) GetDevices(ctx context.Context) ([]Device, error) {
	if c.SetupErr != nil {
		return nil, c.SetupErr
	}
	return c.Inventory.Devices, nil
}

func (c *TestClient) GetScenarios(ctx context.Context) ([]Scenario, error) {
	if c.ScenariosErr != nil {
		return nil, c.ScenariosErr
	}
	return c.Scenarios, nil
}

func (c *TestClient) RegisterEventListener(ctx context.Context) (string, error) {
	if c.RegisterErr != nil {
		return "", c.RegisterErr
	}
	c.Listener = "test-listener-0001"
	return c.Listener, nil
}

func (c *TestClient) FetchEvents(ctx context.Context) ([]Event, error) {
	if c.FetchErr != nil {
		return nil, c.FetchErr
	}
	if c.Listener == "" {
		return nil, ErrNoRegisteredListener
	}
	if len(c.Events) == 0 {
		return nil, nil
	}
	batch := c.Events[0]
	c.Events = c.Events[1:]
	return batch, nil
}

func (c *TestClient) UnregisterEventListener(ctx context.Context) error {
	c.Listener = ""
	return nil
}

func (c *TestClient) Execute(ctx context.Context, oid string) (string, error) {
	if c.ExecuteErr != nil {
		return "", c.ExecuteErr
	}
	c.Executed = append(c.Executed, oid)
	return fmt.Sprintf("exec-%04d", len(c.Executed)), nil
}

func (c *TestClient) GetSetupOption(ctx context.Context, option string) (*SetupOption, error) {
	if opt, ok := c.Options[option]; ok {
		return &opt, nil
	}
	return nil, nil
}

func (c *TestClient) GenerateLocalToken(ctx context.Context, gatewayID string) (string, error) {
	return "generated-local-token", nil
}

func (c *TestClient) ActivateLocalToken(ctx context.Context, gatewayID, token, label string) (string, error) {
	return "activation-request-0001", nil
}
