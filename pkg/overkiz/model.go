package overkiz

import (
	"context"
	"regexp"
	"strings"
)

// DeviceState is a single named state value of a device. Value holds whatever
// JSON type the hub reported (string, number or bool).
type DeviceState struct {
	Name  string `json:"name"`
	Type  int    `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Device is a controllable or sensing endpoint attached to a gateway.
type Device struct {
	DeviceURL        string        `json:"deviceURL"`
	Label            string        `json:"label"`
	ControllableName string        `json:"controllableName,omitempty"`
	UIClass          UIClass       `json:"uiClass,omitempty"`
	Widget           UIWidget      `json:"widget,omitempty"`
	States           []DeviceState `json:"states,omitempty"`
	Available        bool          `json:"available"`
	Enabled          bool          `json:"enabled"`
	PlaceOID         string        `json:"placeOID,omitempty"`
}

// Protocol returns the radio or bus protocol of the device, taken from the
// scheme of its device URL ("io://1234-5678-9012/3" -> "io").
func (d Device) Protocol() string {
	if i := strings.Index(d.DeviceURL, "://"); i > 0 {
		return d.DeviceURL[:i]
	}
	return ""
}

// BaseDeviceURL strips the subsystem suffix from the device URL
// ("io://1234-5678-9012/3#2" -> "io://1234-5678-9012/3").
func (d Device) BaseDeviceURL() string {
	url, _, _ := strings.Cut(d.DeviceURL, "#")
	return url
}

// HasStates reports whether the hub tracks confirmed state for this device.
// One way protocols such as RTS report none, so their state can only be
// assumed.
func (d Device) HasStates() bool {
	return len(d.States) > 0
}

// State returns the device state with the given name, or nil.
func (d Device) State(name string) *DeviceState {
	for i := range d.States {
		if d.States[i].Name == name {
			return &d.States[i]
		}
	}
	return nil
}

// GatewayConnectivity is the link status block of a gateway.
type GatewayConnectivity struct {
	Status          string `json:"status"`
	ProtocolVersion string `json:"protocolVersion"`
}

// Gateway is an Overkiz hub registered on the account.
type Gateway struct {
	ID           string              `json:"gatewayId"`
	Type         GatewayType         `json:"type"`
	SubType      GatewaySubType      `json:"subType,omitempty"`
	Connectivity GatewayConnectivity `json:"connectivity"`
	UpToDate     bool                `json:"upToDate,omitempty"`
}

// Place is a node of the location tree devices are assigned to.
type Place struct {
	OID       string  `json:"oid"`
	Label     string  `json:"label"`
	Type      int     `json:"type"`
	SubPlaces []Place `json:"subPlaces,omitempty"`
}

// Setup is the full inventory of an account or gateway.
type Setup struct {
	Gateways  []Gateway `json:"gateways"`
	Devices   []Device  `json:"devices"`
	RootPlace Place     `json:"rootPlace"`
}

// Scenario is a scene stored on the hub, runnable as a whole.
type Scenario struct {
	OID   string `json:"oid"`
	Label string `json:"label"`
}

// Event is a change notification drained through an event listener.
type Event struct {
	Name         EventName     `json:"name"`
	GatewayID    string        `json:"gatewayId,omitempty"`
	DeviceURL    string        `json:"deviceURL,omitempty"`
	DeviceStates []DeviceState `json:"deviceStates,omitempty"`
	ExecID       string        `json:"execId,omitempty"`
	NewState     string        `json:"newState,omitempty"`
}

// SetupOption is a feature flag set on a gateway, such as developer mode.
type SetupOption struct {
	CreatedTime int64  `json:"createdTime,omitempty"`
	OptionName  string `json:"optionName"`
}

// Client is the API surface of an Overkiz hub, cloud or local.
type Client interface {
	// Server returns the endpoint descriptor this client talks to.
	Server() Server
	// APIType reports whether this client uses the cloud or the local API.
	APIType() APIType

	// Login establishes a session. For the local API it probes the gateway so
	// an invalid token surfaces immediately.
	Login(ctx context.Context) error

	GetSetup(ctx context.Context) (*Setup, error)
	GetGateways(ctx context.Context) ([]Gateway, error)
	GetDevices(ctx context.Context) ([]Device, error)
	GetScenarios(ctx context.Context) ([]Scenario, error)

	// RegisterEventListener allocates a server side event queue and returns
	// its id. The client remembers the id for FetchEvents.
	RegisterEventListener(ctx context.Context) (string, error)
	FetchEvents(ctx context.Context) ([]Event, error)
	UnregisterEventListener(ctx context.Context) error

	// Execute runs a scenario and returns the execution id.
	Execute(ctx context.Context, oid string) (string, error)

	// GetSetupOption returns the named gateway option, or nil when unset.
	GetSetupOption(ctx context.Context, option string) (*SetupOption, error)
	// GenerateLocalToken asks the cloud API for a fresh local API token.
	GenerateLocalToken(ctx context.Context, gatewayID string) (string, error)
	// ActivateLocalToken registers a generated token on the gateway under the
	// given label and returns the request id.
	ActivateLocalToken(ctx context.Context, gatewayID, token, label string) (string, error)
}

var gatewayIDPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}`)

// IsGatewayID reports whether id looks like an Overkiz gateway id
// ("1234-5678-9012"). Accounts on shared Overkiz platforms can list bridges
// of other vendors, which carry different id shapes.
func IsGatewayID(id string) bool {
	return gatewayIDPattern.MatchString(id)
}

// ObfuscateID masks the tail of a gateway or device id for logging.
func ObfuscateID(id string) string {
	if len(id) <= 5 {
		return id
	}
	return id[:5] + strings.Repeat("*", len(id)-5)
}
