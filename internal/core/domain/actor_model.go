package domain

import (
	"time"

	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
	ACTOR_ID_HUB          = "hub"
	ACTOR_ID_COORDINATOR  = "coordinator"
	ACTOR_ID_ENTRY_PREFIX = "entry"
)

// Coordinator polling cadence. A hub whose devices are all in assumed state
// never reports events, so its interval widens.
const (
	DefaultPollInterval      = 30 * time.Second
	AssumedStatePollInterval = 60 * time.Minute
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

// hub adapter messages

type LoginRequest struct {
	ActorRequestMixIn
}

type LoginResponse struct {
	ActorResponseMixIn
}

type FetchInventoryRequest struct {
	ActorRequestMixIn
}

type FetchInventoryResponse struct {
	ActorResponseMixIn
	Setup     *overkiz.Setup
	Scenarios []overkiz.Scenario
}

type FetchDevicesRequest struct {
	ActorRequestMixIn
}

type FetchDevicesResponse struct {
	ActorResponseMixIn
	Devices []overkiz.Device
}

type RegisterEventListenerRequest struct {
	ActorRequestMixIn
}

type RegisterEventListenerResponse struct {
	ActorResponseMixIn
	ListenerID string
}

type FetchEventsRequest struct {
	ActorRequestMixIn
}

type FetchEventsResponse struct {
	ActorResponseMixIn
	Events []overkiz.Event
}

type ExecuteScenarioRequest struct {
	ActorRequestMixIn
	OID string
}

type ExecuteScenarioResponse struct {
	ActorResponseMixIn
	ExecID string
}

// coordinator messages

type CoordinatorFirstRefreshRequest struct {
	ActorRequestMixIn
}

type CoordinatorFirstRefreshResponse struct {
	ActorResponseMixIn
	Stateless bool
}

type CoordinatorDataRequest struct {
	ActorRequestMixIn
}

type CoordinatorDataResponse struct {
	ActorResponseMixIn
	Devices      map[string]overkiz.Device
	Stateless    bool
	PollInterval time.Duration
}

type SetPollIntervalRequest struct {
	ActorRequestMixIn
	Interval time.Duration
}

type SetPollIntervalResponse struct {
	ActorResponseMixIn
}

// entry lifecycle

// EntryRuntime is the live bundle of a loaded entry, owned by the lifecycle
// manager and dropped only after a successful unload.
type EntryRuntime struct {
	EntryID     string
	Hub         *actor.PID
	Coordinator *actor.PID
	Platforms   map[Platform][]overkiz.Device
	Scenarios   []overkiz.Scenario
	Gateways    []overkiz.Gateway
	Server      overkiz.Server
}

// Scenario returns the runtime scenario with the given oid, or nil.
func (r *EntryRuntime) Scenario(oid string) *overkiz.Scenario {
	for i := range r.Scenarios {
		if r.Scenarios[i].OID == oid {
			return &r.Scenarios[i]
		}
	}
	return nil
}

type EntrySetupComplete struct {
	EntryID string
	Runtime EntryRuntime
}

type EntrySetupFailed struct {
	EntryID string
	Failure SetupFailure
}

// EntryState mirrors the lifecycle states a host platform tracks for a
// config entry.
type EntryState string

const (
	EntryStateNotLoaded      EntryState = "not_loaded"
	EntryStateSettingUp      EntryState = "setup_in_progress"
	EntryStateLoaded         EntryState = "loaded"
	EntryStateRetrying       EntryState = "setup_retry"
	EntryStateAuthRequired   EntryState = "auth_required"
	EntryStateFailed         EntryState = "setup_error"
	EntryStateMigrationError EntryState = "migration_error"
)

type EntryStatus struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	UniqueID string     `json:"unique_id,omitempty"`
	APIType  string     `json:"api_type,omitempty"`
	State    EntryState `json:"state"`
	Error    string     `json:"error,omitempty"`
}

// lifecycle manager messages

type ListEntriesRequest struct {
	ActorRequestMixIn
}

type ListEntriesResponse struct {
	ActorResponseMixIn
	Entries []EntryStatus
}

type ProvisionEntryRequest struct {
	ActorRequestMixIn
	Title    string
	APIType  overkiz.APIType
	Host     string
	Username string
	Password string
	Server   string
}

type ProvisionEntryResponse struct {
	ActorResponseMixIn
	Entry EntryStatus
}

type ReauthEntryRequest struct {
	ActorRequestMixIn
	EntryID  string
	Username string
	Password string
}

type ReauthEntryResponse struct {
	ActorResponseMixIn
	Entry EntryStatus
}

type UnloadEntryRequest struct {
	ActorRequestMixIn
	EntryID string
}

type UnloadEntryResponse struct {
	ActorResponseMixIn
	Unloaded bool
}

type ReloadEntryRequest struct {
	ActorRequestMixIn
	EntryID string
}

type ReloadEntryResponse struct {
	ActorResponseMixIn
}

// discovery messages

type PublishEntryDiscoveryRequest struct {
	ActorRequestMixIn
	EntryID   string
	Server    overkiz.Server
	Gateways  []overkiz.Gateway
	Platforms map[Platform][]overkiz.Device
	Scenarios []overkiz.Scenario
}

type PublishEntryDiscoveryResponse struct {
	ActorResponseMixIn
}

type RemoveEntryDiscoveryRequest struct {
	ActorRequestMixIn
	EntryID   string
	Server    overkiz.Server
	Gateways  []overkiz.Gateway
	Platforms map[Platform][]overkiz.Device
	Scenarios []overkiz.Scenario
}

type RemoveEntryDiscoveryResponse struct {
	ActorResponseMixIn
}

// MQTT messages

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	// Remove publishes an empty retained payload on every config topic
	// instead of the config itself.
	Remove   bool
	Sensors  []GenericSensor
	Entities []GenericDeviceEntity
	Scenes   []GenericScene
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type PublishUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  UpdateEvent
}

type PublishUpdateResponse struct {
	ActorResponseMixIn
}

// health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
