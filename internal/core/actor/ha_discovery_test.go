package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/events"
	"overkiz2mqtt/internal/util"
	"overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// mqttStub records discovery publishes and answers them, optionally with a
// canned error.
type mqttStub struct {
	mu          sync.Mutex
	discoveries []domain.PublishDiscoveryRequest
	publishErr  error
}

func (s *mqttStub) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MQTT, Healthy: true, State: "idle"})
	case domain.PublishDiscoveryRequest:
		s.mu.Lock()
		s.discoveries = append(s.discoveries, msg)
		err := s.publishErr
		s.mu.Unlock()
		ctx.Respond(domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
	}
}

func (s *mqttStub) snapshot() []domain.PublishDiscoveryRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PublishDiscoveryRequest, len(s.discoveries))
	copy(out, s.discoveries)
	return out
}

func (s *mqttStub) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishErr = err
}

func spawnTestDiscovery(t *testing.T, context *actor.RootContext, stub *mqttStub, logger *zap.Logger) *actor.PID {
	t.Helper()
	cfg := util.LoadTestConfig()
	mqttPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return stub
	}))
	return context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&cfg, mqttPID, logger)
	}))
}

func discoveryHealth(t *testing.T, context *actor.RootContext, disc *actor.PID) domain.ActorHealthResponse {
	t.Helper()
	result, err := context.RequestFuture(disc, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	return result.(domain.ActorHealthResponse)
}

func TestHADiscoveryPublishesBridgeOnStart(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	stub := &mqttStub{}
	disc := spawnTestDiscovery(t, context, stub, logger)

	time.Sleep(500 * time.Millisecond)

	// answered only once the bridge publish went through
	health := discoveryHealth(t, context, disc)
	assert.True(health.Healthy)
	assert.Equal(domain.ACTOR_ID_HA_DISCOVERY, health.Id)

	published := stub.snapshot()
	if len(published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(published))
	}
	assert.False(published[0].Remove)
	if assert.Len(published[0].Sensors, 1) {
		assert.Equal(events.SENSOR_ID_BRIDGE_STATE, published[0].Sensors[0].Id)
	}
	assert.Empty(published[0].Entities)
	assert.Empty(published[0].Scenes)

	context.Stop(disc)
	as.Shutdown()
}

func TestHADiscoveryForwardsEntryComponents(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	stub := &mqttStub{}
	disc := spawnTestDiscovery(t, context, stub, logger)

	time.Sleep(500 * time.Millisecond)

	client := overkiz.NewTestClient()
	result, err := context.RequestFuture(disc, domain.PublishEntryDiscoveryRequest{
		EntryID:   "entry-1",
		Server:    client.Server(),
		Gateways:  client.Inventory.Gateways,
		Platforms: domain.BucketByPlatform(client.Inventory.Devices),
		Scenarios: client.Scenarios,
	}, 15*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	resp := result.(domain.PublishEntryDiscoveryResponse)
	assert.False(resp.HasResponseError())

	published := stub.snapshot()
	if len(published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(published))
	}
	req := published[1]
	assert.False(req.Remove)
	assert.Len(req.Sensors, 2, "connectivity and firmware sensors per gateway")
	assert.Len(req.Entities, 4, "one entity per classified device")
	assert.Len(req.Scenes, 2)

	// every device entity chains to its gateway
	gatewayID := events.GatewayTopicID(client.Inventory.Gateways[0].ID)
	for _, e := range req.Entities {
		assert.Equal(gatewayID, e.Device.ViaDevice)
	}

	context.Stop(disc)
	as.Shutdown()
}

func TestHADiscoveryRemovesEntryComponents(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	stub := &mqttStub{}
	disc := spawnTestDiscovery(t, context, stub, logger)

	time.Sleep(500 * time.Millisecond)

	client := overkiz.NewTestClient()
	result, err := context.RequestFuture(disc, domain.RemoveEntryDiscoveryRequest{
		EntryID:   "entry-1",
		Server:    client.Server(),
		Gateways:  client.Inventory.Gateways,
		Platforms: domain.BucketByPlatform(client.Inventory.Devices),
		Scenarios: client.Scenarios,
	}, 15*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	resp := result.(domain.RemoveEntryDiscoveryResponse)
	assert.False(resp.HasResponseError())

	published := stub.snapshot()
	if len(published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(published))
	}
	req := published[1]
	assert.True(req.Remove, "removal publishes the same config set with empty payloads")
	assert.Len(req.Sensors, 2)
	assert.Len(req.Entities, 4)
	assert.Len(req.Scenes, 2)

	context.Stop(disc)
	as.Shutdown()
}

func TestHADiscoveryAnswersPublishFailure(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	stub := &mqttStub{}
	disc := spawnTestDiscovery(t, context, stub, logger)

	time.Sleep(500 * time.Millisecond)
	discoveryHealth(t, context, disc)

	stub.failWith(errors.New("broker down"))

	client := overkiz.NewTestClient()
	result, err := context.RequestFuture(disc, domain.PublishEntryDiscoveryRequest{
		EntryID:   "entry-1",
		Server:    client.Server(),
		Gateways:  client.Inventory.Gateways,
		Platforms: domain.BucketByPlatform(client.Inventory.Devices),
		Scenarios: client.Scenarios,
	}, 15*time.Second).Result()
	if err != nil {
		t.Fatal(err)
	}
	resp := result.(domain.PublishEntryDiscoveryResponse)
	assert.True(resp.HasResponseError())
	assert.Contains(resp.GetResponseError().Error(), "broker down")

	// an entry discovery failure is answered, the actor keeps running
	health := discoveryHealth(t, context, disc)
	assert.True(health.Healthy)

	context.Stop(disc)
	as.Shutdown()
}
