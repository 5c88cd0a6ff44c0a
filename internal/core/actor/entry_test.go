package actor

import (
	adactor "overkiz2mqtt/internal/adapter/actor"
	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/entry"
	"overkiz2mqtt/internal/util"
	"overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureActor records every message it receives, standing in for the
// lifecycle manager.
type captureActor struct {
	mu   sync.Mutex
	msgs []any
}

func (c *captureActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started, *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		c.mu.Lock()
		c.msgs = append(c.msgs, ctx.Message())
		c.mu.Unlock()
	}
}

func (c *captureActor) setupComplete() *domain.EntrySetupComplete {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if done, ok := m.(domain.EntrySetupComplete); ok {
			return &done
		}
	}
	return nil
}

func (c *captureActor) setupFailed() *domain.EntrySetupFailed {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if failed, ok := m.(domain.EntrySetupFailed); ok {
			return &failed
		}
	}
	return nil
}

func testCloudEntry() *entry.Entry {
	return &entry.Entry{
		ID:       "entry-1",
		Title:    "Home",
		Version:  entry.CurrentVersion,
		UniqueID: "somfy_europe:user@example.com",
		Data: map[string]string{
			entry.KeyAPIType:  string(overkiz.APITypeCloud),
			entry.KeyUsername: "user@example.com",
			entry.KeyPassword: "secret",
			entry.KeyServer:   overkiz.ServerSomfyEurope,
		},
	}
}

func spawnTestEntryActor(t *testing.T, context *actor.RootContext, client overkiz.Client,
	report *actor.PID, discovery *actor.PID, logger *zap.Logger) *actor.PID {
	t.Helper()
	cfg := util.LoadTestConfig()
	e := testCloudEntry()
	creds, err := e.Credentials()
	require.NoError(t, err)

	// a transient failure panics the actor, stop instead of looping the
	// setup pass during tests
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, func(reason interface{}) actor.Directive {
		return actor.StopDirective
	})
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewEntryActor(&cfg, e, creds, client, report, discovery, &eventstream.EventStream{}, logger)
	}, actor.WithSupervisor(supervisor))
	return context.Spawn(props)
}

func TestEntrySetupHappyPath(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	report := &captureActor{}
	reportPID := context.Spawn(actor.PropsFromFunc(report.Receive))

	client := overkiz.NewTestClient()
	pid := spawnTestEntryActor(t, context, client, reportPID, nil, logger)

	time.Sleep(2 * time.Second)

	done := report.setupComplete()
	require.NotNil(t, done, "setup should complete")
	assert.Equal("entry-1", done.EntryID, "entry id")
	assert.NotNil(done.Runtime.Hub, "hub pid")
	assert.NotNil(done.Runtime.Coordinator, "coordinator pid")
	assert.Len(done.Runtime.Scenarios, 2, "scenarios")
	assert.Len(done.Runtime.Gateways, 1, "gateways")
	assert.Equal("Somfy (Europe)", done.Runtime.Server.Name, "server descriptor")

	// widget wins over ui class: the siren status widget lands on sensor,
	// the pod has no mapping and is skipped without failing the setup
	assert.Len(done.Runtime.Platforms, 3, "platform buckets")
	assert.Len(done.Runtime.Platforms[domain.PlatformCover], 2, "covers")
	assert.Len(done.Runtime.Platforms[domain.PlatformLight], 1, "lights")
	assert.Len(done.Runtime.Platforms[domain.PlatformSensor], 1, "sensors")
	assert.Equal("io://1234-5678-9012/4", done.Runtime.Platforms[domain.PlatformSensor][0].DeviceURL, "siren exposed as sensor")

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	health := result.(domain.ActorHealthResponse)
	assert.True(health.Healthy, "forwarded entry is healthy")
	assert.Equal("forwarded", health.State, "entry state")

	// stateful inventory keeps the default poll interval
	result, err = context.RequestFuture(done.Runtime.Coordinator, domain.CoordinatorDataRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	data := result.(domain.CoordinatorDataResponse)
	assert.False(data.Stateless, "stateful inventory")
	assert.Equal(30*time.Second, data.PollInterval, "default poll interval")

	context.Stop(pid)
	as.Shutdown()
}

func TestEntrySetupStatelessWidensPollInterval(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	report := &captureActor{}
	reportPID := context.Spawn(actor.PropsFromFunc(report.Receive))

	client := overkiz.StatelessTestClient()
	pid := spawnTestEntryActor(t, context, client, reportPID, nil, logger)

	time.Sleep(2 * time.Second)

	done := report.setupComplete()
	require.NotNil(t, done, "setup should complete")

	result, err := context.RequestFuture(done.Runtime.Coordinator, domain.CoordinatorDataRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	data := result.(domain.CoordinatorDataResponse)
	assert.True(data.Stateless, "assumed state only inventory")
	assert.Equal(time.Hour, data.PollInterval, "widened poll interval")

	context.Stop(pid)
	as.Shutdown()
}

func TestEntrySetupAuthRequired(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	report := &captureActor{}
	reportPID := context.Spawn(actor.PropsFromFunc(report.Receive))

	client := overkiz.NewTestClient()
	client.LoginErr = overkiz.ErrBadCredentials
	pid := spawnTestEntryActor(t, context, client, reportPID, nil, logger)

	time.Sleep(2 * time.Second)

	failed := report.setupFailed()
	require.NotNil(t, failed, "setup should fail")
	assert.Equal("entry-1", failed.EntryID, "entry id")
	assert.Equal(domain.SetupAuthRequired, failed.Failure.Kind, "rejected credentials need a reauth")

	assert.Nil(report.setupComplete(), "no runtime was forwarded")

	context.Stop(pid)
	as.Shutdown()
}

func TestEntrySetupTransientFailure(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	report := &captureActor{}
	reportPID := context.Spawn(actor.PropsFromFunc(report.Receive))

	client := overkiz.NewTestClient()
	client.SetupErr = overkiz.ErrMaintenance
	pid := spawnTestEntryActor(t, context, client, reportPID, nil, logger)

	time.Sleep(2 * time.Second)

	failed := report.setupFailed()
	require.NotNil(t, failed, "setup should fail")
	assert.Equal(domain.SetupNotReady, failed.Failure.Kind, "maintenance window is transient")

	assert.Nil(report.setupComplete(), "no runtime was forwarded")

	context.Stop(pid)
	as.Shutdown()
}

func TestEntrySetupWithDiscoveryPipeline(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	es := &eventstream.EventStream{}

	mqttPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewTestMQTTActor(&cfg, es, logger)
	}))
	discoveryPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&cfg, mqttPID, logger)
	}))

	report := &captureActor{}
	reportPID := context.Spawn(actor.PropsFromFunc(report.Receive))

	client := overkiz.NewTestClient()
	pid := spawnTestEntryActor(t, context, client, reportPID, discoveryPID, logger)

	time.Sleep(2 * time.Second)

	done := report.setupComplete()
	require.NotNil(t, done, "setup should complete after the discovery forward")
	assert.Len(done.Runtime.Platforms, 3, "platform buckets")

	context.Stop(pid)
	as.Shutdown()
}
