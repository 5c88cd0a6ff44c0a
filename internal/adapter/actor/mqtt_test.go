package actor

import (
	"testing"
	"time"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/util"
	"overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(2 * time.Second)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	// a publish request gets answered even without a broker
	result, err = context.RequestFuture(pid, domain.PublishUpdateRequest{
		Event: domain.BridgeStateUpdateEvent{
			UpdateEventMixIn: domain.UpdateEventMixIn{
				Id: "bridge",
			},
			Value: true,
		},
	}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	pubResp, ok := result.(domain.PublishUpdateResponse)
	assert.True(t, ok)
	assert.False(t, pubResp.HasResponseError())

	es.Publish(domain.DeviceStateUpdateEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{
			Id: "io_1234_5678_9012_1",
		},
		DeviceURL: "io://1234-5678-9012/1",
		States: []overkiz.DeviceState{
			{Name: "core:ClosureState", Value: 25},
		},
	})
	es.Publish(domain.GatewayStateUpdateEvent{
		UpdateEventMixIn: domain.UpdateEventMixIn{
			Id: "gateway_1234_5678_9012",
		},
		GatewayId: "1234-5678-9012",
		Alive:     true,
	})

	time.Sleep(1 * time.Second)

	context.Stop(pid)

	time.Sleep(1 * time.Second)

	as.Shutdown()
}

func TestStatesJSON(t *testing.T) {
	payload, err := statesJSON([]overkiz.DeviceState{
		{Name: "core:ClosureState", Value: 25},
		{Name: "core:StatusState", Value: "available"},
	})
	assert.NoError(t, err)
	assert.Equal(t, `{"core:ClosureState":25,"core:StatusState":"available"}`, payload)
}
