package actor

import (
	"errors"
	"fmt"
	"time"

	"overkiz2mqtt/internal/config"
	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/events"
	. "overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes Home Assistant discovery configs. On start it
// announces the bridge itself, afterwards it forwards per entry publish and
// remove requests to the MQTT actor. Entry discovery failures are answered,
// not panicked, so one broker hiccup cannot restart the whole discovery
// layer.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *Stash
	mqttActor *actor.PID

	pendingReply   *actor.PID
	pendingRemove  bool
	pendingEntryID string

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &Stash{},
		logger:    ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT actor is not healthy"))
		}
		bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: events.BridgeSensors(bridgeDevice),
		}, discoveryPublishTimeout), func(err error) any {
			return domain.PublishDiscoveryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingBridgeReceive)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingBridgeReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@bridge discovery published")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@bridge: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("hadiscovery@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "ready",
		})
	case domain.PublishEntryDiscoveryRequest:
		state.logger.Debug("hadiscovery@default: PublishEntryDiscoveryRequest", zap.String("entry", msg.EntryID))
		state.forwardEntry(ctx, msg.EntryID, msg.Server, msg.Gateways, msg.Platforms, msg.Scenarios,
			false, ForRequest(msg).ReplyTo(ctx))
	case domain.RemoveEntryDiscoveryRequest:
		state.logger.Debug("hadiscovery@default: RemoveEntryDiscoveryRequest", zap.String("entry", msg.EntryID))
		state.forwardEntry(ctx, msg.EntryID, msg.Server, msg.Gateways, msg.Platforms, msg.Scenarios,
			true, ForRequest(msg).ReplyTo(ctx))
	default:
		state.logger.Debug("hadiscovery@default: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) forwardEntry(ctx actor.Context, entryID string, server overkiz.Server,
	gateways []overkiz.Gateway, platforms map[domain.Platform][]overkiz.Device, scenarios []overkiz.Scenario,
	remove bool, replyTo *actor.PID) {

	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors, entities, scenes := events.EntryComponents(bridgeDevice, server, gateways, platforms, scenarios)

	state.pendingReply = replyTo
	state.pendingRemove = remove
	state.pendingEntryID = entryID

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.PublishDiscoveryRequest{
		Remove:   remove,
		Sensors:  sensors,
		Entities: entities,
		Scenes:   scenes,
	}, discoveryPublishTimeout), func(err error) any {
		return domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.BecomeStacked(state.WaitingPublishReceive)
}

func (state *HADiscoveryActor) WaitingPublishReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		err := msg.GetResponseError()
		if err != nil {
			state.logger.Error("hadiscovery@publish entry discovery failed",
				zap.String("entry", state.pendingEntryID), zap.Bool("remove", state.pendingRemove), zap.Error(err))
		} else {
			state.logger.Info("hadiscovery@publish entry discovery done",
				zap.String("entry", state.pendingEntryID), zap.Bool("remove", state.pendingRemove))
		}
		if state.pendingReply != nil {
			var resp any
			if state.pendingRemove {
				resp = domain.RemoveEntryDiscoveryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				}
			} else {
				resp = domain.PublishEntryDiscoveryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
				}
			}
			ctx.Send(state.pendingReply, resp)
		}
		state.pendingReply = nil
		state.pendingEntryID = ""
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@publish: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}
