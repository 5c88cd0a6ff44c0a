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
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// CoordinatorActor owns the device registry of one entry and keeps it fresh
// by draining the hub event queue on a timer. State changes are merged into
// the registry and published to the event stream as full per-device
// snapshots, so retained topics never hold partial state.
type CoordinatorActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config       *config.Config
	entryID      string
	hubActor     *actor.PID
	eventStream  *eventstream.EventStream
	devices      map[string]overkiz.Device
	rootPlace    overkiz.Place
	pollInterval time.Duration
	cancelTick   scheduler.CancelFunc
	firstReplyTo *actor.PID

	logger *zap.Logger
}

type coordinatorTick struct {
}

func NewCoordinatorActor(config *config.Config, entryID string, hubActor *actor.PID,
	devices []overkiz.Device, rootPlace overkiz.Place, pollInterval time.Duration,
	eventStream *eventstream.EventStream, logger *zap.Logger) *CoordinatorActor {
	act := &CoordinatorActor{
		config:       config,
		entryID:      entryID,
		hubActor:     hubActor,
		behavior:     actor.NewBehavior(),
		stash:        &Stash{},
		eventStream:  eventStream,
		rootPlace:    rootPlace,
		pollInterval: pollInterval,
		logger:       ActorLogger(domain.ACTOR_ID_COORDINATOR, logger).With(zap.String("entry", entryID)),
	}
	act.setDevices(devices)
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *CoordinatorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CoordinatorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("coordinator@starting started",
			zap.Int("devices", len(state.devices)),
			zap.String("rootPlace", state.rootPlace.Label))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
	case domain.CoordinatorFirstRefreshRequest:
		state.logger.Debug("coordinator@starting: CoordinatorFirstRefreshRequest")
		state.firstReplyTo = ForRequest(msg).ReplyTo(ctx)
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.RegisterEventListenerRequest{}, state.hubTimeout()), func(err error) any {
			return domain.RegisterEventListenerResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingListenerReceive)
	case *actor.Restarting:
	case *actor.Stopping:
	default:
		state.logger.Debug("coordinator@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) WaitingListenerReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RegisterEventListenerResponse:
		if msg.HasResponseError() {
			state.failFirstRefresh(ctx, msg.GetResponseError())
			return
		}
		state.logger.Debug("coordinator@waitingListener listener registered", zap.String("listener", msg.ListenerID))
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.FetchDevicesRequest{}, state.hubTimeout()), func(err error) any {
			return domain.FetchDevicesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingSnapshotReceive)
	default:
		state.logger.Debug("coordinator@waitingListener: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) WaitingSnapshotReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.FetchDevicesResponse:
		if msg.HasResponseError() {
			state.failFirstRefresh(ctx, msg.GetResponseError())
			return
		}
		state.logger.Debug("coordinator@waitingSnapshot devices fetched", zap.Int("devices", len(msg.Devices)))
		state.setDevices(msg.Devices)
		for _, d := range state.devices {
			state.publishDeviceSnapshot(d)
		}
		if state.firstReplyTo != nil {
			ctx.Send(state.firstReplyTo, domain.CoordinatorFirstRefreshResponse{
				Stateless: state.isStateless(),
			})
			state.firstReplyTo = nil
		}
		state.scheduleTick(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("coordinator@waitingSnapshot: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("coordinator@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_COORDINATOR,
			Healthy: true,
			State:   "polling",
		})
	case coordinatorTick:
		state.logger.Debug("coordinator@default tick")
		state.cancelTick = nil
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.FetchEventsRequest{}, state.hubTimeout()), func(err error) any {
			return domain.FetchEventsResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingEventsReceive)
	case domain.CoordinatorDataRequest:
		state.logger.Debug("coordinator@default: CoordinatorDataRequest")
		ForRequest(msg).Respond(ctx, domain.CoordinatorDataResponse{
			Devices:      state.devicesCopy(),
			Stateless:    state.isStateless(),
			PollInterval: state.pollInterval,
		})
	case domain.SetPollIntervalRequest:
		state.logger.Info("coordinator@default poll interval changed",
			zap.Duration("from", state.pollInterval), zap.Duration("to", msg.Interval))
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
		state.pollInterval = msg.Interval
		state.scheduleTick(ctx)
		if replyTo := ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.SetPollIntervalResponse{})
		}
	case domain.FetchDevicesResponse:
		// piped refetch after a DeviceCreated or DeviceUpdated event
		if msg.HasResponseError() {
			state.logger.Warn("coordinator@default device refetch failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.logger.Debug("coordinator@default device refetch", zap.Int("devices", len(msg.Devices)))
		known := state.devices
		state.setDevices(msg.Devices)
		for url, d := range state.devices {
			if _, ok := known[url]; !ok {
				state.publishDeviceSnapshot(d)
			}
		}
	case *actor.Stopping:
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
	default:
		state.logger.Debug("coordinator@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CoordinatorActor) WaitingEventsReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.FetchEventsResponse:
		if msg.HasResponseError() {
			state.recoverEventFetch(ctx, msg.GetResponseError())
			return
		}
		if len(msg.Events) > 0 {
			state.logger.Debug("coordinator@waitingEvents events", zap.Int("count", len(msg.Events)))
		}
		if refetch := state.applyEvents(msg.Events); refetch {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.FetchDevicesRequest{}, state.hubTimeout()), func(err error) any {
				return domain.FetchDevicesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.scheduleTick(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("coordinator@waitingEvents: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// recoverEventFetch decides how a failed event poll continues. An expired
// listener is re-registered, an expired session logs in again first. Anything
// else just waits for the next tick.
func (state *CoordinatorActor) recoverEventFetch(ctx actor.Context, err error) {
	switch {
	case errors.Is(err, overkiz.ErrNoRegisteredListener):
		state.logger.Info("coordinator@waitingEvents event listener expired, registering a new one")
		state.requestListenerRecovery(ctx)
		state.behavior.UnbecomeStacked()
		state.behavior.BecomeStacked(state.WaitingRecoveryReceive)
	case errors.Is(err, overkiz.ErrNotAuthenticated),
		errors.Is(err, overkiz.ErrBadCredentials),
		errors.Is(err, overkiz.ErrNotSuchToken):
		state.logger.Warn("coordinator@waitingEvents session expired, logging in again", zap.Error(err))
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.LoginRequest{}, state.hubTimeout()), func(err error) any {
			return domain.LoginResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.UnbecomeStacked()
		state.behavior.BecomeStacked(state.WaitingRecoveryReceive)
	default:
		state.logger.Warn("coordinator@waitingEvents event fetch failed", zap.Error(err))
		state.scheduleTick(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	}
}

func (state *CoordinatorActor) WaitingRecoveryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.LoginResponse:
		if msg.HasResponseError() {
			state.logger.Error("coordinator@waitingRecovery relogin failed", zap.Error(msg.GetResponseError()))
			state.finishRecovery(ctx)
			return
		}
		state.logger.Debug("coordinator@waitingRecovery relogin ok")
		state.requestListenerRecovery(ctx)
	case domain.RegisterEventListenerResponse:
		if msg.HasResponseError() {
			state.logger.Error("coordinator@waitingRecovery listener register failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("coordinator@waitingRecovery listener registered", zap.String("listener", msg.ListenerID))
		}
		state.finishRecovery(ctx)
	default:
		state.logger.Debug("coordinator@waitingRecovery: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CoordinatorActor) requestListenerRecovery(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hubActor, domain.RegisterEventListenerRequest{}, state.hubTimeout()), func(err error) any {
		return domain.RegisterEventListenerResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *CoordinatorActor) finishRecovery(ctx actor.Context) {
	state.scheduleTick(ctx)
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *CoordinatorActor) failFirstRefresh(ctx actor.Context, err error) {
	state.logger.Error("coordinator first refresh failed", zap.Error(err))
	if state.firstReplyTo != nil {
		ctx.Send(state.firstReplyTo, domain.CoordinatorFirstRefreshResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		})
		state.firstReplyTo = nil
	}
	state.behavior.Become(state.StartingReceive)
	state.stash.UnstashAll(ctx)
}

// applyEvents merges drained events into the device registry and publishes
// the resulting updates. Returns true when a created or updated device
// requires a full refetch.
func (state *CoordinatorActor) applyEvents(evs []overkiz.Event) bool {
	refetch := false
	for _, ev := range evs {
		switch ev.Name {
		case overkiz.EventDeviceStateChanged:
			d, ok := state.devices[ev.DeviceURL]
			if !ok {
				continue
			}
			mergeDeviceStates(&d, ev.DeviceStates)
			state.devices[ev.DeviceURL] = d
			state.eventStream.Publish(domain.DeviceStateUpdateEvent{
				UpdateEventMixIn: domain.UpdateEventMixIn{
					Id: events.DeviceTopicID(d.DeviceURL),
				},
				DeviceURL: d.DeviceURL,
				States:    d.States,
			})
		case overkiz.EventDeviceAvailable, overkiz.EventDeviceUnavailable:
			if d, ok := state.devices[ev.DeviceURL]; ok {
				d.Available = ev.Name == overkiz.EventDeviceAvailable
				state.devices[ev.DeviceURL] = d
			}
			state.publishHubEvent(ev)
		case overkiz.EventDeviceRemoved:
			delete(state.devices, ev.DeviceURL)
			state.publishHubEvent(ev)
		case overkiz.EventDeviceCreated, overkiz.EventDeviceUpdated:
			refetch = true
		case overkiz.EventGatewayAlive, overkiz.EventGatewayDown:
			state.publishHubEvent(ev)
		default:
			// execution progress and the other event kinds are not surfaced
		}
	}
	return refetch
}

func (state *CoordinatorActor) publishHubEvent(ev overkiz.Event) {
	for _, up := range events.DeviceUpdateEvents(ev) {
		state.eventStream.Publish(up)
	}
}

func (state *CoordinatorActor) publishDeviceSnapshot(d overkiz.Device) {
	for _, up := range events.DeviceSnapshotUpdateEvents(d) {
		state.eventStream.Publish(up)
	}
}

// scheduleTick arms the next poll. An interval of zero disables polling,
// which tests use to drive ticks by hand.
func (state *CoordinatorActor) scheduleTick(ctx actor.Context) {
	if state.pollInterval <= 0 {
		return
	}
	state.cancelTick = state.scheduler.RequestOnce(state.pollInterval, ctx.Self(), coordinatorTick{})
}

func (state *CoordinatorActor) hubTimeout() time.Duration {
	return hubCallTimeout(state.config)
}

func (state *CoordinatorActor) setDevices(devices []overkiz.Device) {
	state.devices = make(map[string]overkiz.Device, len(devices))
	for _, d := range devices {
		state.devices[d.DeviceURL] = d
	}
}

func (state *CoordinatorActor) devicesCopy() map[string]overkiz.Device {
	devices := make(map[string]overkiz.Device, len(state.devices))
	for url, d := range state.devices {
		devices[url] = d
	}
	return devices
}

func (state *CoordinatorActor) isStateless() bool {
	for _, d := range state.devices {
		if d.HasStates() {
			return false
		}
	}
	return true
}

// mergeDeviceStates merges updates into a fresh state list. Lists already
// published to the event stream stay untouched, other goroutines may still
// hold them.
func mergeDeviceStates(d *overkiz.Device, updates []overkiz.DeviceState) {
	states := make([]overkiz.DeviceState, len(d.States))
	copy(states, d.States)
	for _, up := range updates {
		merged := false
		for i := range states {
			if states[i].Name == up.Name {
				states[i].Value = up.Value
				if up.Type != 0 {
					states[i].Type = up.Type
				}
				merged = true
				break
			}
		}
		if !merged {
			states = append(states, up)
		}
	}
	d.States = states
}
