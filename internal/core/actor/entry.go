package actor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	adactor "overkiz2mqtt/internal/adapter/actor"
	"overkiz2mqtt/internal/config"
	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/events"
	"overkiz2mqtt/internal/entry"
	. "overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const discoveryPublishTimeout = 30 * time.Second

// EntryActor runs the setup pass of one configured entry: login, inventory,
// coordinator priming, platform mapping, discovery forward. Each step must
// succeed before the next one starts and a failed pass leaves nothing
// behind. Transient failures panic so the supervisor retries the whole pass
// with backoff, credential and schema failures stop the actor after
// reporting.
type EntryActor struct {
	ActorWithStates
	stash *Stash

	config      *config.Config
	entry       *entry.Entry
	creds       *entry.Credentials
	client      overkiz.Client
	report      *actor.PID
	discovery   *actor.PID
	eventStream *eventstream.EventStream
	baseLogger  *zap.Logger

	hubActor    *actor.PID
	coordinator *actor.PID
	setup       *overkiz.Setup
	scenarios   []overkiz.Scenario
	platforms   map[domain.Platform][]overkiz.Device
	stateless   bool

	logger *zap.Logger
}

func NewEntryActor(config *config.Config, e *entry.Entry, creds *entry.Credentials, client overkiz.Client,
	report *actor.PID, discovery *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *EntryActor {
	act := &EntryActor{
		config:      config,
		entry:       e,
		creds:       creds,
		client:      client,
		report:      report,
		discovery:   discovery,
		eventStream: eventStream,
		baseLogger:  logger,
		stash:       &Stash{},
		logger: ActorLogger(domain.ACTOR_ID_ENTRY_PREFIX, logger).With(
			zap.String("entry", e.ID), zap.String("title", e.Title)),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(EntryStartingState{actor: act})
	return act
}

func (state *EntryActor) Receive(context actor.Context) {
	if _, ok := context.Message().(*actor.Restarting); ok {
		// the restarted pass spawns fresh children
		state.stopChildren(context)
		return
	}
	state.Behavior.Receive(context)
}

func (state *EntryActor) stopChildren(ctx actor.Context) {
	for _, child := range ctx.Children() {
		ctx.Stop(child)
	}
	state.hubActor = nil
	state.coordinator = nil
}

// Starting state

type EntryStartingState struct {
	ActorState
	actor *EntryActor
}

func (state EntryStartingState) Name() string {
	return "starting"
}

func (state EntryStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Info("entry@starting setup pass",
			zap.String("apiType", string(state.actor.creds.APIType)))

		hubProps := actor.PropsFromProducer(func() actor.Actor {
			return adactor.NewOverkizActor(state.actor.entry.ID, state.actor.client,
				state.actor.config.Hub.RequestTimeout(), state.actor.baseLogger)
		})
		state.actor.hubActor = ctx.Spawn(hubProps)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.hubActor, domain.LoginRequest{}, hubCallTimeout(state.actor.config)), func(err error) any {
			return domain.LoginResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(EntryUnauthenticatedState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("entry@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Unauthenticated state, awaiting the login outcome

type EntryUnauthenticatedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryUnauthenticatedState) Name() string {
	return "unauthenticated"
}

func (state EntryUnauthenticatedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.LoginResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, msg.GetResponseError())
			return
		}
		state.actor.logger.Debug("entry@unauthenticated login ok")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.hubActor, domain.FetchInventoryRequest{}, 2*hubCallTimeout(state.actor.config)), func(err error) any {
			return domain.FetchInventoryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(EntryAuthenticatedState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("entry@unauthenticated: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Authenticated state, awaiting the paired inventory fetch

type EntryAuthenticatedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryAuthenticatedState) Name() string {
	return "authenticated"
}

func (state EntryAuthenticatedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.FetchInventoryResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, msg.GetResponseError())
			return
		}
		if msg.Setup == nil {
			state.actor.fail(ctx, errors.New("hub returned an empty setup"))
			return
		}
		state.actor.logger.Debug("entry@authenticated inventory fetched",
			zap.Int("devices", len(msg.Setup.Devices)),
			zap.Int("gateways", len(msg.Setup.Gateways)),
			zap.Int("scenarios", len(msg.Scenarios)))
		state.actor.setup = msg.Setup
		state.actor.scenarios = msg.Scenarios

		setup := msg.Setup
		coordProps := actor.PropsFromProducer(func() actor.Actor {
			return NewCoordinatorActor(state.actor.config, state.actor.entry.ID, state.actor.hubActor,
				setup.Devices, setup.RootPlace, state.actor.pollInterval(),
				state.actor.eventStream, state.actor.baseLogger)
		})
		state.actor.coordinator = ctx.Spawn(coordProps)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.coordinator, domain.CoordinatorFirstRefreshRequest{}, 2*hubCallTimeout(state.actor.config)), func(err error) any {
			return domain.CoordinatorFirstRefreshResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(EntryInventoryFetchedState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("entry@authenticated: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Inventory fetched state, awaiting the coordinator first refresh

type EntryInventoryFetchedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryInventoryFetchedState) Name() string {
	return "inventory_fetched"
}

func (state EntryInventoryFetchedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.CoordinatorFirstRefreshResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, msg.GetResponseError())
			return
		}
		state.actor.stateless = msg.Stateless
		if msg.Stateless {
			state.actor.logger.Info("all devices report assumed state only, widening poll interval",
				zap.Duration("interval", state.actor.assumedStatePollInterval()))
			ctx.Send(state.actor.coordinator, domain.SetPollIntervalRequest{
				Interval: state.actor.assumedStatePollInterval(),
			})
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.coordinator, domain.CoordinatorDataRequest{}, hubCallTimeout(state.actor.config)), func(err error) any {
			return domain.CoordinatorDataResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(EntryCoordinatorPrimedState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("entry@inventory_fetched: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Coordinator primed state, mapping devices onto platforms

type EntryCoordinatorPrimedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryCoordinatorPrimedState) Name() string {
	return "coordinator_primed"
}

func (state EntryCoordinatorPrimedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.CoordinatorDataResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, msg.GetResponseError())
			return
		}
		state.actor.platforms = state.actor.classifyDevices(msg.Devices)
		for _, p := range domain.Platforms(state.actor.platforms) {
			state.actor.logger.Info("entry@coordinator_primed platform mapped",
				zap.String("platform", string(p)),
				zap.Int("devices", len(state.actor.platforms[p])))
		}
		if state.actor.discovery == nil {
			state.actor.complete(ctx)
			return
		}
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.discovery, domain.PublishEntryDiscoveryRequest{
			EntryID:   state.actor.entry.ID,
			Server:    state.actor.client.Server(),
			Gateways:  state.actor.setup.Gateways,
			Platforms: state.actor.platforms,
			Scenarios: state.actor.scenarios,
		}, discoveryPublishTimeout), func(err error) any {
			return domain.PublishEntryDiscoveryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.actor.Become(EntryPlatformMappedState{
			actor: state.actor,
		})
	default:
		state.actor.logger.Debug("entry@coordinator_primed: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Platform mapped state, awaiting the discovery forward

type EntryPlatformMappedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryPlatformMappedState) Name() string {
	return "platform_mapped"
}

func (state EntryPlatformMappedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishEntryDiscoveryResponse:
		if msg.HasResponseError() {
			state.actor.fail(ctx, msg.GetResponseError())
			return
		}
		state.actor.logger.Debug("entry@platform_mapped discovery published")
		state.actor.complete(ctx)
	default:
		state.actor.logger.Debug("entry@platform_mapped: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Forwarded state, steady state of a loaded entry

type EntryForwardedState struct {
	ActorState
	actor *EntryActor
}

func (state EntryForwardedState) Name() string {
	return "forwarded"
}

func (state EntryForwardedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("entry@forwarded: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      entryActorID(state.actor.entry.ID),
			Healthy: true,
			State:   state.Name(),
		})
	default:
		state.actor.logger.Debug("entry@forwarded: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Other actor function helpers

// complete hands the runtime bundle to the lifecycle manager. Gateway
// connectivity snapshots flow through the event stream like any later
// gateway event.
func (state *EntryActor) complete(ctx actor.Context) {
	runtime := domain.EntryRuntime{
		EntryID:     state.entry.ID,
		Hub:         state.hubActor,
		Coordinator: state.coordinator,
		Platforms:   state.platforms,
		Scenarios:   state.scenarios,
		Gateways:    state.setup.Gateways,
		Server:      state.client.Server(),
	}
	for _, gw := range state.setup.Gateways {
		for _, ev := range events.GatewaySnapshotUpdateEvents(gw) {
			state.eventStream.Publish(ev)
		}
	}
	state.logger.Info("entry setup complete",
		zap.Int("platforms", len(state.platforms)),
		zap.Int("scenarios", len(state.scenarios)),
		zap.Bool("stateless", state.stateless))
	ctx.Send(state.report, domain.EntrySetupComplete{
		EntryID: state.entry.ID,
		Runtime: runtime,
	})
	state.Become(EntryForwardedState{
		actor: state,
	})
	state.stash.UnstashAll(ctx)
}

func (state *EntryActor) fail(ctx actor.Context, err error) {
	failure := classifySetupFailure(err)
	state.logger.Warn("entry setup failed",
		zap.String("kind", failure.Kind.String()), zap.Error(failure.Err))
	ctx.Send(state.report, domain.EntrySetupFailed{
		EntryID: state.entry.ID,
		Failure: failure,
	})
	if failure.Kind == domain.SetupNotReady {
		// the supervisor restarts the whole pass with backoff
		panic(failure)
	}
	ctx.Stop(ctx.Self())
}

// classifyDevices buckets coordinator devices by platform. Devices without a
// mapping are logged and skipped, never an error.
func (state *EntryActor) classifyDevices(devices map[string]overkiz.Device) map[domain.Platform][]overkiz.Device {
	urls := make([]string, 0, len(devices))
	for url := range devices {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	platforms := make(map[domain.Platform][]overkiz.Device)
	for _, url := range urls {
		d := devices[url]
		platform, ok := domain.PlatformFor(d)
		if !ok {
			state.logger.Info("device not supported, skipping",
				zap.String("label", d.Label),
				zap.String("widget", string(d.Widget)),
				zap.String("uiClass", string(d.UIClass)))
			continue
		}
		platforms[platform] = append(platforms[platform], d)
	}
	return platforms
}

func (state *EntryActor) pollInterval() time.Duration {
	if d := state.config.Hub.PollInterval(); d > 0 {
		return d
	}
	return domain.DefaultPollInterval
}

func (state *EntryActor) assumedStatePollInterval() time.Duration {
	if d := state.config.Hub.AssumedStatePollInterval(); d > 0 {
		return d
	}
	return domain.AssumedStatePollInterval
}

// classifySetupFailure wraps the error taxonomy with the schema errors only
// visible at this layer, which are fatal rather than transient.
func classifySetupFailure(err error) domain.SetupFailure {
	if errors.Is(err, entry.ErrUnsupportedSchema) || errors.Is(err, entry.ErrInvalidEntry) {
		return domain.SetupFailure{Kind: domain.SetupFatal, Err: err}
	}
	return domain.ClassifySetupError(err)
}

func entryActorID(entryID string) string {
	return fmt.Sprintf("%s-%s", domain.ACTOR_ID_ENTRY_PREFIX, entryID)
}

// hubCallTimeout pads the hub adapter's own request timeout so its recover
// answer wins over the future timing out.
func hubCallTimeout(cfg *config.Config) time.Duration {
	if t := cfg.Hub.RequestTimeout(); t > 0 {
		return t + 2*time.Second
	}
	return 12 * time.Second
}
