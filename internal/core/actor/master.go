package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	adactor "overkiz2mqtt/internal/adapter/actor"
	"overkiz2mqtt/internal/config"
	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/core/service"
	"overkiz2mqtt/internal/entry"
	. "overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const provisionCallTimeout = 30 * time.Second

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// HubClientProvider builds the API client of one entry. The master calls it
// on every setup pass, so a restarted cloud entry starts from a fresh
// session instead of a stale one.
type HubClientProvider func(creds *entry.Credentials) overkiz.Client

// MasterActor owns the entry store and the shared children (MQTT, HA
// discovery), spawns one EntryActor per configured entry and tracks each
// entry's lifecycle state. The runtime bundle of a loaded entry lives here
// and is dropped only after a successful unload.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	store             *entry.Store
	provisioner       *service.Provisioner
	clients           HubClientProvider
	mqttActorProvider MQTTActorProvider

	eventStream    *eventstream.EventStream
	mqttActor      *actor.PID
	discoveryActor *actor.PID

	runtimes map[string]*domain.EntryRuntime
	states   map[string]domain.EntryState
	failures map[string]error
	actors   map[string]*actor.PID
	spawnSeq int

	currentHealthCheck healthCheckResult
	pendingUnload      *pendingUnload

	baseLogger *zap.Logger
	logger     *zap.Logger
}

type healthCheckResult struct {
	expected  int
	received  int
	unhealthy int
	respondTo *actor.PID
}

type pendingUnload struct {
	entryID string
	reload  bool
	replyTo *actor.PID
}

type provisionOutcome struct {
	entry   *entry.Entry
	err     error
	replyTo *actor.PID
}

type reauthOutcome struct {
	entry   *entry.Entry
	err     error
	replyTo *actor.PID
}

func NewMasterActor(config config.Config, store *entry.Store, provisioner *service.Provisioner,
	clients HubClientProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		store:             store,
		provisioner:       provisioner,
		clients:           clients,
		mqttActorProvider: mqttActorProvider,
		eventStream:       &eventstream.EventStream{},
		runtimes:          make(map[string]*domain.EntryRuntime),
		states:            make(map[string]domain.EntryState),
		failures:          make(map[string]error),
		actors:            make(map[string]*actor.PID),
		baseLogger:        logger,
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}

		if err := state.store.Load(); err != nil {
			panic(err)
		}
		state.migrateEntries()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			discoveryPID, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.discoveryActor = discoveryPID
		}

		// one child per entry that survived migration
		for _, e := range state.store.List() {
			if state.states[e.ID] == domain.EntryStateMigrationError {
				continue
			}
			state.spawnEntryActor(ctx, e)
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck = healthCheckResult{
			expected:  1 + len(state.actors),
			respondTo: ForRequest(msg).ReplyTo(ctx),
		}
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// one request per entry child, an entry still setting up counts as
		// not healthy
		for id, pid := range state.actors {
			entryID := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      entryActorID(entryID),
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.ListEntriesRequest:
		ForRequest(msg).Respond(ctx, domain.ListEntriesResponse{Entries: state.entryStatuses()})
	case domain.ProvisionEntryRequest:
		state.logger.Debug("master@default ProvisionEntryRequest", zap.String("apiType", string(msg.APIType)))
		state.startProvision(ctx, msg)
	case domain.ReauthEntryRequest:
		state.logger.Debug("master@default ReauthEntryRequest", zap.String("entry", msg.EntryID))
		state.startReauth(ctx, msg)
	case domain.UnloadEntryRequest:
		state.logger.Debug("master@default UnloadEntryRequest", zap.String("entry", msg.EntryID))
		state.beginUnload(ctx, msg.EntryID, false, ForRequest(msg).ReplyTo(ctx))
	case domain.ReloadEntryRequest:
		state.logger.Debug("master@default ReloadEntryRequest", zap.String("entry", msg.EntryID))
		state.beginUnload(ctx, msg.EntryID, true, ForRequest(msg).ReplyTo(ctx))
	case domain.EntrySetupComplete:
		runtime := msg.Runtime
		state.runtimes[msg.EntryID] = &runtime
		state.states[msg.EntryID] = domain.EntryStateLoaded
		delete(state.failures, msg.EntryID)
		state.logger.Info("master@default entry loaded", zap.String("entry", msg.EntryID),
			zap.Int("platforms", len(runtime.Platforms)), zap.Int("scenarios", len(runtime.Scenarios)))
	case domain.EntrySetupFailed:
		state.logger.Warn("master@default entry setup failed", zap.String("entry", msg.EntryID),
			zap.String("kind", msg.Failure.Kind.String()), zap.Error(msg.Failure.Err))
		state.failures[msg.EntryID] = msg.Failure.Err
		switch msg.Failure.Kind {
		case domain.SetupAuthRequired:
			// the entry actor stops itself, retrying cannot help
			state.states[msg.EntryID] = domain.EntryStateAuthRequired
			delete(state.actors, msg.EntryID)
		case domain.SetupFatal:
			state.states[msg.EntryID] = domain.EntryStateFailed
			delete(state.actors, msg.EntryID)
		default:
			// the supervisor is restarting the actor with backoff
			state.states[msg.EntryID] = domain.EntryStateRetrying
		}
	case domain.ExecuteScenarioResponse:
		if msg.HasResponseError() {
			state.logger.Warn("master@default scene execution failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("master@default scene execution registered", zap.String("execId", msg.ExecID))
		}
	case adactor.ParsedCommand:
		// redirect parsedCommand to the entry that owns the scenario
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.ExecuteScenarioRequest:
					state.routeScenario(ctx, pcmd)
				}
			}
		}
	case *actor.Terminated:
		// if the MQTT actor gives up, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt terminated")
			panic(errors.New("mqtt terminated"))
		}
		state.logger.Debug("master@default child terminated", zap.String("who", msg.Who.Id))
	case *actor.ReceiveTimeout:
		// stray timer from a finished health check
	default:
		state.logger.Debug("master@default ignoring", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		if !msg.Healthy {
			state.currentHealthCheck.unhealthy++
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// ProvisioningReceive handles the outcome of a provision or reauth call.
// Everything else waits so the store is never touched mid flight.
func (state *MasterActor) ProvisioningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case provisionOutcome:
		if msg.err != nil {
			state.logger.Warn("master@provisioning provision failed", zap.Error(msg.err))
			if msg.replyTo != nil {
				ctx.Send(msg.replyTo, domain.ProvisionEntryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
				})
			}
		} else {
			state.logger.Info("master@provisioning entry provisioned", zap.String("entry", msg.entry.ID), zap.String("title", msg.entry.Title))
			state.spawnEntryActor(ctx, msg.entry)
			if msg.replyTo != nil {
				ctx.Send(msg.replyTo, domain.ProvisionEntryResponse{Entry: state.entryStatus(msg.entry)})
			}
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case reauthOutcome:
		if msg.err != nil {
			state.logger.Warn("master@provisioning reauth failed", zap.Error(msg.err))
			if msg.replyTo != nil {
				ctx.Send(msg.replyTo, domain.ReauthEntryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
				})
			}
		} else {
			state.logger.Info("master@provisioning entry reauthenticated", zap.String("entry", msg.entry.ID))
			// a running pass still holds the old credentials, restart it
			if pid, ok := state.actors[msg.entry.ID]; ok {
				ctx.Stop(pid)
				delete(state.actors, msg.entry.ID)
			}
			delete(state.runtimes, msg.entry.ID)
			state.spawnEntryActor(ctx, msg.entry)
			if msg.replyTo != nil {
				ctx.Send(msg.replyTo, domain.ReauthEntryResponse{Entry: state.entryStatus(msg.entry)})
			}
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@provisioning stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// UnloadingReceive waits for HA discovery to confirm that the entry's
// configs were removed. The runtime bundle stays put if the removal failed.
func (state *MasterActor) UnloadingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RemoveEntryDiscoveryResponse:
		pending := state.pendingUnload
		state.pendingUnload = nil
		state.behavior.UnbecomeStacked()
		if pending != nil {
			if msg.HasResponseError() {
				state.logger.Error("master@unloading discovery removal failed, entry stays loaded",
					zap.String("entry", pending.entryID), zap.Error(msg.GetResponseError()))
				state.respondUnload(ctx, pending, false, msg.GetResponseError())
			} else {
				state.finishUnload(ctx, pending)
			}
		}
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@unloading stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.baseLogger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

// spawnEntryActor starts the setup pass of one entry under an exponential
// backoff supervisor. The producer builds a fresh client per pass.
func (state *MasterActor) spawnEntryActor(ctx actor.Context, e *entry.Entry) {
	creds, err := e.Credentials()
	if err != nil {
		state.logger.Error("entry has invalid data", zap.String("entry", e.ID), zap.Error(err))
		state.states[e.ID] = domain.EntryStateFailed
		state.failures[e.ID] = err
		return
	}

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Minute, 5*time.Second)
	self := ctx.Self()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewEntryActor(&state.config, e, creds, state.clients(creds), self, state.discoveryActor, state.eventStream, state.baseLogger)
	}, actor.WithSupervisor(supervisor))

	// spawn names are never reused, a stopped pass may not be gone yet
	state.spawnSeq++
	pid, err := ctx.SpawnNamed(props, fmt.Sprintf("%s-%d", entryActorID(e.ID), state.spawnSeq))
	if err != nil {
		state.logger.Error("could not spawn entry actor", zap.String("entry", e.ID), zap.Error(err))
		state.states[e.ID] = domain.EntryStateFailed
		state.failures[e.ID] = err
		return
	}
	state.actors[e.ID] = pid
	state.states[e.ID] = domain.EntryStateSettingUp
	delete(state.failures, e.ID)
}

// migrateEntries upgrades stored entries to the current schema and writes
// the store back once if anything changed. A failed migration parks that
// entry only, the rest keep loading.
func (state *MasterActor) migrateEntries() {
	changed := false
	for _, e := range state.store.List() {
		migrated, err := entry.Migrate(e)
		if err != nil {
			state.logger.Error("entry migration failed", zap.String("entry", e.ID),
				zap.Int("version", e.Version), zap.Error(err))
			state.states[e.ID] = domain.EntryStateMigrationError
			state.failures[e.ID] = err
			continue
		}
		if migrated {
			state.logger.Info("entry migrated", zap.String("entry", e.ID), zap.Int("version", e.Version))
			changed = true
		}
	}
	if changed {
		if err := state.store.Save(); err != nil {
			panic(err)
		}
	}
}

func (state *MasterActor) startProvision(ctx actor.Context, req domain.ProvisionEntryRequest) {
	replyTo := ForRequest(req).ReplyTo(ctx)
	NewBackgroundTaskNoError(ctx, func() *provisionOutcome {
		callCtx, cancel := context.WithTimeout(context.Background(), provisionCallTimeout)
		defer cancel()
		e, err := state.provisioner.Provision(callCtx, req)
		return &provisionOutcome{entry: e, err: err, replyTo: replyTo}
	}).Recover(func(err error) provisionOutcome {
		return provisionOutcome{err: err, replyTo: replyTo}
	}).WithTimeout(provisionCallTimeout + 2*time.Second).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.ProvisioningReceive)
}

func (state *MasterActor) startReauth(ctx actor.Context, req domain.ReauthEntryRequest) {
	replyTo := ForRequest(req).ReplyTo(ctx)
	NewBackgroundTaskNoError(ctx, func() *reauthOutcome {
		callCtx, cancel := context.WithTimeout(context.Background(), provisionCallTimeout)
		defer cancel()
		e, err := state.provisioner.Reauth(callCtx, req)
		return &reauthOutcome{entry: e, err: err, replyTo: replyTo}
	}).Recover(func(err error) reauthOutcome {
		return reauthOutcome{err: err, replyTo: replyTo}
	}).WithTimeout(provisionCallTimeout + 2*time.Second).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.ProvisioningReceive)
}

func (state *MasterActor) beginUnload(ctx actor.Context, entryID string, reload bool, replyTo *actor.PID) {
	pending := &pendingUnload{entryID: entryID, reload: reload, replyTo: replyTo}

	if state.store.Get(entryID) == nil {
		state.respondUnload(ctx, pending, false, fmt.Errorf("%w: %s", service.ErrEntryNotFound, entryID))
		return
	}

	runtime, loaded := state.runtimes[entryID]
	if !loaded || state.discoveryActor == nil {
		// nothing was forwarded, or there is no discovery layer to undo
		state.finishUnload(ctx, pending)
		return
	}

	state.pendingUnload = pending
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.discoveryActor, domain.RemoveEntryDiscoveryRequest{
		EntryID:   runtime.EntryID,
		Server:    runtime.Server,
		Gateways:  runtime.Gateways,
		Platforms: runtime.Platforms,
		Scenarios: runtime.Scenarios,
	}, discoveryPublishTimeout+5*time.Second), func(err error) any {
		return domain.RemoveEntryDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		}
	})
	state.behavior.BecomeStacked(state.UnloadingReceive)
}

// finishUnload drops everything the entry had running. Only reached once
// discovery removal succeeded or was not needed.
func (state *MasterActor) finishUnload(ctx actor.Context, pending *pendingUnload) {
	if pid, ok := state.actors[pending.entryID]; ok {
		ctx.Stop(pid)
		delete(state.actors, pending.entryID)
	}
	delete(state.runtimes, pending.entryID)
	state.states[pending.entryID] = domain.EntryStateNotLoaded
	delete(state.failures, pending.entryID)
	state.logger.Info("entry unloaded", zap.String("entry", pending.entryID))

	if pending.reload {
		if e := state.store.Get(pending.entryID); e != nil {
			state.spawnEntryActor(ctx, e)
		}
		if pending.replyTo != nil {
			ctx.Send(pending.replyTo, domain.ReloadEntryResponse{})
		}
		return
	}
	if pending.replyTo != nil {
		ctx.Send(pending.replyTo, domain.UnloadEntryResponse{Unloaded: true})
	}
}

func (state *MasterActor) respondUnload(ctx actor.Context, pending *pendingUnload, unloaded bool, err error) {
	if pending.replyTo == nil {
		return
	}
	if pending.reload {
		ctx.Send(pending.replyTo, domain.ReloadEntryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	ctx.Send(pending.replyTo, domain.UnloadEntryResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		Unloaded:           unloaded,
	})
}

func (state *MasterActor) routeScenario(ctx actor.Context, req domain.ExecuteScenarioRequest) {
	for _, runtime := range state.runtimes {
		if runtime.Scenario(req.OID) != nil {
			state.logger.Info("scene command", zap.String("oid", req.OID), zap.String("entry", runtime.EntryID))
			// Request, so the execution outcome comes back here and failures
			// get logged.
			ctx.Request(runtime.Hub, req)
			return
		}
	}
	state.logger.Debug("scene command for unknown scenario", zap.String("oid", req.OID))
}

func (state *MasterActor) entryStatuses() []domain.EntryStatus {
	entries := state.store.List()
	statuses := make([]domain.EntryStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, state.entryStatus(e))
	}
	return statuses
}

func (state *MasterActor) entryStatus(e *entry.Entry) domain.EntryStatus {
	entryState, ok := state.states[e.ID]
	if !ok {
		entryState = domain.EntryStateNotLoaded
	}
	status := domain.EntryStatus{
		ID:       e.ID,
		Title:    e.Title,
		UniqueID: e.UniqueID,
		APIType:  e.Data[entry.KeyAPIType],
		State:    entryState,
	}
	if err := state.failures[e.ID]; err != nil {
		status.Error = err.Error()
	}
	return status
}

func (state *healthCheckResult) allReceived() bool {
	return state.received >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.received == state.expected && state.unhealthy == 0
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   fmt.Sprintf("%d/%d healthy", state.received-state.unhealthy, state.expected),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
