package actor

import (
	"context"
	"fmt"
	"time"

	"overkiz2mqtt/internal/core/domain"
	"overkiz2mqtt/internal/util/actorutil"
	"overkiz2mqtt/pkg/overkiz"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	hubDefaultRequestTimeout = 10 * time.Second
	hubUnregisterOnStopTime  = 5 * time.Second
)

// OverkizActor wraps one hub client. Requests run as blocking background
// tasks, so the actor stacks a waiting behavior and stashes everything that
// arrives until the running call resolves.
type OverkizActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   overkiz.Client
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewOverkizActor(entryID string, client overkiz.Client, requestTimeout time.Duration, logger *zap.Logger) *OverkizActor {
	if requestTimeout <= 0 {
		requestTimeout = hubDefaultRequestTimeout
	}
	act := &OverkizActor{
		client:   client,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		timeout:  requestTimeout,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_HUB, logger).With(zap.String("entry", entryID)),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

// inventoryTimeout allows for the paired setup plus scenarios fetch.
func (a *OverkizActor) inventoryTimeout() time.Duration {
	return 2 * a.timeout
}

func (state *OverkizActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *OverkizActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("hub@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HUB,
			Healthy: true,
			State:   "idle",
		})
	case domain.LoginRequest:
		state.logger.Debug("hub@default: LoginRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.login),
			mapTaskResult[domain.LoginResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.LoginResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case domain.FetchInventoryRequest:
		state.logger.Debug("hub@default: FetchInventoryRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.fetchInventory),
			mapTaskResult[domain.FetchInventoryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.FetchInventoryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.inventoryTimeout()).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case domain.FetchDevicesRequest:
		state.logger.Debug("hub@default: FetchDevicesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.fetchDevices),
			mapTaskResult[domain.FetchDevicesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.FetchDevicesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case domain.RegisterEventListenerRequest:
		state.logger.Debug("hub@default: RegisterEventListenerRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.registerEventListener),
			mapTaskResult[domain.RegisterEventListenerResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RegisterEventListenerResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case domain.FetchEventsRequest:
		state.logger.Debug("hub@default: FetchEventsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.fetchEvents),
			mapTaskResult[domain.FetchEventsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.FetchEventsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case domain.ExecuteScenarioRequest:
		state.logger.Debug("hub@default: ExecuteScenarioRequest", zap.String("oid", msg.OID))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		oid := msg.OID
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ExecuteScenarioResponse, error) {
			return state.executeScenario(oid)
		}),
			mapTaskResult[domain.ExecuteScenarioResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ExecuteScenarioResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingHub)
	case *actor.Stopping:
		state.unregisterOnStop()
	default:
		state.logger.Debug("hub@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *OverkizActor) WaitingHub(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("hub@WaitingHub backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.unregisterOnStop()
	default:
		state.logger.Debug("hub@WaitingHub stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *OverkizActor) login() (*domain.LoginResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.client.Login(ctx); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.LoginResponse{}, nil
}

// fetchInventory loads setup and scenarios in one shot. Both must succeed,
// a partial inventory would publish an incomplete device tree.
func (a *OverkizActor) fetchInventory() (*domain.FetchInventoryResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.inventoryTimeout())
	defer cancel()

	var setup *overkiz.Setup
	var scenarios []overkiz.Scenario

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		setup, err = a.client.GetSetup(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		scenarios, err = a.client.GetScenarios(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.FetchInventoryResponse{
		Setup:     setup,
		Scenarios: scenarios,
	}, nil
}

func (a *OverkizActor) fetchDevices() (*domain.FetchDevicesResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	devices, err := a.client.GetDevices(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.FetchDevicesResponse{
		Devices: devices,
	}, nil
}

func (a *OverkizActor) registerEventListener() (*domain.RegisterEventListenerResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	id, err := a.client.RegisterEventListener(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.RegisterEventListenerResponse{
		ListenerID: id,
	}, nil
}

func (a *OverkizActor) fetchEvents() (*domain.FetchEventsResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	events, err := a.client.FetchEvents(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.FetchEventsResponse{
		Events: events,
	}, nil
}

func (a *OverkizActor) executeScenario(oid string) (*domain.ExecuteScenarioResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	execID, err := a.client.Execute(ctx, oid)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ExecuteScenarioResponse{
		ExecID: execID,
	}, nil
}

// unregisterOnStop frees the server side event queue. Cloud queues expire on
// their own, so a failure here only costs the server a stale listener.
func (a *OverkizActor) unregisterOnStop() {
	ctx, cancel := context.WithTimeout(context.Background(), hubUnregisterOnStopTime)
	defer cancel()
	if err := a.client.UnregisterEventListener(ctx); err != nil {
		a.logger.Debug("event listener unregister on stop failed", zap.Error(err))
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
