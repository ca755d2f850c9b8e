// Package runtime wires the bot together and runs it until shutdown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"macroBot/internal/app"
	"macroBot/internal/app/events"
	"macroBot/internal/domain"
	"macroBot/internal/infrastructure/config"
	"macroBot/internal/infrastructure/metrics"
	sqlitestorage "macroBot/internal/infrastructure/persistence/sqlite"
	kickadapter "macroBot/internal/interface/adapters/kick"
	twitchadapter "macroBot/internal/interface/adapters/twitch"
	ws "macroBot/internal/interface/api/ws"
	"macroBot/internal/interface/outs"
	"macroBot/internal/usecase/commands"
	"macroBot/internal/usecase/handle_message"
	"macroBot/internal/usecase/notifications"
)

type Options struct {
	// Registerer receives the bot metrics. Nil means the default registry.
	Registerer prometheus.Registerer
}

type Runtime struct {
	cfg        *config.Config
	store      *sqlitestorage.Store
	bus        *events.Bus
	multiOut   *outs.MultiSender
	platform   *app.PlatformManager
	wsServer   *ws.Server
	limiter    *commands.RateLimiter
	recorder   *metrics.Recorder
	commandSvc *commands.Service
	dispatcher func(context.Context, domain.Message) error

	closeOnce sync.Once
}

// New opens the store and builds every component. Nothing connects until Run.
func New(cfg *config.Config, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime: config is required")
	}

	store, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	recorder, err := metrics.NewRecorder(opts.Registerer)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bus := events.NewBus()
	multiOut := outs.NewMultiSender()

	limiter := commands.NewRateLimiter(commands.RateLimitConfig{
		Limit:      cfg.RateLimit.Count,
		Window:     cfg.RateLimit.Window,
		PerInvoker: cfg.RateLimit.PerInvoker,
	}, nil)

	manager := commands.NewCustomCommandManager(commands.ManagerConfig{
		Communities:   commands.NewCommunities(store, store, nil),
		Gateway:       store,
		Limiter:       limiter,
		Roles:         domain.NameRoleResolver{},
		Publisher:     notifications.Fanout{bus, notifications.NewAuditLogger()},
		Recorder:      recorder,
		CommitTimeout: cfg.CommitTimeout,
	})

	router := commands.NewRouter(cfg.BotPrefix)
	manage := commands.NewManageCustomCommand(manager)
	manage.SetReservedChecker(router.IsReserved)
	router.Register(manage)
	router.SetCustomManager(manager)

	commandSvc := commands.NewService(manager)
	uc := handle_message.NewInteractor(multiOut, router)

	dispatch := func(ctx context.Context, msg domain.Message) error {
		bus.Publish(events.TopicChatMessage, events.NewChatMessageDTO(msg))
		return uc.Handle(ctx, msg)
	}

	wsServer := ws.NewServer(ws.Config{
		Addr:         cfg.ChatWSAddr,
		TrustClients: cfg.WSTrustClients,
		Commands:     commandSvc,
		Metrics:      recorder.Handler(),
	})
	wsServer.SetHandler(dispatch)

	platform := app.NewPlatformManager(multiOut)
	platform.Add(domain.PlatformWeb, wsServer, true)

	if cfg.Twitch.Enabled() {
		adapter := twitchadapter.NewAdapter(twitchadapter.Config{
			Username:   cfg.Twitch.Username,
			OAuthToken: cfg.Twitch.OAuthToken(),
			Channels:   cfg.Twitch.JoinChannels(),
		})
		adapter.SetHandler(dispatch)
		platform.Add(domain.PlatformTwitch, adapter, false)
	} else {
		log.Info().Msg("twitch: disabled, TWITCH_BOT_USERNAME and TWITCH_BOT_ACCESS_TOKEN are not set")
	}

	if cfg.Kick.Enabled() {
		adapter := kickadapter.NewAdapter(kickadapter.Config{
			AccessToken:       cfg.Kick.AccessToken,
			BroadcasterUserID: cfg.Kick.BroadcasterUserID,
			ChatroomID:        cfg.Kick.ChatroomID,
		})
		adapter.SetHandler(dispatch)
		platform.Add(domain.PlatformKick, adapter, false)
	} else {
		log.Info().Msg("kick: disabled, KICK_ACCESS_TOKEN is not set")
	}

	return &Runtime{
		cfg:        cfg,
		store:      store,
		bus:        bus,
		multiOut:   multiOut,
		platform:   platform,
		wsServer:   wsServer,
		limiter:    limiter,
		recorder:   recorder,
		commandSvc: commandSvc,
		dispatcher: dispatch,
	}, nil
}

// Run starts the adapters and the limiter pruning job and blocks until ctx
// ends or the web gateway fails. The store is closed on return.
func (r *Runtime) Run(ctx context.Context) error {
	defer func() {
		if err := r.Close(); err != nil {
			log.Error().Err(err).Msg("runtime: close")
		}
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(r.cfg.LimiterPruneSchedule, r.pruneLimiters); err != nil {
		return fmt.Errorf("limiter prune schedule: %w", err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	forwardDone := make(chan struct{})
	forwardCtx, stopForward := context.WithCancel(ctx)
	go func() {
		defer close(forwardDone)
		r.forwardToWeb(forwardCtx)
	}()
	defer func() {
		stopForward()
		<-forwardDone
	}()

	log.Info().
		Str("prefix", r.cfg.BotPrefix).
		Str("database", r.cfg.DatabasePath).
		Msg("bot started")

	err := r.platform.Run(ctx)
	log.Info().Msg("bot stopped")
	return err
}

// forwardToWeb mirrors chat traffic and committed mutations to web clients.
func (r *Runtime) forwardToWeb(ctx context.Context) {
	chat, unsubChat := r.bus.Subscribe(events.TopicChatMessage)
	defer unsubChat()
	mutations, unsubMutations := r.bus.Subscribe(events.TopicCommandMutation)
	defer unsubMutations()

	for {
		var (
			kind    string
			payload any
			ok      bool
		)
		select {
		case <-ctx.Done():
			return
		case payload, ok = <-chat:
			kind = "chat"
		case payload, ok = <-mutations:
			kind = "mutation"
		}
		if !ok {
			return
		}
		if err := r.wsServer.Broadcast(ctx, kind, payload); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("type", kind).Msg("ws: broadcast")
		}
	}
}

func (r *Runtime) pruneLimiters() {
	removed := r.limiter.Prune(r.cfg.LimiterIdle)
	remaining := r.limiter.Len()
	r.recorder.SetLimiters(remaining)
	log.Debug().Int("removed", removed).Int("remaining", remaining).Msg("rate limiters pruned")
}

// DispatchMessage feeds a message through the same path as the adapters.
func (r *Runtime) DispatchMessage(ctx context.Context, msg domain.Message) error {
	if r == nil || r.dispatcher == nil {
		return errors.New("runtime: dispatcher unavailable")
	}
	return r.dispatcher(ctx, msg)
}

func (r *Runtime) CommandService() *commands.Service {
	return r.commandSvc
}

func (r *Runtime) Bus() *events.Bus {
	return r.bus
}

func (r *Runtime) Platforms() []domain.Platform {
	return r.platform.Running()
}

func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Close releases the store and the bus. It is safe to call more than once.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.bus.Close()
		err = r.store.Close()
	})
	return err
}
