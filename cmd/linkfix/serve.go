package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/linkfix/internal/channel"
	"github.com/memohai/linkfix/internal/channel/adapters/discord"
	"github.com/memohai/linkfix/internal/config"
	"github.com/memohai/linkfix/internal/db"
	"github.com/memohai/linkfix/internal/delivery"
	"github.com/memohai/linkfix/internal/events"
	"github.com/memohai/linkfix/internal/handlers"
	channelchecker "github.com/memohai/linkfix/internal/healthcheck/checkers/channel"
	dbchecker "github.com/memohai/linkfix/internal/healthcheck/checkers/database"
	"github.com/memohai/linkfix/internal/linkfix"
	"github.com/memohai/linkfix/internal/logger"
	"github.com/memohai/linkfix/internal/policy"
	"github.com/memohai/linkfix/internal/provider"
	"github.com/memohai/linkfix/internal/render"
	"github.com/memohai/linkfix/internal/server"
	"github.com/memohai/linkfix/internal/supervisor"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			providePolicyStore,
			provideEventStore,
			provideRegistry,
			provideRenderer,
			provideHub,
			provideDiscordSession,
			provideDiscordAdapter,
			provideFilter,
			provideEngine,
			provideSupervisor,
			provideLinkFixService,
			provideJanitor,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewProvidersHandler),
			provideServerHandler(provideStatsHandler),
			provideServerHandler(provideGuildsHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(
			startDiscord,
			startJanitor,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func providePolicyStore(conn *pgxpool.Pool) policy.Store   { return policy.NewPGStore(conn) }
func provideEventStore(conn *pgxpool.Pool) *events.PGStore { return events.NewPGStore(conn) }

func provideRegistry(cfg config.Config) (*provider.Registry, error) {
	reg, err := provider.LoadRegistry(cfg.LinkFix.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	return reg, nil
}

func provideRenderer(log *slog.Logger, cfg config.Config) *render.Renderer {
	var verifier render.Verifier
	if cfg.EmbedEZ.Endpoint != "" {
		verifier = render.NewEmbedEZ(cfg.EmbedEZ.Endpoint, cfg.EmbedEZ.APIKey, cfg.EmbedEZ.TimeoutDuration())
	}
	return render.NewRenderer(log, verifier, render.Options{
		VerifyTimeout: cfg.EmbedEZ.TimeoutDuration(),
		Concurrency:   cfg.LinkFix.RenderConcurrency,
	})
}

func provideHub() *channel.Hub { return channel.NewHub(0) }

func provideDiscordSession(lc fx.Lifecycle, cfg config.Config) (*discordgo.Session, error) {
	s, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return s.Close() }})
	return s, nil
}

func provideDiscordAdapter(log *slog.Logger, s *discordgo.Session, hub *channel.Hub, cfg config.Config) *discord.DiscordAdapter {
	return discord.NewDiscordAdapter(log, s, hub, discord.Options{
		EventLogChannelID: cfg.Discord.EventLogChannelID,
	})
}

func provideFilter(log *slog.Logger, store policy.Store, reg *provider.Registry) *policy.Filter {
	return policy.NewFilter(log, store, reg)
}

func provideEngine(log *slog.Logger, adapter *discord.DiscordAdapter, cfg config.Config) *delivery.Engine {
	return delivery.NewEngine(log, adapter, adapter, cfg.LinkFix.NoticeCooldownDuration())
}

func provideSupervisor(log *slog.Logger, hub *channel.Hub, adapter *discord.DiscordAdapter, cfg config.Config) *supervisor.Supervisor {
	return supervisor.New(log, hub, adapter, supervisor.Options{
		EmbedTimeout:  cfg.LinkFix.EmbedTimeoutDuration(),
		SuppressDelay: cfg.LinkFix.SuppressDelayDuration(),
	})
}

type linkFixParams struct {
	fx.In
	Logger     *slog.Logger
	Config     config.Config
	Registry   *provider.Registry
	Filter     *policy.Filter
	Renderer   *render.Renderer
	Adapter    *discord.DiscordAdapter
	Engine     *delivery.Engine
	Supervisor *supervisor.Supervisor
	Events     *events.PGStore
}

func provideLinkFixService(p linkFixParams) *linkfix.Service {
	return linkfix.NewService(p.Logger, p.Registry, p.Filter, p.Renderer, p.Adapter, p.Engine, p.Supervisor, p.Events,
		linkfix.Options{
			MessageLimit: p.Config.Discord.MessageLimit,
			Analytics:    p.Config.LinkFix.Analytics,
		})
}

func provideJanitor(log *slog.Logger, store *events.PGStore, cfg config.Config) (*events.Janitor, error) {
	return events.NewJanitor(log, store, cfg.LinkFix.EventsPurgeSchedule, cfg.LinkFix.EventsRetentionDuration())
}

func provideStatsHandler(store *events.PGStore) *handlers.StatsHandler {
	return handlers.NewStatsHandler(store)
}

func provideGuildsHandler(log *slog.Logger, store policy.Store, svc *linkfix.Service) *handlers.GuildsHandler {
	return handlers.NewGuildsHandler(log, store, svc)
}

func provideHealthHandler(log *slog.Logger, conn *pgxpool.Pool, adapter *discord.DiscordAdapter, hub *channel.Hub) *handlers.HealthHandler {
	return handlers.NewHealthHandler(
		dbchecker.NewChecker(log, conn),
		channelchecker.NewChecker(log, "discord", adapter, hub),
	)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) (*server.Server, error) {
	if params.Config.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required to serve the operator API")
	}
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...), nil
}

func startDiscord(lc fx.Lifecycle, s *discordgo.Session, adapter *discord.DiscordAdapter, svc *linkfix.Service) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return adapter.Connect(s, func(ctx context.Context, msg channel.IncomingMessage) error {
				_, err := svc.HandleMessage(ctx, msg)
				return err
			})
		},
		OnStop: func(_ context.Context) error { adapter.Close(); return nil },
	})
}

func startJanitor(lc fx.Lifecycle, janitor *events.Janitor) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { janitor.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return janitor.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("operator api listening", slog.String("addr", srv.Addr()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
