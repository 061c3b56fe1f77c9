package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/threadclaw/internal/agent"
	"github.com/nextlevelbuilder/threadclaw/internal/bus"
	"github.com/nextlevelbuilder/threadclaw/internal/channels"
	"github.com/nextlevelbuilder/threadclaw/internal/channels/discord"
	"github.com/nextlevelbuilder/threadclaw/internal/classify"
	"github.com/nextlevelbuilder/threadclaw/internal/command"
	"github.com/nextlevelbuilder/threadclaw/internal/config"
	"github.com/nextlevelbuilder/threadclaw/internal/decision"
	"github.com/nextlevelbuilder/threadclaw/internal/gateway"
	"github.com/nextlevelbuilder/threadclaw/internal/invite"
	"github.com/nextlevelbuilder/threadclaw/internal/routing"
	"github.com/nextlevelbuilder/threadclaw/internal/store"
	"github.com/nextlevelbuilder/threadclaw/internal/store/pg"
	"github.com/nextlevelbuilder/threadclaw/internal/store/sqlite"
	"github.com/nextlevelbuilder/threadclaw/internal/thread"
	"github.com/nextlevelbuilder/threadclaw/internal/tracing"
	"github.com/nextlevelbuilder/threadclaw/internal/track"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the ThreadClaw gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	setupLogging()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Agents) == 0 {
		slog.Error("no agents configured", "config", cfgPath)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Trace export is optional; a broken collector endpoint must not keep
	// the gateway down.
	shutdownTracing, err := tracing.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("tracing setup failed, continuing without export", "error", err)
	} else {
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			if err := shutdownTracing(shutCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "mode", cfg.Database.Mode, "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	msgBus := bus.NewMessageBus()

	threads, err := thread.NewManager(ctx, stores.Threads)
	if err != nil {
		slog.Error("failed to load thread state", "error", err)
		os.Exit(1)
	}

	registry, err := invite.NewRegistry(ctx, stores.Invites, cfg.KnownAgent)
	if err != nil {
		slog.Error("failed to load invitations", "error", err)
		os.Exit(1)
	}

	tracker, err := track.NewTracker(ctx, stores.Cursors)
	if err != nil {
		slog.Error("failed to load dispatch cursors", "error", err)
		os.Exit(1)
	}
	// New messages must sort after everything committed before the restart.
	msgBus.SeedSeq(tracker.MaxSeq())

	var suggester routing.Suggester
	if cfg.Routing.URL != "" {
		s := routing.NewHTTPSuggester(cfg.Routing.URL)
		if cfg.Routing.TimeoutSeconds > 0 {
			s.Timeout = time.Duration(cfg.Routing.TimeoutSeconds) * time.Second
		}
		suggester = s
		slog.Info("routing suggester enabled", "url", cfg.Routing.URL)
	}

	engine := decision.NewEngine(threads, registry, cfg.RoomNatives, suggester)

	// Channel adapter: Discord when a token is present, in-memory otherwise.
	var channel channels.Channel
	var adapter channels.Adapter
	if cfg.Channels.Discord.Enabled {
		dc, err := discord.New(cfg.Channels.Discord, msgBus, cfg.Channels.Discord.AgentUsers)
		if err != nil {
			slog.Error("failed to create discord channel", "error", err)
			os.Exit(1)
		}
		channel, adapter = dc, dc
	} else {
		mc := channels.NewMemoryChannel(msgBus)
		channel, adapter = mc, mc
		slog.Warn("no chat channel configured, running with in-memory channel")
	}
	if err := channel.Start(ctx); err != nil {
		slog.Error("failed to start channel", "channel", channel.Name(), "error", err)
		os.Exit(1)
	}
	defer channel.Stop(context.Background())

	var executor agent.Executor
	if cfg.Executor.URL != "" {
		executor = agent.NewHTTPExecutor(cfg.Executor.URL, time.Duration(cfg.Executor.TimeoutSeconds)*time.Second)
		slog.Info("agent executor enabled", "url", cfg.Executor.URL)
	} else {
		executor = agent.EchoExecutor{}
		slog.Warn("no executor configured, using echo executor")
	}

	commands := command.NewHandler(registry, adapter, cfg.Channels.Discord.Enabled)

	deps := agent.Deps{
		Bus:        msgBus,
		Classifier: classify.New(cfg.AgentNames()),
		Engine:     engine,
		Tracker:    tracker,
		Registry:   registry,
		Threads:    threads,
		Adapter:    adapter,
		Executor:   executor,
		Commands:   commands,
		Events:     msgBus,
	}

	var wg sync.WaitGroup

	// One loop per configured agent, plus the command consumer.
	for _, a := range cfg.Agents {
		rpm := a.RateLimitRPM
		if rpm == 0 {
			rpm = cfg.Gateway.RateLimitRPM
		}
		agentDeps := deps
		agentDeps.RateLimitRPM = rpm
		loop := agent.NewLoop(a.Name, agentDeps)
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(ctx)
		}()
	}
	cmdLoop := agent.NewCommandLoop(deps)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cmdLoop.Run(ctx)
	}()

	// Expired-invitation sweeper.
	sweeper := invite.NewSweeper(registry, invite.SweeperConfig{
		Interval:   cfg.Cleanup.Interval(),
		CronExpr:   cfg.Cleanup.CronExpr,
		StaleAfter: time.Duration(cfg.Cleanup.StaleAfterHours) * time.Hour,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Outbound pump: anything published to the bus (rather than sent via
	// the adapter directly) goes out through the active channel.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			out, ok := msgBus.ConsumeOutbound(ctx)
			if !ok {
				return
			}
			if err := channel.Send(ctx, out); err != nil {
				slog.Error("outbound send failed", "room", out.RoomID, "error", err)
			}
		}
	}()

	// Hot-reload of the agent/room roster. The classifier is rebuilt so
	// new agents become mentionable without a restart.
	if err := config.Watch(ctx, cfg, cfgPath, func(updated *config.Config) {
		deps.Classifier.Reload(updated.AgentNames())
		slog.Info("roster reloaded", "agents", len(updated.AgentNames()))
	}); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	}

	// Ops gateway: websocket event feed and read-only HTTP endpoints.
	server := gateway.NewServer(cfg, msgBus, registry, tracker)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			slog.Error("gateway server stopped", "error", err)
			cancel()
		}
	}()

	slog.Info("threadclaw gateway running",
		"version", Version,
		"agents", len(cfg.Agents),
		"channel", channel.Name(),
		"mode", cfg.Database.Mode,
	)

	<-ctx.Done()
	slog.Info("shutting down")
	wg.Wait()
}

// openStores selects the storage backend from config. Standalone mode
// runs on an embedded SQLite file; managed mode talks to Postgres whose
// schema is owned by `threadclaw migrate`.
func openStores(ctx context.Context, cfg *config.Config) (*store.Stores, error) {
	if cfg.IsManagedMode() {
		slog.Info("using postgres store")
		return pg.NewStores(cfg.Database.PostgresDSN)
	}

	path := config.ExpandHome(cfg.Database.SQLitePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	slog.Info("using sqlite store", "path", path)
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return db.Stores(), nil
}
