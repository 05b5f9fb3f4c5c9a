package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"slots-panel/cogs"
	"slots-panel/config"
	"slots-panel/gateway"
	"slots-panel/store"
	"slots-panel/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var botStatus atomic.Value

func setStatus(s string) { botStatus.Store(s) }

func status() string {
	if s, ok := botStatus.Load().(string); ok {
		return s
	}
	return "starting"
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	utils.InitMetrics()
	setStatus("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Health server for the hosting platform
	health := startHealthServer(cfg.Port, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		health.Shutdown(shutdownCtx)
	}()

	panels, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("panel store unavailable, using memory", zap.Error(err))
		panels = store.NewMemoryStore()
	}
	defer panels.Close()

	client := gateway.NewClient(cfg.GatewayURL,
		gateway.WithTimeout(cfg.Tuning.RequestTimeout),
		gateway.WithLogger(logger),
	)

	var live *gateway.LiveStatus
	if cfg.EventsEnabled {
		live = &gateway.LiveStatus{}
	}

	slotsCog := cogs.NewSlotsCog(cogs.SlotsDeps{
		Gateway: client,
		Store:   panels,
		Tuning:  cfg.Tuning,
		Live:    live,
		Logger:  logger,
	})
	defer slotsCog.Close()

	if live != nil {
		go runEventFeed(ctx, client, live, slotsCog, logger)
	}

	if cfg.BotToken == "" {
		logger.Warn("BOT_TOKEN not set - Discord bot will not connect")
		setStatus("no_token")
		<-ctx.Done()
		return
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		logger.Error("failed to create Discord session", zap.Error(err))
		setStatus("error")
		<-ctx.Done()
		return
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	session.AddHandler(onReady(logger))
	session.AddHandler(onInteractionCreate(slotsCog))
	session.AddHandler(slotsCog.HandleMessage)

	if err := session.Open(); err != nil {
		logger.Error("failed to open Discord connection", zap.Error(err))
		setStatus("connection_failed")
		<-ctx.Done()
		return
	}
	defer session.Close()

	logger.Info("bot is now running, press CTRL+C to exit", zap.String("gateway", client.BaseURL()))
	setStatus("running")

	<-ctx.Done()
	logger.Info("gracefully shutting down")
	setStatus("shutting_down")
}

func onReady(logger *zap.Logger) func(*discordgo.Session, *discordgo.Ready) {
	return func(s *discordgo.Session, event *discordgo.Ready) {
		logger.Info("discord bot logged in", zap.String("user", event.User.Username), zap.String("id", event.User.ID))
		setStatus("online")

		if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
			Activities: []*discordgo.Activity{
				{
					Name: "/slots",
					Type: discordgo.ActivityTypeGame,
				},
			},
			Status: "online",
		}); err != nil {
			logger.Warn("failed to update status", zap.Error(err))
		}

		if err := registerSlashCommands(s); err != nil {
			logger.Error("failed to register slash commands", zap.Error(err))
		}
	}
}

func registerSlashCommands(s *discordgo.Session) error {
	commands := []*discordgo.ApplicationCommand{
		cogs.RegisterSlotsCommand(),
	}

	for _, command := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", command); err != nil {
			return fmt.Errorf("failed to create command %s: %w", command.Name, err)
		}
	}

	utils.BotLogf("MAIN", "registered %d slash commands", len(commands))
	return nil
}

func onInteractionCreate(slotsCog *cogs.SlotsCog) func(*discordgo.Session, *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			if i.ApplicationCommandData().Name == "slots" {
				slotsCog.HandleCommand(s, i)
			}
		case discordgo.InteractionMessageComponent:
			if cogs.IsSlotsComponent(i.MessageComponentData().CustomID) {
				slotsCog.HandleComponent(s, i)
			}
		case discordgo.InteractionModalSubmit:
			if cogs.IsSlotsComponent(i.ModalSubmitData().CustomID) {
				slotsCog.HandleModal(s, i)
			}
		}
	}
}

// runEventFeed keeps the live status current; panels are redrawn when the
// connection flips so their footers stay honest.
func runEventFeed(ctx context.Context, client *gateway.Client, live *gateway.LiveStatus, slotsCog *cogs.SlotsCog, logger *zap.Logger) {
	feed := client.Events()
	feed.OnConnect = func(ok bool) {
		if live.Snapshot().Connected == ok {
			return
		}
		live.SetConnected(ok)
		slotsCog.RefreshAll()
	}

	err := feed.Run(ctx, func(e gateway.Event) {
		if err := live.Observe(e); err != nil {
			logger.Warn("bad feed event", zap.String("event", e.Name), zap.Error(err))
			return
		}
		switch e.Name {
		case gateway.EventDebugText, gateway.EventSpinResult:
			logger.Debug("feed event", zap.String("event", e.Name), zap.String("id", e.ID), zap.ByteString("data", e.Data))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("event feed stopped", zap.Error(err))
	}
}

func startHealthServer(port string, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Discord Bot Status: %s", status())
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"slots-panel","bot_status":"%s"}`, status())
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("health server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", zap.Error(err))
		}
	}()
	return srv
}
