package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-time/internal/admin"
	"github.com/discord-voice-time/internal/config"
	"github.com/discord-voice-time/internal/logging"
	"github.com/discord-voice-time/internal/metrics"
	"github.com/discord-voice-time/internal/names"
	"github.com/discord-voice-time/internal/reconciler"
	"github.com/discord-voice-time/internal/storage/redis"
	"github.com/discord-voice-time/internal/tracker"
)

func main() {
	// Initialize centralized logging
	loggingSugar := logging.Init()
	if loggingSugar == nil {
		// fallback to a basic zap logger if initialization failed
		l, _ := zap.NewProduction()
		defer l.Sync()
		loggingSugar = l.Sugar()
	}
	sugar := loggingSugar

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config.Load: %v", err)
	}

	store, err := redis.Open(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		sugar.Fatalf("redis.Open: %v", err)
	}
	sugar.Infow("redis connected", "addr", cfg.RedisAddr)

	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		sugar.Fatalf("discordgo.New: %v", err)
	}

	// Guilds + GuildVoiceStates deliver the VoiceStateUpdate stream and keep
	// the state cache's voice states populated; GuildMembers lets the
	// reconciler fetch members and their roles. GuildMembers is privileged
	// and must be enabled in the Developer Portal.
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	sugar.Infow("using gateway intents", "intents", dg.Identify.Intents)

	m := metrics.New()

	tr := tracker.New(store, cfg.AFKChannelID, m)

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		tr.HandleVoiceState(s, vs)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The readiness signal gates the reconciler, which needs a live session.
	// Gateway reconnects re-deliver Ready, so this runs exactly once.
	var readyOnce sync.Once
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		readyOnce.Do(func() {
			sugar.Infow("gateway ready", "user.id", r.User.ID)

			resolver := names.NewDiscordResolver(s)
			tr.SetResolver(resolver)

			if cfg.ReconcilerConfigured() {
				rec := reconciler.New(reconciler.Config{
					GuildID:         cfg.GuildID,
					RoleID:          cfg.RoleID,
					RequiredSeconds: cfg.RequiredSeconds,
					Interval:        cfg.CheckInterval,
				}, store, reconciler.NewDiscordMembership(s), m)
				rec.SetResolver(resolver)
				rec.Start(ctx)
			} else {
				sugar.Warnw("GUILD_ID or ROLE_ID not set; role reconciler will not start")
			}
		})
	})

	// Voice states arrive in the GuildCreate payload, not Ready, so startup
	// recovery waits for the managed guild to be delivered. Run once: a
	// resumed session re-delivers GuildCreate and recovery must not reopen
	// sessions for users who left while we were tracking them. Without
	// GUILD_ID there is no guild to key recovery on; tracking still runs for
	// every guild, but users already in voice at startup are not credited
	// until their next transition.
	if cfg.GuildID == "" {
		sugar.Warnw("GUILD_ID not set; startup voice-state recovery disabled")
	}
	var recoverOnce sync.Once
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if cfg.GuildID == "" || g.ID != cfg.GuildID {
			return
		}
		recoverOnce.Do(func() {
			tr.RecoverFromState(s, cfg.GuildID)
		})
	})

	sugar.Infow("opening discord session")
	if err := dg.Open(); err != nil {
		sugar.Fatalf("discord session open failed: %v", err)
	}
	sugar.Infow("discord session opened")

	srv := admin.NewServer(cfg.HTTPAddr, store, store, m, cfg.StressToken)
	srv.Start()

	// Wait for termination signal (Ctrl+C, Docker stop) and shut down gracefully.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	sugar.Infow("shutdown signal received, closing resources")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("admin server shutdown error: %v", err)
	}

	if err := dg.Close(); err != nil {
		sugar.Warnf("discord session close error: %v", err)
	}
	if err := store.Close(); err != nil {
		sugar.Warnf("redis close error: %v", err)
	}

	// ensure any logging buffers are flushed
	if l := zap.L(); l != nil {
		_ = l.Sync()
	}
	sugar.Info("shutdown complete")
}
