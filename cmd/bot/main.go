// Command bot runs the community onboarding bot: the chat intake loop, the
// command dispatcher, the timeout sweeper, and the read-only ops HTTP API.
//
// Inbound messages arrive as newline-delimited JSON on stdin (the platform
// daemon's json-rpc receive pipe); outbound sends go through the configured
// Transport. Without a real platform client wired in, sends are logged.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/communitykit/onboardbot/internal/admin"
	"github.com/communitykit/onboardbot/internal/bot"
	"github.com/communitykit/onboardbot/internal/config"
	"github.com/communitykit/onboardbot/internal/groups"
	"github.com/communitykit/onboardbot/internal/httpapi"
	"github.com/communitykit/onboardbot/internal/observability"
	"github.com/communitykit/onboardbot/internal/onboarding"
	"github.com/communitykit/onboardbot/internal/provision"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/store"
	"github.com/communitykit/onboardbot/internal/sweeper"
	"github.com/communitykit/onboardbot/internal/sysutil"
	"github.com/communitykit/onboardbot/internal/transport"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "onboardbot").Str("version", version).Logger()
	logger.Info().Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	st, err := store.Open(db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("session store failed")
	}

	// Room identity. The entry room is registered under both its configured
	// encoding and the normalized one; alternates learned from the room
	// listing would be added here as well.
	matcher := groups.NewMatcher(logger)
	matcher.Register(onboarding.RoomEntry, cfg.EntryRoomID, groups.Normalize(cfg.EntryRoomID))
	if cfg.TestRoomID != "" {
		matcher.Register(onboarding.RoomTest, cfg.TestRoomID, groups.Normalize(cfg.TestRoomID))
	}

	// Outbound path. LogTransport stands in until a platform client is wired.
	tp := &transport.LogTransport{Log: logger}
	sender := transport.NewSender(tp, cfg.SendRPS, cfg.SendBurst, logger)

	// Command surface.
	registry := bot.NewRegistry(cfg.AdminIDs, logger)
	onboardingPlugin := onboarding.New(st, db, sender, matcher,
		onboarding.NewRecommender(cfg.GroupKeywordTable()),
		onboarding.Services{
			Accounts:  &provision.LogProvisioner{Log: logger},
			Mailer:    &provision.LogMailer{Log: logger},
			Directory: &provision.LogDirectory{Log: logger},
			Forum:     &provision.LogForumPoster{Log: logger},
		},
		onboarding.Options{
			ProvisionTimeout: cfg.ProvisionTimeout,
			ForumPostEnabled: cfg.ForumPostEnabled,
			SSOBaseURL:       cfg.SSOBaseURL,
			EntryRoomID:      cfg.EntryRoomID,
		},
		logger,
	)
	if err := registry.Register(onboardingPlugin); err != nil {
		logger.Fatal().Err(err).Msg("onboarding plugin registration failed")
	}
	if err := registry.Register(admin.New(db, &admin.LogVerifier{Log: logger}, logger)); err != nil {
		logger.Fatal().Err(err).Msg("admin plugin registration failed")
	}

	// Timeout sweeper.
	sw := sweeper.New(st, db, sender, cfg.SweepInterval, cfg.EntryRoomID, logger)
	go sw.Run(ctx)

	// Intake loop: stdin JSON lines → dispatcher → reply.
	listener := transport.NewListener(os.Stdin, logger)
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("intake stream failed")
		}
	}()
	go func() {
		for env := range listener.Envelopes() {
			reply := registry.Dispatch(ctx, env)
			if err := sender.Reply(ctx, env, reply); err != nil {
				logger.Error().Err(err).Str("source", env.Source).Msg("reply failed")
			}
		}
	}()

	// Ops HTTP API.
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, st, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("ops api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops api failed")
		}
	}()

	// Graceful shutdown.
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("ops api shutdown error")
	}

	st.Close()
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("otel shutdown error")
	}
	logger.Info().Msg("stopped")
}
