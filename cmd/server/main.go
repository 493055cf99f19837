// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilla "github.com/gorilla/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno-service/internal/auth"
	"github.com/cardtable/uno-service/internal/cache"
	"github.com/cardtable/uno-service/internal/config"
	"github.com/cardtable/uno-service/internal/database"
	"github.com/cardtable/uno-service/internal/handlers"
	"github.com/cardtable/uno-service/internal/middleware"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(cfg.JWTSecret, cfg.TokenExpire); err != nil {
		logger.Fatalf("auth init: %v", err)
	}

	ctx := context.Background()
	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			logger.Fatalf("database schema: %v", err)
		}
		logger.Info("connected to postgres, channel allow-list active")
	} else {
		logger.Info("no DATABASE_URL set, every channel is allowed")
	}

	if cfg.RedisAddr != "" {
		if err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.EventQueueName); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer cache.Close()
		logger.Infof("connected to redis, archiving events to %q", cfg.EventQueueName)
	} else {
		logger.Info("no REDIS_ADDR set, events are not archived")
	}

	srv := handlers.NewServer(logger, cfg.SessionIdleTTL)

	logged := middleware.LogMiddleware(logger)
	authed := func(h http.HandlerFunc) http.Handler {
		return logged(middleware.RequireAuth(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return logged(middleware.RequireAdmin(cfg.AdminToken)(h))
	}

	mux := http.NewServeMux()

	mux.Handle("/auth/token", logged(handlers.TokenHandler(srv)))

	// lobby-phase commands
	mux.Handle("/session/create", authed(handlers.CreateSessionHandler(srv)))
	mux.Handle("/session/join", authed(handlers.JoinSessionHandler(srv)))
	mux.Handle("/session/leave", authed(handlers.LeaveSessionHandler(srv)))
	mux.Handle("/session/cancel", authed(handlers.CancelSessionHandler(srv)))
	mux.Handle("/session/start", authed(handlers.StartSessionHandler(srv)))
	mux.Handle("/session/state", authed(handlers.SessionStateHandler(srv)))

	// in-game commands
	mux.Handle("/game/hand", authed(handlers.HandHandler(srv)))
	mux.Handle("/game/play", authed(handlers.PlayHandler(srv)))
	mux.Handle("/game/draw", authed(handlers.DrawHandler(srv)))
	mux.Handle("/game/color", authed(handlers.ColorHandler(srv)))
	mux.Handle("/game/color/cancel", authed(handlers.CancelColorHandler(srv)))
	mux.Handle("/game/uno", authed(handlers.UnoHandler(srv)))
	mux.Handle("/game/quit", authed(handlers.QuitHandler(srv)))

	// live feed
	mux.Handle("/feed/ws/", logged(handlers.FeedWSHandler(srv)))

	// administrative surface
	mux.Handle("/admin/reset", admin(handlers.AdminResetHandler(srv)))
	mux.Handle("/admin/sessions", admin(handlers.AdminSessionsHandler(srv)))
	mux.Handle("/admin/endall", admin(handlers.AdminEndAllHandler(srv)))
	mux.Handle("/admin/channels", admin(handlers.AdminListChannelsHandler(srv)))
	mux.Handle("/admin/channels/allow", admin(handlers.AdminAllowChannelHandler(srv)))
	mux.Handle("/admin/channels/revoke", admin(handlers.AdminRevokeChannelHandler(srv)))

	root := gorilla.RecoveryHandler(gorilla.RecoveryLogger(logger))(
		gorilla.CORS(
			gorilla.AllowedOrigins(cfg.AllowedOrigins),
			gorilla.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
			gorilla.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Admin-Token"}),
			gorilla.AllowCredentials(),
		)(mux),
	)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: root,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down, ending all games")
	for _, res := range srv.Registry.CloseAll("the service is restarting, the game in this channel was ended") {
		srv.Hub.Broadcast(res)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
