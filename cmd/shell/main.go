// Storefront application shell: runs the root layout headless against the
// API and serves a browser preview of it.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/storefront/internal/apiclient"
	"github.com/ashureev/storefront/internal/cart"
	"github.com/ashureev/storefront/internal/config"
	"github.com/ashureev/storefront/internal/layout"
	"github.com/ashureev/storefront/internal/navigation"
	"github.com/ashureev/storefront/internal/preview"
	"github.com/ashureev/storefront/internal/session"
	"github.com/ashureev/storefront/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.LoadShell()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting shell", "port", cfg.Port, "api", cfg.APIBaseURL, "initial_route", cfg.InitialRoute, "dev", cfg.IsDevelopment())

	// Initialize collaborators.
	client := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(logger),
	)
	sessions := session.NewProvider(client, session.NewFileTokenStore(cfg.TokenPath), logger)
	client.SetTokenSource(sessions)
	carts := cart.NewProvider(client, logger)
	router := navigation.NewRouter(cfg.InitialRoute, logger)

	root := layout.New(layout.Deps{
		Session:      sessions,
		Cart:         carts,
		Router:       router,
		Stack:        navigation.DefaultStack(),
		Interceptors: client.Interceptors(),
		Background:   cfg.ThemeBackground,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mounted := root.Mount(ctx)

	hub := preview.NewHub(logger)
	unsubscribe := mounted.Subscribe(hub.Broadcast)

	actions := preview.NewActions(router, sessions, carts, logger)
	wsHandler := preview.NewWebSocketHandler(hub, mounted, actions, cfg.AllowedOrigin, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	r.Get("/ws/shell", wsHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	// WebSocket streams stay open, so no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Shell preview listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	unsubscribe()
	hub.CloseAll()
	mounted.Unmount()
	sessions.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Shell stopped successfully")
}
