package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-user-service/internal/config"
	"go-user-service/internal/event"
	"go-user-service/internal/handler"
	"go-user-service/internal/middleware"
	"go-user-service/internal/password"
	"go-user-service/internal/router"
	"go-user-service/internal/service"
	"go-user-service/internal/token"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func(context.Context)
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		store.close(ctx)
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	bus := event.NewBus()
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	go event.LogEvents(eventsCtx, bus, slog.Default().With("component", "events"))

	authService := service.NewAuthService(store.users, password.NewHasher(cfg.BcryptCost), codec, bus)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService),
		System: handler.NewSystemHandler(store.pinger),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(context.Context){
			func(context.Context) { stopEvents() },
			store.close,
		},
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.cleanup(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	slog.Info("application is shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup(ctx)
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup(ctx context.Context) {
	for _, cleanup := range a.cleanupFuncs {
		cleanup(ctx)
	}
}
