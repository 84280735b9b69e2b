package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"crashd/api"
	"crashd/config"
	"crashd/database"
	"crashd/engine"
	"crashd/events"
	"crashd/infrastructure"
	"crashd/repository"
	"crashd/service"
	"crashd/ws"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	log.WithField("environment", cfg.Environment).Info("Starting crashd...")

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	userService := service.NewUserService(uowFactory, cfg.StartingBalance)
	sessionService := service.NewSessionService(uowFactory, cfg.BalanceCap)
	roundService := service.NewRoundService(uowFactory)
	accountService := service.NewAccountService(uowFactory, cfg.BalanceCap)
	rewardService := service.NewRewardService(uowFactory, cfg.BalanceCap)
	statsService := service.NewStatsService(uowFactory)
	configService := service.NewConfigService(uowFactory)
	log.Info("Services initialized")

	gameCfg, err := configService.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load game config: %w", err)
	}

	hub := ws.NewHub()
	broadcaster := ws.NewBroadcaster(hub)
	broadcaster.SubscribeEvents(eventBus)

	gameEngine, err := engine.New(gameCfg, sessionService, roundService, broadcaster)
	if err != nil {
		return fmt.Errorf("failed to create game engine: %w", err)
	}
	if err := gameEngine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start game engine: %w", err)
	}
	defer gameEngine.Stop()

	// NATS export is optional: without it the game runs standalone
	var natsClient *infrastructure.NATSClient
	if cfg.NatsURL != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NatsURL)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		if err := natsClient.EnsureGameEventStream(); err != nil {
			return fmt.Errorf("failed to ensure NATS stream: %w", err)
		}
		infrastructure.NewNATSEventRelay(natsClient).Subscribe(eventBus)
		log.Info("NATS event relay attached")
	}

	apiServer := api.NewServer(api.Deps{
		Engine:  gameEngine,
		Users:   userService,
		Account: accountService,
		Rewards: rewardService,
		Stats:   statsService,
		Config:  configService,
	})
	mux := apiServer.Routes()
	mux.Handle("/ws", ws.NewServer(hub, gameEngine))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Shutdown completed")
	return nil
}
