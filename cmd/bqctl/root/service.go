package root

import (
	"context"

	"baseQuestAPI/internal/bootstrap"
	"baseQuestAPI/internal/config"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/services"
)

// openService is replaced in tests.
var openService = func(ctx context.Context) (*services.GameService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if _, err := logger.Init(cfg.LogLevel, true); err != nil {
		return nil, nil, err
	}

	clock := epoch.SystemClock{}
	store, err := bootstrap.OpenStore(ctx, cfg, clock.Now())
	if err != nil {
		return nil, nil, err
	}
	game, err := bootstrap.NewGame(ctx, cfg, store, clock)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	game.Service.SetAutoSettle(false)

	cleanup := func() {
		game.Close()
		store.Close()
		logger.Sync()
	}
	return game.Service, cleanup, nil
}
