package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/ipetrenko/tokensvc/internal/api"
	"github.com/ipetrenko/tokensvc/internal/controller"
	"github.com/ipetrenko/tokensvc/internal/migrations"
	"github.com/ipetrenko/tokensvc/internal/service"
	"github.com/ipetrenko/tokensvc/internal/storage/postgres"
	"github.com/ipetrenko/tokensvc/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(ctx, logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	apiKeyService := service.NewAPIKeyService(redisClient, logger)
	if err := apiKeyService.SyncAPIKey(ctx); err != nil {
		logger.Fatal(zap.Error(err))
	}

	storage := postgres.NewStorage(db)
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	tokenConfig := util.NewTokenConfig()
	tokenService := service.NewTokenService(tokenConfig)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())
	authService := service.NewAuthService(tokenConfig, tokenService, storage, webhookService, logger)

	controller := controller.NewController(logger, authService)

	apiServer := api.NewAPI(controller, apiKeyService, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
