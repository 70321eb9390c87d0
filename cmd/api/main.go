package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"conceptforge/internal/adapter/memrepo"
	"conceptforge/internal/adapter/repo"
	"conceptforge/internal/domain"
	"conceptforge/internal/http/handlers"
	"conceptforge/internal/http/httpapi"
	"conceptforge/internal/infra"
	"conceptforge/internal/pipeline"
	"conceptforge/internal/providers/image"
	"conceptforge/internal/providers/mesh"
	"conceptforge/internal/providers/meshy"
	"conceptforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry: Postgres when DATABASE_URL is set, in-memory otherwise.
	var registry domain.Registry
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		registry = repo.NewRegistry(pool)
		logger.Info().Msg("using postgres registry")
	} else {
		registry = memrepo.New()
		logger.Warn().Msg("DATABASE_URL not set, using in-memory registry")
	}

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	imageClient := image.NewClient(image.Options{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	})
	meshClient := mesh.NewClient(mesh.Options{BaseURL: cfg.ShapEBaseURL})
	meshyClient := meshy.NewClient(meshy.Options{
		BaseURL: cfg.MeshyBaseURL,
		APIKey:  cfg.MeshyAPIKey,
	})

	coordinator := pipeline.NewCoordinator(ctx, registry, imageClient, meshClient, meshyClient, store, pipeline.Options{
		StorageBaseURL: cfg.StorageBaseURL,
		PollInterval:   cfg.PollInterval,
		PollTimeout:    cfg.PollTimeout,
		Logger:         logger,
	})

	app := handlers.NewApp(coordinator, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Stop poll loops after the HTTP surface is drained so in-flight poll
	// requests see consistent job state.
	cancel()
	coordinator.Poller().StopAll()
	logger.Info().Msg("server stopped")
}
