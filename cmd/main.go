package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/marketflow-backend/internal/activity"
	"github.com/yungbote/marketflow-backend/internal/ai"
	"github.com/yungbote/marketflow-backend/internal/db"
	"github.com/yungbote/marketflow-backend/internal/gen"
	"github.com/yungbote/marketflow-backend/internal/logger"
	"github.com/yungbote/marketflow-backend/internal/middleware"
	"github.com/yungbote/marketflow-backend/internal/module"
	"github.com/yungbote/marketflow-backend/internal/modules/integrations"
	"github.com/yungbote/marketflow-backend/internal/modules/scheduler"
	"github.com/yungbote/marketflow-backend/internal/modules/seo"
	"github.com/yungbote/marketflow-backend/internal/modules/team"
	"github.com/yungbote/marketflow-backend/internal/modules/webhooks"
	"github.com/yungbote/marketflow-backend/internal/server"
	"github.com/yungbote/marketflow-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	corsOrigins := server.SplitOrigins(utils.GetEnv("CORS_ORIGINS", "", log))
	aiConfig := ai.Config{
		APIKey:         utils.GetEnv("OPENAI_API_KEY", "", log),
		BaseURL:        utils.GetEnv("OPENAI_BASE_URL", "", log),
		Model:          utils.GetEnv("OPENAI_MODEL", "", log),
		ImageModel:     utils.GetEnv("OPENAI_IMAGE_MODEL", "", log),
		TimeoutSeconds: utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 180, log),
		MaxRetries:     utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 2, log),
	}

	// SQLite
	sqliteService, err := db.NewSQLiteService(log)
	if err != nil {
		log.Error("SQLite init failed", "error", err)
		os.Exit(1)
	}
	theDB := sqliteService.DB()

	// Activity
	if err := activity.InitSchema(theDB); err != nil {
		log.Error("Activity schema migration failed", "error", err)
		os.Exit(1)
	}
	recorder := activity.NewRecorder(theDB, log)

	// Services
	log.Info("Setting up services from main...")
	aiClient, err := ai.NewClient(aiConfig, log)
	if err != nil {
		log.Error("Could not init AI client", "error", err)
		os.Exit(1)
	}
	gateway := gen.NewGateway(aiClient, log)

	// Modules
	log.Info("Registering modules from main...")
	registry := module.NewRegistry(log)
	for _, m := range []module.Module{
		integrations.New(theDB, log, recorder, gateway),
		scheduler.New(theDB, log, recorder, gateway),
		seo.New(theDB, log, recorder, gateway),
		team.New(theDB, log, recorder, gateway),
		webhooks.New(theDB, log, recorder, gateway),
	} {
		if err := registry.Register(m); err != nil {
			log.Error("Module registration failed", "error", err)
			os.Exit(1)
		}
	}
	if err := registry.Bootstrap(context.Background()); err != nil {
		log.Error("Module bootstrap failed", "error", err)
		os.Exit(1)
	}

	// Middleware
	workspaceMiddleware := middleware.NewWorkspaceMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:                 log,
		Registry:            registry,
		WorkspaceMiddleware: workspaceMiddleware,
		Activity:            recorder,
		CORSOrigins:         corsOrigins,
	})

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
