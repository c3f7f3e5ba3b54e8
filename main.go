package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"baseQuestAPI/handlers"
	"baseQuestAPI/internal/bootstrap"
	"baseQuestAPI/internal/config"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/notification"
	"baseQuestAPI/internal/workers"
	"baseQuestAPI/middleware"
	"baseQuestAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zl, err := logger.Init(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		log.Fatal("Failed to init logger: ", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := epoch.SystemClock{}
	store, err := bootstrap.OpenStore(ctx, cfg, clock.Now())
	if err != nil {
		zl.Fatal("Failed to open ledger", zap.Error(err))
	}
	defer func() {
		zl.Info("Closing ledger...")
		store.Close()
	}()

	game, err := bootstrap.NewGame(ctx, cfg, store, clock)
	if err != nil {
		zl.Fatal("Failed to wire game", zap.Error(err))
	}
	defer game.Close()
	gameService := game.Service

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	middleware.InitPrometheus(reg)

	metricsSink := services.NewMetricsSink()
	if err := metricsSink.Register(reg); err != nil {
		zl.Fatal("Failed to register game metrics", zap.Error(err))
	}

	hub := services.NewEventHub()
	go hub.Run(ctx)

	dispatcher := services.NewEventDispatcher(cfg.EventWorkers, 1000)
	dispatcher.AddInlineSink(hub)
	dispatcher.AddInlineSink(metricsSink)

	if fcmService, err := notification.NewFCMService(ctx, cfg.FCMServiceAccount, "./serviceAccountKey.json", cfg.FCMTopic); err != nil {
		zl.Warn("Could not initialize FCM, push notifications disabled", zap.Error(err))
	} else {
		dispatcher.AddSink(services.NewPushSink(fcmService))
		zl.Info("FCM push sink initialized", zap.String("topic", cfg.FCMTopic))
	}

	dispatcher.Start()
	defer dispatcher.Stop()
	gameService.SetPublisher(dispatcher)

	weekWorker := workers.StartWeekWorker(ctx, gameService, time.Minute)

	auth := middleware.NewWalletAuth(gameService.Roles(), cfg.AuthMaxAge)
	limiter := middleware.NewRateLimiter(20, 40)
	go limiter.Cleanup(ctx)

	gameHandler := handlers.NewGameHandler(gameService)
	taskHandler := handlers.NewTaskHandler(gameService)
	playerHandler := handlers.NewPlayerHandler(gameService)
	eventsHandler := handlers.NewEventsHandler(hub, cfg.AllowedOrigins)

	r := mux.NewRouter()

	r.HandleFunc("/api/v1/events/ws", eventsHandler.StreamEvents)

	standardRouter := r.PathPrefix("/").Subrouter()

	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := gameService.CurrentWeek(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "ledger unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "base-quest-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/game", gameHandler.GetGame).Methods("GET")
	api.HandleFunc("/events", gameHandler.GetEvents).Methods("GET")
	api.HandleFunc("/weeks/{week}/snapshot", gameHandler.GetWeekSnapshot).Methods("GET")
	api.HandleFunc("/weeks/{week}/tasks", taskHandler.GetWeekTasks).Methods("GET")
	api.HandleFunc("/tasks/current", taskHandler.GetCurrentTasks).Methods("GET")
	api.HandleFunc("/players/{address}", playerHandler.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{address}/status", playerHandler.GetPlayerStatus).Methods("GET")
	api.HandleFunc("/players/{address}/day-reset", playerHandler.GetDayReset).Methods("GET")

	// Optional wallet: personalises the response when signed.
	optional := api.PathPrefix("").Subrouter()
	optional.Use(auth.Optional)

	optional.HandleFunc("/leaderboard", gameHandler.GetLeaderboard).Methods("GET")
	optional.HandleFunc("/tasks/daily", taskHandler.GetDailyTasks).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE WALLET SIGNATURE)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(auth.Required)

	protected.HandleFunc("/week/join", gameHandler.JoinWeek).Methods("POST")
	protected.HandleFunc("/tasks/{taskID}/complete", taskHandler.CompleteTask).Methods("POST")
	protected.HandleFunc("/attest/{player}/tasks/{taskID}", taskHandler.AttestTask).Methods("POST")
	protected.HandleFunc("/tasks", taskHandler.AddTask).Methods("POST")
	protected.HandleFunc("/tasks/{taskID}/active", taskHandler.SetTaskActive).Methods("PUT")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{
			"Content-Type",
			middleware.HeaderAddress,
			middleware.HeaderTimestamp,
			middleware.HeaderSignature,
			"X-Pprof-Secret",
		}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zl.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("Error starting server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}
	<-weekWorker

	zl.Info("Server shutdown complete")
}
