package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/symptomscan/pkg/common/config"
	"github.com/synaptica-ai/symptomscan/pkg/common/database"
	"github.com/synaptica-ai/symptomscan/pkg/common/kafka"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/gateway/middleware"
	"github.com/synaptica-ai/symptomscan/pkg/observability/metrics"
	"github.com/synaptica-ai/symptomscan/pkg/serving"
	"github.com/synaptica-ai/symptomscan/pkg/serving/inference"
	"github.com/synaptica-ai/symptomscan/pkg/serving/predictor"
	"github.com/synaptica-ai/symptomscan/pkg/serving/ranking"
	"github.com/synaptica-ai/symptomscan/pkg/storage"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	registry, err := predictor.NewRegistry(predictor.Source{
		Dir:          cfg.ModelDir,
		ModelFile:    cfg.ModelFile,
		CatalogFile:  cfg.CatalogFile,
		PartialMatch: cfg.VocabularyPartialMatch,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("model_dir", cfg.ModelDir).Fatal("Failed to load model artifacts")
	}
	defer registry.Close()

	var cache inference.Cache
	if cfg.ResultCacheEnabled {
		client, err := database.OpenRedis(context.Background(), cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Result cache disabled")
		} else {
			defer client.Close()
			cache = storage.NewResultCache(client, cfg.ResultCachePrefix, cfg.ResultCacheTTL)
		}
	}

	var events serving.EventPublisher
	if cfg.KafkaPredictionTopic != "" && len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaPredictionTopic, "inference-service", true)
		defer producer.Close()
		events = producer
	}

	service := inference.NewService(registry, inference.Options{
		Ranking: ranking.Options{
			TopK:          cfg.TopK,
			MinConfidence: cfg.MinConfidence,
		},
		MaxSymptoms: cfg.MaxSymptoms,
	}, cache)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.ModelWatchInterval > 0 {
		go registry.Watch(ctx, cfg.ModelWatchInterval)
	}

	router := mux.NewRouter()
	serving.NewHandler(service, events).Register(router)

	var handler http.Handler = router
	handler = middleware.BodyLimit(cfg.MaxRequestBody)(handler)
	handler = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigin)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":      cfg.ServerHost,
			"port":      cfg.ServerPort,
			"cache":     cfg.ResultCacheEnabled,
			"events":    events != nil,
			"partial":   cfg.VocabularyPartialMatch,
			"watch_for": cfg.ModelWatchInterval.String(),
		}).Info("Inference Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Inference Service...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Inference Service stopped")
}
