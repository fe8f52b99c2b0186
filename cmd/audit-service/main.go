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

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/symptomscan/pkg/common/config"
	"github.com/synaptica-ai/symptomscan/pkg/common/database"
	"github.com/synaptica-ai/symptomscan/pkg/common/kafka"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
	"github.com/synaptica-ai/symptomscan/pkg/gateway/middleware"
	"github.com/synaptica-ai/symptomscan/pkg/serving"
)

func main() {
	logger.Init()
	cfg := config.Load()

	if cfg.KafkaPredictionTopic == "" || len(cfg.KafkaBrokers) == 0 {
		logger.Log.Fatal("KAFKA_BROKERS and KAFKA_PREDICTION_TOPIC are required")
	}

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres()

	repo := serving.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate prediction logs")
	}
	audit := serving.NewAuditHandler(repo)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaPredictionTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, audit.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Fatal("consumer error")
		}
	}()
	go runRetention(ctx, repo, cfg.AuditRetention, cfg.AuditCleanupInterval)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	audit.Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AuditServerPort),
		Handler:      middleware.Logging(middleware.Recovery(router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.AuditServerPort,
			"topic": cfg.KafkaPredictionTopic,
		}).Info("Audit Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Audit Service...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Audit Service stopped")
}

// runRetention deletes prediction logs older than retention every interval.
func runRetention(ctx context.Context, repo *serving.Repository, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.CleanupExpired(ctx, retention)
			if err != nil {
				logger.Log.WithError(err).Error("failed to clean up prediction logs")
				continue
			}
			if removed > 0 {
				logger.Log.WithField("removed", removed).Info("Expired prediction logs removed")
			}
		}
	}
}
