package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/api"
	"github.com/pharmakart/orderflow/internal/catalog"
	"github.com/pharmakart/orderflow/internal/events"
	"github.com/pharmakart/orderflow/internal/metrics"
	"github.com/pharmakart/orderflow/internal/orders"
	"github.com/pharmakart/orderflow/internal/reviews"
	"github.com/pharmakart/orderflow/internal/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Database configuration
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "orderflow")
	dbPassword := getEnv("DB_PASSWORD", "orderflow")
	dbName := getEnv("DB_NAME", "orderflow")

	// Collaborators
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	catalogURL := getEnv("CATALOG_URL", "http://localhost:8082")

	// Service configuration
	port := getEnv("ORDER_SERVICE_PORT", "8081")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	ctx := context.Background()

	orderStore := orders.NewPostgresStore(db, logger)
	if err := orderStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to create order tables")
	}
	reviewStore := reviews.NewPostgresStore(db, logger)
	if err := reviewStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to create review tables")
	}

	// Kafka is optional: without brokers the service runs, it just does
	// not publish domain events.
	var publisher events.Publisher = events.Nop{}
	if kafkaBrokers != "" {
		producer, err := events.NewKafkaProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events disabled")
	}

	catalogClient := catalog.NewClient(catalogURL, logger)

	orderService := orders.NewService(orderStore, catalogClient, publisher, logger)
	reviewService := reviews.NewService(reviewStore, orderStore, publisher, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	serverMetrics := metrics.NewServerMetrics("order_service")

	handler := api.NewHandler(orderService, reviewService, hub, db.Ping, logger)
	router := api.NewRouter(handler, hub, serverMetrics, logger)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
