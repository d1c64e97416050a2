/**
 * @description
 * This is the main entry point for the KYC console service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, the dLocal API client, the RabbitMQ producer, the
 * ledger repository, the core application service, and the HTTP server. It
 * wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/dlocal: Client for the dLocal APIs.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remitdesk/kyc-console/internal/api"
	"github.com/remitdesk/kyc-console/internal/app"
	"github.com/remitdesk/kyc-console/internal/config"
	"github.com/remitdesk/kyc-console/internal/store"
	"github.com/remitdesk/kyc-console/pkg/dlocal"
	"github.com/remitdesk/kyc-console/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting kyc-console\" port=%s", cfg.ServerPort)

	// Pick the ledger backend. Without DATABASE_URL the service runs on the
	// in-memory ledger, which is enough for sandbox console sessions.
	var repository store.Repository
	if cfg.DatabaseURL == "" {
		log.Println("level=warn component=bootstrap msg=\"no database url configured; using in-memory ledger\"")
		repository = store.NewMemoryRepository()
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}

		poolConfig.MaxConns = 20
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		// Disable prepared statement caching to prevent conflicts
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()
		log.Println("level=info component=bootstrap msg=\"database connected\"")

		repository = store.NewPostgresRepository(dbpool)
	}

	// Initialize the RabbitMQ producer to publish reconcile events. The
	// service only publishes, and missing RabbitMQ degrades to a no-op.
	var producer rabbitmq.Publisher
	if cfg.RabbitMQURL == "" {
		log.Println("level=warn component=bootstrap msg=\"no rabbitmq url configured; reconcile events disabled\"")
		producer = &rabbitmq.EventProducerFallback{}
	} else if eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		producer = eventProducer
	}

	// Initialize the dLocal API client.
	dlocalClient := dlocal.NewClient(
		cfg.DLocalSandboxURL,
		cfg.DLocalProductionURL,
		time.Duration(cfg.HTTPTimeoutSeconds)*time.Second,
	)

	// Initialize the core application service with its dependencies.
	consoleService := app.NewService(
		repository,
		dlocalClient,
		producer,
		cfg.ReconcileEventExchange,
		cfg.AcceptStatusRegressions,
	)

	// Initialize the API handlers and router.
	router := api.ConsoleRoutes(api.NewConsoleHandlers(consoleService))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
