package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"pantry/cmd/server/docs"
	"pantry/internal/api"
	"pantry/internal/api/services"
	"pantry/internal/api/ws"
	"pantry/internal/app"
	"pantry/internal/config"
	"pantry/internal/events"
	"pantry/internal/imaging"
	"pantry/internal/metrics"
	"pantry/internal/tracing"
	"pantry/internal/vision"
	"pantry/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// @title Pantry API
// @version 1.0
// @description Grocery inventory fed by photos
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3000
// @BasePath /
// @schemes http https

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded, relying on environment")
	}

	cfg := config.Load()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	store, closeStore, err := app.OpenInventoryStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s inventory store: %v", cfg.InventoryBackend, err)
	}
	defer closeStore()

	blobs, err := app.OpenBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s blob store: %v", cfg.Blob.Backend, err)
	}
	defer blobs.Close()

	e := newEcho()

	hub := ws.NewHub()
	notifiers := []services.InventoryNotifier{hub}

	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect to amqp: %v", err)
		}
		defer conn.Close()

		publisher, err := events.NewPublisher(conn, tracing.ServiceName)
		if err != nil {
			log.Fatalf("failed to create event publisher: %v", err)
		}
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	inventory := services.NewInventoryService(store, cfg.Ingest.StoreTimeout, e.Logger, notifiers...)

	inferrer := vision.NewOpenAIClient(vision.Options{
		APIKey:    cfg.Vision.APIKey,
		BaseURL:   cfg.Vision.BaseURL,
		Model:     cfg.Vision.Model,
		MaxTokens: cfg.Vision.MaxTokens,
	})

	pipeline := services.NewIngestionPipeline(blobs.Store, inferrer, inventory, e.Logger, services.PipelineOptions{
		Constraints: imaging.Constraints{
			MaxDimension: cfg.Image.MaxDimension,
			JPEGQuality:  cfg.Image.JPEGQuality,
			MaxPixels:    cfg.Image.MaxPixels,
		},
		Prompt:           cfg.Vision.Prompt,
		AutoMerge:        cfg.AutoMerge(),
		UploadTimeout:    cfg.Ingest.UploadTimeout,
		InferenceTimeout: cfg.Ingest.InferenceTimeout,
		MaxConcurrent:    cfg.Ingest.MaxConcurrent,
	})

	docs.SwaggerInfo.Host = cfg.HTTPAddr
	if cfg.IsProduction() {
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api.SetupRoutes(e, api.Dependencies{
		Inventory: inventory,
		Pipeline:  pipeline,
		Hub:       hub,
		BlobDir:   blobs.LocalDir,
	}, cfg)

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sweeper := worker.NewBlobSweeper(blobs.Store, cfg.Blob.Prefix, cfg.Blob.Retention, cfg.Blob.SweepInterval)
	go sweeper.StartWorker(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown failed: %v", err)
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	// Service Infof lines go through e.Logger, which defaults to ERROR.
	e.Logger.SetLevel(gommonlog.INFO)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(otelecho.Middleware(tracing.ServiceName))
	e.Use(metrics.PrometheusMiddleware())
	return e
}
