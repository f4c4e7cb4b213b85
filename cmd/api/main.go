package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/oms-platform/inventory-service/internal/application"
	"github.com/oms-platform/inventory-service/internal/domain"
	"github.com/oms-platform/inventory-service/internal/infrastructure/alerting"
	"github.com/oms-platform/inventory-service/internal/infrastructure/catalog"
	mongoRepo "github.com/oms-platform/inventory-service/internal/infrastructure/mongodb"
	"github.com/oms-platform/inventory-service/pkg/api"
	"github.com/oms-platform/inventory-service/pkg/cloudevents"
	apperrors "github.com/oms-platform/inventory-service/pkg/errors"
	"github.com/oms-platform/inventory-service/pkg/kafka"
	"github.com/oms-platform/inventory-service/pkg/logging"
	"github.com/oms-platform/inventory-service/pkg/metrics"
	"github.com/oms-platform/inventory-service/pkg/middleware"
	"github.com/oms-platform/inventory-service/pkg/mongodb"
	"github.com/oms-platform/inventory-service/pkg/outbox"
	outboxMongo "github.com/oms-platform/inventory-service/pkg/outbox/mongodb"
	"github.com/oms-platform/inventory-service/pkg/resilience"
	"github.com/oms-platform/inventory-service/pkg/tracing"
)

const serviceName = "inventory-service"

func main() {
	logCfg := logging.DefaultConfig(serviceName)
	logCfg.Level = logging.LogLevel(envStr("LOG_LEVEL", "info"))
	logger := logging.New(logCfg)
	logger.SetDefault()

	if err := run(logger); err != nil {
		logger.WithError(err).Error("inventory API exited")
		os.Exit(1)
	}
}

func run(logger *logging.Logger) error {
	cfg := loadConfig()
	ctx := context.Background()

	logger.Info("Starting inventory API", "addr", cfg.ServerAddr)

	tp, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		// The service keeps serving without span export rather than failing startup.
		logger.WithError(err).Error("Tracing setup failed, continuing without export")
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(flushCtx); err != nil {
				logger.WithError(err).Error("Tracer shutdown failed")
			}
		}()
		if cfg.Tracing.Enabled {
			logger.Info("Tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
		}
	}
	tracer := otel.Tracer(serviceName)
	if tp != nil {
		tracer = tp.Tracer()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	db := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer db.Close(ctx)
	logger.Info("MongoDB connected", "database", cfg.MongoDB.Database)

	producer := kafka.NewInstrumentedProducer(kafka.NewProducer(cfg.Kafka), m, logger)
	defer producer.Close()
	logger.Info("Kafka producer ready", "brokers", cfg.Kafka.Brokers)

	breakers := resilience.NewCircuitBreakerRegistry(logger.Logger, m)
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceInventory)

	outboxRepo := outboxMongo.NewOutboxRepository(db)
	inventoryRepo := mongoRepo.NewInventoryRepository(db, outboxRepo)
	reservationRepo := mongoRepo.NewReservationRepository(db)
	historyRepo := mongoRepo.NewHistoryRepository(db)

	// cmd/migrate is the authoritative index bootstrap, this keeps dev setups working.
	if err := ensureIndexes(ctx, inventoryRepo, reservationRepo, historyRepo, outboxRepo); err != nil {
		logger.WithError(err).Warn("Index bootstrap failed")
	}

	publisher := outbox.NewPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
	})
	if err := publisher.Start(ctx); err != nil {
		return fmt.Errorf("start outbox publisher: %w", err)
	}
	defer publisher.Stop()
	logger.Info("Outbox publisher running", "interval", cfg.OutboxPollInterval)

	// Low stock alerts bypass the outbox and go straight to the alerts topic.
	notifier := alerting.NewKafkaNotifier(producer, eventFactory, breakers.Get("kafka-alerts"), m, logger)

	// The catalog client is optional: without one analytics omits the valuation.
	var catalogClient domain.CatalogClient
	if cfg.CatalogURL != "" {
		catalogClient = catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, breakers.Get("catalog"), logger)
		logger.Info("Catalog client enabled", "baseUrl", cfg.CatalogURL)
	} else {
		logger.Info("Catalog client disabled, analytics will omit valuation")
	}

	sweeper := application.NewExpirationSweeper(
		inventoryRepo, reservationRepo, eventFactory, m, logger,
		&application.SweeperConfig{
			Interval:  cfg.SweepInterval,
			BatchSize: cfg.SweepBatchSize,
		})
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start expiration sweeper: %w", err)
	}
	defer sweeper.Stop()
	logger.Info("Expiration sweeper running", "interval", cfg.SweepInterval)

	s := &server{
		inventory: application.NewInventoryApplicationService(
			inventoryRepo, historyRepo, eventFactory, notifier, m, logger),
		reservations: application.NewReservationApplicationService(
			inventoryRepo, reservationRepo, eventFactory, notifier, m, logger),
		analytics: application.NewAnalyticsService(inventoryRepo, catalogClient, tracer, logger),
		sweeper:   sweeper,
		logger:    logger,
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.router(m, func() error { return db.HealthCheck(ctx) }),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	logger.Info("HTTP server listening", "addr", cfg.ServerAddr)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stop http server: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// Config carries everything the process reads from the environment.
type Config struct {
	ServerAddr         string
	MongoDB            *mongodb.Config
	Kafka              *kafka.Config
	Tracing            *tracing.Config
	CatalogURL         string
	CatalogTimeout     time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	SweepInterval      time.Duration
	SweepBatchSize     int
}

func loadConfig() *Config {
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingCfg.Environment = envStr("ENVIRONMENT", "development")
	tracingCfg.Enabled = envStr("TRACING_ENABLED", "true") == "true"

	return &Config{
		ServerAddr: envStr("SERVER_ADDR", ":8084"),
		MongoDB: &mongodb.Config{
			URI:            envStr("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       envStr("MONGODB_DATABASE", "oms_inventory"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:      []string{envStr("KAFKA_BROKERS", "localhost:9092")},
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
		Tracing:            tracingCfg,
		CatalogURL:         envStr("CATALOG_URL", ""),
		CatalogTimeout:     envDuration("CATALOG_TIMEOUT", 10*time.Second),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 1*time.Second),
		OutboxBatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
		SweepInterval:      envDuration("SWEEP_INTERVAL", 1*time.Minute),
		SweepBatchSize:     envInt("SWEEP_BATCH_SIZE", 100),
	}
}

func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

type indexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(ctx context.Context, ensurers ...indexEnsurer) error {
	for _, e := range ensurers {
		if err := e.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// server bundles the application services behind the HTTP handlers.
type server struct {
	inventory    *application.InventoryApplicationService
	reservations *application.ReservationApplicationService
	analytics    *application.AnalyticsService
	sweeper      *application.ExpirationSweeper
	logger       *logging.Logger
}

func (s *server) router(m *metrics.Metrics, ready func() error) *gin.Engine {
	router := gin.New()
	middleware.Setup(router, s.logger.Logger)
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.Tracing(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	inventory := router.Group("/api/v1/inventory")
	{
		// Static paths go in ahead of the :productId wildcard.
		inventory.POST("", s.initializeInventory)
		inventory.GET("", s.listInventory)
		inventory.GET("/low-stock", s.lowStockProducts)
		inventory.GET("/analytics", s.analyticsReport)

		inventory.GET("/:productId", s.getInventory)
		inventory.POST("/:productId/adjust", s.adjustQuantity)
		inventory.PUT("/:productId/threshold", s.updateThreshold)
		inventory.GET("/:productId/history", s.productHistory)
		inventory.GET("/:productId/reservations", s.productReservations)
		inventory.POST("/:productId/reserve", s.reserveStock)
	}

	reservations := router.Group("/api/v1/reservations")
	{
		reservations.POST("/sweep", s.manualSweep)

		reservations.GET("/:reservationId", s.getReservation)
		reservations.POST("/:reservationId/release", s.releaseReservation)
		reservations.POST("/:reservationId/complete", s.completeReservation)
		reservations.POST("/:reservationId/extend", s.extendReservation)
	}

	return router
}

// pathProductID validates the :productId parameter on mutating routes. Read
// routes take the parameter as-is, an unknown id is simply not found.
func pathProductID(c *gin.Context, responder *middleware.ErrorResponder) (string, bool) {
	id := c.Param("productId")
	if middleware.ValidProductID(id) {
		return id, true
	}
	responder.RespondWithAppError(apperrors.ErrValidationWithFields("validation failed", map[string]string{
		"productId": "must be a valid product ID (alphanumeric with dashes or underscores)",
	}))
	return "", false
}

func (s *server) initializeInventory(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	var req struct {
		ProductID         string `json:"productId" binding:"required,product_id"`
		InitialQuantity   int    `json:"initialQuantity" binding:"min=0"`
		LowStockThreshold *int   `json:"lowStockThreshold" binding:"omitempty,min=0"`
	}
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	record, err := s.inventory.Initialize(c.Request.Context(), application.InitializeInventoryCommand{
		ProductID:         req.ProductID,
		InitialQuantity:   req.InitialQuantity,
		LowStockThreshold: req.LowStockThreshold,
		CreatedBy:         middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *server) getInventory(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	record, err := s.inventory.GetByProduct(c.Request.Context(), application.GetInventoryQuery{
		ProductID: c.Param("productId"),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *server) listInventory(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	page := api.ParsePagination(c)
	sort := api.ParseSort(c, "productId")

	records, total, err := s.inventory.ListInventory(c.Request.Context(), application.ListInventoryQuery{
		Page:         int(page.Page),
		PageSize:     int(page.PageSize),
		SortBy:       sort.Field,
		SortDesc:     sort.Order == api.SortDesc,
		LowStockOnly: c.Query("lowStockOnly") == "true",
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, api.NewPageResponse(records, page.Page, page.PageSize, total))
}

func (s *server) lowStockProducts(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := s.inventory.GetLowStock(c.Request.Context(), limit)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": records,
		"count":    len(records),
	})
}

func (s *server) analyticsReport(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	report, err := s.analytics.GetAnalytics(c.Request.Context())
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *server) adjustQuantity(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	productID, ok := pathProductID(c, responder)
	if !ok {
		return
	}

	var req struct {
		QuantityChange int    `json:"quantityChange" binding:"required"`
		Reason         string `json:"reason" binding:"required,safe_string"`
		Source         string `json:"source"`
		OrderID        string `json:"orderId"`
		AllowNegative  bool   `json:"allowNegative"`
	}
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	record, err := s.inventory.AdjustQuantity(c.Request.Context(), application.AdjustQuantityCommand{
		ProductID:      productID,
		QuantityChange: req.QuantityChange,
		Reason:         req.Reason,
		Source:         req.Source,
		OrderID:        req.OrderID,
		AllowNegative:  req.AllowNegative,
		ChangedBy:      middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *server) updateThreshold(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	productID, ok := pathProductID(c, responder)
	if !ok {
		return
	}

	var req struct {
		LowStockThreshold *int   `json:"lowStockThreshold" binding:"required,min=0"`
		Reason            string `json:"reason"`
	}
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	record, err := s.inventory.UpdateThreshold(c.Request.Context(), application.UpdateThresholdCommand{
		ProductID:         productID,
		LowStockThreshold: *req.LowStockThreshold,
		Reason:            req.Reason,
		ChangedBy:         middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *server) productHistory(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	page := api.ParsePagination(c)

	query := application.GetHistoryQuery{
		ProductID: c.Param("productId"),
		Action:    c.Query("action"),
		Source:    c.Query("source"),
		OrderID:   c.Query("orderId"),
		Page:      int(page.Page),
		PageSize:  int(page.PageSize),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			responder.RespondBadRequest("since must be an RFC 3339 timestamp")
			return
		}
		query.Since = &t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			responder.RespondBadRequest("until must be an RFC 3339 timestamp")
			return
		}
		query.Until = &t
	}

	entries, total, err := s.inventory.GetHistory(c.Request.Context(), query)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, api.NewPageResponse(entries, page.Page, page.PageSize, total))
}

func (s *server) reserveStock(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	productID, ok := pathProductID(c, responder)
	if !ok {
		return
	}

	var req struct {
		OrderID           string `json:"orderId" binding:"required"`
		CustomerID        string `json:"customerId"`
		Quantity          int    `json:"quantity" binding:"required,min=1"`
		ExpirationMinutes int    `json:"expirationMinutes" binding:"omitempty,min=1"`
	}
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	reservation, err := s.reservations.Reserve(c.Request.Context(), application.ReserveStockCommand{
		ProductID:         productID,
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		Quantity:          req.Quantity,
		ExpirationMinutes: req.ExpirationMinutes,
		ChangedBy:         middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

func (s *server) productReservations(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	reservations, err := s.reservations.ListByProduct(c.Request.Context(), application.ListReservationsQuery{
		ProductID: c.Param("productId"),
		Status:    c.Query("status"),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reservations": reservations,
		"count":        len(reservations),
	})
}

func (s *server) getReservation(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	reservation, err := s.reservations.GetReservation(c.Request.Context(), application.GetReservationQuery{
		ReservationID: c.Param("reservationId"),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (s *server) releaseReservation(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	// The body is optional, release without one uses the default reason.
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
	}

	reservation, err := s.reservations.Release(c.Request.Context(), application.ReleaseReservationCommand{
		ReservationID: c.Param("reservationId"),
		Reason:        req.Reason,
		ChangedBy:     middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (s *server) completeReservation(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
	}

	reservation, err := s.reservations.Complete(c.Request.Context(), application.CompleteReservationCommand{
		ReservationID: c.Param("reservationId"),
		Reason:        req.Reason,
		ChangedBy:     middleware.GetChangedBy(c),
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (s *server) extendReservation(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	var req struct {
		AdditionalMinutes int `json:"additionalMinutes" binding:"required,min=1"`
	}
	if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
		responder.RespondWithAppError(appErr)
		return
	}

	reservation, err := s.reservations.ExtendExpiration(c.Request.Context(), application.ExtendReservationCommand{
		ReservationID:     c.Param("reservationId"),
		AdditionalMinutes: req.AdditionalMinutes,
	})
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, reservation)
}

func (s *server) manualSweep(c *gin.Context) {
	responder := middleware.NewErrorResponder(c, s.logger.Logger)

	result, err := s.sweeper.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		responder.RespondInternalError(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
