package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"

	"memberhub/config"
	"memberhub/handlers"
	"memberhub/internal/api"
	"memberhub/internal/legacy"
	"memberhub/internal/payment"
	"memberhub/internal/push"
	"memberhub/internal/vault"
	"memberhub/models"
	"memberhub/monitoring"
	"memberhub/security"
	"memberhub/services"
	"memberhub/store"
	"memberhub/utils"
)

const appVersion = "1.4.0"

func Start() error {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Open the local cache database
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Open the credential vault
	v, err := vault.New(cfg.VaultPath, vaultKey(cfg.VaultKey))
	if err != nil {
		return err
	}

	// Backend clients
	apiClient := api.NewClient(cfg.APIBaseURL, vault.NewTokenStore(v))
	legacySession, err := legacy.NewSession(cfg.LegacyBaseURL, cfg.LegacyUsername, cfg.LegacyPassword)
	if err != nil {
		return err
	}
	payClient := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentReturnPath)
	publisher := push.NewPublisher(push.Config{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UUID:         cfg.PubNubUUID,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	syncService := services.NewSyncService(redisClient, st, apiClient, apiClient)
	purchaseService := services.NewPurchaseService(redisClient, st, syncService)
	notificationService := services.NewNotificationService(redisClient, st, publisher, cfg.ReminderChannel)
	membershipService := services.NewMembershipService(apiClient, legacySession, payClient, st)
	membershipService.Pub = publisher
	membershipService.Channel = cfg.ReminderChannel

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(st, purchaseService)
	syncHandler := handlers.NewSyncHandler(st, syncService)
	profileHandler := handlers.NewProfileHandler(membershipService)
	paymentHandler := handlers.NewPaymentHandler(membershipService, purchaseService)
	notifyHandler := handlers.NewNotifyHandler(notificationService)
	appHandler := handlers.NewAppHandler(apiClient, models.NewUpdateGate(appVersion))

	rateLimiter := security.NewRateLimiter(redisClient)
	backendLimit := rateLimiter.Limit(10, time.Minute)

	// Start background loops
	go syncService.Run(ctx, cfg.SyncInterval)
	go notificationService.Run(ctx, cfg.NotifyInterval)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	e := echo.New()

	// Event endpoints
	e.GET("/api/v1/events", eventHandler.ListEvents)
	e.GET("/api/v1/events/:id", eventHandler.GetEvent)
	e.GET("/api/v1/events/:id/status", eventHandler.GetEventStatus)

	// Purchase endpoints
	e.GET("/api/v1/purchases", eventHandler.GetPurchaseHistory)
	e.POST("/api/v1/purchases/refresh", eventHandler.RefreshPurchases, backendLimit)

	// Sync endpoints
	e.POST("/api/v1/sync", syncHandler.TriggerSync, backendLimit)
	e.GET("/api/v1/sync/status", syncHandler.GetSyncStatus)

	// Profile and membership endpoints
	e.GET("/api/v1/profile", profileHandler.GetProfile)
	e.GET("/api/v1/profile/family", profileHandler.ListFamily)
	e.POST("/api/v1/profile/family", profileHandler.SaveFamilyMember, backendLimit)
	e.DELETE("/api/v1/profile/family/:id", profileHandler.DeleteFamilyMember, backendLimit)
	e.GET("/api/v1/membership/packages", profileHandler.ListPackages)
	e.POST("/api/v1/membership/renew", profileHandler.StartRenewal, backendLimit)

	// Payment endpoints
	e.POST("/api/v1/payment/navigation", paymentHandler.HandleCheckoutNavigation)

	// Notification endpoints
	e.GET("/api/v1/notifications/settings", notifyHandler.GetSettings)
	e.PUT("/api/v1/notifications/settings", notifyHandler.UpdateSettings)
	e.POST("/api/v1/notifications/rebuild", notifyHandler.TriggerRebuild)

	// App update gate
	e.GET("/api/v1/app/update", appHandler.CheckUpdate)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		if err := st.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	log.Println("Server routes registered")

	// Metrics server
	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", monitoring.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// vaultKey derives the 32-byte vault key. A hex-encoded 32-byte value is
// used as-is; anything else (including the empty development default) is
// stretched through sha256.
func vaultKey(raw string) []byte {
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	sum := sha256.Sum256([]byte("memberhub:" + raw))
	return sum[:]
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
