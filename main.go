package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"puzzle-bar/config"
	"puzzle-bar/handlers"
	"puzzle-bar/middleware"
	"puzzle-bar/models"
	"puzzle-bar/payments"
	"puzzle-bar/realtime"
	"puzzle-bar/services"
	"puzzle-bar/storage"
	"puzzle-bar/utils"
	"puzzle-bar/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config:", err)
	}
	utils.Debug = cfg.Debug

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // menu and game images
	})

	// Only Gateway requests allowed. The change stream authenticates with its own token.
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, "/stream"))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	if err := realtime.InstallTriggers(db); err != nil {
		log.Fatal("failed to install change triggers:", err)
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize image store:", err)
	}

	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL, cfg.PaymentTimeout)

	checkoutService := services.NewCheckoutService(db, provider, services.CheckoutConfig{
		Currency:          cfg.Currency,
		DiscountPerPuzzle: cfg.DiscountPerPuzzle,
		PaymentTimeout:    cfg.PaymentTimeout,
		RetryDelay:        cfg.PaymentRetryDelay,
	})
	rosterService := services.NewRosterService(db)
	settlementService := services.NewSettlementService(db)
	challengeService := services.NewChallengeService(db)
	orderService := services.NewOrderService(db, checkoutService)
	itemService := services.NewItemService(db, images)
	gameService := services.NewGameService(db, images)
	userService := services.NewUserService(db)

	hub := realtime.NewHub(cfg.StreamBuffer)
	go realtime.NewBridge(realtime.NewPGSource(cfg.DatabaseURL), hub).Run(ctx)

	sweeper, err := workers.StartOrderSweeper(ctx, checkoutService, cfg.PendingOrderTTL, cfg.SweepInterval)
	if err != nil {
		log.Fatal("failed to start order sweeper:", err)
	}
	defer sweeper.Shutdown()

	go workers.AuditRosters(ctx, rosterService, cfg.RosterAuditEvery)

	// Public routes first: the secured group below applies to everything registered after it.
	handlers.SetupStreamRoutes(app, hub, []byte(cfg.JWTSecret), cfg.StreamKeepAlive)
	handlers.SetupPublicMenuRoutes(app, itemService, gameService)

	secured := app.Group("/", middleware.UserContextMiddleware())
	handlers.SetupChallengeRoutes(secured, &handlers.ChallengeHandlers{
		Challenges: challengeService,
		Roster:     rosterService,
		Settlement: settlementService,
	})
	handlers.SetupOrderRoutes(secured, &handlers.OrderHandlers{
		Orders:   orderService,
		Checkout: checkoutService,
		Items:    itemService,
		Users:    userService,
	})
	handlers.SetupMenuRoutes(secured, itemService, gameService)
	handlers.SetupUserRoutes(secured, userService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Pending order sweeper running (ttl %s, every %s)", cfg.PendingOrderTTL, cfg.SweepInterval)
	log.Printf("✅ Roster audit running (every %s)", cfg.RosterAuditEvery)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStore == config.ImageStoreCloudinary {
		return storage.NewCloudinaryStore(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
	}
	return storage.NewR2Store(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.AccessKeySecret, cfg.R2.Bucket, cfg.R2.CDNBaseURL)
}
