package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"notes-gamification-system/handlers"
	"notes-gamification-system/middleware"
	"notes-gamification-system/models"
	"notes-gamification-system/services"
	"notes-gamification-system/utils"
	"notes-gamification-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB — this service only moves JSON
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ProfileMirror{},
		&models.UserStanding{},
		&models.PointTransaction{},
		&models.UserAchievement{},
		&models.Referral{},
		&models.ReferralMilestoneGrant{},
		&models.LeaderboardSnapshot{},
		&models.ContentUnlockState{},
		&models.ContentShare{},
		&models.Campaign{},
		&models.CampaignParticipation{},
		&models.MysteryBoxOpen{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ledgerService := services.NewLedgerService(db)
	streakService := services.NewStreakService(db, ledgerService)
	achievementService := services.NewAchievementService(db, ledgerService)
	referralService := services.NewReferralService(db, ledgerService, achievementService)
	leaderboardService := services.NewLeaderboardService(db)
	unlockService := services.NewUnlockService(db, ledgerService)
	campaignService := services.NewCampaignService(db, ledgerService)
	ingestService := services.NewIngestService(db, ledgerService, streakService,
		achievementService, referralService, unlockService, campaignService)

	// --- CONFIGURE collaborator endpoints ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("GAMIFICATION_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("GAMIFICATION_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewProfileSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", serviceToken)

	noteEventsClient := workers.NewNoteEventsClient(ingestService)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollNoteEvents(ctx, noteEventsClient, 10*time.Second)

	go func() {
		log.Println("Starting Profile Sync Worker...")
		syncWorker.Start(ctx)
	}()

	leaderboardService.StartSnapshotScheduler()

	// ✅ Setup routes — all under enforced Gateway auth
	handlers.SetupGamificationRoutes(app, ledgerService, streakService, ingestService)
	handlers.SetupAchievementRoutes(app, achievementService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)
	handlers.SetupReferralRoutes(app, referralService, ledgerService, campaignService)
	handlers.SetupViralityRoutes(app, unlockService)
	handlers.SetupRewardRoutes(app, campaignService)
	handlers.SetupFomoRoutes(app, campaignService)
	handlers.SetupEventRoutes(app, ingestService)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ Note event polling running (every 10s)")
	log.Println("✅ Leaderboard snapshot refresh running (every 30s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
