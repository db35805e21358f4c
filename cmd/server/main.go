package main // Entry point package

import (
	"log" // Logging library
	"os"  // Environment access for optional settings

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/user-account-service/internal/config"     // Internal config loader
	"github.com/iliyamo/user-account-service/internal/database"   // MySQL connection pool
	"github.com/iliyamo/user-account-service/internal/handler"    // HTTP handlers
	"github.com/iliyamo/user-account-service/internal/queue"      // Email queue consumer
	"github.com/iliyamo/user-account-service/internal/repository" // Data access layer
	"github.com/iliyamo/user-account-service/internal/router"     // Route registration
	"github.com/iliyamo/user-account-service/internal/service"    // Business logic
)

func main() {
	// Load a .env file if present; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter; a nil client disables limiting.
	rdb := config.NewRedisClient()
	rlCfg := config.LoadRateLimitConfig()

	users := repository.NewUserRepo(db)
	logs := repository.NewUserLogRepo(db)

	auditor := service.NewDBAuditor(logs)
	mailer := service.NewEmailPublisher(cfg.AMQPURL)
	accounts := service.NewAccountService(users, auditor, mailer, cfg.JWTSecret, cfg.SessionTTL, cfg.BcryptCost)

	// The consumer drains the email queue in the background. With no
	// EMAIL_API_URL configured the dispatcher only records deliveries.
	dispatch := queue.NewHTTPDispatcher(os.Getenv("EMAIL_API_URL"), os.Getenv("EMAIL_API_KEY"))
	go queue.StartEmailConsumer(cfg.AMQPURL, dispatch)

	e := echo.New()
	router.RegisterRoutes(e) // Health check
	router.RegisterAuth(e, handler.NewAuthHandler(accounts), cfg.JWTSecret, rlCfg, rdb)
	router.RegisterUsers(e, handler.NewUserHandler(accounts), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(users, logs), cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
