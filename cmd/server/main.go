package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/vaultcraft/backend/internal/database"
	"github.com/vaultcraft/backend/internal/ledger"
	mW "github.com/vaultcraft/backend/internal/middleware"
	"github.com/vaultcraft/backend/internal/services"
	"github.com/vaultcraft/backend/internal/store/postgres"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.lock_timeout", "DATABASE_LOCK_TIMEOUT")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("reward.amount", "REWARD_AMOUNT")
	viper.BindEnv("reward.reset_hour", "REWARD_RESET_HOUR")
	viper.BindEnv("reward.reset_minute", "REWARD_RESET_MINUTE")
	viper.BindEnv("reward.timezone", "REWARD_TIMEZONE")
	viper.BindEnv("economy.default_denomination", "ECONOMY_DEFAULT_DENOMINATION")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("database.lock_timeout", 3*time.Second)
	viper.SetDefault("reward.amount", 100)
	viper.SetDefault("reward.reset_hour", 6)
	viper.SetDefault("reward.reset_minute", 30)
	viper.SetDefault("reward.timezone", "Europe/Berlin")
	viper.SetDefault("economy.default_denomination", 1000)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize backends
	db := database.InitDatabase()
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	location, err := time.LoadLocation(viper.GetString("reward.timezone"))
	if err != nil {
		log.Fatalf("Invalid reward timezone %q: %v", viper.GetString("reward.timezone"), err)
	}

	store := postgres.New(db, viper.GetDuration("database.lock_timeout"))
	engine := ledger.New(store, ledger.Config{
		RewardAmount:        viper.GetInt64("reward.amount"),
		ResetHour:           viper.GetInt("reward.reset_hour"),
		ResetMinute:         viper.GetInt("reward.reset_minute"),
		Location:            location,
		DefaultDenomination: viper.GetInt64("economy.default_denomination"),
	}, nil)

	economyService := services.NewEconomyService(engine, redisClient)
	authService := services.NewAuthService(db, redisClient, store)
	payCodeService := services.NewPayCodeService(redisClient)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/economy/pay", economyService.Pay)
			r.Post("/economy/deposit", economyService.Deposit)
			r.Post("/economy/withdraw", economyService.Withdraw)
			r.Get("/economy/balance", economyService.GetBalance)
			r.Get("/economy/top", economyService.Top)
			r.Get("/economy/transactions", economyService.History)
			r.Post("/economy/daily", economyService.ClaimDaily)
			r.Post("/economy/mob-limit", economyService.MarkMobLimit)
			r.Get("/economy/mob-limit", economyService.CheckMobLimit)

			r.Post("/economy/paycode", payCodeService.Generate)
			r.Post("/economy/paycode/resolve", payCodeService.Resolve)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
