package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/exam-slot-reservation/internal/config"
	"github.com/iliyamo/exam-slot-reservation/internal/database"
	"github.com/iliyamo/exam-slot-reservation/internal/handler"
	"github.com/iliyamo/exam-slot-reservation/internal/middleware"
	"github.com/iliyamo/exam-slot-reservation/internal/queue"
	"github.com/iliyamo/exam-slot-reservation/internal/repository"
	"github.com/iliyamo/exam-slot-reservation/internal/router"
	"github.com/iliyamo/exam-slot-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local development
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Redis is optional: when unavailable the rate limiter and cache
	// middlewares degrade to pass-through.
	rdb := config.NewRedisClient()

	resRepo := repository.NewReservationRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	svc := service.NewReservationService(resRepo)

	authH := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	resH := handler.NewReservationHandler(svc)

	// Consume confirmation events in the background; the consumer runs
	// its own reconnect loop and only logs failures.
	go func() {
		if err := queue.StartConfirmationConsumer(); err != nil {
			log.Printf("confirmation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterReservations(e, resH, cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
