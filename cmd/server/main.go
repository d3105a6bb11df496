package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/database"
	"github.com/example/bazaar/internal/routes"
	"github.com/example/bazaar/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Bazaar Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg)

	go reapExpiredOAuthStates(db)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

// reapExpiredOAuthStates periodically clears abandoned login states so the
// table does not grow without bound.
func reapExpiredOAuthStates(db *gorm.DB) {
	oauth := services.NewOAuthService(db, services.OAuthConfig{})
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		deleted, err := oauth.DeleteExpiredStates(context.Background())
		if err != nil {
			log.Printf("oauth state cleanup failed: %v", err)
			continue
		}
		if deleted > 0 {
			log.Printf("oauth state cleanup removed %d rows", deleted)
		}
	}
}
