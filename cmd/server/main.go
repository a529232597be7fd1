package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/ecomserver/internal/config"
	"github.com/example/ecomserver/internal/database"
	"github.com/example/ecomserver/internal/handlers"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/routes"
	"github.com/example/ecomserver/internal/services"
	"github.com/example/ecomserver/internal/utils"
)

func main() {
	cfg := config.Load()
	utils.PasswordCost = cfg.BcryptCost

	repos, closeStore := openStore(cfg)
	defer closeStore()

	uploader, err := services.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Fatalf("cloudinary setup failed: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, routes.Dependencies{
		Config:   cfg,
		Repos:    repos,
		Mailer:   services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom),
		Uploader: uploader,
		Telegram: services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s (store: %s)", cfg.AppPort, cfg.StoreDriver)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}

// openStore connects the configured backend and returns its repositories with a close func.
func openStore(cfg *config.Config) (repository.Repositories, func()) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db := database.ConnectMongo(cfg.MongoURI, cfg.MongoDatabase)
		return repository.NewMongo(db), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}
	case config.StoreMemory:
		log.Println("Using in-memory store; data is lost on restart")
		return repository.NewMemory(), func() {}
	default:
		db := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel)
		return repository.NewGorm(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
	}
}
