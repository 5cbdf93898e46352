package main

// @title Go WhatsApp Chatbot Flow
// @version 1.0.0
// @description WhatsApp chatbot driven by a menu flow, with a small REST API to send messages and manage the session

// @contact.name gdbrns
// @contact.url https://github.com/gdbrns/go-whatsapp-chatbot-flow

// @license.name MIT
// @license.url https://github.com/gdbrns/go-whatsapp-chatbot-flow/blob/main/LICENSE

// @host localhost:3001
// @BasePath /

// @securityDefinitions.apikey AdminAuth
// @in header
// @name X-Admin-Secret
// @description Admin secret key for the admin endpoints

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token, enforced when JWT_SECRET_KEY is set

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/internal"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	// Running Startup Tasks
	svc, err := internal.Startup(context.Background())
	if err != nil {
		log.Print(nil).Fatal("Startup failed: " + err.Error())
	}
	httpCfg := svc.Router

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler:          router.HttpErrorHandler,
		BodyLimit:             httpCfg.BodyLimit,
		ReadBufferSize:        8192,
		DisableStartupMessage: true,
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(httpCfg.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: httpCfg.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Secret",
		AllowMethods: "GET,POST,DELETE",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router Cache, live endpoints are never cached
	app.Use(router.HttpCacheInMemory(
		httpCfg.CacheTTL,
		httpCfg.BaseURL+"/api/status",
		httpCfg.BaseURL+"/api/admin",
		httpCfg.BaseURL+"/metrics",
	))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Load Internal Routes
	internal.Routes(app, svc)

	// Running Routines Tasks
	internal.Routines(c, svc)

	// Get Server Configuration with defaults
	serverConfig := Server{
		Address: env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0"),
		Port:    env.GetEnvStringOrDefault("SERVER_PORT", "3001"),
	}

	// Start Server
	go func() {
		log.Print(nil).Info("Listening on " + serverConfig.Address + ":" + serverConfig.Port)
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Error("Failed to shutdown HTTP server: " + err.Error())
	}

	// Try To Shutdown Cron
	<-c.Stop().Done()

	// Drain chats, stop WhatsApp and flush webhooks
	if err := svc.Shutdown(ctxShutdown); err != nil {
		log.Print(nil).Error("Shutdown finished with errors: " + err.Error())
		return
	}
	log.Print(nil).Info("Shutdown complete")
}
