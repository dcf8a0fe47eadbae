package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"dappshunt/api-gateway/config"
	"dappshunt/api-gateway/handlers"
	"dappshunt/api-gateway/internal/donation"
	"dappshunt/api-gateway/internal/reconcile"
	"dappshunt/api-gateway/internal/store"
	"dappshunt/api-gateway/internal/wallet"
	"dappshunt/api-gateway/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := config.NewLogger()

	projectStore, err := store.NewProjectStore(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize project store: %v", err)
	}
	donationStore, err := store.NewDonationStore(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize donation store: %v", err)
	}

	donorWallet, err := wallet.NewKeypairWallet(cfg, log)
	if err != nil {
		log.Fatalf("Failed to load donor wallet: %v", err)
	}

	chain := donation.NewRPCChain(cfg.RPCEndpoint, cfg.ConfirmTimeout, log)
	orchestrator, err := donation.NewOrchestrator(donorWallet, chain, projectStore, donationStore, cfg.USDCMint, log)
	if err != nil {
		log.Fatalf("Failed to build donation orchestrator: %v", err)
	}

	// Reconciliation: worker pool plus a periodic sweep over receipts whose
	// funds-raised update is still owed.
	dispatcher := reconcile.NewDispatcher(cfg.ReconcileWorkers, cfg.ReconcileQueueSize, log)
	dispatcher.Run()
	sweeper := reconcile.NewSweeper(donationStore, projectStore, donationStore, dispatcher, cfg.ReconcileSchedule, log)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to schedule reconciliation sweep: %v", err)
	}

	h := handlers.NewApplicationHandler(projectStore, orchestrator, log)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Wallet, X-Signature, X-Timestamp",
	}))
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")
	walletAuth := middleware.WalletAuth(log)

	// Public browse routes.
	apiV1.Get("/projects", h.ListProjects)
	apiV1.Get("/projects/:slug", h.GetProject)
	apiV1.Post("/projects/validate", h.ValidateStep)

	// Routes that act on behalf of a wallet require a request signature.
	apiV1.Post("/projects", walletAuth, h.SubmitProject)
	apiV1.Patch("/projects/:slug", walletAuth, h.EditProject)
	apiV1.Get("/my-projects", walletAuth, h.MyProjects)
	apiV1.Post("/projects/:slug/donations", walletAuth, h.Donate)

	go func() {
		log.Infof("Starting API Gateway on port %s...", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API Gateway...")
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	sweeper.Stop()
	dispatcher.Stop()
	log.Info("API Gateway shut down gracefully.")
}
