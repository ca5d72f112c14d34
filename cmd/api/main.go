package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArowuTest/jraffle-backend/api/routes"
	"github.com/ArowuTest/jraffle-backend/internal/config"
	"github.com/ArowuTest/jraffle-backend/internal/handlers"
	mongorepo "github.com/ArowuTest/jraffle-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/jraffle-backend/internal/services"
	"github.com/ArowuTest/jraffle-backend/internal/utils"
	"github.com/ArowuTest/jraffle-backend/pkg/events"
	"github.com/ArowuTest/jraffle-backend/pkg/imgbb"
	"github.com/ArowuTest/jraffle-backend/pkg/jwt"
	"github.com/ArowuTest/jraffle-backend/pkg/mailer"
	"github.com/ArowuTest/jraffle-backend/pkg/mongodb"
	"github.com/ArowuTest/jraffle-backend/pkg/telegram"
	"github.com/ArowuTest/jraffle-backend/pkg/whatsapp"
	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"golang.org/x/exp/slog"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")
	envFile := flag.String("env-file", "", "path to a .env file (default: ./.env if present)")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	mongoClient, err := mongodb.NewClient(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	raffleRepo := mongorepo.NewRaffleRepository(db)
	purchaseRepo := mongorepo.NewPurchaseRepository(db)
	adminRepo := mongorepo.NewAdminUserRepository(db)

	store := services.NewRaffleStore(raffleRepo, purchaseRepo, services.RaffleStoreOptions{
		Timeout:         cfg.MongoDB.Timeout,
		WriteRetries:    cfg.Purchases.WriteRetries,
		MaxTotalTickets: cfg.Raffles.MaxTotalTickets,
	})
	// an unreachable store leaves the catalogue empty until the next reload
	if err := store.LoadAll(ctx); err != nil {
		slog.Error("Initial raffle load failed", "error", err)
	}
	if err := store.LoadPurchases(ctx); err != nil {
		slog.Error("Initial purchase load failed", "error", err)
	}

	var mail services.Mailer
	if cfg.Email.Mock || cfg.Email.APIKey == "" {
		slog.Warn("Email delivery is mocked")
		mail = mailer.NewMockSender()
	} else {
		mail = mailer.NewResendSender(cfg.Email.APIKey, cfg.Email.From, cfg.Email.Timeout)
	}

	var admin services.AdminNotifier
	if cfg.Telegram.Enabled {
		notifier, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
		if err != nil {
			log.Fatalf("Failed to start Telegram notifier: %v", err)
		}
		go notifier.Listen(ctx)
		admin = notifier
	}

	var publisher services.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, "jraffle-api")
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nc.Close()
		publisher = nc
	}

	if cfg.TestRecipient() != "" {
		slog.Warn("Confirmation emails are diverted", "to", cfg.TestRecipient())
	}
	notifications := services.NewNotificationService(mail, admin, services.NotificationOptions{
		TestRecipient: cfg.TestRecipient(),
		EmailTimeout:  cfg.Email.Timeout,
	})
	purchases := services.NewPurchaseService(
		store,
		purchaseRepo,
		services.NewTicketAllocator(nil),
		imgbb.NewClient(cfg.ImgBB.BaseURL, cfg.ImgBB.APIKey, cfg.ImgBB.MockAPI, cfg.ImgBB.Timeout),
		notifications,
		publisher,
		whatsapp.NewBuilder(cfg.WhatsApp.Number, cfg.WhatsApp.HandoffDelay),
		services.PurchaseOptions{
			RequireApproval:       cfg.Purchases.RequireApproval,
			MaxTicketsPerPurchase: cfg.Purchases.MaxTicketsPerPurchase,
			WriteRetries:          cfg.Purchases.WriteRetries,
		},
	)
	draws := services.NewDrawService(store, publisher, nil, services.DrawOptions{SpinDuration: cfg.Draw.SpinDuration})

	tokens := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	authService := services.NewAuthService(adminRepo, tokens)

	// production requires Admin.Password, so generation only happens outside it
	password := cfg.Admin.Password
	generated := password == ""
	if generated {
		password, err = utils.GenerateRandomString(16)
		if err != nil {
			log.Fatalf("Failed to generate admin password: %v", err)
		}
	}
	created, err := authService.EnsureAdmin(ctx, cfg.Admin.Username, password)
	if err != nil {
		log.Fatalf("Failed to bootstrap admin account: %v", err)
	}
	if created && generated {
		// printed once, outside the structured log stream
		fmt.Fprintf(os.Stderr, "Bootstrap admin %q created with generated password: %s\nChange it with PUT /api/v1/admin/password.\n", cfg.Admin.Username, password)
	}

	handlerDeps := routes.HandlerDependencies{
		AuthHandler:     handlers.NewAuthHandler(authService),
		RaffleHandler:   handlers.NewRaffleHandler(store),
		PurchaseHandler: handlers.NewPurchaseHandler(purchases),
		DrawHandler:     handlers.NewDrawHandler(draws),
		Tokens:          tokens,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}
	router := routes.SetupRouter(handlerDeps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
