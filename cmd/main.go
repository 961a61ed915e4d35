package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	_ "github.com/joho/godotenv/autoload"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/sendgrid/sendgrid-go"
	twilio "github.com/twilio/twilio-go"

	"github.com/poofware/backoffice-service/internal/app"
	"github.com/poofware/backoffice-service/internal/config"
	"github.com/poofware/backoffice-service/internal/constants"
	"github.com/poofware/backoffice-service/internal/controllers"
	"github.com/poofware/backoffice-service/internal/middleware"
	"github.com/poofware/backoffice-service/internal/repositories"
	"github.com/poofware/backoffice-service/internal/routes"
	"github.com/poofware/backoffice-service/internal/services"
	"github.com/poofware/backoffice-service/internal/utils"
)

func main() {
	appName := config.AppName
	if appName == "" {
		appName = config.DefaultAppName
	}
	utils.InitLogger(appName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize backoffice-service:", err)
	}
	defer application.Close()

	store := repositories.NewStore(application.DB)

	gateway, err := services.NewPaymentGateway(cfg)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create payment gateway")
	}
	utils.Logger.Infof("Payment gateway: %s", gateway.Name())

	var receipts repositories.ReceiptArchive
	if cfg.ReceiptsTable != "" {
		receipts, err = repositories.NewDynamoReceiptArchive(context.Background(), repositories.ReceiptArchiveConfig{
			Table:           cfg.ReceiptsTable,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to create receipt archive")
		}
	} else {
		utils.Logger.Warn("RECEIPTS_TABLE not set, gateway receipts will not be archived")
	}

	var twClient *twilio.RestClient
	if cfg.TwilioAccountSID != "" {
		twClient = services.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, constants.NotificationTimeout)
	}
	var sgClient *sendgrid.Client
	if cfg.SendGridAPIKey != "" {
		sgClient = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	}
	notifier := services.NewNotificationService(cfg, store.Repos().Customers, twClient, sgClient)

	crewService := services.NewCrewAssignmentService(store, nil)
	timeline := services.NewTimelineRecorder(nil)
	workOrderService := services.NewWorkOrderService(store, crewService, timeline, notifier, nil, cfg.DefaultTimeZone)
	billingService := services.NewBillingService(store, gateway, workOrderService, notifier, receipts, nil, cfg.DefaultTimeZone)
	scheduler := services.NewBillingSchedulerService(store, billingService, nil)

	if cfg.LDFlag_SeedDbWithTestData {
		if err := app.SeedAllTestData(context.Background(), store, billingService, services.SystemClock()); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to seed test data")
		} else {
			utils.Logger.Info("Seeded test data successfully")
		}
	}

	router := routes.NewRouter(routes.Controllers{
		Health:        controllers.NewHealthController(application.DB),
		WorkOrders:    controllers.NewWorkOrdersController(workOrderService, crewService),
		Crews:         controllers.NewCrewsController(crewService),
		Subscriptions: controllers.NewSubscriptionsController(billingService, scheduler),
	}, middleware.AuthMiddleware(cfg.RSAPublicKey))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if cfg.LDFlag_BillingCronEnabled {
		_, cronErr := c.AddFunc(cfg.BillingCronSpec, func() {
			summary, e := scheduler.RunBillingCycle(ctx)
			if e != nil {
				utils.Logger.WithError(e).Error("Scheduled billing cycle failed")
				return
			}
			utils.Logger.Infof("Billing cycle done: due=%d posted=%d failed=%d skipped=%d errors=%d",
				summary.Due, summary.Posted, summary.Failed, summary.Skipped, summary.Errors)
		})
		if cronErr != nil {
			utils.Logger.WithError(cronErr).Fatal("Failed to schedule billing cron")
		}
		c.Start()
	} else {
		utils.Logger.Warn("Billing cron disabled; use the manual billing run endpoint")
	}

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, constants.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: constants.ReadHeaderTimeout,
	}

	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("backoffice-service failed to start:", err)
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("Shutting down backoffice-service...")

	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.WithError(err).Error("Graceful shutdown failed")
	}
}
