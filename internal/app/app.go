package app

import (
	"time"

	"wislet-backend/internal/auth"
	"wislet-backend/internal/checkout"
	"wislet-backend/internal/config"
	"wislet-backend/internal/convert"
	"wislet-backend/internal/database"
	"wislet-backend/internal/health"
	"wislet-backend/internal/holds"
	"wislet-backend/internal/invites"
	"wislet-backend/internal/metrics"
	"wislet-backend/internal/middleware"
	"wislet-backend/internal/pages"
	"wislet-backend/internal/ratelimit"
	"wislet-backend/internal/reports"
	"wislet-backend/internal/webhooks"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// gormPinger adapts *gorm.DB to the health check.
type gormPinger struct{ db *gorm.DB }

func (g *gormPinger) Ping() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all middleware and routes.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
	}

	convertSvc := &convert.Service{DB: db}

	// Provider webhooks are mounted before the session middleware: they
	// carry their own authentication (signatures) and never use cookies.
	stripeWH := &webhooks.StripeHandler{Convert: convertSvc, Secret: cfg.StripeWebhookSecret}
	lemonWH := &webhooks.LemonHandler{Convert: convertSvc, Secret: cfg.LemonSigningSecret}
	fondyWH := &webhooks.FondyHandler{Convert: convertSvc, Secret: cfg.FondySecret}
	monoWH := &webhooks.MonoHandler{Convert: convertSvc}
	app.Post("/webhooks/stripe", stripeWH.Handle)
	app.Post("/webhooks/lemon", lemonWH.Handle)
	app.Post("/webhooks/fondy", fondyWH.Handle)
	app.Post("/webhooks/mono", monoWH.Handle)

	sessionCfg := middleware.SessionConfig{
		Secret:       cfg.SessionSecret,
		RedisURL:     cfg.RedisURL,
		IsProduction: cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	// Health
	var pinger health.DBPinger
	if db != nil {
		pinger = &gormPinger{db: db}
	}
	healthHandlers := &health.Handlers{Rdb: rdb, DB: pinger, AdminToken: cfg.AdminToken}
	app.Get("/health/json", healthHandlers.JSON)
	app.Post("/health/reset", healthHandlers.Reset)

	// Static result pages the providers redirect back to
	app.Get("/thanks.html", pages.Thanks)
	app.Get("/cancel.html", pages.Cancel)

	// Public checkout
	checkoutHandlers := &checkout.Handlers{
		Service:       &checkout.Service{DB: db},
		Stripe:        checkout.NewStripeClient(cfg.StripeSecretKey),
		Fondy:         &checkout.FondyClient{MerchantID: cfg.FondyMerchantID, Secret: cfg.FondySecret},
		Mono:          &checkout.MonoClient{Token: cfg.MonoToken},
		PublicBaseURL: cfg.PublicBaseURL,
		BaseURL:       cfg.BaseURL,
	}
	app.Post("/create-hold", checkoutHandlers.CreateHold)
	app.Post("/create-checkout", checkoutHandlers.CreateCheckout)
	app.Post("/confirm-checkout", checkoutHandlers.ConfirmCheckout)
	app.Get("/confirm-checkout", checkoutHandlers.ConfirmCheckout)
	app.Post("/pay-fondy", checkoutHandlers.PayFondy)
	app.Post("/pay-mono", checkoutHandlers.PayMono)

	// Public landing metrics
	metricsHandlers := &metrics.Handlers{Service: &metrics.Service{DB: db}}
	app.Get("/metrics", metricsHandlers.Public)
	app.Get("/founders-hall", metricsHandlers.FoundersHall)

	// Admin routes (token header)
	convertLimit := ratelimit.New(10*time.Second, 10)
	chaseLimit := ratelimit.New(10*time.Second, 30)

	convertHandlers := &convert.Handlers{Service: convertSvc}
	holdsHandlers := &holds.Handlers{Service: &holds.Service{DB: db}}
	reportsHandlers := &reports.Handlers{Service: &reports.Service{DB: db}}

	admin := app.Group("/admin", middleware.AdminOnly(cfg.AdminToken))
	admin.Post("/manual-convert", convertLimit.Middleware(), convertHandlers.ManualConvert)
	admin.Post("/mint-founder", convertHandlers.MintFounder)
	admin.Get("/holds-to-chase", holdsHandlers.ToChase)
	admin.Post("/mark-chased", chaseLimit.Middleware(), holdsHandlers.MarkChased)
	admin.Post("/mark-chased-bulk", chaseLimit.Middleware(), holdsHandlers.MarkChasedBulk)
	admin.Post("/update-hold", holdsHandlers.UpdateHold)
	admin.Get("/stats", reportsHandlers.Stats)
	admin.Get("/export", reportsHandlers.Export)
	admin.Get("/ping-timeline", reportsHandlers.PingTimeline)

	// Wallet-app auth + invites (cookie session)
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{UserFinder: userFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Post("/logout", authHandlers.Logout)

	inviteHandlers := &invites.Handlers{Service: &invites.Service{DB: db}}
	inviteGroup := app.Group("/invites", middleware.RequireAuth())
	inviteGroup.Post("/", inviteHandlers.Create)
	inviteGroup.Post("/accept", inviteHandlers.Accept)
	inviteGroup.Get("/my", inviteHandlers.My)

	return app, db, nil
}
