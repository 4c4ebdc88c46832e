package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/invoices"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/orders"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/ratelimit"
	"storefront/internal/recommend"
	"storefront/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	root := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	zerolog.DefaultContextLogger = &root

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, root); err != nil {
		root.Fatal().Err(err).Msg("storefront stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, root zerolog.Logger) error {
	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			root.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	db := client.Database(cfg.DBName)
	root.Info().Str("db", db.Name()).Msg("mongo connected")

	if err := database.EnsureIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "ensure indexes")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var mailer notify.Mailer = notify.NewLogMailer(root)
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	dispatcher := notify.NewDispatcher(mailer, notify.Options{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	}, m, root)

	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" {
		rs, rc, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		limiter = ratelimit.NewLimiter(rs, "auth", cfg.AuthRateLimit.Window, cfg.AuthRateLimit.Limit)
		root.Info().Dur("window", cfg.AuthRateLimit.Window).Int("limit", cfg.AuthRateLimit.Limit).Msg("auth rate limit enabled")
	}

	productRepo := store.NewProductRepository(db)
	categoryRepo := store.NewCategoryRepository(db)
	userRepo := store.NewUserRepository(db)
	discountRepo := store.NewDiscountRepository(db)
	orderRepo := store.NewOrderRepository(db)
	invoiceRepo := store.NewInvoiceRepository(db)
	cartRepo := store.NewCartRepository(db)
	campaignRepo := store.NewCampaignRepository(db)

	engine := pricing.NewEngine(discountRepo, productRepo, userRepo)
	carts := cart.NewService(cartRepo, productRepo, engine)
	orderSvc := orders.NewService(orders.Deps{
		Orders:       orderRepo,
		Products:     productRepo,
		Users:        userRepo,
		Categories:   categoryRepo,
		Pricer:       engine,
		Reservations: carts,
		Payments:     payment.NewOfflineGateway(),
		Notifier:     dispatcher,
		Metrics:      m,
		AdminEmail:   cfg.AdminEmail,
	})

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(middleware.RequestID(root), middleware.Recovery(), middleware.AccessLog(m))

	handlers.RegisterRoutes(r, handlers.Deps{
		Products:    productRepo,
		Categories:  categoryRepo,
		Users:       userRepo,
		Discounts:   discountRepo,
		Campaigns:   campaignRepo,
		Engine:      engine,
		Carts:       carts,
		Orders:      orderSvc,
		Invoices:    invoices.NewService(invoiceRepo, orderRepo, cfg.UploadDir),
		Recommender: recommend.NewService(productRepo, orderRepo, userRepo),
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL),
		Cookie:      handlers.CookieSettings{Name: cfg.CookieName, Secure: cfg.CookieSecure},
		Limiter:     limiter,
		Metrics:     m,
		MetricsView: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Health:      database.Pinger{Client: client},
		UploadDir:   cfg.UploadDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	// Stopped only after the HTTP server has drained.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		root.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		root.Info().Msg("shutting down")
		defer stopDispatch()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
