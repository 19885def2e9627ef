package bootstrap

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/call-me-mahi/valentine/internal/config"
	appdb "github.com/call-me-mahi/valentine/internal/db"
	apphttp "github.com/call-me-mahi/valentine/internal/http"
	"github.com/call-me-mahi/valentine/internal/love"
	"github.com/call-me-mahi/valentine/internal/media"
	"github.com/call-me-mahi/valentine/internal/payment"
	"github.com/call-me-mahi/valentine/internal/reaper"
)

// Dependencies are the process-wide values the application is built from.
// Orders and Media replace the Razorpay and S3 clients when set.
type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Orders    payment.OrderCreator
	Media     media.Uploader
}

// Result holds the components Build wires together.
type Result struct {
	Pages      love.Service
	HTTPServer *apphttp.Server
	Reaper     *reaper.Reaper
	Database   *gorm.DB
	Cleanup    func() error
}

// Build composes the Valentine application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	cfg := deps.Config
	if cfg == nil {
		return Result{}, eris.New("configuration is required")
	}

	db, err := appdb.Open(appdb.Options{URL: cfg.DatabaseURL})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := appdb.Close(db); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := love.Migrate(ctx, db, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running love page migrations"))
	}

	store, err := love.NewStore(db, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page store"))
	}

	verifier, err := payment.NewVerifier(cfg.Payment.KeySecret)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating payment verifier"))
	}

	orders := deps.Orders
	if orders == nil {
		if orders, err = payment.NewRazorpayClient(payment.RazorpayOptions{
			KeyID:           cfg.Payment.KeyID,
			KeySecret:       cfg.Payment.KeySecret,
			DefaultCurrency: cfg.Payment.Currency,
			Logger:          deps.Logger,
		}); err != nil {
			return closeOnError(eris.Wrap(err, "creating razorpay client"))
		}
	}

	uploader := deps.Media
	if uploader == nil {
		if uploader, err = media.NewS3Store(ctx, media.Options{
			Bucket:          cfg.Media.Bucket,
			Region:          cfg.Media.Region,
			Endpoint:        cfg.Media.Endpoint,
			AccessKeyID:     cfg.Media.AccessKeyID,
			SecretAccessKey: cfg.Media.SecretAccessKey,
			PublicBaseURL:   cfg.Media.PublicBaseURL,
			Prefix:          cfg.Media.Prefix,
			Logger:          deps.Logger,
		}); err != nil {
			return closeOnError(eris.Wrap(err, "creating media store"))
		}
	}

	pages, err := love.NewService(love.ServiceOptions{
		Store:     store,
		Verifier:  verifier,
		Retention: cfg.RetentionWindow,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating love page service"))
	}

	location, err := time.LoadLocation(cfg.Reaper.Timezone)
	if err != nil {
		return closeOnError(eris.Wrapf(err, "loading reaper timezone: %s", cfg.Reaper.Timezone))
	}

	sweeper, err := reaper.New(reaper.Options{
		Store:     store,
		Media:     uploader,
		Schedule:  cfg.Reaper.Schedule,
		Location:  location,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating expiry reaper"))
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Pages:          pages,
		Orders:         orders,
		Media:          uploader,
		Database:       db,
		Logger:         deps.Logger,
		SentryHub:      deps.SentryHub,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		sweeper.Stop()
		httpServer.Close()
		return appdb.Close(db)
	}

	return Result{
		Pages:      pages,
		HTTPServer: httpServer,
		Reaper:     sweeper,
		Database:   db,
		Cleanup:    cleanup,
	}, nil
}
