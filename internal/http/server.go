package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/call-me-mahi/valentine/internal/love"
	"github.com/call-me-mahi/valentine/internal/media"
	"github.com/call-me-mahi/valentine/internal/payment"
)

const (
	defaultMaxUploadFiles = 10
	defaultMaxUploadBytes = 10 << 20
)

// Options configures the HTTP server wiring.
type Options struct {
	Pages          love.Service
	Orders         payment.OrderCreator
	Media          media.Uploader
	Database       *gorm.DB
	Logger         *logrus.Logger
	SentryHub      *sentry.Hub
	RateLimiter    RateLimiterSettings
	AllowedOrigins []string
	TrustedProxies []string
	MaxUploadFiles int
	MaxUploadBytes int64
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server exposes the payment, page and media endpoints as a JSON API.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	handler     stdhttp.Handler
	pages       love.Service
	orders      payment.OrderCreator
	media       media.Uploader
	logger      *logrus.Logger
	sentry      *sentry.Hub
	db          *gorm.DB
	rateLimiter *RateLimiter
	proxies     trustedProxies

	maxUploadFiles int
	maxUploadBytes int64
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Pages == nil {
		return nil, eris.New("love page service is required")
	}
	if opts.Orders == nil {
		return nil, eris.New("order creator is required")
	}
	if opts.Media == nil {
		return nil, eris.New("media uploader is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	proxies, err := parseTrustedProxies(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Valentine", "1.0.0")

	srv := &Server{
		api:            humago.New(mux, config),
		mux:            mux,
		pages:          opts.Pages,
		orders:         opts.Orders,
		media:          opts.Media,
		logger:         opts.Logger,
		sentry:         opts.SentryHub,
		db:             opts.Database,
		rateLimiter:    NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
		proxies:        proxies,
		maxUploadFiles: opts.MaxUploadFiles,
		maxUploadBytes: opts.MaxUploadBytes,
	}
	if srv.maxUploadFiles <= 0 {
		srv.maxUploadFiles = defaultMaxUploadFiles
	}
	if srv.maxUploadBytes <= 0 {
		srv.maxUploadBytes = defaultMaxUploadBytes
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	srv.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         600,
	}).Handler(mux)

	return srv, nil
}

// Handler exposes the CORS-wrapped handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.metricsMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.registerPaymentRoutes()
	s.registerPageRoute()
	s.registerMediaRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}
