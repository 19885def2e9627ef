package love

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Service defines the publish and lookup operations for love pages.
type Service interface {
	Publish(ctx context.Context, req PublishRequest) (string, error)
	GetBySlug(ctx context.Context, slug string) (*Page, error)
}

// SignatureVerifier validates a provider payment signature.
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// PublishRequest is a provider callback payload plus the page content it pays for.
type PublishRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	Content   *Content
}

// DefaultRetention is how long a published page stays reachable.
const DefaultRetention = 7 * 24 * time.Hour

// maxInsertAttempts bounds re-allocation when an insert loses a slug race.
const maxInsertAttempts = 5

// ServiceOptions wires the publisher with its collaborators.
type ServiceOptions struct {
	Store     Store
	Verifier  SignatureVerifier
	Allocator *SlugAllocator
	Retention time.Duration
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Now       func() time.Time
}

type service struct {
	store     Store
	verifier  SignatureVerifier
	allocator *SlugAllocator
	retention time.Duration
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	now       func() time.Time
}

var _ Service = (*service)(nil)

// NewService wires the love page service with its dependencies.
func NewService(opts ServiceOptions) (Service, error) {
	if opts.Store == nil {
		return nil, eris.New("page store is required")
	}
	if opts.Verifier == nil {
		return nil, eris.New("payment verifier is required")
	}

	allocator := opts.Allocator
	if allocator == nil {
		var err error
		if allocator, err = NewSlugAllocator(opts.Store, opts.Logger); err != nil {
			return nil, eris.Wrap(err, "building slug allocator")
		}
	}

	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		store:     opts.Store,
		verifier:  opts.Verifier,
		allocator: allocator,
		retention: retention,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		now:       now,
	}, nil
}

// Publish verifies the payment and stores the page, returning its slug.
// Exactly one page is created on success and none on any failure.
func (s *service) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	fields := logrus.Fields{"order_id": req.OrderID, "payment_id": req.PaymentID}

	if !s.verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		verificationsTotal.WithLabelValues("rejected").Inc()
		if s.logger != nil {
			s.logger.WithField("component", "love.publish").WithFields(fields).Warn("payment signature mismatch")
		}
		return "", eris.Wrapf(ErrAuthentication, "order %s", req.OrderID)
	}
	verificationsTotal.WithLabelValues("accepted").Inc()

	for attempt := 1; ; attempt++ {
		slug, err := s.allocator.Allocate(ctx)
		if err != nil {
			persistenceFailuresTotal.Inc()
			s.recordError(ctx, fields, err, "allocating slug for verified payment")
			return "", eris.Wrapf(ErrPersistence, "allocating slug: %s", err.Error())
		}

		createdAt := s.now().UTC()
		page := newPage(slug, req, createdAt, createdAt.Add(s.retention))

		err = s.store.Create(ctx, page)
		if err == nil {
			pagesPublishedTotal.Inc()
			if s.logger != nil {
				s.logger.WithField("component", "love.publish").WithFields(fields).WithFields(logrus.Fields{
					"slug":       slug,
					"expires_at": page.ExpiresAt.Format(time.RFC3339),
				}).Info("love page published")
			}
			return slug, nil
		}

		if eris.Is(err, ErrSlugTaken) && attempt < maxInsertAttempts {
			if s.logger != nil {
				s.logger.WithField("component", "love.publish").WithFields(fields).
					WithField("slug", slug).Warn("slug taken between check and insert, reallocating")
			}
			continue
		}

		persistenceFailuresTotal.Inc()
		fields["slug"] = slug
		s.recordError(ctx, fields, err, "persisting page for verified payment")
		return "", eris.Wrapf(ErrPersistence, "storing page: %s", err.Error())
	}
}

// GetBySlug returns the live page for slug.
func (s *service) GetBySlug(ctx context.Context, slug string) (*Page, error) {
	if !ValidSlug(slug) {
		return nil, eris.Wrap(ErrValidation, "malformed page slug")
	}

	page, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		s.recordError(ctx, logrus.Fields{"slug": slug}, err, "retrieving page from store")
		return nil, eris.Wrapf(err, "retrieving page: %s", slug)
	}

	// Pages past expiry stay hidden until the reaper removes them.
	if page == nil || page.Expired(s.now()) {
		return nil, eris.Wrapf(ErrNotFound, "slug %s", slug)
	}

	return page, nil
}

// newPage maps the request field by field so callers cannot set
// slug, payment state or timestamps themselves.
func newPage(slug string, req PublishRequest, createdAt, expiresAt time.Time) *Page {
	content := req.Content

	photos := make([]Photo, 0, len(content.Photos))
	for _, photo := range content.Photos {
		photos = append(photos, Photo{URL: photo.URL, ID: photo.ID})
	}

	theme := content.Theme
	if strings.TrimSpace(theme) == "" {
		theme = defaultTheme
	}

	return &Page{
		Slug:   slug,
		IsPaid: true,
		Payment: PaymentMeta{
			OrderID:   req.OrderID,
			PaymentID: req.PaymentID,
		},
		YourName:       content.YourName,
		YourGender:     content.YourGender,
		PartnerName:    content.PartnerName,
		PartnerGender:  content.PartnerGender,
		FirstMeeting:   content.FirstMeeting,
		FavoriteMemory: content.FavoriteMemory,
		Message:        content.Message,
		Photos:         photos,
		Music:          content.Music,
		Theme:          theme,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
	}
}

func (r PublishRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.PaymentID) == "" {
		missing = append(missing, "paymentId")
	}
	if strings.TrimSpace(r.OrderID) == "" {
		missing = append(missing, "orderId")
	}
	if strings.TrimSpace(r.Signature) == "" {
		missing = append(missing, "signature")
	}
	if r.Content == nil {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}

	return r.Content.validate()
}

func (c *Content) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"yourName", c.YourName},
		{"yourGender", c.YourGender},
		{"partnerName", c.PartnerName},
		{"partnerGender", c.PartnerGender},
		{"firstMeeting", c.FirstMeeting},
		{"favoriteMemory", c.FavoriteMemory},
		{"message", c.Message},
	}

	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, "content."+field.name)
		}
	}
	for i, photo := range c.Photos {
		if strings.TrimSpace(photo.URL) == "" {
			missing = append(missing, "content.photos["+strconv.Itoa(i)+"].url")
		}
	}

	if len(missing) > 0 {
		return eris.Wrapf(ErrValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *service) recordError(ctx context.Context, fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("component", "love.service").WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
