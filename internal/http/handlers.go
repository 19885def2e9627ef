package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/call-me-mahi/valentine/internal/db"
	"github.com/call-me-mahi/valentine/internal/love"
	"github.com/call-me-mahi/valentine/internal/payment"
)

const (
	invalidPayloadMessage     = "Invalid payload"
	invalidAmountMessage      = "A positive amount in the smallest currency unit is required"
	orderFailedMessage        = "Order creation failed"
	verificationFailedMessage = "Payment verification failed"
	saveFailedMessage         = "Payment verified but save failed"
	invalidPageIDMessage      = "Invalid page ID"
	pageNotFoundMessage       = "Love page not found"
	pageLookupFailedMessage   = "We couldn't load this page right now"
	healthStatusOK            = "OK"
	healthStatusUnavailable   = "UNAVAILABLE"
	healthDependencyOK        = "ok"
	healthDependencyDown      = "error"
)

type createOrderInput struct {
	Body struct {
		Amount   int64  `json:"amount,omitempty" doc:"Amount in the smallest currency unit, e.g. paise"`
		Currency string `json:"currency,omitempty" doc:"ISO currency code; defaults to the configured currency"`
	}
}

type createOrderOutput struct {
	Body struct {
		Success  bool   `json:"success"`
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt,omitempty"`
	}
}

// verifyBody also accepts the checkout widget's native field names so the
// provider callback can be forwarded as is.
type verifyBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	OrderID   string `json:"orderId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	Signature string `json:"signature,omitempty"`

	RazorpayOrderID   string `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string `json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string `json:"razorpay_signature,omitempty"`

	Content  *pageContentBody `json:"content,omitempty"`
	FormData *pageContentBody `json:"formData,omitempty"`
}

type pageContentBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	YourName       string      `json:"yourName,omitempty"`
	YourGender     string      `json:"yourGender,omitempty"`
	PartnerName    string      `json:"partnerName,omitempty"`
	PartnerGender  string      `json:"partnerGender,omitempty"`
	FirstMeeting   string      `json:"firstMeeting,omitempty"`
	FavoriteMemory string      `json:"favoriteMemory,omitempty"`
	Message        string      `json:"message,omitempty"`
	Photos         []photoBody `json:"photos,omitempty"`
	Music          string      `json:"music,omitempty"`
	Theme          string      `json:"theme,omitempty"`
}

type photoBody struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	URL      string `json:"url,omitempty"`
	ID       string `json:"id,omitempty"`
	PublicID string `json:"publicId,omitempty"`
}

type verifyInput struct {
	Body verifyBody
}

type verifyOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Slug    string `json:"slug"`
	}
}

type pageInput struct {
	Slug string `path:"slug"`
}

type pageRecord struct {
	Slug           string           `json:"slug"`
	IsPaid         bool             `json:"isPaid"`
	PaymentMeta    love.PaymentMeta `json:"paymentMeta"`
	YourName       string           `json:"yourName"`
	YourGender     string           `json:"yourGender"`
	PartnerName    string           `json:"partnerName"`
	PartnerGender  string           `json:"partnerGender"`
	FirstMeeting   string           `json:"firstMeeting"`
	FavoriteMemory string           `json:"favoriteMemory"`
	Message        string           `json:"message"`
	Photos         []love.Photo     `json:"photos"`
	Music          string           `json:"music,omitempty"`
	Theme          string           `json:"theme"`
	CreatedAt      time.Time        `json:"createdAt"`
	ExpiresAt      time.Time        `json:"expiresAt"`
}

type pageOutput struct {
	Body pageRecord
}

type healthResponse struct {
	Status int
	Body   struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
}

func (s *Server) registerPaymentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-order",
		Method:      stdhttp.MethodPost,
		Path:        "/payment/create-order",
		Summary:     "Open a payment order",
		Errors:      []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.createOrderHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "verify-payment",
		Method:      stdhttp.MethodPost,
		Path:        "/payment/verify",
		Summary:     "Verify a payment and publish its love page",
		Errors:      []int{stdhttp.StatusBadRequest, stdhttp.StatusUnauthorized, stdhttp.StatusInternalServerError},
	}, s.verifyHandler)
}

func (s *Server) registerPageRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-page",
		Method:      stdhttp.MethodGet,
		Path:        "/pages/{slug}",
		Summary:     "Fetch a published love page",
		Errors:      []int{stdhttp.StatusBadRequest, stdhttp.StatusNotFound},
	}, s.pageHandler)
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/health", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) createOrderHandler(ctx context.Context, input *createOrderInput) (*createOrderOutput, error) {
	order, err := s.orders.CreateOrder(ctx, input.Body.Amount, input.Body.Currency)
	if err != nil {
		if eris.Is(err, payment.ErrInvalidOrder) {
			return nil, huma.Error400BadRequest(invalidAmountMessage)
		}
		s.recordError(ctx, err, "creating payment order", logrus.Fields{"amount": input.Body.Amount})
		return nil, huma.Error500InternalServerError(orderFailedMessage)
	}

	out := &createOrderOutput{}
	out.Body.Success = true
	out.Body.OrderID = order.ID
	out.Body.Amount = order.Amount
	out.Body.Currency = order.Currency
	out.Body.Receipt = order.Receipt
	return out, nil
}

func (s *Server) verifyHandler(ctx context.Context, input *verifyInput) (*verifyOutput, error) {
	body := input.Body
	req := love.PublishRequest{
		OrderID:   firstNonEmpty(body.OrderID, body.RazorpayOrderID),
		PaymentID: firstNonEmpty(body.PaymentID, body.RazorpayPaymentID),
		Signature: firstNonEmpty(body.Signature, body.RazorpaySignature),
	}

	content := body.Content
	if content == nil {
		content = body.FormData
	}
	if content != nil {
		req.Content = content.toContent()
	}

	slug, err := s.pages.Publish(ctx, req)
	if err != nil {
		switch {
		case eris.Is(err, love.ErrValidation):
			return nil, huma.Error400BadRequest(invalidPayloadMessage, err)
		case eris.Is(err, love.ErrAuthentication):
			return nil, huma.Error401Unauthorized(verificationFailedMessage)
		default:
			// The service has already logged the payment ids for reconciliation.
			return nil, huma.Error500InternalServerError(saveFailedMessage)
		}
	}

	out := &verifyOutput{}
	out.Body.Success = true
	out.Body.Slug = slug
	return out, nil
}

func (s *Server) pageHandler(ctx context.Context, input *pageInput) (*pageOutput, error) {
	slug := strings.TrimSpace(input.Slug)

	page, err := s.pages.GetBySlug(ctx, slug)
	if err != nil {
		switch {
		case eris.Is(err, love.ErrValidation):
			return nil, huma.Error400BadRequest(invalidPageIDMessage)
		case eris.Is(err, love.ErrNotFound):
			return nil, huma.Error404NotFound(pageNotFoundMessage)
		default:
			s.recordError(ctx, err, "loading love page", logrus.Fields{"slug": slug})
			return nil, huma.Error500InternalServerError(pageLookupFailedMessage)
		}
	}

	return &pageOutput{Body: newPageRecord(page)}, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{Status: stdhttp.StatusOK}
	resp.Body.Status = healthStatusOK
	resp.Body.Database = healthDependencyOK

	sqlDB, err := db.SQLDB(s.db)
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Status = stdhttp.StatusServiceUnavailable
		resp.Body.Status = healthStatusUnavailable
		resp.Body.Database = healthDependencyDown
	}

	return resp, nil
}

func (c *pageContentBody) toContent() *love.Content {
	content := &love.Content{
		YourName:       c.YourName,
		YourGender:     c.YourGender,
		PartnerName:    c.PartnerName,
		PartnerGender:  c.PartnerGender,
		FirstMeeting:   c.FirstMeeting,
		FavoriteMemory: c.FavoriteMemory,
		Message:        c.Message,
		Music:          c.Music,
		Theme:          c.Theme,
	}

	for _, photo := range c.Photos {
		content.Photos = append(content.Photos, love.Photo{
			URL: photo.URL,
			ID:  firstNonEmpty(photo.ID, photo.PublicID),
		})
	}

	return content
}

func newPageRecord(page *love.Page) pageRecord {
	photos := page.Photos
	if photos == nil {
		photos = []love.Photo{}
	}

	return pageRecord{
		Slug:           page.Slug,
		IsPaid:         page.IsPaid,
		PaymentMeta:    page.Payment,
		YourName:       page.YourName,
		YourGender:     page.YourGender,
		PartnerName:    page.PartnerName,
		PartnerGender:  page.PartnerGender,
		FirstMeeting:   page.FirstMeeting,
		FavoriteMemory: page.FavoriteMemory,
		Message:        page.Message,
		Photos:         photos,
		Music:          page.Music,
		Theme:          page.Theme,
		CreatedAt:      page.CreatedAt,
		ExpiresAt:      page.ExpiresAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("component", "http").WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
