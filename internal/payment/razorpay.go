package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

var (
	// ErrProvider indicates the payment provider API failed or was unreachable.
	ErrProvider = eris.New("payment provider error")
	// ErrInvalidOrder indicates the caller asked for an order the provider cannot accept.
	ErrInvalidOrder = eris.New("invalid order")
)

const orderPurpose = "Love Journey Page"

// Order is the provider's reference for a pending payment.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// OrderCreator opens provider orders that the checkout widget then settles.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error)
}

// orderAPI is the subset of the razorpay-go order resource used here.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayOptions configures the Razorpay order client.
type RazorpayOptions struct {
	KeyID           string
	KeySecret       string
	DefaultCurrency string
	Logger          *logrus.Logger
}

// RazorpayClient creates orders through the Razorpay REST API.
type RazorpayClient struct {
	orders   orderAPI
	currency string
	logger   *logrus.Logger
	now      func() time.Time
}

var _ OrderCreator = (*RazorpayClient)(nil)

// NewRazorpayClient constructs a client authenticated with the merchant key pair.
func NewRazorpayClient(opts RazorpayOptions) (*RazorpayClient, error) {
	if strings.TrimSpace(opts.KeyID) == "" {
		return nil, eris.New("razorpay key id is required")
	}
	if strings.TrimSpace(opts.KeySecret) == "" {
		return nil, eris.New("razorpay key secret is required")
	}

	client := razorpay.NewClient(opts.KeyID, opts.KeySecret)
	return newRazorpayClient(client.Order, opts.DefaultCurrency, opts.Logger), nil
}

func newRazorpayClient(orders orderAPI, currency string, logger *logrus.Logger) *RazorpayClient {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "INR"
	}
	return &RazorpayClient{
		orders:   orders,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder opens an order for amount minor units. An empty currency
// falls back to the configured default.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	if amount <= 0 {
		return nil, eris.Wrap(ErrInvalidOrder, "valid amount is required")
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = c.currency
	}

	receipt := fmt.Sprintf("receipt_%d", c.now().UnixMilli())
	request := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
		"notes":           map[string]interface{}{"purpose": orderPurpose},
	}

	type result struct {
		body map[string]interface{}
		err  error
	}

	// razorpay-go has no context support; the call is abandoned, not
	// interrupted, when ctx ends first.
	done := make(chan result, 1)
	go func() {
		body, err := c.orders.Create(request, nil)
		done <- result{body: body, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ErrProvider, ctx.Err().Error())
	case res = <-done:
	}

	if res.err != nil {
		c.logError(logrus.Fields{"receipt": receipt, "amount": amount, "currency": currency}, res.err, "creating razorpay order")
		return nil, eris.Wrapf(ErrProvider, "creating order: %s", res.err.Error())
	}

	order, err := decodeOrder(res.body)
	if err != nil {
		c.logError(logrus.Fields{"receipt": receipt}, err, "decoding razorpay order")
		return nil, eris.Wrapf(ErrProvider, "decoding order: %s", err.Error())
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"component": "payment.razorpay",
			"order_id":  order.ID,
			"amount":    order.Amount,
			"currency":  order.Currency,
		}).Info("razorpay order created")
	}

	return order, nil
}

func decodeOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if strings.TrimSpace(id) == "" {
		return nil, eris.New("order id missing from provider response")
	}

	amount, err := toInt64(body["amount"])
	if err != nil {
		return nil, eris.Wrap(err, "parsing order amount")
	}

	currency, _ := body["currency"].(string)
	receipt, _ := body["receipt"].(string)

	return &Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, eris.Errorf("unexpected amount type %T", value)
	}
}

func (c *RazorpayClient) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil {
		return
	}

	c.logger.WithField("component", "payment.razorpay").
		WithField("error", err.Error()).
		WithFields(fields).
		Error(message)
}
