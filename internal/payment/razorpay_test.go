package payment

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	applog "github.com/call-me-mahi/valentine/internal/log"
)

type stubOrders struct {
	response map[string]interface{}
	err      error
	calls    int
	captured map[string]interface{}
	block    chan struct{}
}

func (s *stubOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.calls++
	s.captured = data
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func TestNewRazorpayClientRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewRazorpayClient(RazorpayOptions{KeySecret: "secret"}); err == nil {
		t.Fatalf("expected error without key id")
	}
	if _, err := NewRazorpayClient(RazorpayOptions{KeyID: "rzp_test"}); err == nil {
		t.Fatalf("expected error without key secret")
	}
}

func TestCreateOrderSendsRequestAndDecodesResponse(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{response: map[string]interface{}{
		"id":       "order_NKd2",
		"amount":   float64(19900),
		"currency": "INR",
		"receipt":  "receipt_1700000000000",
	}}
	client := newRazorpayClient(orders, "inr", applog.Discard())
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }

	order, err := client.CreateOrder(context.Background(), 19900, "")
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if order.ID != "order_NKd2" || order.Amount != 19900 || order.Currency != "INR" {
		t.Fatalf("unexpected order %+v", order)
	}

	if orders.captured["currency"] != "INR" {
		t.Fatalf("expected default currency INR, got %v", orders.captured["currency"])
	}
	if orders.captured["amount"] != int64(19900) {
		t.Fatalf("expected amount 19900, got %v", orders.captured["amount"])
	}
	if orders.captured["receipt"] != "receipt_1700000000000" {
		t.Fatalf("unexpected receipt %v", orders.captured["receipt"])
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{}
	client := newRazorpayClient(orders, "INR", nil)

	for _, amount := range []int64{0, -100} {
		_, err := client.CreateOrder(context.Background(), amount, "INR")
		if !eris.Is(err, ErrInvalidOrder) {
			t.Fatalf("expected ErrInvalidOrder for amount %d, got %v", amount, err)
		}
	}

	if orders.calls != 0 {
		t.Fatalf("expected provider not to be called, got %d calls", orders.calls)
	}
}

func TestCreateOrderWrapsProviderFailure(t *testing.T) {
	t.Parallel()

	client := newRazorpayClient(&stubOrders{err: eris.New("connection refused")}, "INR", applog.Discard())

	_, err := client.CreateOrder(context.Background(), 1000, "INR")
	if !eris.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestCreateOrderRejectsMalformedResponse(t *testing.T) {
	t.Parallel()

	client := newRazorpayClient(&stubOrders{response: map[string]interface{}{"amount": "oops"}}, "INR", nil)

	if _, err := client.CreateOrder(context.Background(), 1000, "INR"); !eris.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider for malformed response, got %v", err)
	}
}

func TestCreateOrderHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	orders := &stubOrders{block: make(chan struct{})}
	defer close(orders.block)

	client := newRazorpayClient(orders, "INR", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.CreateOrder(ctx, 1000, "INR"); !eris.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider after cancellation, got %v", err)
	}
}
