package bootstrap

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/call-me-mahi/valentine/internal/config"
	applog "github.com/call-me-mahi/valentine/internal/log"
	"github.com/call-me-mahi/valentine/internal/love"
	"github.com/call-me-mahi/valentine/internal/media"
	"github.com/call-me-mahi/valentine/internal/payment"
)

type stubOrders struct{}

func (stubOrders) CreateOrder(_ context.Context, amount int64, currency string) (*payment.Order, error) {
	return &payment.Order{ID: "order_boot", Amount: amount, Currency: currency}, nil
}

type stubMedia struct {
	deleted []string
}

func (s *stubMedia) Upload(context.Context, string, []byte) (media.Asset, error) {
	return media.Asset{URL: "https://cdn.example.com/love-pages/x.png", ID: "love-pages/x.png"}, nil
}

func (s *stubMedia) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		DatabaseURL: filepath.Join(t.TempDir(), "nested", "valentine.db"),
		Payment:     config.PaymentConfig{KeyID: "rzp_test_key", KeySecret: "rzp_test_secret", Currency: "INR"},
		Media:       config.MediaConfig{Bucket: "photos", Region: "ap-south-1", Prefix: "love-pages"},
		Reaper:      config.ReaperConfig{Schedule: "0 3 * * *", Timezone: "UTC"},
		RateLimit:   config.RateLimitConfig{RequestsPerSecond: 5, Burst: 20, ClientTTL: time.Minute},

		AllowedOrigins:  []string{"*"},
		RetentionWindow: 7 * 24 * time.Hour,
	}
}

func TestBuildRequiresConfig(t *testing.T) {
	t.Parallel()

	if _, err := Build(context.Background(), Dependencies{}); err == nil {
		t.Fatalf("expected error without configuration")
	}
}

func TestBuildWiresComponents(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	mediaStub := &stubMedia{}
	logger := applog.Discard()

	result, err := Build(context.Background(), Dependencies{
		Config: cfg,
		Logger: logger,
		Orders: stubOrders{},
		Media:  mediaStub,
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := result.Cleanup(); err != nil {
			t.Errorf("cleanup failed: %v", err)
		}
	})

	rec := httptest.NewRecorder()
	result.HTTPServer.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Fatalf("expected healthy server, got %d: %s", rec.Code, rec.Body.String())
	}

	verifier, err := payment.NewVerifier(cfg.Payment.KeySecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}

	slug, err := result.Pages.Publish(context.Background(), love.PublishRequest{
		OrderID:   "order_boot",
		PaymentID: "pay_boot",
		Signature: verifier.Sign("order_boot", "pay_boot"),
		Content: &love.Content{
			YourName: "A", YourGender: "x", PartnerName: "B", PartnerGender: "y",
			FirstMeeting: "f", FavoriteMemory: "m", Message: "msg",
			Photos: []love.Photo{{URL: "https://cdn.example.com/love-pages/x.png", ID: "love-pages/x.png"}},
		},
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if err := result.Database.Model(&love.Page{}).Where("slug = ?", slug).
		Update("expires_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdating page failed: %v", err)
	}

	sweep := result.Reaper.RunOnce(context.Background())
	if sweep.Deleted != 1 {
		t.Fatalf("expected reaper to remove the backdated page, got %+v", sweep)
	}
	if len(mediaStub.deleted) != 1 || mediaStub.deleted[0] != "love-pages/x.png" {
		t.Fatalf("expected reaper to delete page media through the shared uploader, got %v", mediaStub.deleted)
	}
}

func TestBuildRejectsInvalidTimezone(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Reaper.Timezone = "Mars/Olympus"

	if _, err := Build(context.Background(), Dependencies{Config: cfg, Orders: stubOrders{}, Media: &stubMedia{}}); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}
