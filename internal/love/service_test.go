package love

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func newTestService(t *testing.T, store Store, allocator *SlugAllocator, now time.Time) Service {
	t.Helper()

	svc, err := NewService(ServiceOptions{
		Store:     store,
		Verifier:  testVerifier(t),
		Allocator: allocator,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func signedRequest(t *testing.T, orderID, paymentID string) PublishRequest {
	t.Helper()

	return PublishRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: testVerifier(t).Sign(orderID, paymentID),
		Content:   sampleContent(),
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)

	if _, err := NewService(ServiceOptions{Verifier: testVerifier(t)}); err == nil {
		t.Fatalf("expected error when store is missing")
	}
	if _, err := NewService(ServiceOptions{Store: store}); err == nil {
		t.Fatalf("expected error when verifier is missing")
	}
}

func TestPublishStoresVerifiedPage(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)
	ctx := context.Background()

	slug, err := svc.Publish(ctx, signedRequest(t, "order_R1", "pay_P1"))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if !ValidSlug(slug) {
		t.Fatalf("expected a 7 character slug, got %q", slug)
	}

	page, err := store.GetBySlug(ctx, slug)
	if err != nil || page == nil {
		t.Fatalf("expected stored page for %s, got %v (err %v)", slug, page, err)
	}

	content := sampleContent()
	if !page.IsPaid {
		t.Fatalf("expected page to be marked paid")
	}
	if page.Payment.OrderID != "order_R1" || page.Payment.PaymentID != "pay_P1" {
		t.Fatalf("unexpected payment meta %+v", page.Payment)
	}
	if page.FirstMeeting != content.FirstMeeting {
		t.Fatalf("expected content to be stored verbatim, got %q", page.FirstMeeting)
	}
	if page.Message != content.Message || page.Music != content.Music || page.Theme != "sunset" {
		t.Fatalf("content mismatch: %+v", page)
	}
	if len(page.Photos) != 2 || page.Photos[1].ID != "love-pages/b.png" {
		t.Fatalf("expected photos in order, got %+v", page.Photos)
	}
	if !page.CreatedAt.Equal(baseTime) {
		t.Fatalf("expected createdAt %s, got %s", baseTime, page.CreatedAt)
	}
	if got := page.ExpiresAt.Sub(page.CreatedAt); got != 7*24*time.Hour {
		t.Fatalf("expected seven day retention, got %s", got)
	}
	if count := countPages(t, gormDB); count != 1 {
		t.Fatalf("expected exactly one page, found %d", count)
	}
}

func TestPublishDefaultsThemeAndAllowsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	req := signedRequest(t, "order_R2", "pay_P2")
	req.Content.Theme = "  "
	req.Content.Music = ""
	req.Content.Photos = nil

	slug, err := svc.Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	page, err := store.GetBySlug(context.Background(), slug)
	if err != nil || page == nil {
		t.Fatalf("expected stored page, got %v (err %v)", page, err)
	}
	if page.Theme != "default" {
		t.Fatalf("expected default theme, got %q", page.Theme)
	}
	if len(page.Photos) != 0 {
		t.Fatalf("expected no photos, got %+v", page.Photos)
	}
}

func TestPublishRejectsTamperedSignature(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	req := signedRequest(t, "order_R3", "pay_P3")
	last := req.Signature[len(req.Signature)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	req.Signature = req.Signature[:len(req.Signature)-1] + string(replacement)

	_, err := svc.Publish(context.Background(), req)
	if !eris.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if count := countPages(t, gormDB); count != 0 {
		t.Fatalf("expected no page for rejected payment, found %d", count)
	}
}

func TestPublishRejectsSignatureForOtherOrder(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	req := signedRequest(t, "order_R4", "pay_P4")
	req.OrderID = "order_other"

	if _, err := svc.Publish(context.Background(), req); !eris.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if count := countPages(t, gormDB); count != 0 {
		t.Fatalf("expected no page, found %d", count)
	}
}

func TestPublishValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*PublishRequest){
		"missing payment id":     func(r *PublishRequest) { r.PaymentID = "" },
		"missing order id":       func(r *PublishRequest) { r.OrderID = " " },
		"missing signature":      func(r *PublishRequest) { r.Signature = "" },
		"missing content":        func(r *PublishRequest) { r.Content = nil },
		"missing your name":      func(r *PublishRequest) { r.Content.YourName = "" },
		"missing partner gender": func(r *PublishRequest) { r.Content.PartnerGender = "\t" },
		"missing message":        func(r *PublishRequest) { r.Content.Message = "" },
		"photo without url":      func(r *PublishRequest) { r.Content.Photos[1].URL = "" },
	}

	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, gormDB := setupStore(t)
			svc := newTestService(t, store, nil, baseTime)

			req := signedRequest(t, "order_V", "pay_V")
			mutate(&req)

			_, err := svc.Publish(context.Background(), req)
			if !eris.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if count := countPages(t, gormDB); count != 0 {
				t.Fatalf("expected no page for invalid request, found %d", count)
			}
		})
	}
}

func TestPublishValidationNamesMissingFields(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	req := signedRequest(t, "order_V2", "pay_V2")
	req.Content.YourName = ""
	req.Content.FavoriteMemory = ""

	_, err := svc.Publish(context.Background(), req)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"content.yourName", "content.favoriteMemory"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected error to mention %s, got %v", field, err)
		}
	}
}

func TestPublishTwiceCreatesDistinctPages(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)
	ctx := context.Background()

	first, err := svc.Publish(ctx, signedRequest(t, "order_A", "pay_A"))
	if err != nil {
		t.Fatalf("first Publish returned error: %v", err)
	}
	second, err := svc.Publish(ctx, signedRequest(t, "order_B", "pay_B"))
	if err != nil {
		t.Fatalf("second Publish returned error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct slugs, got %s twice", first)
	}
	if count := countPages(t, gormDB); count != 2 {
		t.Fatalf("expected two pages, found %d", count)
	}
}

func TestPublishReallocatesWhenInsertLosesSlugRace(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	seedPage(t, store, "raced01", baseTime)

	racy := blindStore{Store: store}
	allocator, err := NewSlugAllocator(racy, nil)
	if err != nil {
		t.Fatalf("NewSlugAllocator returned error: %v", err)
	}
	allocator.generate = sequenceGenerator("raced01", "fresh01")

	svc := newTestService(t, racy, allocator, baseTime)

	slug, err := svc.Publish(context.Background(), signedRequest(t, "order_race", "pay_race"))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if slug != "fresh01" {
		t.Fatalf("expected reallocated slug fresh01, got %s", slug)
	}
	if count := countPages(t, gormDB); count != 2 {
		t.Fatalf("expected seeded page plus new page, found %d", count)
	}

	seeded, err := store.GetBySlug(context.Background(), "raced01")
	if err != nil || seeded == nil || seeded.Payment.OrderID != "order_raced01" {
		t.Fatalf("expected seeded page to be untouched, got %+v (err %v)", seeded, err)
	}
}

func TestPublishGivesUpAfterRepeatedSlugRaces(t *testing.T) {
	t.Parallel()

	store, gormDB := setupStore(t)
	seedPage(t, store, "raced02", baseTime)

	racy := blindStore{Store: store}
	allocator, err := NewSlugAllocator(racy, nil)
	if err != nil {
		t.Fatalf("NewSlugAllocator returned error: %v", err)
	}
	allocator.generate = func() (string, error) { return "raced02", nil }

	svc := newTestService(t, racy, allocator, baseTime)

	_, err = svc.Publish(context.Background(), signedRequest(t, "order_loop", "pay_loop"))
	if !eris.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if count := countPages(t, gormDB); count != 1 {
		t.Fatalf("expected only the seeded page, found %d", count)
	}
}

func TestPublishReportsPersistenceFailure(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	failing := &failingStore{Store: store, err: errStub("disk full")}

	svc := newTestService(t, failing, nil, baseTime)

	_, err := svc.Publish(context.Background(), signedRequest(t, "order_F", "pay_F"))
	if !eris.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if eris.Is(err, ErrAuthentication) {
		t.Fatalf("persistence failure must not be reported as an authentication failure")
	}
	if failing.creates != 1 {
		t.Fatalf("expected a single insert attempt for non-uniqueness errors, got %d", failing.creates)
	}
}

func TestGetBySlugRejectsMalformedSlug(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	for _, slug := range []string{"", "short", "toolong12", "../etc1"} {
		if _, err := svc.GetBySlug(context.Background(), slug); !eris.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", slug, err)
		}
	}
}

func TestGetBySlugMissingPage(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	svc := newTestService(t, store, nil, baseTime)

	if _, err := svc.GetBySlug(context.Background(), "nope123"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBySlugHidesExpiredPages(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	seedPage(t, store, "aging01", baseTime)
	ctx := context.Background()

	live := newTestService(t, store, nil, baseTime.Add(7*24*time.Hour-time.Minute))
	page, err := live.GetBySlug(ctx, "aging01")
	if err != nil {
		t.Fatalf("expected page before expiry, got %v", err)
	}
	if page.Slug != "aging01" {
		t.Fatalf("unexpected page %+v", page)
	}

	expired := newTestService(t, store, nil, baseTime.Add(7*24*time.Hour))
	if _, err := expired.GetBySlug(ctx, "aging01"); !eris.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}
}
