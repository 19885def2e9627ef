package love

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/call-me-mahi/valentine/internal/db"
	applog "github.com/call-me-mahi/valentine/internal/log"
	"github.com/call-me-mahi/valentine/internal/payment"
)

const testSecret = "rzp_test_secret"

var baseTime = time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC)

func setupStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "love.db")
	gormDB, err := db.Open(db.Options{URL: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := applog.Discard()

	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	store, err := NewStore(gormDB, logger)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	return store, gormDB
}

func testVerifier(t *testing.T) *payment.Verifier {
	t.Helper()

	verifier, err := payment.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier returned error: %v", err)
	}
	return verifier
}

func sampleContent() *Content {
	return &Content{
		YourName:       "Asha",
		YourGender:     "female",
		PartnerName:    "Rohan",
		PartnerGender:  "male",
		FirstMeeting:   "  Library, second floor, a borrowed pencil.  ",
		FavoriteMemory: "Monsoon walk along Marine Drive",
		Message:        "Seven years and counting.\nStill you.",
		Photos: []Photo{
			{URL: "https://cdn.example.com/love-pages/a.jpg", ID: "love-pages/a.jpg"},
			{URL: "https://cdn.example.com/love-pages/b.png", ID: "love-pages/b.png"},
		},
		Music: "https://music.example.com/track/42",
		Theme: "sunset",
	}
}

func seedPage(t *testing.T, store Store, slug string, createdAt time.Time) *Page {
	t.Helper()

	page := &Page{
		Slug:           slug,
		IsPaid:         true,
		Payment:        PaymentMeta{OrderID: "order_" + slug, PaymentID: "pay_" + slug},
		YourName:       "A",
		YourGender:     "x",
		PartnerName:    "B",
		PartnerGender:  "y",
		FirstMeeting:   "somewhere",
		FavoriteMemory: "something",
		Message:        "hello",
		Theme:          defaultTheme,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(DefaultRetention),
	}
	if err := store.Create(context.Background(), page); err != nil {
		t.Fatalf("seeding page %s failed: %v", slug, err)
	}
	return page
}

func countPages(t *testing.T, gormDB *gorm.DB) int64 {
	t.Helper()

	var count int64
	if err := gormDB.Model(&Page{}).Count(&count).Error; err != nil {
		t.Fatalf("counting pages failed: %v", err)
	}
	return count
}

// sequenceGenerator yields the given slugs in order, then fails.
func sequenceGenerator(slugs ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		if i >= len(slugs) {
			return "", fmt.Errorf("sequence exhausted after %d slugs", len(slugs))
		}
		slug := slugs[i]
		i++
		return slug, nil
	}
}

// blindStore reports every slug as free so inserts hit the unique index.
type blindStore struct {
	Store
}

func (blindStore) ExistsBySlug(context.Context, string) (bool, error) {
	return false, nil
}

// failingStore fails every insert with a non-uniqueness error.
type failingStore struct {
	Store
	err     error
	creates int
}

func (f *failingStore) Create(context.Context, *Page) error {
	f.creates++
	return f.err
}

type errStub string

func (e errStub) Error() string {
	return string(e)
}
