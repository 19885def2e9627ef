package love

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store defines persistence operations for love pages.
type Store interface {
	Create(ctx context.Context, page *Page) error
	GetBySlug(ctx context.Context, slug string) (*Page, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]Page, error)
	Delete(ctx context.Context, id uint) error
}

// GormStore persists pages using a Gorm database connection.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Store = (*GormStore)(nil)

// NewStore constructs a Gorm-backed store implementation.
func NewStore(db *gorm.DB, logger *logrus.Logger) (*GormStore, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormStore{db: db, logger: logger}, nil
}

// Create inserts the page as a single row. A slug collision yields ErrSlugTaken.
func (r *GormStore) Create(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}
	if strings.TrimSpace(page.Slug) == "" {
		return eris.New("page slug is required")
	}

	if err := r.db.WithContext(ctx).Create(page).Error; err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrSlugTaken, "inserting page: %s", page.Slug)
		}
		r.logError(logrus.Fields{"slug": page.Slug}, err, "inserting page")
		return eris.Wrapf(err, "inserting page: %s", page.Slug)
	}

	return nil
}

// GetBySlug returns the page for the provided slug or nil when not found.
func (r *GormStore) GetBySlug(ctx context.Context, slug string) (*Page, error) {
	var page Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", slug).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": slug}, err, "fetching page by slug")
		return nil, eris.Wrapf(err, "fetching page by slug: %s", slug)
	}

	return &page, nil
}

// ExistsBySlug reports whether a page with exactly this slug is stored.
func (r *GormStore) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Page{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		r.logError(logrus.Fields{"slug": slug}, err, "checking slug existence")
		return false, eris.Wrapf(err, "checking slug existence: %s", slug)
	}

	return count > 0, nil
}

// ListExpired returns every page whose expiry is strictly before now, oldest first.
func (r *GormStore) ListExpired(ctx context.Context, now time.Time) ([]Page, error) {
	var pages []Page

	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Order("expires_at ASC").
		Find(&pages).Error
	if err != nil {
		r.logError(nil, err, "listing expired pages")
		return nil, eris.Wrap(err, "listing expired pages")
	}

	return pages, nil
}

// Delete removes the page row. Deleting a missing row is not an error.
func (r *GormStore) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&Page{}, id).Error; err != nil {
		r.logError(logrus.Fields{"page_id": id}, err, "deleting page")
		return eris.Wrapf(err, "deleting page: %d", id)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if eris.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Fallback for drivers that do not implement error translation.
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate key")
}

func (r *GormStore) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("component", "love.store").WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
