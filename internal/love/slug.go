package love

import (
	"context"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// SlugLength is the number of characters in a public page identifier.
const SlugLength = 7

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{7}$`)

// ValidSlug reports whether s has the shape of an allocated slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// SlugAllocator hands out slugs that are absent from the store at check time.
//
// The check is advisory; the store's unique index remains the authority and
// callers must handle ErrSlugTaken on insert.
type SlugAllocator struct {
	store    Store
	generate func() (string, error)
	logger   *logrus.Logger
}

// NewSlugAllocator constructs an allocator drawing nanoid candidates.
func NewSlugAllocator(store Store, logger *logrus.Logger) (*SlugAllocator, error) {
	if store == nil {
		return nil, eris.New("page store is required")
	}

	return &SlugAllocator{
		store: store,
		generate: func() (string, error) {
			return gonanoid.New(SlugLength)
		},
		logger: logger,
	}, nil
}

// Allocate generates candidates until one is not present in the store.
func (a *SlugAllocator) Allocate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "allocating slug")
		}

		candidate, err := a.generate()
		if err != nil {
			return "", eris.Wrap(err, "generating slug")
		}

		exists, err := a.store.ExistsBySlug(ctx, candidate)
		if err != nil {
			return "", eris.Wrap(err, "checking slug candidate")
		}
		if !exists {
			return candidate, nil
		}

		slugCollisionsTotal.Inc()
		if a.logger != nil {
			a.logger.WithFields(logrus.Fields{
				"component": "love.slug",
				"slug":      candidate,
			}).Debug("slug candidate already taken")
		}
	}
}
