package love

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the love page schema, including the unique slug index and
// the expiry index the reaper scans.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "love.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying love page schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Page{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("love page schema migration failed")
		}
		return eris.Wrap(err, "auto migrating love page schema")
	}

	if logger != nil {
		logger.WithFields(logFields).Info("love page schema migration complete")
	}

	return nil
}
