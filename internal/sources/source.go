// Package sources defines the adapters that pull raw transactions out of
// external providers and files. Each adapter normalizes its provider's
// format into candidates; everything downstream of this package is
// provider-agnostic.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tally/internal/config"
	"tally/internal/ledgererror"
	"tally/internal/models"
)

var log = config.Logger

// Source fetches transactions from one configured provider. Fetch returns
// the candidates it could decode, per-row errors for entries it could not,
// and a terminal error only when the source as a whole is unreachable.
type Source interface {
	Name() string
	Fetch(ctx context.Context, since *time.Time) ([]models.Candidate, []*ledgererror.RowError, error)
}

// SetLogger sets the logger for all source adapters.
func SetLogger(logger *logrus.Logger) {
	log = logger
}

// FromConfig builds the adapter for a configured source.
func FromConfig(sc config.SourceConfig) (Source, error) {
	switch sc.Type {
	case "starling":
		return NewStarling(sc), nil
	case "csv":
		return NewCSV(sc), nil
	case "camt":
		return NewCAMT(sc), nil
	default:
		return nil, fmt.Errorf("unknown source type %q for source %s", sc.Type, sc.Name)
	}
}
