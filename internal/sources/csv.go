package sources

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"tally/internal/config"
	"tally/internal/dateutils"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/money"
)

// CSV reads a bank export file using the column mapping from the source
// configuration, so one adapter covers the many CSV dialects banks produce.
type CSV struct {
	cfg config.SourceConfig
}

// NewCSV creates a CSV adapter from its configuration.
func NewCSV(sc config.SourceConfig) *CSV {
	return &CSV{cfg: sc}
}

// Name returns the configured source name.
func (c *CSV) Name() string { return c.cfg.Name }

// Fetch decodes every row of the configured file. Rows with an unparseable
// date or amount become row errors instead of aborting the whole file.
// The since parameter is ignored: files carry no server-side cursor, and
// re-reading old rows is harmless because ingestion deduplicates.
func (c *CSV) Fetch(ctx context.Context, since *time.Time) ([]models.Candidate, []*ledgererror.RowError, error) {
	file, err := os.Open(c.cfg.Path)
	if err != nil {
		return nil, nil, &ledgererror.SourceError{Source: c.cfg.Name, Err: err}
	}
	defer file.Close()

	rows, err := gocsv.CSVToMaps(file)
	if err != nil {
		return nil, nil, &ledgererror.SourceError{
			Source: c.cfg.Name,
			Err:    fmt.Errorf("parse %s: %w", c.cfg.Path, err),
		}
	}

	candidates := make([]models.Candidate, 0, len(rows))
	var rowErrs []*ledgererror.RowError
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		date, err := dateutils.ParseDate(row[c.cfg.DateColumn])
		if err != nil {
			rowErrs = append(rowErrs, &ledgererror.RowError{
				Source: c.cfg.Name,
				Row:    i + 1,
				Field:  c.cfg.DateColumn,
				Value:  row[c.cfg.DateColumn],
				Err:    err,
			})
			continue
		}
		amount, err := money.ParseAmount(row[c.cfg.AmountColumn])
		if err != nil {
			rowErrs = append(rowErrs, &ledgererror.RowError{
				Source: c.cfg.Name,
				Row:    i + 1,
				Field:  c.cfg.AmountColumn,
				Value:  row[c.cfg.AmountColumn],
				Err:    err,
			})
			continue
		}
		if c.cfg.ExpensesPositive {
			amount = -amount
		}
		candidates = append(candidates, models.Candidate{
			Date:        date,
			Description: row[c.cfg.DescriptionColumn],
			Amount:      amount,
		})
	}

	log.WithFields(map[string]interface{}{
		"source": c.cfg.Name,
		"file":   c.cfg.Path,
		"rows":   len(candidates),
	}).Debug("Parsed CSV export")
	return candidates, rowErrs, nil
}
