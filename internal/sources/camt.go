package sources

import (
	"context"
	"fmt"
	"os"
	"time"

	xmlpath "gopkg.in/xmlpath.v2"

	"tally/internal/config"
	"tally/internal/dateutils"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/money"
)

// XPath expressions for the CAMT.053 entry fields, relative to an Ntry node.
var (
	camtEntryPath       = xmlpath.MustCompile("//BkToCstmrStmt/Stmt/Ntry")
	camtAmountPath      = xmlpath.MustCompile("Amt")
	camtCreditDebitPath = xmlpath.MustCompile("CdtDbtInd")
	camtBookingDatePath = xmlpath.MustCompile("BookgDt/Dt")
	camtValueDatePath   = xmlpath.MustCompile("ValDt/Dt")
	camtDebtorPath      = xmlpath.MustCompile("NtryDtls/TxDtls/RltdPties/Dbtr/Nm")
	camtCreditorPath    = xmlpath.MustCompile("NtryDtls/TxDtls/RltdPties/Cdtr/Nm")
	camtRemittancePath  = xmlpath.MustCompile("NtryDtls/TxDtls/RmtInf/Ustrd")
	camtAddInfoPath     = xmlpath.MustCompile("AddtlNtryInf")
)

// CAMT reads bank statements in the ISO 20022 CAMT.053 XML format.
type CAMT struct {
	cfg config.SourceConfig
}

// NewCAMT creates a CAMT adapter from its configuration.
func NewCAMT(sc config.SourceConfig) *CAMT {
	return &CAMT{cfg: sc}
}

// Name returns the configured source name.
func (c *CAMT) Name() string { return c.cfg.Name }

// Fetch parses every statement entry in the configured file. Like CSV
// files, statements carry no cursor, so since is ignored and ingestion
// deduplication absorbs the overlap between consecutive statements.
func (c *CAMT) Fetch(ctx context.Context, since *time.Time) ([]models.Candidate, []*ledgererror.RowError, error) {
	file, err := os.Open(c.cfg.Path)
	if err != nil {
		return nil, nil, &ledgererror.SourceError{Source: c.cfg.Name, Err: err}
	}
	defer file.Close()

	root, err := xmlpath.Parse(file)
	if err != nil {
		return nil, nil, &ledgererror.SourceError{
			Source: c.cfg.Name,
			Err:    fmt.Errorf("parse %s: %w", c.cfg.Path, err),
		}
	}

	var candidates []models.Candidate
	var rowErrs []*ledgererror.RowError
	row := 0
	iter := camtEntryPath.Iter(root)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row++
		entry := iter.Node()

		rawDate := firstString(camtBookingDatePath, entry)
		if rawDate == "" {
			rawDate = firstString(camtValueDatePath, entry)
		}
		date, err := dateutils.ParseDate(rawDate)
		if err != nil {
			rowErrs = append(rowErrs, &ledgererror.RowError{
				Source: c.cfg.Name, Row: row, Field: "BookgDt", Value: rawDate, Err: err,
			})
			continue
		}

		rawAmount := firstString(camtAmountPath, entry)
		amount, err := money.ParseAmount(rawAmount)
		if err != nil {
			rowErrs = append(rowErrs, &ledgererror.RowError{
				Source: c.cfg.Name, Row: row, Field: "Amt", Value: rawAmount, Err: err,
			})
			continue
		}
		debit := firstString(camtCreditDebitPath, entry) == "DBIT"
		if debit {
			amount = -amount
		}

		candidates = append(candidates, models.Candidate{
			Date:        date,
			Description: c.entryDescription(entry, debit),
			Amount:      amount,
		})
	}

	log.WithFields(map[string]interface{}{
		"source":  c.cfg.Name,
		"file":    c.cfg.Path,
		"entries": len(candidates),
	}).Debug("Parsed CAMT.053 statement")
	return candidates, rowErrs, nil
}

// entryDescription picks the most useful label for an entry: the other
// party's name when the statement carries one, then the unstructured
// remittance text, then the bank's own additional info.
func (c *CAMT) entryDescription(entry *xmlpath.Node, debit bool) string {
	party := camtCreditorPath
	if !debit {
		party = camtDebtorPath
	}
	for _, path := range []*xmlpath.Path{party, camtRemittancePath, camtAddInfoPath} {
		if s := firstString(path, entry); s != "" {
			return s
		}
	}
	return "Unknown"
}

// firstString returns the first match of path under node, or "".
func firstString(path *xmlpath.Path, node *xmlpath.Node) string {
	if s, ok := path.String(node); ok {
		return s
	}
	return ""
}
