package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"tally/internal/config"
	"tally/internal/ledgererror"
	"tally/internal/models"
	"tally/internal/money"
)

// DefaultStarlingBaseURL is the production Starling Bank API endpoint.
const DefaultStarlingBaseURL = "https://api.starlingbank.com"

// Starling pulls the transaction feed of the account's default category
// from the Starling Bank REST API.
type Starling struct {
	cfg    config.SourceConfig
	client *http.Client
}

// NewStarling creates a Starling adapter from its configuration.
func NewStarling(sc config.SourceConfig) *Starling {
	return &Starling{
		cfg:    sc,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the configured source name.
func (s *Starling) Name() string { return s.cfg.Name }

type starlingAccount struct {
	AccountUID      string `json:"accountUid"`
	DefaultCategory string `json:"defaultCategory"`
}

type starlingAccounts struct {
	Accounts []starlingAccount `json:"accounts"`
}

type starlingAmount struct {
	Currency   string `json:"currency"`
	MinorUnits int64  `json:"minorUnits"`
}

type starlingFeedItem struct {
	FeedItemUID      string         `json:"feedItemUid"`
	Amount           starlingAmount `json:"amount"`
	Direction        string         `json:"direction"`
	CounterPartyName string         `json:"counterPartyName"`
	TransactionTime  time.Time      `json:"transactionTime"`
}

type starlingFeed struct {
	FeedItems []starlingFeedItem `json:"feedItems"`
}

// Fetch lists the account's feed items booked since the given time. A nil
// since fetches the whole feed history.
func (s *Starling) Fetch(ctx context.Context, since *time.Time) ([]models.Candidate, []*ledgererror.RowError, error) {
	token := os.Getenv(s.cfg.TokenEnv)
	if token == "" {
		return nil, nil, &ledgererror.SourceError{
			Source: s.cfg.Name,
			Err:    fmt.Errorf("environment variable %s is not set", s.cfg.TokenEnv),
		}
	}

	account, err := s.defaultAccount(ctx, token)
	if err != nil {
		return nil, nil, &ledgererror.SourceError{Source: s.cfg.Name, Err: err}
	}

	changesSince := time.Unix(0, 0).UTC()
	if since != nil {
		changesSince = since.UTC()
	}
	url := fmt.Sprintf("%s/api/v2/feed/account/%s/category/%s?changesSince=%s",
		s.baseURL(), account.AccountUID, account.DefaultCategory,
		changesSince.Format("2006-01-02T15:04:05.000Z"))

	var feed starlingFeed
	if err := s.get(ctx, url, token, &feed); err != nil {
		return nil, nil, &ledgererror.SourceError{Source: s.cfg.Name, Err: err}
	}

	candidates := make([]models.Candidate, 0, len(feed.FeedItems))
	var rowErrs []*ledgererror.RowError
	for i, item := range feed.FeedItems {
		if item.TransactionTime.IsZero() {
			rowErrs = append(rowErrs, &ledgererror.RowError{
				Source: s.cfg.Name,
				Row:    i + 1,
				Field:  "transactionTime",
				Err:    fmt.Errorf("feed item %s has no transaction time", item.FeedItemUID),
			})
			continue
		}
		amount := money.Money(item.Amount.MinorUnits)
		if item.Direction == "OUT" {
			amount = -amount
		}
		description := item.CounterPartyName
		if description == "" {
			description = "Unknown"
		}
		candidates = append(candidates, models.Candidate{
			Date:        item.TransactionTime,
			Description: description,
			Amount:      amount,
		})
	}

	log.WithFields(map[string]interface{}{
		"source": s.cfg.Name,
		"items":  len(candidates),
	}).Debug("Fetched Starling feed")
	return candidates, rowErrs, nil
}

// defaultAccount returns the first account of the token holder. Personal
// tokens see exactly one account.
func (s *Starling) defaultAccount(ctx context.Context, token string) (starlingAccount, error) {
	var accounts starlingAccounts
	if err := s.get(ctx, s.baseURL()+"/api/v2/accounts", token, &accounts); err != nil {
		return starlingAccount{}, err
	}
	if len(accounts.Accounts) == 0 {
		return starlingAccount{}, fmt.Errorf("no accounts visible to this token")
	}
	return accounts.Accounts[0], nil
}

func (s *Starling) get(ctx context.Context, url, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Starling) baseURL() string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	return DefaultStarlingBaseURL
}
