package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sports-arb-scanner/internal/odds"
)

const (
	sportsPath     = "/sports"
	oddsPath       = "/sports/%s/odds"
	historicalPath = "/historical/sports/%s/odds"
)

// OddsAPIOptions parameterise The Odds API client.
type OddsAPIOptions struct {
	BaseURL    string
	APIKey     string
	Regions    []string
	Market     string
	OddsFormat string
	Timeout    time.Duration
	UserAgent  string
	Cache      ResponseCache
	OddsTTL    time.Duration
	SportsTTL  time.Duration
}

// OddsAPI fetches sports and h2h odds from The Odds API v4.
type OddsAPI struct {
	opts    OddsAPIOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewOddsAPI constructs a pricing client.
func NewOddsAPI(opts OddsAPIOptions, logger zerolog.Logger) *OddsAPI {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.the-odds-api.com/v4"
	}
	if opts.Market == "" {
		opts.Market = odds.HeadToHead
	}
	if opts.OddsFormat == "" {
		opts.OddsFormat = "decimal"
	}
	if len(opts.Regions) == 0 {
		opts.Regions = []string{"au", "us", "uk"}
	}

	return &OddsAPI{
		opts:    opts,
		logger:  logger.With().Str("component", "odds_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchSports lists the sports currently in season.
func (c *OddsAPI) FetchSports(ctx context.Context) ([]odds.Sport, error) {
	payload, err := c.get(ctx, sportsPath, nil, c.opts.SportsTTL)
	if err != nil {
		return nil, err
	}

	var all []odds.Sport
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("decode sports: %w", err)
	}

	active := make([]odds.Sport, 0, len(all))
	for _, s := range all {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}

// FetchOdds retrieves upcoming events with h2h prices for a sport.
func (c *OddsAPI) FetchOdds(ctx context.Context, sport string) ([]odds.Event, error) {
	if sport == "" {
		return nil, fmt.Errorf("sport key required")
	}
	payload, err := c.get(ctx, fmt.Sprintf(oddsPath, url.PathEscape(sport)), c.oddsQuery(), c.opts.OddsTTL)
	if err != nil {
		return nil, err
	}

	events, skipped, err := odds.DecodeEvents(payload)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.Warn().Str("sport", sport).Int("skipped", skipped).Msg("skipped undecodable events")
	}
	return events, nil
}

// FetchHistoricalOdds retrieves the snapshot closest to at.
func (c *OddsAPI) FetchHistoricalOdds(ctx context.Context, sport string, at time.Time) (odds.Snapshot, error) {
	if sport == "" {
		return odds.Snapshot{}, fmt.Errorf("sport key required")
	}
	query := c.oddsQuery()
	query.Set("date", at.UTC().Format(time.RFC3339))

	payload, err := c.get(ctx, fmt.Sprintf(historicalPath, url.PathEscape(sport)), query, 0)
	if err != nil {
		return odds.Snapshot{}, err
	}

	snap, skipped, err := odds.DecodeSnapshot(payload)
	if err != nil {
		return odds.Snapshot{}, err
	}
	if skipped > 0 {
		c.logger.Warn().Str("sport", sport).Int("skipped", skipped).Msg("skipped undecodable historical events")
	}
	return snap, nil
}

func (c *OddsAPI) oddsQuery() url.Values {
	q := url.Values{}
	q.Set("regions", strings.Join(c.opts.Regions, ","))
	q.Set("markets", c.opts.Market)
	q.Set("oddsFormat", c.opts.OddsFormat)
	return q
}

func (c *OddsAPI) get(ctx context.Context, path string, query url.Values, ttl time.Duration) ([]byte, error) {
	if c.opts.APIKey == "" {
		return nil, fmt.Errorf("odds api key not configured")
	}

	cacheKey := path
	if len(query) > 0 {
		cacheKey += "?" + query.Encode()
	}
	if c.opts.Cache != nil && ttl > 0 {
		cached, ok, err := c.opts.Cache.Get(ctx, cacheKey)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("response cache read failed")
		} else if ok {
			c.logger.Debug().Str("key", cacheKey).Msg("response cache hit")
			return cached, nil
		}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.opts.APIKey)

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "arbscanner/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
		c.logger.Debug().
			Str("path", path).
			Str("requests_remaining", remaining).
			Str("requests_used", resp.Header.Get("x-requests-used")).
			Msg("odds api quota")
	}

	if c.opts.Cache != nil && ttl > 0 {
		if err := c.opts.Cache.Set(ctx, cacheKey, payload, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", cacheKey).Msg("response cache write failed")
		}
	}
	return payload, nil
}

type errorResponse struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("odds api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorCode != "" {
			return fmt.Errorf("odds api error (%d): %s", status, apiErr.ErrorCode)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("odds api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("odds api error (%d)", status)
}

var _ OddsSource = (*OddsAPI)(nil)
