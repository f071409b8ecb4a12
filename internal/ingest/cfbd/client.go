package cfbd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	BaseURL = "https://api.collegefootballdata.com"

	SeasonStatsPath   = "/stats/season"
	AdvancedStatsPath = "/stats/season/advanced"
	GamesPath         = "/games"
	LinesPath         = "/lines"

	defaultTimeout = 30 * time.Second
)

// ErrUpstream marks any non-success response from the stats service.
var ErrUpstream = errors.New("cfbd upstream error")

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cfbd %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// RawCache stores raw response bodies keyed by endpoint and query.
// Implementations must treat a miss and a backend failure the same way.
type RawCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Client handles CollegeFootballData API requests. Requests are issued one at
// a time by callers; the client itself holds no per-run state.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      RawCache
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRawCache enables read-through caching of the stats endpoints.
func WithRawCache(rc RawCache) Option {
	return func(c *Client) { c.cache = rc }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new client with a custom base URL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient creates a client against the public API.
func NewClient(apiKey string, opts ...Option) *Client {
	return New(BaseURL, apiKey, opts...)
}

// SeasonStats fetches season totals for the given window.
func (c *Client) SeasonStats(ctx context.Context, q StatsQuery) ([]SeasonStat, error) {
	var out []SeasonStat
	if err := c.getJSON(ctx, SeasonStatsPath, q.values(), true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdvancedSeasonStats fetches advanced season totals for the given window.
func (c *Client) AdvancedSeasonStats(ctx context.Context, q StatsQuery) ([]AdvancedSeasonStat, error) {
	var out []AdvancedSeasonStat
	if err := c.getJSON(ctx, AdvancedStatsPath, q.values(), true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Games lists games. Scores change as games are played, so this endpoint is
// never served from the raw cache.
func (c *Client) Games(ctx context.Context, q GamesQuery) ([]Game, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(q.Year))
	if q.Week > 0 {
		params.Set("week", strconv.Itoa(q.Week))
	}
	if q.SeasonType != "" {
		params.Set("seasonType", q.SeasonType)
	}
	if q.Team != "" {
		params.Set("team", q.Team)
	}

	var out []Game
	if err := c.getJSON(ctx, GamesPath, params, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lines lists betting lines grouped by game.
func (c *Client) Lines(ctx context.Context, q LinesQuery) ([]BettingGame, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(q.Year))
	if q.Week > 0 {
		params.Set("week", strconv.Itoa(q.Week))
	}
	if q.SeasonType != "" {
		params.Set("seasonType", q.SeasonType)
	}
	if q.Team != "" {
		params.Set("team", q.Team)
	}

	var out []BettingGame
	if err := c.getJSON(ctx, LinesPath, params, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q StatsQuery) values() url.Values {
	params := url.Values{}
	params.Set("year", strconv.Itoa(q.Year))
	if q.StartWeek > 0 {
		params.Set("startWeek", strconv.Itoa(q.StartWeek))
	}
	if q.EndWeek > 0 {
		params.Set("endWeek", strconv.Itoa(q.EndWeek))
	}
	if q.Team != "" {
		params.Set("team", q.Team)
	}
	if q.ExcludeGarbageTime {
		params.Set("excludeGarbageTime", "true")
	}
	return params
}

// CacheKeys are the raw-cache keys of both stats endpoints for q.
func (q StatsQuery) CacheKeys() []string {
	params := q.values()
	return []string{CacheKey(SeasonStatsPath, params), CacheKey(AdvancedStatsPath, params)}
}

// CacheKey is the raw-cache key for an endpoint and query. url.Values encodes
// in sorted key order so equal queries always share a key.
func CacheKey(endpoint string, params url.Values) string {
	return "cfbd:" + endpoint + "?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, cacheable bool, out interface{}) error {
	key := CacheKey(endpoint, params)
	if cacheable && c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			c.logger.Debug("raw cache hit", zap.String("key", key))
			if err := json.Unmarshal(body, out); err == nil {
				return nil
			}
			c.logger.Warn("discarding undecodable cached body", zap.String("key", key))
		}
	}

	body, err := c.fetch(ctx, endpoint, params)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}

	if cacheable && c.cache != nil {
		c.cache.Set(ctx, key, body)
	}
	return nil
}

// fetch makes an authenticated GET request and returns the body of a 2xx response.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("request", zap.String("endpoint", endpoint), zap.String("query", params.Encode()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cfbd %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body[:min(len(body), 200)]),
		}
	}

	return body, nil
}
