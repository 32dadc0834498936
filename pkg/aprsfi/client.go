package aprsfi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the aprs.fi API base URL
	BaseURL = "https://api.aprs.fi/api"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies this tool to aprs.fi, which asks clients
	// to send a descriptive User-Agent.
	DefaultUserAgent = "aprs-notify/1.0 (+https://github.com/unklstewy/aprs-notify)"

	// MaxNamesPerQuery is the upstream limit on names in one "loc" query
	MaxNamesPerQuery = 20
)

// Client is an aprs.fi API client.
type Client struct {
	apiKey      string
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retry       RetryConfig
}

// Config contains configuration for the aprs.fi client.
type Config struct {
	// APIKey is the personal aprs.fi API key (from the account settings page)
	APIKey string

	// BaseURL overrides the API base URL, mainly for tests
	BaseURL string

	// UserAgent overrides DefaultUserAgent
	UserAgent string

	// Timeout per HTTP request (default: 10 seconds)
	Timeout time.Duration

	// RequestsPerMinute limits the request rate (default: 30)
	RequestsPerMinute float64

	// Retry configures retries for failed requests. The zero value disables
	// retries.
	Retry RetryConfig
}

// NewClient creates a new aprs.fi client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}

	// Burst of 1: a single-shot run never waits, repeated runs are spaced out
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
		retry:       cfg.Retry,
	}
}

// GetLocations queries the last known position of up to MaxNamesPerQuery
// stations or objects. Entries are returned in the order aprs.fi sends them.
func (c *Client) GetLocations(ctx context.Context, names ...string) ([]Location, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one name is required")
	}
	if len(names) > MaxNamesPerQuery {
		return nil, fmt.Errorf("too many names: %d (max %d)", len(names), MaxNamesPerQuery)
	}

	return RetryWithBackoffResult(ctx, c.retry, func() ([]Location, error) {
		return c.getLocations(ctx, names)
	})
}

// Close cleanly shuts down the client.
// aprs.fi has no persistent connections, so this only drops idle ones.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) getLocations(ctx context.Context, names []string) ([]Location, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("name", strings.Join(names, ","))
	q.Set("what", "loc")
	q.Set("apikey", c.apiKey)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limit (HTTP 429)
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var apiResp locResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if apiResp.Result != "ok" {
		return nil, &APIError{Result: apiResp.Result, Description: apiResp.Description}
	}

	if apiResp.Found == 0 {
		return []Location{}, nil
	}

	locations := make([]Location, 0, len(apiResp.Entries))
	for _, e := range apiResp.Entries {
		loc, err := e.toLocation()
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		locations = append(locations, loc)
	}

	return locations, nil
}

// locResponse is the JSON envelope of a "loc" query.
type locResponse struct {
	Command     string     `json:"command"`
	Result      string     `json:"result"`
	Description string     `json:"description"`
	What        string     `json:"what"`
	Found       int        `json:"found"`
	Entries     []locEntry `json:"entries"`
}

// locEntry is one entry of a "loc" response. aprs.fi encodes most numbers as
// JSON strings, and leaves out fields it does not know.
type locEntry struct {
	Class      string     `json:"class"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Time       flexNumber `json:"time"`
	LastTime   flexNumber `json:"lasttime"`
	Lat        flexNumber `json:"lat"`
	Lng        flexNumber `json:"lng"`
	Altitude   flexNumber `json:"altitude"`
	Course     flexNumber `json:"course"`
	Speed      flexNumber `json:"speed"`
	Symbol     string     `json:"symbol"`
	SrcCall    string     `json:"srccall"`
	Path       string     `json:"path"`
	Comment    string     `json:"comment"`
	StatusText string     `json:"status"`
}

func (e locEntry) toLocation() (Location, error) {
	if !e.Lat.Valid || !e.Lng.Valid {
		return Location{}, fmt.Errorf("missing coordinates")
	}

	loc := Location{
		Name:          e.Name,
		Latitude:      e.Lat.Value,
		Longitude:     e.Lng.Value,
		LatitudeText:  e.Lat.Text,
		LongitudeText: e.Lng.Text,
		Altitude:      e.Altitude.Value,
		HasAltitude:   e.Altitude.Valid,
		Speed:         e.Speed.Value,
		Course:        e.Course.Value,
		Comment:       e.Comment,
		Symbol:        e.Symbol,
		SourceCall:    e.SrcCall,
		Path:          e.Path,
		Class:         e.Class,
		Type:          e.Type,
	}

	if loc.Comment == "" {
		loc.Comment = e.StatusText
	}

	if !e.Time.Valid && !e.LastTime.Valid {
		return Location{}, fmt.Errorf("missing timestamp")
	}

	// Either timestamp stands in for the other, giving a position age of 0
	switch {
	case e.Time.Valid && e.LastTime.Valid:
		loc.Time = time.Unix(int64(e.Time.Value), 0)
		loc.LastTime = time.Unix(int64(e.LastTime.Value), 0)
	case e.Time.Valid:
		loc.Time = time.Unix(int64(e.Time.Value), 0)
		loc.LastTime = loc.Time
	default:
		loc.LastTime = time.Unix(int64(e.LastTime.Value), 0)
		loc.Time = loc.LastTime
	}

	return loc, nil
}

// flexNumber decodes a JSON number or a string holding a number.
// Valid is false for missing, null or empty values. Text keeps the string
// form when the value was quoted.
type flexNumber struct {
	Value float64
	Valid bool
	Text  string
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = flexNumber{}
		return nil
	}
	quoted := strings.HasPrefix(s, `"`)
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		*n = flexNumber{}
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", string(data), err)
	}
	*n = flexNumber{Value: v, Valid: true}
	if quoted {
		n.Text = s
	}
	return nil
}
