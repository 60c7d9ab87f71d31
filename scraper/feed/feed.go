// Package feed pulls listings from a Yad2-style JSON feed, one request per city.
package feed

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

	"realestate-leads/models"
	"realestate-leads/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures a Client.
type Options struct {
	Name       string
	BaseURL    string
	Cities     []string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// Client is a scraper.Source backed by the JSON feed endpoint.
type Client struct {
	name     string
	baseURL  string
	cities   []string
	pageSize int
	http     *http.Client
	retry    *utils.RetryConfig
	logger   *utils.Logger
}

// item is one entry of the feed. Numeric fields arrive either as numbers or
// as display strings depending on the category, so they are kept raw.
type item struct {
	ID           json.RawMessage `json:"id"`
	URL          string          `json:"url"`
	Address      string          `json:"address"`
	Street       string          `json:"street"`
	Neighborhood string          `json:"neighborhood"`
	City         string          `json:"city"`
	Price        json.RawMessage `json:"price"`
	PriceText    string          `json:"price_text"`
	Rooms        json.RawMessage `json:"rooms"`
	RoomText     string          `json:"room_text"`
	Size         json.RawMessage `json:"size"`
	SizeText     string          `json:"size_text"`
	PropertyType string          `json:"property_type"`
	Condition    string          `json:"condition"`
	Parking      json.RawMessage `json:"parking"`
	Elevator     json.RawMessage `json:"elevator"`
	Balcony      json.RawMessage `json:"balcony"`
	Garden       json.RawMessage `json:"garden"`
	Eviction     json.RawMessage `json:"eviction_building"`
	ContactName  string          `json:"contact_name"`
	ContactPhone string          `json:"contact_phone"`
	ContactEmail string          `json:"contact_email"`
}

type response struct {
	Feed []item `json:"feed"`
}

// New creates a feed Client.
func New(opts Options, logger *utils.Logger) *Client {
	if opts.Name == "" {
		opts.Name = "yad2"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger = logger.With(opts.Name)
	return &Client{
		name:     opts.Name,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		cities:   opts.Cities,
		pageSize: opts.PageSize,
		http:     httpClient,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   opts.RetryDelay,
			Logger:      logger,
		},
		logger: logger,
	}
}

func (c *Client) Name() string { return c.name }

// FetchCandidateListings queries every configured city, or the cities in
// filter when it names any. A failing city is logged and skipped; an error is
// returned only when every city failed.
func (c *Client) FetchCandidateListings(ctx context.Context, filter models.SearchFilter) ([]*models.RawListing, error) {
	cities := c.cities
	if len(filter.Cities) > 0 {
		cities = filter.Cities
	}

	var (
		out     []*models.RawListing
		lastErr error
		failed  int
	)
	for _, city := range cities {
		listings, err := c.fetchCity(ctx, city)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.logger.Error("City %s failed: %v", city, err)
			lastErr = err
			failed++
			continue
		}
		c.logger.Debug("City %s: %d listings", city, len(listings))
		out = append(out, listings...)
	}

	if failed > 0 && failed == len(cities) {
		return nil, fmt.Errorf("%s: all %d cities failed: %w", c.name, failed, lastErr)
	}
	return out, nil
}

func (c *Client) fetchCity(ctx context.Context, city string) ([]*models.RawListing, error) {
	params := url.Values{
		"city":        {city},
		"category":    {"realestate"},
		"subcategory": {"forsale"},
		"page":        {"1"},
		"limit":       {strconv.Itoa(c.pageSize)},
	}
	rawURL := c.baseURL + "?" + params.Encode()

	var body []byte
	err := c.retry.Do(ctx, "feed "+city, func() error {
		b, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal feed response: %w", err)
	}

	now := time.Now()
	out := make([]*models.RawListing, 0, len(resp.Feed))
	for _, it := range resp.Feed {
		out = append(out, c.toRaw(it, city, now))
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) toRaw(it item, city string, now time.Time) *models.RawListing {
	address := it.Address
	if address == "" {
		address = it.Street
	}
	if it.City != "" {
		city = it.City
	}
	return &models.RawListing{
		Source:       c.name,
		SourceID:     text(it.ID),
		URL:          it.URL,
		Address:      address,
		City:         city,
		Neighborhood: it.Neighborhood,
		RawPrice:     firstNonEmpty(text(it.Price), it.PriceText),
		RawRooms:     firstNonEmpty(text(it.Rooms), it.RoomText),
		RawSize:      firstNonEmpty(text(it.Size), it.SizeText),
		PropertyType: it.PropertyType,
		Condition:    it.Condition,
		Parking:      text(it.Parking),
		Elevator:     text(it.Elevator),
		Balcony:      text(it.Balcony),
		Garden:       text(it.Garden),
		Eviction:     text(it.Eviction),
		ContactName:  it.ContactName,
		ContactPhone: it.ContactPhone,
		ContactEmail: it.ContactEmail,
		ScrapedAt:    now,
	}
}

// text renders a JSON scalar as the string the cleaner expects: strings
// unquoted, numbers and booleans verbatim, null as empty.
func text(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
