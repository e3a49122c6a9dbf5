// Package weather fetches current conditions from OpenWeatherMap. The
// controller only cares about one thing: is it raining, and how hard.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/hydrohome/sumpctl/internal/models"
)

var (
	ErrNotConfigured = errors.New("weather client not configured")
	ErrFetchFailed   = errors.New("weather fetch failed")
)

const (
	fetchTimeout = 10 * time.Second

	// Short cycles would otherwise re-query the API every few minutes;
	// conditions keyed by a 10-minute bucket are fresh enough.
	cacheBucket = 10 * time.Minute
	cacheSize   = 16
)

type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Rain struct {
		OneH float64 `json:"1h"`
	} `json:"rain"`
}

// Client fetches and caches weather snapshots for a fixed location.
type Client struct {
	baseURL  string
	apiKey   string
	location string
	http     *http.Client
	cache    *lru.Cache
	logger   *logrus.Logger
	now      func() time.Time
}

func NewClient(apiKey, location string, logger *logrus.Logger) *Client {
	// Size is generous for a single location; the bucket suffix in the
	// key means old entries just age out of the LRU.
	cache, _ := lru.New(cacheSize)
	return &Client{
		baseURL:  "http://api.openweathermap.org/data/2.5/weather",
		apiKey:   apiKey,
		location: location,
		http:     &http.Client{Timeout: fetchTimeout},
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Current returns the current conditions, served from cache when a fetch
// for the same 10-minute bucket already succeeded. Returns an error when
// unconfigured or unreachable; callers treat a nil snapshot as valid.
func (c *Client) Current(ctx context.Context) (*models.WeatherSnapshot, error) {
	if c.apiKey == "" || c.location == "" {
		return nil, ErrNotConfigured
	}

	key := fmt.Sprintf("%s@%d", c.location, c.now().Truncate(cacheBucket).Unix())
	if cached, ok := c.cache.Get(key); ok {
		snap := cached.(models.WeatherSnapshot)
		return &snap, nil
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, *snap)

	c.logger.WithFields(logrus.Fields{
		"condition": snap.Condition,
		"rain_1h":   snap.Rain1h,
	}).Info("Weather refreshed")

	return snap, nil
}

func (c *Client) fetch(ctx context.Context) (*models.WeatherSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	u := fmt.Sprintf("%s?q=%s&appid=%s", c.baseURL, url.QueryEscape(c.location), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	if len(body.Weather) == 0 {
		return nil, fmt.Errorf("%w: empty weather array", ErrFetchFailed)
	}

	return &models.WeatherSnapshot{
		Condition:   strings.ToLower(body.Weather[0].Main),
		Rain1h:      body.Rain.OneH,
		Description: body.Weather[0].Description,
	}, nil
}
