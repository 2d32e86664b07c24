package phishtank

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akashahram/Phishing-Email-Detector/pkg/httputil"
	"github.com/akashahram/Phishing-Email-Detector/pkg/telemetry"
)

// DefaultEndpoint is the public PhishTank check API.
const DefaultEndpoint = "https://checkurl.phishtank.com/checkurl/"

const userAgent = "phishing-detector/1.0"

// ClientConfig configures a PhishTank Client.
type ClientConfig struct {
	// Endpoint overrides the API URL, mainly for tests.
	Endpoint string

	// APIKey raises the rate limit. Without one, network lookups are
	// throttled to two per second.
	APIKey string

	// Throttle is the pause between anonymous network lookups.
	Throttle time.Duration

	// HTTPClient performs the lookups. Required.
	HTTPClient *http.Client

	// Cache stores verdicts. Required.
	Cache Cache

	// Sleep is swapped out by tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Client checks URLs against the PhishTank database. Every failure mode
// degrades to an unverified record so the caller's analysis keeps going
// when the oracle is slow or down.
type Client struct {
	endpoint string
	apiKey   string
	throttle time.Duration
	http     *http.Client
	cache    Cache
	sleep    func(time.Duration)

	mu          sync.Mutex
	lastRequest time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports hit and miss counts since startup. Entries is only
// populated for caches that can report their size cheaply.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries,omitempty"`
}

// NewClient builds a Client from cfg, applying defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("phishtank client requires an HTTP client")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("phishtank client requires a cache")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Throttle == 0 {
		cfg.Throttle = 500 * time.Millisecond
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		throttle: cfg.Throttle,
		http:     cfg.HTTPClient,
		cache:    cfg.Cache,
		sleep:    cfg.Sleep,
	}, nil
}

// CacheKey hashes a URL into its cache key.
func CacheKey(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Check returns the PhishTank verdict for rawURL, consulting the cache
// first. It never returns an error; oracle failures yield a neutral record.
func (c *Client) Check(ctx context.Context, rawURL string) *Record {
	if strings.TrimSpace(rawURL) == "" {
		return &Record{URL: rawURL}
	}

	key := CacheKey(rawURL)
	if record, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		c.hits.Add(1)
		telemetry.CacheHits.Inc()
		telemetry.OracleLookups.WithLabelValues("cache_hit").Inc()
		return record
	} else if err != nil {
		log.Printf("[PHISHTANK] cache read failed for %s: %v", key, err)
	}
	c.misses.Add(1)
	telemetry.CacheMisses.Inc()

	record := c.lookup(ctx, rawURL)
	if err := c.cache.Set(ctx, key, record); err != nil {
		log.Printf("[PHISHTANK] cache write failed for %s: %v", key, err)
	}
	return record
}

// lookup performs the network call, serialized and throttled for the
// anonymous tier.
func (c *Client) lookup(ctx context.Context, rawURL string) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey == "" && !c.lastRequest.IsZero() {
		if wait := c.throttle - time.Since(c.lastRequest); wait > 0 {
			c.sleep(wait)
		}
	}
	c.lastRequest = time.Now()

	neutral := &Record{URL: rawURL}

	form := url.Values{}
	form.Set("url", rawURL)
	form.Set("format", "json")
	if c.apiKey != "" {
		form.Set("app_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		telemetry.OracleLookups.WithLabelValues("error").Inc()
		return neutral
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[PHISHTANK] lookup failed for %s: %v", rawURL, err)
		telemetry.OracleLookups.WithLabelValues("error").Inc()
		return neutral
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[PHISHTANK] unexpected status %d for %s", resp.StatusCode, rawURL)
		telemetry.OracleLookups.WithLabelValues("error").Inc()
		return neutral
	}

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		log.Printf("[PHISHTANK] reading response for %s: %v", rawURL, err)
		telemetry.OracleLookups.WithLabelValues("error").Inc()
		return neutral
	}

	var payload struct {
		Results struct {
			InDatabase     bool        `json:"in_database"`
			PhishID        json.Number `json:"phish_id"`
			Verified       bool        `json:"verified"`
			SubmissionTime string      `json:"submission_time"`
			VerifiedTime   string      `json:"verified_time"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("[PHISHTANK] malformed response for %s: %v", rawURL, err)
		telemetry.OracleLookups.WithLabelValues("error").Inc()
		return neutral
	}

	telemetry.OracleLookups.WithLabelValues("ok").Inc()
	return &Record{
		URL:            rawURL,
		InDatabase:     payload.Results.InDatabase,
		PhishID:        payload.Results.PhishID.String(),
		Verified:       payload.Results.Verified,
		SubmissionTime: payload.Results.SubmissionTime,
		VerifiedTime:   payload.Results.VerifiedTime,
	}
}

// Stats returns cache hit and miss counts since startup.
func (c *Client) Stats() CacheStats {
	stats := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if sized, ok := c.cache.(interface{ Len() int }); ok {
		stats.Entries = sized.Len()
	}
	return stats
}
