package esi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/rs/zerolog/log"
)

const BaseURL = "https://esi.evetech.net/latest"

var tokenURL = "https://login.eveonline.com/v2/oauth/token"

// DefaultConcurrency bounds in-flight upstream requests for lightweight
// consumers (backend). The fetcher passes FetcherConcurrency instead, sized
// to the raised fd limit.
const (
	DefaultConcurrency = 8
	FetcherConcurrency = 127
)

const initialErrorBudget = 100

// Client is the single shared ESI HTTP client. It bounds concurrency with a
// counting semaphore, routes responses through a shared RFC 7234 disk cache,
// and self-throttles on the server-advertised error budget.
type Client struct {
	http      *http.Client
	sem       chan struct{} // one permit per outermost request-and-retry
	base      string
	userAgent string

	// Error-budget state from x-esi-error-limit-remain / -reset. The mutex
	// is held across the throttle sleep: while one task waits out the
	// budget, every other sender queues behind the same lock.
	budgetMu        sync.Mutex
	errorsRemaining int
	resetSeconds    int

	tokenMu   sync.RWMutex
	authToken string
}

// NewClient creates an ESI client identifying itself as the given component
// on the given platform, with at most concurrency in-flight requests.
// cacheDir roots the shared HTTP response cache; empty disables disk caching.
func NewClient(component, platform string, concurrency int, cacheDir string) *Client {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100, // reuse connections to ESI instead of re-handshaking TLS
		IdleConnTimeout:     15 * time.Second,
	}

	var rt http.RoundTripper = base
	if cacheDir != "" {
		cached := httpcache.NewTransport(diskcache.New(filepath.Join(cacheDir, "http")))
		cached.Transport = base
		cached.MarkCachedResponses = true // keep cache-status visible downstream
		rt = cached
	}

	return &Client{
		http:            &http.Client{Transport: rt},
		sem:             make(chan struct{}, concurrency),
		base:            BaseURL,
		userAgent:       fmt.Sprintf("%s; component of everterm/0.1.0 (+https://github.com/x4132/everterm) on %s", component, platform),
		errorsRemaining: initialErrorBudget,
	}
}

// WithBaseURL points the client at a different upstream, e.g. a local mock
// server. Returns the client for chaining.
func (c *Client) WithBaseURL(u string) *Client {
	c.base = u
	return c
}

// ClientError is an upstream 4xx response.
type ClientError struct {
	Status int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("ESI client error: HTTP %d", e.Status)
}

// ServerError is an upstream 5xx response.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ESI server error: HTTP %d", e.Status)
}

// ErrErrorBudgetExhausted reports an HTTP 420 from ESI: the error budget is
// spent and the client has already waited out the advertised reset window.
type ErrErrorBudgetExhausted struct {
	ResetSeconds int
}

func (e *ErrErrorBudgetExhausted) Error() string {
	return fmt.Sprintf("ESI error budget exhausted, reset in %ds", e.ResetSeconds)
}

// Get issues GET {BaseURL}{path}. The caller owns the response body on
// success. A valid bearer token, if held, is attached.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, path)
	if err != nil {
		// One retry on transport failure; the failed attempt spends budget.
		c.budgetMu.Lock()
		c.errorsRemaining--
		budgetGauge.Set(float64(c.errorsRemaining))
		c.budgetMu.Unlock()
		log.Warn().Err(err).Str("path", path).Msg("ESI request failed, retrying once")

		resp, err = c.send(ctx, path)
		if err != nil {
			responseCounter.WithLabelValues("transport").Inc()
			return nil, fmt.Errorf("ESI transport: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		c.updateBudget(resp)
		responseCounter.WithLabelValues("2xx").Inc()
		return resp, nil

	case resp.StatusCode == 420:
		resp.Body.Close()
		responseCounter.WithLabelValues("420").Inc()
		c.budgetMu.Lock()
		reset := c.resetSeconds
		sleepErr := sleepCtx(ctx, time.Duration(reset)*time.Second)
		c.budgetMu.Unlock()
		if sleepErr != nil {
			return nil, sleepErr
		}
		return nil, &ErrErrorBudgetExhausted{ResetSeconds: reset}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.updateBudget(resp)
		resp.Body.Close()
		responseCounter.WithLabelValues("4xx").Inc()
		return nil, &ClientError{Status: resp.StatusCode}

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		// Budget headers are not trusted on server errors.
		resp.Body.Close()
		responseCounter.WithLabelValues("5xx").Inc()
		return nil, &ServerError{Status: resp.StatusCode}

	default:
		resp.Body.Close()
		responseCounter.WithLabelValues("other").Inc()
		log.Error().Int("status", resp.StatusCode).Str("path", path).Msg("ESI returned unexpected status")
		return nil, fmt.Errorf("ESI unexpected status %d", resp.StatusCode)
	}
}

// GetJSON fetches a path and decodes the body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// throttle blocks while the error budget is low. The budget lock stays held
// for the whole wait so concurrent senders serialize behind it.
func (c *Client) throttle(ctx context.Context) error {
	c.budgetMu.Lock()
	defer c.budgetMu.Unlock()
	if c.errorsRemaining <= 10 {
		log.Warn().
			Int("errors_remaining", c.errorsRemaining).
			Int("reset_seconds", c.resetSeconds).
			Msg("ESI error budget low, throttling")
		return sleepCtx(ctx, time.Duration(c.resetSeconds)*time.Second)
	}
	return nil
}

func (c *Client) send(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.tokenMu.RLock()
	token := c.authToken
	c.tokenMu.RUnlock()
	if token != "" && tokenValid(token) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

// updateBudget refreshes the shared error-budget state from the advisory
// response headers, when present.
func (c *Client) updateBudget(resp *http.Response) {
	remain := resp.Header.Get("x-esi-error-limit-remain")
	reset := resp.Header.Get("x-esi-error-limit-reset")

	c.budgetMu.Lock()
	defer c.budgetMu.Unlock()
	if v, err := strconv.Atoi(remain); err == nil {
		c.errorsRemaining = v
		budgetGauge.Set(float64(v))
	}
	if v, err := strconv.Atoi(reset); err == nil {
		c.resetSeconds = v
	}
}

// BudgetState returns the current error-budget counters.
func (c *Client) BudgetState() (errorsRemaining, resetSeconds int) {
	c.budgetMu.Lock()
	defer c.budgetMu.Unlock()
	return c.errorsRemaining, c.resetSeconds
}

// AuthTokenValid reports whether the held bearer token's exp claim is still
// strictly in the future. Tokens are inspected, not verified: expiry gating
// is a client-side optimization, ESI does the real validation.
func (c *Client) AuthTokenValid() bool {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.authToken != "" && tokenValid(c.authToken)
}

func tokenValid(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.After(time.Now())
}

// LoadAuthToken exchanges a refresh token for a bearer token at the EVE SSO
// endpoint and stores the result for subsequent authenticated requests.
func (c *Client) LoadAuthToken(ctx context.Context, refreshToken, clientID, clientSecret string) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(clientID, clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token exchange: HTTP %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("token exchange: decode: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("token exchange: empty access_token")
	}

	c.tokenMu.Lock()
	c.authToken = body.AccessToken
	c.tokenMu.Unlock()
	log.Info().Msg("ESI bearer token refreshed")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
