// Package bitso is a small client for the Bitso v3 REST API covering what
// the bot needs: tickers, available books, account status, balances and
// market orders.
//
// Private endpoints are signed with HMAC-SHA256 over
// nonce + method + request path + body, sent as
//
//	Authorization: Bitso <key>:<nonce>:<signature>
//
// Requests are spaced at least RateLimit apart.
package bitso

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	StagingURL    = "https://stage.bitso.com/api/v3"
	ProductionURL = "https://bitso.com/api/v3"

	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 100 * time.Millisecond
)

// ErrMissingCredentials is returned by private endpoints when no key is set.
var ErrMissingCredentials = errors.New("bitso: API key and secret are required")

// ---- Config & client ----

type Config struct {
	APIKey    string
	APISecret string

	// BaseURL overrides the environment URL; Staging picks between the two
	// public environments when BaseURL is empty.
	BaseURL string
	Staging bool

	Timeout   time.Duration // default: 30s
	RateLimit time.Duration // minimum spacing between requests, default: 100ms
	Debug     bool
}

type Client struct {
	apiKey    string
	apiSecret string

	baseURL  string
	signPath string // path prefix included in signatures, e.g. /api/v3

	httpClient *http.Client
	debug      bool
	log        *slog.Logger

	rateMu      sync.Mutex
	rateLimit   time.Duration
	lastRequest time.Time

	now  func() time.Time
	salt func() int
}

var routes = map[string]string{
	"ticker":          "/ticker",
	"available_books": "/available_books",
	"account_status":  "/account_status",
	"balance":         "/balance",
	"orders":          "/orders",
	"open_orders":     "/open_orders",
}

// New creates a client. It never performs network I/O.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ProductionURL
		if cfg.Staging {
			cfg.BaseURL = StagingURL
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	signPath := "/api/v3"
	if u, err := url.Parse(base); err == nil && u.Path != "" {
		signPath = u.Path
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex

	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    base,
		signPath:   signPath,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		debug:      cfg.Debug,
		log:        slog.Default().With("component", "bitso"),
		rateLimit:  cfg.RateLimit,
		now:        time.Now,
		salt: func() int {
			rngMu.Lock()
			defer rngMu.Unlock()
			return 100000 + rng.Intn(900000)
		},
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ---- Errors ----

// APIError is an error reported by the exchange (success=false or non-2xx).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bitso: %s (code %s, http %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("bitso: %s (http %d)", e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ---- Helpers ----

// nonce is a 13-digit epoch-millisecond timestamp followed by a 6-digit salt.
func (c *Client) nonce() string {
	ms := c.now().UnixMilli()
	return fmt.Sprintf("%013d%06d", ms, c.salt())
}

// sign returns the Authorization header value for a request.
func (c *Client) sign(nonce, method, endpoint, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(nonce + method + c.signPath + endpoint + body))
	return fmt.Sprintf("Bitso %s:%s:%s", c.apiKey, nonce, hex.EncodeToString(mac.Sum(nil)))
}

// wait blocks until RateLimit has passed since the previous request.
func (c *Client) wait(ctx context.Context) error {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if d := c.rateLimit - time.Since(c.lastRequest); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// do performs a request against endpoint (route path plus optional query)
// and decodes the payload into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, private bool, out any) error {
	if private && (c.apiKey == "" || c.apiSecret == "") {
		return ErrMissingCredentials
	}

	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bitso: marshal body: %w", err)
		}
		raw = b
	}

	if err := c.wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("bitso: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if private {
		req.Header.Set("Authorization", c.sign(c.nonce(), method, endpoint, string(raw)))
	}

	if c.debug {
		c.log.Debug("request", "method", method, "endpoint", endpoint, "body", string(raw))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bitso: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bitso: read response: %w", err)
	}
	if c.debug {
		c.log.Debug("response", "status", resp.StatusCode, "body", string(data))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("bitso: couldn't parse JSON response: %w", err)
	}
	if !env.Success || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: "request failed"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("bitso: decode %s payload: %w", endpoint, err)
	}
	return nil
}

func route(name string) string {
	r, ok := routes[name]
	if !ok {
		panic("bitso: unknown route " + strconv.Quote(name))
	}
	return r
}
