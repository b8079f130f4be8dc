package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Header names on outbound generation requests.
const (
	HeaderSignature = "X-AITools-Signature"
	HeaderTimestamp = "X-AITools-Timestamp"
	HeaderRequestID = "X-Request-Id"
)

const maxResponseBytes = 4 << 20

// NewHTTPClient creates a client for backend calls. It does not follow
// redirects; the overall deadline comes from the request context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPConfig configures HTTPBackend.
type HTTPConfig struct {
	URL           string
	APIKey        string
	SigningSecret string
	RPS           float64
	Burst         int
}

// HTTPBackend posts requests as JSON to {URL}/v1/generate. Outbound calls
// are throttled by a token bucket and optionally HMAC signed.
type HTTPBackend struct {
	endpoint string
	apiKey   string
	secret   string
	client   *http.Client
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewHTTPBackend creates an HTTP backend.
func NewHTTPBackend(cfg HTTPConfig, client *http.Client) *HTTPBackend {
	if client == nil {
		client = NewHTTPClient()
	}
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPBackend{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/v1/generate",
		apiKey:   cfg.APIKey,
		secret:   cfg.SigningSecret,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		now:      time.Now,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Generate sends one request. Any non-2xx answer is ErrBackend.
func (b *HTTPBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle: %v", ErrBackend, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "AITools-Platform/1.0")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	if req.RequestID != "" {
		httpReq.Header.Set(HeaderRequestID, req.RequestID)
	}
	if b.secret != "" {
		ts := b.now().Unix()
		httpReq.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		httpReq.Header.Set(HeaderSignature, Sign(b.secret, ts, body))
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		if eb.Error != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, eb.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackend, err)
	}
	if result.Content == "" && result.AssetURL == "" {
		return nil, fmt.Errorf("%w: empty result", ErrBackend)
	}
	return &result, nil
}
