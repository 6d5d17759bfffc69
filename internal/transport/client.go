package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultUserAgent = "burrow/1.0"

// Client performs exactly one exchange per call. Redirects are returned to
// the caller instead of being followed.
type Client struct {
	httpClient   *http.Client
	limiters     map[string]*rate.Limiter
	limitersMu   sync.RWMutex
	rateLimit    int
	maxBodyBytes int64
	userAgent    string
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithInsecureTLS disables certificate verification.
func WithInsecureTLS() Option {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*http.Transport); ok {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}
}

func NewClient(timeout int, rateLimit int, maxBodyMB int, opts ...Option) *Client {
	if maxBodyMB <= 0 {
		maxBodyMB = 10
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   50,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: time.Duration(timeout) * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiters:     make(map[string]*rate.Limiter),
		rateLimit:    rateLimit,
		maxBodyBytes: int64(maxBodyMB) * 1024 * 1024,
		userAgent:    DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getRateLimiter(host string) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}

	c.limitersMu.RLock()
	limiter, exists := c.limiters[host]
	c.limitersMu.RUnlock()

	if exists {
		return limiter
	}

	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()

	if limiter, exists := c.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(c.rateLimit), 1)
	c.limiters[host] = limiter
	return limiter
}

// Do sends req once and reads at most the configured body size. Any failure
// is returned as *Error.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	if limiter := c.getRateLimiter(req.URL.Host); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, c.wrap(req, err)
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, c.wrap(req, err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, nil, c.wrap(req, err)
	}
	return resp, body, nil
}

func (c *Client) wrap(req *http.Request, err error) error {
	return &Error{Kind: Classify(err), URL: req.URL.String(), Err: err}
}

func (c *Client) readBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, c.maxBodyBytes))
}

func (c *Client) UserAgent() string {
	return c.userAgent
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
