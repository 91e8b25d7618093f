package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/server"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for GET requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 10 * time.Second
)

// Client talks to clm-setup-server. Sessions ride on a cookie jar.
type Client struct {
	// BaseURL is the server root, e.g. "http://localhost:5000"
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries is the maximum number of retry attempts for GET requests.
	// Mutating requests are never retried.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	// UseExponentialBackoff doubles RetryDelay after each attempt
	UseExponentialBackoff bool

	base *url.URL
	jar  http.CookieJar
}

// New creates a client for the server at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		BaseURL:               u.String(),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout, Jar: jar},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		base:                  u,
		jar:                   jar,
	}, nil
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetRetry configures retry behavior
func (c *Client) SetRetry(maxRetries int, retryDelay time.Duration) {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
}

// SessionToken returns the current session cookie value, or "" when not
// signed in.
func (c *Client) SessionToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == server.SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken restores a session saved by SessionToken. An empty token
// clears the session.
func (c *Client) SetSessionToken(token string) {
	ck := &http.Cookie{Name: server.SessionCookie, Value: token, Path: "/"}
	if token == "" {
		ck.MaxAge = -1
	}
	c.jar.SetCookies(c.base, []*http.Cookie{ck})
}

// Health fetches the server health summary.
func (c *Client) Health(ctx context.Context) (*server.Health, error) {
	var h server.Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CurrentUser returns the session user, or nil when not signed in.
func (c *Client) CurrentUser(ctx context.Context) (*account.User, error) {
	var u account.User
	err := c.get(ctx, "/api/user", &u)
	if account.IsAuthError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login signs in and stores the session cookie.
func (c *Client) Login(ctx context.Context, creds account.LoginCredentials) (*account.User, error) {
	if err := account.ValidateLogin(creds); err != nil {
		return nil, err
	}
	var u account.User
	if err := c.send(ctx, http.MethodPost, "/api/login", creds, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, creds account.RegisterCredentials) (*account.User, error) {
	if err := account.ValidateRegistration(creds); err != nil {
		return nil, err
	}
	var u account.User
	if err := c.send(ctx, http.MethodPost, "/api/register", creds, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the session. The local cookie is dropped even if the server
// cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, http.MethodPost, "/api/logout", nil, nil)
	c.SetSessionToken("")
	return err
}

// PersistStep stores step as the session user's current step. The server
// identifies the user from the session; userID is only logged.
func (c *Client) PersistStep(ctx context.Context, userID int64, step int) error {
	logging.Debug("Persisting step", zap.Int64("user_id", userID), zap.Int("step", step))
	return c.send(ctx, http.MethodPut, "/api/user/step", server.StepUpdate{CurrentStep: &step}, nil)
}

// UpdateSubscription records whether a payment method was added.
func (c *Client) UpdateSubscription(ctx context.Context, paymentAdded bool) (*account.User, error) {
	var u account.User
	if err := c.send(ctx, http.MethodPut, "/api/user/subscription", server.SubscriptionUpdate{PaymentAdded: &paymentAdded}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Devices lists the session user's devices.
func (c *Client) Devices(ctx context.Context) ([]account.Device, error) {
	var devices []account.Device
	if err := c.get(ctx, "/api/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// CreateDevice registers a device for the session user.
func (c *Client) CreateDevice(ctx context.Context, nd account.NewDevice) (*account.Device, error) {
	var d account.Device
	if err := c.send(ctx, http.MethodPost, "/api/devices", nd, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDevice applies a partial update to one of the user's devices.
func (c *Client) UpdateDevice(ctx context.Context, id int64, upd account.DeviceUpdate) (*account.Device, error) {
	var d account.Device
	if err := c.send(ctx, http.MethodPut, "/api/devices/"+strconv.FormatInt(id, 10), upd, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// get performs an idempotent request, retrying with backoff.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(currentDelay):
			}

			if c.UseExponentialBackoff {
				currentDelay *= 2
				if currentDelay > c.MaxRetryDelay {
					currentDelay = c.MaxRetryDelay
				}
			}
			logging.Debug("Retrying request", zap.String("path", path), zap.Int("attempt", attempt))
		}

		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

// send performs a single mutating request.
func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ClassifyNetworkError(err, c.base.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyNetworkError(err, c.base.Host)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return newParseError("failed to parse response", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		msg.Message = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg.Message}
}

var _ account.Authenticator = (*Client)(nil)
