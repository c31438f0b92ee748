package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/tuya-bridge/internal/infrastructure/config"
)

const (
	// defaultTimeout applies when Config.Timeout is zero.
	defaultTimeout = 10 * time.Second

	// tokenRefreshMargin renews the token this long before it expires.
	tokenRefreshMargin = 60 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Config holds the settings for a Client.
type Config struct {
	// BaseURL overrides the region endpoint when set.
	BaseURL string
	Region  string

	// AccessID and AccessSecret are the cloud project credentials.
	AccessID     string
	AccessSecret string

	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// ConfigFrom converts the application's Tuya section.
func ConfigFrom(cfg config.TuyaConfig) Config {
	return Config{
		BaseURL:      cfg.BaseURL,
		Region:       cfg.Region,
		AccessID:     cfg.APIKey,
		AccessSecret: cfg.APISecret,
		Timeout:      cfg.RegistryTimeout(),
	}
}

// Logger is the optional logging interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Client calls the Tuya Cloud OpenAPI with signed requests.
//
// The access token is fetched on first use and cached until shortly before
// it expires. Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client

	tok   token
	tokMu sync.Mutex

	now    func() time.Time
	nonce  func() string
	logger Logger
}

type token struct {
	access  string
	refresh string
	uid     string
	expires time.Time
}

// New creates a Client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	if cfg.AccessID == "" || cfg.AccessSecret == "" {
		return nil, ErrMissingCredentials
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		var err error
		if base, err = Endpoint(cfg.Region); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  base,
		clientID: cfg.AccessID,
		secret:   cfg.AccessSecret,
		http:     httpClient,
		now:      time.Now,
		nonce:    uuid.NewString,
	}, nil
}

// SetLogger sets the logger for token lifecycle messages.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BaseURL returns the endpoint in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common OpenAPI response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	T       int64           `json:"t"`
	Result  json.RawMessage `json:"result"`
}

// response is a decoded envelope plus the raw body.
type response struct {
	envelope
	body []byte
}

// call performs an authenticated request. An unsuccessful envelope is
// returned together with an *APIError.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	access, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, method, path, query, body, access)
	if err != nil {
		return resp, err
	}
	if !resp.Success {
		apiErr := &APIError{Code: resp.Code, Msg: resp.Msg}
		if IsTokenError(apiErr) {
			c.invalidateToken()
		}
		return resp, apiErr
	}
	return resp, nil
}

// do sends one signed request and decodes the envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, accessToken string) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%w: encoding body: %v", ErrRequestFailed, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	t := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("t", t)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign_method", signMethod)
	req.Header.Set("sign", sign(c.clientID, c.secret, accessToken, t, nonce, stringToSign(method, path, query, payload)))
	if accessToken != "" {
		req.Header.Set("access_token", accessToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrRequestFailed, path, err)
	}

	resp := &response{body: raw}
	if err := json.Unmarshal(raw, &resp.envelope); err != nil {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d: undecodable body: %v", ErrRequestFailed, method, path, httpResp.StatusCode, err)
	}
	return resp, nil
}

// accessToken returns a valid token, fetching or refreshing it as needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokMu.Lock()
	defer c.tokMu.Unlock()

	if c.tok.access != "" && c.now().Add(tokenRefreshMargin).Before(c.tok.expires) {
		return c.tok.access, nil
	}

	path := "/v1.0/token"
	query := url.Values{"grant_type": {"1"}}
	if c.tok.refresh != "" {
		path = "/v1.0/token/" + c.tok.refresh
		query = nil
	}

	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err == nil && !resp.Success && c.tok.refresh != "" {
		// Refresh token rejected; start over with a fresh grant.
		c.tok = token{}
		resp, err = c.do(ctx, http.MethodGet, "/v1.0/token", url.Values{"grant_type": {"1"}}, nil, "")
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenFailed, err)
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %w", ErrTokenFailed, &APIError{Code: resp.Code, Msg: resp.Msg})
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		ExpireTime   int64  `json:"expire_time"`
		RefreshToken string `json:"refresh_token"`
		UID          string `json:"uid"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token result", ErrTokenFailed)
	}

	c.tok = token{
		access:  result.AccessToken,
		refresh: result.RefreshToken,
		uid:     result.UID,
		expires: c.now().Add(time.Duration(result.ExpireTime) * time.Second),
	}
	if c.logger != nil {
		c.logger.Debug("tuya access token obtained", "expires_in", result.ExpireTime)
	}
	return c.tok.access, nil
}

func (c *Client) invalidateToken() {
	c.tokMu.Lock()
	c.tok.access = ""
	c.tokMu.Unlock()
}
