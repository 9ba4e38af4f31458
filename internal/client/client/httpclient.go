package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
)

const maxResponseBytes = 8 << 20

type authResponse struct {
	Token   string `json:"token"`
	UUID    string `json:"uuid"`
	Message string `json:"message"`
}

// HTTPClient talks to the gateway over its JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session Session
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration, s Session) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		session: s,
	}
}

// Session returns a copy of the current tokens.
func (c *HTTPClient) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *HTTPClient) Login(ctx context.Context, username string, password []byte) error {
	body := map[string]string{"username": username, "password": string(password)}
	defer common.WipeByteArray(password)

	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ar, err := decodeAuth(resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = Session{
		Subject:      ar.UUID,
		AccessToken:  ar.Token,
		RefreshToken: refreshCookie(resp, ""),
	}
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.session.RefreshToken
	c.mu.Unlock()

	if refresh == "" {
		return ErrUnauthorized
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: refresh})
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.mu.Lock()
			c.session = Session{}
			c.mu.Unlock()
		}
		return err
	}
	defer resp.Body.Close()

	ar, err := decodeAuth(resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session.AccessToken = ar.Token
	c.session.RefreshToken = refreshCookie(resp, refresh)
	if ar.UUID != "" {
		c.session.Subject = ar.UUID
	}
	c.mu.Unlock()
	return nil
}

// Logout tells the gateway to revoke both tokens and forgets them locally
// even if the call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	s := c.Session()

	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()

	resp, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, func(r *http.Request) {
		if s.AccessToken != "" {
			r.Header.Set("Authorization", common.BearerPrefix+s.AccessToken)
		}
		if s.RefreshToken != "" {
			r.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: s.RefreshToken})
		}
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.authorized(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.authorized(ctx, http.MethodPost, path, body)
}

// authorized sends the access token and, on 401, refreshes once and retries.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	raw, err := c.withToken(ctx, method, path, body)
	if !errors.Is(err, ErrUnauthorized) {
		return raw, err
	}

	if rerr := c.Refresh(ctx); rerr != nil {
		return nil, err
	}
	return c.withToken(ctx, method, path, body)
}

func (c *HTTPClient) withToken(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	c.mu.Lock()
	token := c.session.AccessToken
	c.mu.Unlock()

	if token == "" {
		return nil, ErrUnauthorized
	}

	resp, err := c.do(ctx, method, path, body, func(r *http.Request) {
		r.Header.Set("Authorization", common.BearerPrefix+token)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return json.RawMessage(data), nil
}

// do performs the request and converts non-2xx responses into *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, decorate func(*http.Request)) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, apiError(resp)
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    payload.Error,
		kind:       kindForStatus(resp.StatusCode),
	}
}

func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUnavailable
	}
}

func decodeAuth(resp *http.Response) (authResponse, error) {
	var ar authResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&ar); err != nil {
		return ar, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if ar.Token == "" {
		return ar, fmt.Errorf("%w: response without token", ErrUnavailable)
	}
	return ar, nil
}

// refreshCookie returns the refresh token set by resp, or fallback when the
// response did not set one.
func refreshCookie(resp *http.Response, fallback string) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == common.RefreshTokenCookieName && ck.MaxAge >= 0 && ck.Value != "" {
			return ck.Value
		}
	}
	return fallback
}
