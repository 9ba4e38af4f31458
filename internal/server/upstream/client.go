// Package upstream talks to the external student record API: the identity
// check used at login and the per-student record lookups that the gateway
// proxies.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/progres-gateway/internal/common"
)

// DefaultTimeout bounds every upstream call when the caller does not supply
// its own http.Client.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of an upstream response is read into memory.
const maxBodySize = 8 << 20

// Identity is what the identity provider returns for valid credentials.
type Identity struct {
	UUID  string `json:"uuid"`
	Token string `json:"token"`
}

// StatusError describes a non-2xx upstream response. It unwraps to the
// sentinel matching the status so callers can use errors.Is.
type StatusError struct {
	StatusCode int
	Path       string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned HTTP %d", e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Client is a thin HTTP client for the record API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL. A nil httpClient gets one
// with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Authenticate checks username and password against the identity provider.
// Rejected credentials yield common.ErrInvalidCredentials; an unreachable or
// failing provider yields common.ErrUpstreamUnavailable.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: encode login: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/authentication/v1/", "", bytes.NewReader(payload))
	if err != nil {
		if isAuthRejection(err) {
			return nil, fmt.Errorf("upstream: login rejected: %w", common.ErrInvalidCredentials)
		}
		return nil, err
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("upstream: decode login response: %w", common.ErrUpstreamUnavailable)
	}
	if id.Token == "" || id.UUID == "" {
		return nil, fmt.Errorf("upstream: login response without token: %w", common.ErrInvalidCredentials)
	}
	return &id, nil
}

// Enrollments returns the student's enrollment list. It doubles as the
// ownership index for enrollment ids.
func (c *Client) Enrollments(ctx context.Context, credential, studentID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/bac/%s/dias", studentID)
}

func (c *Client) PeriodResults(ctx context.Context, credential, studentID, enrollmentID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/bac/%s/dias/%s/periode/bilans", studentID, enrollmentID)
}

func (c *Client) PersonalInfo(ctx context.Context, credential, studentID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/bac/%s/individu", studentID)
}

func (c *Client) ContinuousGrades(ctx context.Context, credential, enrollmentID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/controleContinue/dia/%s/notesCC", enrollmentID)
}

func (c *Client) ExamGrades(ctx context.Context, credential, enrollmentID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/planningSession/dia/%s/noteExamens", enrollmentID)
}

// Photo returns the student's photo payload, or nil when the record API has
// none.
func (c *Client) Photo(ctx context.Context, credential, studentID string) (json.RawMessage, error) {
	body, err := c.get(ctx, credential, "/infos/image/%s", studentID)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) Subjects(ctx context.Context, credential, offerID, levelID string) (json.RawMessage, error) {
	return c.get(ctx, credential, "/infos/offreFormation/%s/niveau/%s/Coefficients", offerID, levelID)
}

func (c *Client) get(ctx context.Context, credential, pattern string, segments ...string) (json.RawMessage, error) {
	escaped := make([]any, len(segments))
	for i, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("upstream: empty path segment: %w", common.ErrBadRequest)
		}
		escaped[i] = url.PathEscape(s)
	}

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf(pattern, escaped...), credential, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream: invalid JSON body: %w", common.ErrUpstreamUnavailable)
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, path, credential string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		// The record API expects the raw token, without a scheme.
		req.Header.Set("Authorization", credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %v: %w", method, path, err, common.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("upstream: read %s: %v: %w", path, err, common.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Path: path, kind: kindForStatus(resp.StatusCode)}
	}
	return data, nil
}

func kindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return common.ErrUnauthenticated
	case code == http.StatusForbidden:
		return common.ErrForbidden
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusTooManyRequests:
		return common.ErrRateLimited
	case code >= 500:
		return common.ErrUpstreamUnavailable
	default:
		return common.ErrInternal
	}
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func isAuthRejection(err error) bool {
	return isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden)
}
