// Package catalog talks to the platform's catalog/cart subsystem, where each
// bookable session is represented by a product the cart can hold.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/model"
)

// HTTPError is a non-2xx answer from the catalog.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("catalog: %d %s", e.StatusCode, e.Message)
}

// Client creates catalog entries over the catalog's JSON API.  Network
// failures and 5xx answers are retried with backoff; 4xx answers are not.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	log        *zap.Logger
}

// NewClient returns a Client for baseURL.  token, when set, is sent as a
// bearer token.
func NewClient(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		delay:      250 * time.Millisecond,
		log:        log,
	}
}

type productRequest struct {
	Reference string `json:"reference"`
	ClassID   uint64 `json:"classId"`
	SessionID uint64 `json:"sessionId"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Capacity  int    `json:"capacity"`
}

type productResponse struct {
	ID    uint64 `json:"id"`
	Error string `json:"error"`
}

// FindOrCreateCatalogEntry upserts the product for a session.  The catalog
// keys products by reference, so repeating the call returns the same id.
func (c *Client) FindOrCreateCatalogEntry(ctx context.Context, s *model.Session) (uint64, error) {
	body, err := json.Marshal(productRequest{
		Reference: fmt.Sprintf("class-session-%d", s.ID),
		ClassID:   s.ClassID,
		SessionID: s.ID,
		Name:      fmt.Sprintf("Class %d %s %s", s.ClassID, s.Date, s.StartTime),
		Date:      s.Date.String(),
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
		Capacity:  s.Capacity,
	})
	if err != nil {
		return 0, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid catalog URL: %w", err)
	}
	u.Path = path.Join(u.Path, "products")

	var id uint64
	err = retry.Do(func() error {
		var err error
		id, err = c.post(ctx, u.String(), body)
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode < http.StatusInternalServerError {
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn("catalog request failed, retrying", zap.Uint64("session_id", s.ID), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return 0, err
	}
	c.log.Debug("catalog entry ready", zap.Uint64("session_id", s.ID), zap.Uint64("product_id", id))
	return id, nil
}

func (c *Client) post(ctx context.Context, target string, body []byte) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read catalog response: %w", err)
	}
	var pr productResponse
	_ = json.Unmarshal(raw, &pr)

	if resp.StatusCode >= 400 {
		msg := pr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return 0, &HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}
	if pr.ID == 0 {
		return 0, &HTTPError{StatusCode: resp.StatusCode, Message: "response carries no product id"}
	}
	return pr.ID, nil
}
