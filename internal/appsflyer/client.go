package appsflyer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/mapping"
)

const csvMediaType = "text/csv"

// FetchError is returned when the export could not be retrieved.
// StatusCode is zero when no response was received at all.
type FetchError struct {
	AppID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("export request for %s failed: %v", e.AppID, e.Err)
	}
	return fmt.Sprintf("export request for %s returned status %d: %s", e.AppID, e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client retrieves raw-data exports from AppsFlyer
type Client struct {
	httpClient *http.Client
	config     config.AppsFlyer
	timezone   string
	log        *zap.Logger
}

// NewClient creates a new export client. timezone is the identifier sent with every request.
func NewClient(cfg config.AppsFlyer, timezone string, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		config:     cfg,
		timezone:   timezone,
		log:        log,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Export downloads the installs report of appID for the window and returns the CSV body.
// Non-2xx responses and transport failures are returned as *FetchError.
func (c *Client) Export(ctx context.Context, appID string, window domain.TimeWindow) ([]byte, error) {
	endpoint, err := c.exportURL(appID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to build export url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create export request: %w", err)
	}
	req.Header.Set("Authorization", authorization(c.config.Token))
	req.Header.Set("Accept", csvMediaType)

	c.log.Debug("Requesting export",
		zap.String("app_id", appID),
		zap.String("from", window.FromString()),
		zap.String("to", window.ToString()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{AppID: appID, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("Failed to close export response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{AppID: appID, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{AppID: appID, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	c.log.Debug("Export received",
		zap.String("app_id", appID),
		zap.Int("bytes", len(body)))

	return body, nil
}

func (c *Client) exportURL(appID string, window domain.TimeWindow) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/"))
	if err != nil {
		return "", err
	}

	u := base.JoinPath("api", "raw-data", "export", "app", appID, c.config.Report, c.config.ReportVersion)

	q := url.Values{}
	q.Set("from", window.FromString())
	q.Set("to", window.ToString())
	q.Set("timezone", c.timezone)
	q.Set("additional_fields", mapping.AdditionalFieldsParam())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func authorization(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}
