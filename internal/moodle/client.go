// Package moodle is a client for the Moodle REST webservice
// (webservice/rest/server.php with moodlewsrestformat=json).
package moodle

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"go-moodle-catalog/internal/logger"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	restPath        = "/webservice/rest/server.php"
	responseFormat  = "json"
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 32 << 20
)

// Credentials are the connection settings for the remote site.
type Credentials struct {
	BaseURL  string
	Username string
	Token    string
}

// Configured reports whether base URL, username and token are all set.
// The username is not sent by the REST protocol but is part of a complete setup.
func (c Credentials) Configured() bool {
	return c.BaseURL != "" && c.Username != "" && c.Token != ""
}

// CredentialSource provides the current connection settings. It is read on
// every call so that settings saved by an admin apply immediately.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialSource with fixed values.
type StaticCredentials Credentials

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// Options tunes the HTTP transport of a Client.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate validation. Opt-in only.
	InsecureSkipVerify bool
	// RateLimit caps outbound calls per second; zero means unlimited.
	RateLimit float64
	// HTTPClient overrides the transport entirely (tests).
	HTTPClient *http.Client
}

// ConnectionResult is the outcome of TestConnection.
type ConnectionResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *SiteInfo `json:"data,omitempty"`
}

// Client calls webservice functions by name.
type Client struct {
	creds      CredentialSource
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logger.Logger
}

// NewClient creates a Client reading its credentials from creds.
func NewClient(creds CredentialSource, opts Options, log logger.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	if log == nil {
		log = logger.Nop()
	}
	if opts.InsecureSkipVerify {
		log.Warn("TLS certificate verification is disabled for the Moodle client")
	}

	return &Client{
		creds:      creds,
		httpClient: httpClient,
		limiter:    limiter,
		log:        log,
	}
}

// IsConfigured reports whether the connection settings are complete.
func (c *Client) IsConfigured(ctx context.Context) bool {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		c.log.Error(err, "Failed to load Moodle credentials")
		return false
	}
	return creds.Configured()
}

// Call invokes a webservice function and returns the decoded JSON body.
// The result may be an array of records or a single object.
func (c *Client) Call(ctx context.Context, function string, params map[string]any) (json.RawMessage, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load moodle credentials: %w", err)
	}
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("wstoken", creds.Token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", responseFormat)
	if err := encodeParams(form, params); err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", function, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Function: function, Err: err}
		}
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/") + restPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Function: function, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{Function: function, Err: err}
	}
	c.log.With(map[string]interface{}{
		"function": function,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Moodle webservice call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DecodeError{Function: function, StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Function: function, StatusCode: resp.StatusCode, Err: errors.New("body is not valid JSON"), Body: snippet(body)}
	}

	result := gjson.ParseBytes(body)
	if result.IsObject() && result.Get("exception").Exists() {
		return nil, &RemoteServiceError{
			Function:  function,
			Exception: result.Get("exception").String(),
			ErrorCode: result.Get("errorcode").String(),
			Message:   result.Get("message").String(),
		}
	}

	return json.RawMessage(body), nil
}

// TestConnection calls core_webservice_get_site_info and never fails.
func (c *Client) TestConnection(ctx context.Context) ConnectionResult {
	info, err := c.GetSiteInfo(ctx)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return ConnectionResult{Success: false, Message: "Conexão não configurada"}
		}
		return ConnectionResult{Success: false, Message: err.Error()}
	}
	return ConnectionResult{Success: true, Message: "Conexão bem-sucedida!", Data: info}
}

// GetSiteInfo returns the remote site description.
func (c *Client) GetSiteInfo(ctx context.Context) (*SiteInfo, error) {
	raw, err := c.Call(ctx, FuncSiteInfo, nil)
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(raw)
	return &SiteInfo{
		SiteName:  r.Get("sitename").String(),
		SiteURL:   r.Get("siteurl").String(),
		Username:  r.Get("username").String(),
		Release:   r.Get("release").String(),
		Version:   r.Get("version").String(),
		Functions: len(r.Get("functions").Array()),
	}, nil
}

// GetCategories returns every course category.
func (c *Client) GetCategories(ctx context.Context) ([]CategoryRecord, error) {
	items, err := c.callList(ctx, FuncGetCategories, nil)
	if err != nil {
		return nil, err
	}
	records := make([]CategoryRecord, 0, len(items))
	for _, item := range items {
		records = append(records, parseCategory(item))
	}
	return records, nil
}

// GetCourses returns every course visible to the webservice user.
func (c *Client) GetCourses(ctx context.Context) ([]CourseRecord, error) {
	items, err := c.callList(ctx, FuncGetCourses, nil)
	if err != nil {
		return nil, err
	}
	records := make([]CourseRecord, 0, len(items))
	for _, item := range items {
		records = append(records, parseCourse(item))
	}
	return records, nil
}

// GetCourseEnrolmentMethods returns the enrolment (pricing) methods of a course.
func (c *Client) GetCourseEnrolmentMethods(ctx context.Context, courseID int64) ([]EnrolMethodRecord, error) {
	items, err := c.callList(ctx, FuncGetEnrolmentMethods, map[string]any{"courseid": courseID})
	if err != nil {
		return nil, err
	}
	records := make([]EnrolMethodRecord, 0, len(items))
	for _, item := range items {
		records = append(records, parseEnrolMethod(item))
	}
	return records, nil
}

func (c *Client) callList(ctx context.Context, function string, params map[string]any) ([]gjson.Result, error) {
	raw, err := c.Call(ctx, function, params)
	if err != nil {
		return nil, err
	}
	result := gjson.ParseBytes(raw)
	if result.Type == gjson.Null {
		return nil, nil
	}
	if !result.IsArray() {
		return nil, &DecodeError{Function: function, StatusCode: http.StatusOK, Err: errors.New("expected a JSON array"), Body: snippet(raw)}
	}
	return result.Array(), nil
}

func snippet(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
