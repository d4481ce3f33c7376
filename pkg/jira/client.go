// Package jira implements the search capability against the Jira REST API.
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ajitpratap0/jira-extract/pkg/clients"
	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// Auth types.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// Config holds the connection settings of a Jira site.
type Config struct {
	URI        string
	Username   string
	Password   string // password or API token
	AuthType   string // basic (default) or bearer
	Token      string // bearer token, Password is used when empty
	APIVersion string // defaults to "latest"
	// Fields restricts the fields returned by search; all fields when empty.
	Fields []string
	HTTP   *clients.HTTPConfig
}

// Client talks to /rest/api/<version>.
type Client struct {
	base     *url.URL
	config   Config
	http     *clients.HTTPClient
	logger   *zap.Logger
	username string
}

var _ core.SearchClient = (*Client)(nil)

// NewClient validates cfg and builds a client. Extra options are applied
// to the underlying HTTP client.
func NewClient(cfg Config, logger *zap.Logger, opts ...clients.Option) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "jira uri is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URI, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "invalid jira uri %q", cfg.URI)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "latest"
	}
	if cfg.AuthType == "" {
		cfg.AuthType = AuthBasic
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.AuthType {
	case AuthBasic:
		if cfg.Username == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "username is required for basic auth")
		}
	case AuthBearer:
		token := cfg.Token
		if token == "" {
			token = cfg.Password
		}
		if token == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "token is required for bearer auth")
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		opts = append([]clients.Option{clients.WithRoundTripper(func(rt http.RoundTripper) http.RoundTripper {
			return &oauth2.Transport{Source: src, Base: rt}
		})}, opts...)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown auth type %q", cfg.AuthType)
	}

	return &Client{
		base:     base,
		config:   cfg,
		http:     clients.NewHTTPClient(cfg.HTTP, logger, opts...),
		logger:   logger.With(zap.String("component", "jira_client")),
		username: cfg.Username,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + "/rest/api/" + c.config.APIVersion + path
	u.RawQuery = query.Encode()
	return u.String()
}

// CheckCredential looks the user up, or the authenticated user when
// identity is empty. Rejections and unknown users are authentication errors.
func (c *Client) CheckCredential(ctx context.Context, identity string) error {
	var target string
	if identity == "" {
		target = c.endpoint("/myself", url.Values{})
	} else {
		target = c.endpoint("/user", url.Values{"username": {identity}})
	}

	var user struct {
		Name        string `json:"name"`
		AccountID   string `json:"accountId"`
		DisplayName string `json:"displayName"`
	}
	if err := c.get(ctx, target, &user); err != nil {
		if errors.IsType(err, errors.ErrorTypeConfig) {
			// 404 for an unknown user
			return errors.Wrap(err, errors.ErrorTypeAuthentication, "credential check failed")
		}
		return err
	}

	c.logger.Debug("credential verified",
		zap.String("user", identity),
		zap.String("display_name", user.DisplayName))
	return nil
}

type searchResponse struct {
	StartAt    int                      `json:"startAt"`
	MaxResults int                      `json:"maxResults"`
	Total      int                      `json:"total"`
	Issues     []map[string]interface{} `json:"issues"`
}

// TotalCount asks for zero issues and returns the reported total.
func (c *Client) TotalCount(ctx context.Context, jql string) (int, error) {
	q := url.Values{
		"jql":        {jql},
		"maxResults": {"0"},
		"fields":     {"id"},
	}
	var resp searchResponse
	if err := c.get(ctx, c.endpoint("/search", q), &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// SearchIssues returns one window of issues converted to records.
func (c *Client) SearchIssues(ctx context.Context, jql string, opts core.SearchOptions) ([]schema.RawRecord, error) {
	q := url.Values{
		"jql":     {jql},
		"startAt": {strconv.Itoa(opts.StartAt)},
	}
	if opts.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(opts.MaxResults))
	}
	if len(c.config.Fields) > 0 {
		q.Set("fields", strings.Join(c.config.Fields, ","))
	} else {
		q.Set("fields", "*all")
	}

	var resp searchResponse
	if err := c.get(ctx, c.endpoint("/search", q), &resp); err != nil {
		return nil, err
	}

	records := make([]schema.RawRecord, 0, len(resp.Issues))
	for _, issue := range resp.Issues {
		records = append(records, ToRecord(issue))
	}
	return records, nil
}

// ToRecord flattens an issue into id, key and one "fields.<name>" entry
// per field. Nested values stay structured, so "fields.status.name" still
// resolves through RawRecord.Get.
func ToRecord(issue map[string]interface{}) schema.RawRecord {
	rec := schema.RawRecord{
		"id":  issue["id"],
		"key": issue["key"],
	}
	if fields, ok := issue["fields"].(map[string]interface{}); ok {
		for name, v := range fields {
			rec["fields."+name] = v
		}
	}
	return rec
}

func (c *Client) get(ctx context.Context, target string, out interface{}) error {
	req, err := c.http.NewRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create request")
	}
	if c.config.AuthType == AuthBasic {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled")
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "request failed").WithDetail("path", req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	dec := gojson.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		// a truncated body is worth another attempt
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to decode response")
	}
	return nil
}

// statusError classifies a non-200 response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("jira returned %d: %s", resp.StatusCode, strings.TrimSpace(apiMessage(body)))

	var kind errors.ErrorType
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = errors.ErrorTypeAuthentication
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = errors.ErrorTypeRateLimit
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		kind = errors.ErrorTypeTimeout
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = errors.ErrorTypeConnection
	default:
		// 400 for invalid JQL, 404 for a wrong uri or api version
		kind = errors.ErrorTypeConfig
	}

	e := errors.New(kind, msg).WithDetail("status", resp.StatusCode)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			e.WithDetail(errors.DetailRetryAfter, time.Duration(secs)*time.Second)
		}
	}
	return e
}

// apiMessage extracts Jira's errorMessages from an error body, falling back
// to the raw body.
func apiMessage(body []byte) string {
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := gojson.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	parts := append([]string(nil), payload.ErrorMessages...)
	for field, m := range payload.Errors {
		parts = append(parts, field+": "+m)
	}
	if len(parts) == 0 {
		return string(body)
	}
	return strings.Join(parts, "; ")
}
