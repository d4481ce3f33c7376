package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/jira-extract/pkg/clients"
	"github.com/ajitpratap0/jira-extract/pkg/core"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// fakeJira serves /rest/api/latest/{user,myself,search} over total issues.
type fakeJira struct {
	total      int
	status     int // forced status for search when non-zero
	authHeader string
	queries    []string
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.authHeader = r.Header.Get("Authorization")
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/rest/api/latest/user":
		if r.URL.Query().Get("username") != "alice" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errorMessages":["user does not exist"]}`)
			return
		}
		fmt.Fprint(w, `{"name":"alice","displayName":"Alice"}`)
	case "/rest/api/latest/myself":
		fmt.Fprint(w, `{"accountId":"abc","displayName":"Alice"}`)
	case "/rest/api/latest/search":
		f.queries = append(f.queries, r.URL.RawQuery)
		if f.status != 0 {
			w.WriteHeader(f.status)
			fmt.Fprint(w, `{"errorMessages":["Error in the JQL Query"]}`)
			return
		}
		q := r.URL.Query()
		startAt, _ := strconv.Atoi(q.Get("startAt"))
		maxResults, err := strconv.Atoi(q.Get("maxResults"))
		if err != nil {
			maxResults = 50
		}
		issues := []map[string]interface{}{}
		for i := startAt; i < f.total && i < startAt+maxResults; i++ {
			issues = append(issues, map[string]interface{}{
				"id":  strconv.Itoa(10000 + i),
				"key": fmt.Sprintf("PROJ-%d", i),
				"fields": map[string]interface{}{
					"summary":  "issue",
					"votes":    map[string]interface{}{"votes": i},
					"status":   map[string]interface{}{"name": "Open"},
					"assignee": nil,
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"startAt": startAt, "maxResults": maxResults, "total": f.total, "issues": issues,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type ClientSuite struct {
	suite.Suite
	fake   *fakeJira
	server *httptest.Server
	client *Client
}

func (s *ClientSuite) SetupTest() {
	s.fake = &fakeJira{total: 120}
	s.server = httptest.NewServer(s.fake)
	s.client = s.newClient(Config{URI: s.server.URL, Username: "alice", Password: "secret"})
}

func (s *ClientSuite) TearDownTest() {
	s.client.Close()
	s.server.Close()
}

func (s *ClientSuite) newClient(cfg Config) *Client {
	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.EnableHTTP2 = false
	httpCfg.RateLimit = 0
	cfg.HTTP = httpCfg
	c, err := NewClient(cfg, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	return c
}

func (s *ClientSuite) TestCheckCredential() {
	ctx := context.Background()
	s.NoError(s.client.CheckCredential(ctx, "alice"))
	s.Contains(s.fake.authHeader, "Basic ")

	err := s.client.CheckCredential(ctx, "mallory")
	s.True(errors.IsType(err, errors.ErrorTypeAuthentication), "got %v", err)

	s.NoError(s.client.CheckCredential(ctx, ""))
}

func (s *ClientSuite) TestTotalCount() {
	n, err := s.client.TotalCount(context.Background(), "project = PROJ")
	s.Require().NoError(err)
	s.Equal(120, n)
	s.Contains(s.fake.queries[0], "maxResults=0")
}

func (s *ClientSuite) TestSearchIssuesWindow() {
	recs, err := s.client.SearchIssues(context.Background(), "project = PROJ", core.SearchOptions{StartAt: 100, MaxResults: 50})
	s.Require().NoError(err)
	s.Len(recs, 20)

	first := recs[0]
	s.Equal("PROJ-100", first["key"])
	v, ok := first.Get("fields.status.name")
	s.True(ok)
	s.Equal("Open", v)

	votes, ok := first.Get("fields.votes.votes")
	s.True(ok)
	s.Equal(json.Number("100"), votes)

	assignee, ok := first.Get("fields.assignee")
	s.True(ok)
	s.Nil(assignee)
}

func (s *ClientSuite) TestSearchStatusMapping() {
	tests := []struct {
		status int
		kind   errors.ErrorType
	}{
		{http.StatusBadRequest, errors.ErrorTypeConfig},
		{http.StatusUnauthorized, errors.ErrorTypeAuthentication},
		{http.StatusForbidden, errors.ErrorTypeAuthentication},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{http.StatusServiceUnavailable, errors.ErrorTypeConnection},
		{http.StatusGatewayTimeout, errors.ErrorTypeTimeout},
	}
	for _, tt := range tests {
		s.fake.status = tt.status
		_, err := s.client.SearchIssues(context.Background(), "bad", core.SearchOptions{})
		s.Require().Error(err)
		s.Equal(tt.kind, errors.TypeOf(err), "status %d", tt.status)
	}
	s.fake.status = http.StatusBadRequest
	_, err := s.client.SearchIssues(context.Background(), "bad", core.SearchOptions{})
	s.Contains(err.Error(), "Error in the JQL Query")
}

func (s *ClientSuite) TestRateLimitCarriesRetryAfter() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := s.newClient(Config{URI: srv.URL, Username: "alice", Password: "secret"})
	defer c.Close()

	_, err := c.TotalCount(context.Background(), "project = PROJ")
	s.Require().Error(err)
	s.Equal(errors.ErrorTypeRateLimit, errors.TypeOf(err))
	v, ok := errors.Detail(err, errors.DetailRetryAfter)
	s.True(ok)
	s.Equal(12*time.Second, v)
}

func (s *ClientSuite) TestBearerAuth() {
	c := s.newClient(Config{URI: s.server.URL, AuthType: AuthBearer, Token: "pat-123"})
	defer c.Close()

	s.Require().NoError(c.CheckCredential(context.Background(), ""))
	s.Equal("Bearer pat-123", s.fake.authHeader)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing uri", Config{Username: "a"}},
		{"relative uri", Config{URI: "example.atlassian.net", Username: "a"}},
		{"basic without user", Config{URI: "https://x.atlassian.net"}},
		{"bearer without token", Config{URI: "https://x.atlassian.net", AuthType: AuthBearer}},
		{"unknown auth", Config{URI: "https://x.atlassian.net", AuthType: "kerberos"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestToRecord(t *testing.T) {
	rec := ToRecord(map[string]interface{}{
		"id":     "1",
		"key":    "P-1",
		"self":   "https://x/rest/api/2/issue/1",
		"fields": map[string]interface{}{"summary": "s"},
	})
	assert.Equal(t, "s", rec["fields.summary"])
	assert.NotContains(t, rec, "self")
	assert.NotContains(t, rec, "fields")
}
