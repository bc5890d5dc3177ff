package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/calassist/internal/instrumentation"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid HTTPS URL", "https://calendar.example.com", false},
		{"valid HTTP localhost", "http://localhost:8080", false},
		{"valid HTTP 127.0.0.1", "http://127.0.0.1:8080", false},
		{"valid HTTP ::1 (IPv6 loopback)", "http://[::1]:8080", false},
		{"invalid HTTP non-localhost", "http://calendar.example.com", true},
		{"invalid HTTP with localhost substring", "http://localhost.example.com", true},
		{"invalid HTTP with 127.0.0.1 in domain", "http://127.0.0.1.example.com", true},
		{"empty URL", "", true},
		{"invalid URL format", "not a url", true},
		{"invalid scheme", "ftp://example.com", true},
		{"HTTPS with path", "https://calendar.example.com/assistant", false},
		{"HTTPS with port", "https://calendar.example.com:8443", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPSRequirement() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		rw := newResponseWriter(httptest.NewRecorder())
		rw.WriteHeader(http.StatusNotFound)
		assert.Equal(t, http.StatusNotFound, rw.statusCode)
	})

	t.Run("defaults to 200", func(t *testing.T) {
		rw := newResponseWriter(httptest.NewRecorder())
		_, _ = rw.Write([]byte("ok"))
		assert.Equal(t, http.StatusOK, rw.statusCode)
	})

	t.Run("passes write header to underlying writer", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := newResponseWriter(recorder)
		rw.WriteHeader(http.StatusCreated)
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})
}

func TestInstrumentationMiddleware(t *testing.T) {
	t.Run("calls next handler when no metrics", func(t *testing.T) {
		server := &Server{}
		called := false
		handler := server.instrumentationMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			called = true
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.True(t, called)
	})

	t.Run("records the route pattern", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
		metrics, err := instrumentation.NewMetrics(mp.Meter("test"))
		require.NoError(t, err)

		server := &Server{metrics: metrics}
		r := chi.NewRouter()
		r.Use(server.instrumentationMiddleware)
		r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))

		var found bool
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name != "http_requests_total" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				path, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("path"))
				status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("status"))
				assert.Equal(t, "/items/{id}", path.AsString())
				assert.Equal(t, "201", status.AsString())
				found = true
			}
		}
		assert.True(t, found, "http_requests_total not recorded")
	})
}

// tokenEndpoint impersonates the provider's token endpoint.
type tokenEndpoint struct {
	*httptest.Server
	mu    sync.Mutex
	codes []string
	fail  bool
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{}
	te.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		te.mu.Lock()
		te.codes = append(te.codes, r.PostForm.Get("code"))
		fail := te.fail
		te.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "https://www.googleapis.com/auth/calendar",
		})
	}))
	t.Cleanup(te.Close)
	return te
}

func (te *tokenEndpoint) receivedCodes() []string {
	te.mu.Lock()
	defer te.mu.Unlock()
	return append([]string(nil), te.codes...)
}

func writeClientSecret(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client_secret.json")
	data, err := json.Marshal(map[string]any{
		"web": map[string]any{
			"client_id":     "client-id",
			"client_secret": "client-secret",
			"auth_uri":      "https://accounts.example.com/o/oauth2/auth",
			"token_uri":     tokenURL,
			"redirect_uris": []string{"http://localhost:8080/oauth2callback"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// browser returns a client that keeps cookies and does not follow redirects.
func browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAuthorize_MissingClientSecret(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/authorize", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), authorizeFailedText)
}

func TestAuthorize_RedirectsToConsent(t *testing.T) {
	te := newTokenEndpoint(t)
	env := newTestServer(t, func(c *Config) {
		c.ClientSecretFile = writeClientSecret(t, te.URL)
	})

	req := httptest.NewRequest(http.MethodGet, "http://assistant.example.com/authorize", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := env.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", location.Host)

	q := location.Query()
	assert.Equal(t, "https://assistant.example.com/oauth2callback", q.Get("redirect_uri"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "https://www.googleapis.com/auth/calendar", q.Get("scope"))
	assert.NotEmpty(t, q.Get("state"))

	assert.Len(t, rec.Result().Cookies(), 1, "the pending state needs a session cookie")
	assert.Equal(t, 1, env.sessions.Count())
}

func TestAuthorize_BaseURLOverridesRequest(t *testing.T) {
	te := newTokenEndpoint(t)
	env := newTestServer(t, func(c *Config) {
		c.ClientSecretFile = writeClientSecret(t, te.URL)
		c.BaseURL = "https://calendar.example.org"
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "http://10.0.0.5:8080/authorize", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.example.org/oauth2callback", location.Query().Get("redirect_uri"))
}

func TestOAuthCallback_Flow(t *testing.T) {
	te := newTokenEndpoint(t)
	env := newTestServer(t, func(c *Config) {
		c.ClientSecretFile = writeClientSecret(t, te.URL)
	})
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)
	client := browser(t)

	authorize := func() string {
		resp, _ := get(t, client, ts.URL+"/authorize")
		require.Equal(t, http.StatusFound, resp.StatusCode)
		location, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, ts.URL+"/oauth2callback", location.Query().Get("redirect_uri"))
		return location.Query().Get("state")
	}

	t.Run("state mismatch", func(t *testing.T) {
		authorize()
		resp, _ := get(t, client, ts.URL+"/oauth2callback?state=forged&code=abc")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, te.receivedCodes())
	})

	t.Run("provider error", func(t *testing.T) {
		authorize()
		resp, _ := get(t, client, ts.URL+"/oauth2callback?error=access_denied")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Nil(t, env.creds.last())
	})

	t.Run("success", func(t *testing.T) {
		state := authorize()
		resp, _ := get(t, client, ts.URL+"/oauth2callback?state="+url.QueryEscape(state)+"&code=good-code")
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Equal(t, []string{"good-code"}, te.receivedCodes())

		saved := env.creds.last()
		require.NotNil(t, saved)
		assert.Equal(t, "access-1", saved.AccessToken)
		assert.Equal(t, "refresh-1", saved.RefreshToken)
		assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar"}, saved.Scopes)

		_, body := get(t, client, ts.URL+"/auth_status")
		assert.JSONEq(t, `{"authorized":true}`, body)
	})

	t.Run("state is single use", func(t *testing.T) {
		state := authorize()
		resp, _ := get(t, client, ts.URL+"/oauth2callback?state="+url.QueryEscape(state)+"&code=again")
		require.Equal(t, http.StatusFound, resp.StatusCode)
		resp, _ = get(t, client, ts.URL+"/oauth2callback?state="+url.QueryEscape(state)+"&code=again")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestOAuthCallback_ExchangeFailure(t *testing.T) {
	te := newTokenEndpoint(t)
	te.fail = true
	env := newTestServer(t, func(c *Config) {
		c.ClientSecretFile = writeClientSecret(t, te.URL)
	})
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)
	client := browser(t)

	resp, _ := get(t, client, ts.URL+"/authorize")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp, body := get(t, client, ts.URL+"/oauth2callback?state="+url.QueryEscape(location.Query().Get("state"))+"&code=bad")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, body, authorizeFailedText)
	assert.Nil(t, env.creds.last())
}
