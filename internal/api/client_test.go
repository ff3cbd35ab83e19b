package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/salmonumbrella/paddock-cli/internal/host"
	"github.com/salmonumbrella/paddock-cli/internal/origin"
)

// newTestClient builds a client for srv. An empty page means headless.
func newTestClient(t *testing.T, srv *httptest.Server, page string) (*Client, *navRecorder) {
	t.Helper()
	nav := &navRecorder{}
	var h host.Context = host.Headless{}
	if page != "" {
		u, err := url.Parse(page)
		require.NoError(t, err)
		h = host.NewPage(u, nav.record)
	}
	client := New(origin.Config{BaseURL: srv.URL}, NewSession(h))
	return client, nav
}

// authBackend emulates the cookie-session backend. Protected paths answer 401
// until a refresh has issued the current token.
type authBackend struct {
	mu       sync.Mutex
	hits     map[string]int
	bodies   map[string][]string
	token    string
	refresh  func(w http.ResponseWriter, r *http.Request) bool
	handlers map[string]http.HandlerFunc
}

func newAuthBackend() *authBackend {
	return &authBackend{
		hits:     make(map[string]int),
		bodies:   make(map[string][]string),
		token:    "fresh",
		handlers: make(map[string]http.HandlerFunc),
	}
}

func (b *authBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *authBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.hits[r.URL.Path]++
	b.bodies[r.URL.Path] = append(b.bodies[r.URL.Path], string(body))
	handler := b.handlers[r.URL.Path]
	b.mu.Unlock()

	if r.URL.Path == RefreshEndpoint {
		ok := true
		if b.refresh != nil {
			ok = b.refresh(w, r)
		}
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"denied"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: b.token, Path: "/"})
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}
	if handler != nil {
		handler(w, r)
		return
	}
	if c, err := r.Cookie("access_token"); err != nil || c.Value != b.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"total":0,"items":[]}`))
}

func TestExecute_RenewsAndReplays(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, nav := newTestClient(t, srv, "http://admin.example.com/horses")

	result := Execute[List[widget]](context.Background(), client, "/widgets", RequestOptions{})

	require.True(t, result.OK(), "detail: %s", result.Detail)
	require.NotNil(t, result.Data)
	assert.Equal(t, 0, result.Data.Total)
	assert.Empty(t, result.Data.Items)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, 2, backend.count("/widgets"))
	assert.Equal(t, 1, backend.count(RefreshEndpoint))
	assert.Empty(t, nav.all())
}

func TestExecute_RenewalFailure(t *testing.T) {
	backend := newAuthBackend()
	backend.refresh = func(http.ResponseWriter, *http.Request) bool { return false }
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, nav := newTestClient(t, srv, "http://admin.example.com/horses")

	result := Execute[List[widget]](context.Background(), client, "/widgets", RequestOptions{})

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, DetailAuthFailed, result.Detail)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
	assert.Equal(t, 1, backend.count("/widgets"), "no replay after failed renewal")
	assert.Equal(t, []string{LoginRoute}, nav.all())
}

func TestExecute_ReplaysAtMostOnce(t *testing.T) {
	backend := newAuthBackend()
	backend.handlers["/widgets"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Still locked"}`))
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, _ := newTestClient(t, srv, "http://admin.example.com/horses")

	result := Execute[widget](context.Background(), client, "/widgets", RequestOptions{})

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "Still locked", result.Detail)
	assert.Equal(t, 2, backend.count("/widgets"))
	assert.Equal(t, 1, backend.count(RefreshEndpoint))
}

func TestExecute_AuthExempt(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts RequestOptions
	}{
		{"refresh endpoint", RefreshEndpoint, RequestOptions{Method: http.MethodPost}},
		{"login endpoint", LoginEndpoint, RequestOptions{Method: http.MethodPost}},
		{"login endpoint with query", LoginEndpoint + "?next=/horses", RequestOptions{Method: http.MethodPost}},
		{"skip renewal", "/widgets", RequestOptions{SkipRenewal: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newAuthBackend()
			backend.refresh = func(http.ResponseWriter, *http.Request) bool { return false }
			backend.handlers[LoginEndpoint] = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"denied"}`))
			}
			srv := httptest.NewServer(backend)
			defer srv.Close()
			client, nav := newTestClient(t, srv, "http://admin.example.com/horses")

			result := Execute[AuthResponse](context.Background(), client, tt.path, tt.opts)

			assert.Equal(t, StatusError, result.Status)
			assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
			assert.NotEqual(t, DetailAuthFailed, result.Detail)
			endpoint := endpointPath(tt.path)
			if endpoint == RefreshEndpoint {
				assert.Equal(t, 1, backend.count(RefreshEndpoint))
			} else {
				assert.Equal(t, 0, backend.count(RefreshEndpoint))
				assert.Equal(t, 1, backend.count(endpoint))
			}
			assert.Empty(t, nav.all())
		})
	}
}

func TestExecute_HeadlessReturns401(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, _ := newTestClient(t, srv, "")

	result := Execute[widget](context.Background(), client, "/widgets", RequestOptions{})

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "Not authenticated", result.Detail)
	assert.Equal(t, 0, backend.count(RefreshEndpoint))
}

func TestExecute_LandingVerifyShortCircuit(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, nav := newTestClient(t, srv, "http://admin.example.com/")

	result := Execute[AuthResponse](context.Background(), client, VerifyEndpoint, RequestOptions{})

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, DetailAuthRequired, result.Detail)
	assert.Equal(t, 0, backend.count(RefreshEndpoint))
	assert.Equal(t, 1, backend.count(VerifyEndpoint))
	assert.Empty(t, nav.all())
}

func TestExecute_VerifyOffLandingRenews(t *testing.T) {
	backend := newAuthBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, _ := newTestClient(t, srv, "http://admin.example.com/horses")

	result := Execute[List[widget]](context.Background(), client, VerifyEndpoint, RequestOptions{})

	assert.True(t, result.OK(), "detail: %s", result.Detail)
	assert.Equal(t, 1, backend.count(RefreshEndpoint))
	assert.Equal(t, 2, backend.count(VerifyEndpoint))
}

func TestExecute_ConcurrentUnauthorizedShareRenewal(t *testing.T) {
	const callers = 6
	backend := newAuthBackend()
	release := make(chan struct{})
	backend.refresh = func(http.ResponseWriter, *http.Request) bool {
		<-release
		return true
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, _ := newTestClient(t, srv, "http://admin.example.com/horses")

	var g errgroup.Group
	var succeeded atomic.Int32
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			if Execute[List[widget]](context.Background(), client, "/widgets", RequestOptions{}).OK() {
				succeeded.Add(1)
			}
			return nil
		})
	}

	require.Eventually(t, func() bool { return client.Session().pending() == callers }, 5*time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(callers), succeeded.Load())
	assert.Equal(t, 1, backend.count(RefreshEndpoint))
	assert.Equal(t, 2*callers, backend.count("/widgets"))
}

func TestExecute_ReplaySendsSameRequest(t *testing.T) {
	backend := newAuthBackend()
	var mu sync.Mutex
	var seen []string
	backend.handlers["/horses"] = func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI()+" "+r.Header.Get("X-Trace"))
		mu.Unlock()
		if c, err := r.Cookie("access_token"); err != nil || c.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":3,"name":"Comet"}`))
	}
	srv := httptest.NewServer(backend)
	defer srv.Close()
	client, _ := newTestClient(t, srv, "http://admin.example.com/horses")

	result := Execute[widget](context.Background(), client, "/horses", RequestOptions{
		Method: http.MethodPost,
		Header: http.Header{"X-Trace": []string{"abc"}},
		Body:   map[string]string{"name": "Comet"},
		Query:  url.Values{"notify": {"true"}},
	})

	require.True(t, result.OK(), "detail: %s", result.Detail)
	assert.Equal(t, widget{ID: 3, Name: "Comet"}, *result.Data)
	assert.Equal(t, []string{"POST /horses?notify=true abc", "POST /horses?notify=true abc"}, seen)
	backend.mu.Lock()
	bodies := backend.bodies["/horses"]
	backend.mu.Unlock()
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"name":"Comet"}`, bodies[0])
	assert.Equal(t, bodies[0], bodies[1])
}

func TestExecute_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	client, _ := newTestClient(t, srv, "")

	result := Execute[widget](context.Background(), client, "/widgets", RequestOptions{
		Method: http.MethodPut,
		Header: http.Header{"content-type": []string{"text/plain"}},
		Body:   json.RawMessage(`raw`),
	})

	require.True(t, result.OK())
	assert.Nil(t, result.Data)
	assert.Equal(t, "text/plain", got.Get("Content-Type"))
	assert.Equal(t, []string{"text/plain"}, got.Values("Content-Type"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestExecute_Credentials(t *testing.T) {
	tests := []struct {
		name        string
		page        string
		credentials Credentials
		wantCookie  bool
	}{
		{"page default", "http://admin.example.com/horses", CredentialsDefault, true},
		{"page omit", "http://admin.example.com/horses", CredentialsOmit, false},
		{"headless default", "", CredentialsDefault, false},
		{"headless include", "", CredentialsInclude, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookieHeader string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cookieHeader = r.Header.Get("Cookie")
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()
			client, _ := newTestClient(t, srv, tt.page)
			u, err := url.Parse(srv.URL)
			require.NoError(t, err)
			client.Jar.SetCookies(u, []*http.Cookie{{Name: "access_token", Value: "t1", Path: "/"}})

			Execute[widget](context.Background(), client, "/widgets", RequestOptions{Credentials: tt.credentials})

			assert.Equal(t, tt.wantCookie, strings.Contains(cookieHeader, "access_token=t1"), "Cookie: %q", cookieHeader)
		})
	}
}

func TestExecute_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, _ := newTestClient(t, srv, "http://admin.example.com/horses")
	srv.Close()

	result := Execute[widget](context.Background(), client, "/widgets", RequestOptions{})

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, DetailNetworkError, result.Detail)
	assert.Equal(t, 0, result.StatusCode)
}

func TestExecute_UnencodableBody(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()
	client, _ := newTestClient(t, srv, "")

	result := Execute[widget](context.Background(), client, "/widgets", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]any{"bad": make(chan int)},
	})

	assert.Equal(t, DetailNetworkError, result.Detail)
	assert.Zero(t, hits.Load())
}

func TestExecute_RelativePathAndOrigin(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()
	client, _ := newTestClient(t, srv, "")
	client.Origin.BaseURL = srv.URL + "/api/"

	result := Execute[widget](context.Background(), client, "horses/1", RequestOptions{})

	require.True(t, result.OK())
	assert.Equal(t, "/api/horses/1", gotPath)
	assert.Equal(t, srv.URL+"/api", client.BaseURL())
}

func TestClient_Target(t *testing.T) {
	client := New(origin.Config{BaseURL: "https://api.example.com/"}, NewSession(host.Headless{}))

	assert.Equal(t, "https://api.example.com/horses?page=2", client.Target("horses", url.Values{"page": {"2"}}))
	assert.Equal(t, "https://api.example.com/horses?a=1", client.Target("/horses?a=1", nil))
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusNoContent, true},
		{http.StatusUnauthorized, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var method string
			var bodyLen int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				b, _ := io.ReadAll(r.Body)
				bodyLen = len(b)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()
			client, _ := newTestClient(t, srv, "")

			assert.Equal(t, tt.want, client.Refresh(context.Background()))
			assert.Equal(t, http.MethodPost, method)
			assert.Zero(t, bodyLen)
		})
	}
}

func TestMergeHeader(t *testing.T) {
	merged := jsonHeader(http.Header{"accept": {"text/csv"}, "X-Extra": {"1", "2"}})
	assert.Equal(t, "text/csv", merged.Get("Accept"))
	assert.Equal(t, "application/json", merged.Get("Content-Type"))
	assert.Equal(t, []string{"1", "2"}, merged.Values("X-Extra"))
}
