package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/salmonumbrella/paddock-cli/internal/config"
	"github.com/salmonumbrella/paddock-cli/internal/update"
)

// testPageURL is a page below the landing route, so a failed renewal navigates.
const testPageURL = "http://localhost:3000/horses"

// captureStdout executes a function and captures its stdout output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// captureStderr executes a function and captures its stderr output.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stderr = old
	return <-done
}

// runCLI executes the CLI and returns stdout, stderr and the error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var err error
	var stdout string
	stderr := captureStderr(t, func() {
		stdout = captureStdout(t, func() {
			err = Execute(context.Background(), args)
		})
	})
	return stdout, stderr, err
}

// useTestKeyring backs the config package with one in-memory keyring for
// the duration of the test.
func useTestKeyring(t *testing.T) keyring.Keyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	restore := config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	})
	t.Cleanup(restore)
	return ring
}

// isolateEnv blanks every variable the CLI reads so the developer's shell
// cannot leak into tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvBaseURL, config.EnvBackendURL, config.EnvGenericBaseURL,
		config.EnvAPIPort, config.EnvPageURL, config.EnvProfile,
		config.EnvTimeout, config.EnvHeadless, envUsername, envPassword,
	} {
		t.Setenv(key, "")
	}
	t.Setenv(config.EnvOutput, "text")
	t.Setenv(update.EnvDisable, "1")
}

// setupTestEnv starts handler, points the CLI at it through the page
// context at testPageURL, and gives the test its own keyring.
func setupTestEnv(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	isolateEnv(t)
	useTestKeyring(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv(config.EnvBaseURL, server.URL)
	t.Setenv(config.EnvPageURL, testPageURL)
	return server
}

// jsonResponse creates an http.HandlerFunc that returns a JSON response with the given status and body.
func jsonResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	}
}

// backend is a fake cookie-session server: login sets the access and
// refresh cookies, refresh rotates the access token, and every route
// registered with Protected requires the current access token.
type backend struct {
	mu        sync.Mutex
	token     string
	rotations int
	refreshOK bool
	hits      map[string]int
	mux       *http.ServeMux
}

func newBackend() *backend {
	b := &backend{token: "t0", refreshOK: true, hits: map[string]int{}, mux: http.NewServeMux()}
	b.mux.HandleFunc("POST /auth/login", b.login)
	b.mux.HandleFunc("POST /auth/refresh", b.refresh)
	b.mux.HandleFunc("POST /auth/logout", b.logout)
	b.Protected("GET /auth/me", jsonResponse(200, `{"id":"u1","username":"admin","first_name":"Ada","last_name":null,"created_at":"2026-01-02T03:04:05Z","scopes":[{"id":"s1","scope_name":"horses:write","created_at":"2026-01-02T03:04:05Z"}]}`))
	return b
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.hits[r.Method+" "+r.URL.Path]++
	b.mu.Unlock()
	b.mux.ServeHTTP(w, r)
}

// Protected registers a handler that answers 401 without a valid access token.
func (b *backend) Protected(pattern string, h http.HandlerFunc) *backend {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("access_token")
		b.mu.Lock()
		valid := err == nil && c.Value == b.token
		b.mu.Unlock()
		if !valid {
			jsonResponse(401, `{"detail":"Not authenticated"}`)(w, r)
			return
		}
		h(w, r)
	})
	return b
}

// Expire invalidates the current access token, as a timeout would.
func (b *backend) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = "expired-" + b.token
}

func (b *backend) SetRefreshOK(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshOK = ok
}

func (b *backend) Hits(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *backend) Rotations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rotations
}

func (b *backend) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r-" + token, Path: "/auth/refresh", HttpOnly: true})
}

func (b *backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "admin" || req.Password != "hunter2" {
		jsonResponse(401, `{"detail":"Invalid credentials"}`)(w, r)
		return
	}
	b.mu.Lock()
	token := b.token
	b.mu.Unlock()
	b.setSession(w, token)
	jsonResponse(200, `{"status":"ok"}`)(w, r)
}

func (b *backend) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("refresh_token")
	b.mu.Lock()
	ok := b.refreshOK && err == nil && c.Value != ""
	if ok {
		b.rotations++
		b.token = "t" + string(rune('0'+b.rotations))
	}
	token := b.token
	b.mu.Unlock()
	if !ok {
		jsonResponse(401, `{"detail":"Refresh token expired"}`)(w, r)
		return
	}
	b.setSession(w, token)
	jsonResponse(200, `{"status":"ok"}`)(w, r)
}

func (b *backend) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "access_token", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Path: "/auth/refresh", MaxAge: -1})
	jsonResponse(200, `{"status":"ok"}`)(w, r)
}

// loginForTest signs in against b through the CLI.
func loginForTest(t *testing.T) {
	t.Helper()
	t.Setenv(envPassword, "hunter2")
	_, stderr, err := runCLI(t, "login", "-u", "admin")
	require.NoError(t, err, stderr)
	t.Setenv(envPassword, "")
}
