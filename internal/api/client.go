package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/salmonumbrella/paddock-cli/internal/debug"
	"github.com/salmonumbrella/paddock-cli/internal/host"
	"github.com/salmonumbrella/paddock-cli/internal/origin"
)

const DefaultTimeout = 30 * time.Second

// Backend endpoints the client treats specially.
const (
	RefreshEndpoint = "/auth/refresh"
	VerifyEndpoint  = "/auth/verify"
	LoginEndpoint   = "/auth/login"
	LogoutEndpoint  = "/auth/logout"
	MeEndpoint      = "/auth/me"
)

// Client issues requests against the cookie-authenticated backend.
//
// Cookies are kept in Jar and attached by the client itself, so HTTP.Jar
// must stay nil. Every Client sharing a Session shares its renewal.
type Client struct {
	HTTP      *http.Client
	Jar       *CookieStore
	Origin    origin.Config
	UserAgent string
	session   *Session
}

var _ Refresher = (*Client)(nil)

// New creates a client for the given origin settings. A nil session means a
// headless client with its own Session.
func New(cfg origin.Config, session *Session) *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	if session == nil {
		session = NewSession(host.Headless{})
	}
	return &Client{
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
		Jar:     NewCookieJar(),
		Origin:  cfg,
		session: session,
	}
}

// Session returns the session coordinator the client renews through.
func (c *Client) Session() *Session {
	return c.session
}

// BaseURL resolves the backend base address for the current page location.
func (c *Client) BaseURL() string {
	loc, _ := c.session.Host().Location()
	return origin.Resolve(c.Origin, loc)
}

// Target returns the absolute URL a request for path would be sent to.
func (c *Client) Target(path string, query url.Values) string {
	return c.BaseURL() + AddQueryParams(ensureLeadingSlash(path), query)
}

// Credentials controls whether cookies go out with a request.
type Credentials int

const (
	// CredentialsDefault sends cookies in a page context only.
	CredentialsDefault Credentials = iota
	// CredentialsInclude always sends cookies.
	CredentialsInclude
	// CredentialsOmit never sends cookies.
	CredentialsOmit
)

func (c Credentials) include(inPage bool) bool {
	switch c {
	case CredentialsInclude:
		return true
	case CredentialsOmit:
		return false
	default:
		return inPage
	}
}

// call is one logical request. Its payload is already encoded so that a
// replay sends exactly the same bytes.
type call struct {
	method      string
	path        string
	header      http.Header
	body        []byte
	credentials Credentials
	skipRenewal bool
}

// renewable reports whether a response to rc may trigger session renewal.
func (c *Client) renewable(rc call, statusCode int) bool {
	if statusCode != http.StatusUnauthorized || rc.skipRenewal {
		return false
	}
	switch endpointPath(rc.path) {
	case RefreshEndpoint, LoginEndpoint:
		return false
	}
	_, inPage := c.session.Host().Location()
	return inPage
}

// Refresh asks the backend to renew the session cookies. It is auth-exempt
// and reports success for any 2xx status.
func (c *Client) Refresh(ctx context.Context) bool {
	raw, err := c.roundTrip(ctx, call{
		method:      http.MethodPost,
		path:        RefreshEndpoint,
		header:      jsonHeader(nil),
		credentials: CredentialsInclude,
		skipRenewal: true,
	})
	if err != nil {
		return false
	}
	if isSuccess(raw.StatusCode) {
		return true
	}
	slog.Warn("session renewal rejected", "status", raw.StatusCode)
	return false
}

// roundTrip sends one attempt and reads the whole response body.
func (c *Client) roundTrip(ctx context.Context, rc call) (RawResponse, error) {
	loc, inPage := c.session.Host().Location()
	target := origin.Resolve(c.Origin, loc) + rc.path

	var bodyReader io.Reader
	if rc.body != nil {
		bodyReader = bytes.NewReader(rc.body)
	}
	req, err := http.NewRequestWithContext(ctx, rc.method, target, bodyReader)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("invalid request", "method", rc.method, "url", target, "error", err)
		}
		return RawResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = rc.header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	withCookies := c.Jar != nil && rc.credentials.include(inPage)
	if withCookies {
		cookies := c.Jar.Cookies(req.URL)
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
		if debug.IsEnabled(ctx) && len(cookies) > 0 {
			slog.Debug("attaching cookies", "url", target, "names", debug.CookieNames(cookies))
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", rc.method, "url", target, "error", err)
		}
		return RawResponse{}, fmt.Errorf("request failed: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return RawResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if withCookies {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			c.Jar.SetCookies(req.URL, cookies)
		}
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", rc.method, "url", target, "status", resp.StatusCode, "duration", time.Since(start))
	}

	return RawResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       respBody,
	}, nil
}

// endpointPath strips the query and fragment from a request path.
func endpointPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

// jsonHeader returns the default JSON headers with overrides applied.
func jsonHeader(overrides http.Header) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	return mergeHeader(h, overrides)
}

// mergeHeader copies overrides over defaults. Keys are canonicalized so that
// "content-type" replaces "Content-Type".
func mergeHeader(defaults, overrides http.Header) http.Header {
	merged := defaults.Clone()
	if merged == nil {
		merged = http.Header{}
	}
	for key, values := range overrides {
		merged.Del(key)
		for _, v := range values {
			merged.Add(key, v)
		}
	}
	return merged
}

// ensureLeadingSlash makes path relative to the origin.
func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
