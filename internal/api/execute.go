package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/salmonumbrella/paddock-cli/internal/debug"
	"github.com/salmonumbrella/paddock-cli/internal/host"
)

// RequestOptions configures a single Execute or ExecuteForm call.
type RequestOptions struct {
	// Method defaults to GET for Execute and POST for ExecuteForm.
	Method string
	// Header overrides the default headers. Keys are matched case-insensitively.
	Header http.Header
	// Body is JSON-encoded. json.RawMessage and []byte are sent as-is.
	Body any
	// Query is merged into the path's query string.
	Query url.Values
	// Credentials controls cookie attachment.
	Credentials Credentials
	// SkipRenewal makes the call auth-exempt: a 401 is returned as-is.
	SkipRenewal bool
}

// attempt is the position of a call in the renewal protocol.
type attempt int

const (
	attemptOriginal attempt = iota
	attemptReplay
)

// Execute performs a JSON request against path, relative to the resolved
// origin. A 401 renews the session once and replays the request once. The
// outcome is always a Result; transport failures become error results.
func Execute[T any](ctx context.Context, c *Client, path string, opts RequestOptions) Result[T] {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	body, err := encodeJSON(opts.Body)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("failed to encode request body", "path", path, "error", err)
		}
		return errorResult[T](DetailNetworkError, 0)
	}

	return run[T](ctx, c, call{
		method:      method,
		path:        AddQueryParams(ensureLeadingSlash(path), opts.Query),
		header:      jsonHeader(opts.Header),
		body:        body,
		credentials: opts.Credentials,
		skipRenewal: opts.SkipRenewal,
	})
}

// run drives one call through issue, classify, renew and replay. A call is
// sent at most twice and renews at most once.
func run[T any](ctx context.Context, c *Client, rc call) Result[T] {
	for state := attemptOriginal; ; state = attemptReplay {
		raw, err := c.roundTrip(ctx, rc)
		if err != nil {
			return errorResult[T](DetailNetworkError, 0)
		}
		result := Classify[T](raw)

		if state == attemptReplay || !c.renewable(rc, raw.StatusCode) {
			return result
		}
		if isLandingVerify(c, rc) {
			return errorResult[T](DetailAuthRequired, raw.StatusCode)
		}
		if !c.session.Renew(ctx, c) {
			return errorResult[T](DetailAuthFailed, raw.StatusCode)
		}
	}
}

// isLandingVerify reports a session check made from the landing page. The
// landing page handles the signed-out case itself, so no renewal is tried.
func isLandingVerify(c *Client, rc call) bool {
	return rc.method == http.MethodGet &&
		endpointPath(rc.path) == VerifyEndpoint &&
		host.Route(c.session.Host()) == LandingRoute
}

func encodeJSON(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
