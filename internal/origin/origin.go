// Package origin resolves the backend base address requests are sent to.
package origin

import (
	"net"
	"net/url"
	"strings"
)

const (
	// DefaultBackendPort is used when a page gives no usable port.
	DefaultBackendPort = "8001"
	// FrontendDevPort is the frontend dev server port; it never hosts the API.
	FrontendDevPort = "3000"
	// APIPrefix is appended to origins derived from the page location.
	APIPrefix = "/api"
	// LocalBackend is the backend origin used outside a page.
	LocalBackend = "http://localhost:8001"
	// Fallback is returned when nothing is configured and there is no page.
	Fallback = LocalBackend + APIPrefix
)

// Config holds the settings the resolver reads.
type Config struct {
	// BaseURL is an explicit backend address: absolute, protocol-relative
	// ("//api.example.com"), path-relative ("/api") or a bare host.
	BaseURL string
	// APIPort overrides the port derived from the page location.
	APIPort string
}

// Resolve returns the backend base address for cfg and the current page
// location. page is nil outside a page. The result never ends in a slash
// unless the configured value was only slashes.
func Resolve(cfg Config, page *url.URL) string {
	if explicit := strings.TrimSpace(cfg.BaseURL); explicit != "" {
		return resolveExplicit(explicit, page)
	}
	if page != nil {
		return fromPage(page, cfg.APIPort)
	}
	return Fallback
}

func resolveExplicit(raw string, page *url.URL) string {
	trimmed := strings.TrimRight(raw, "/")

	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return trimmed
	case strings.HasPrefix(raw, "//"):
		if page != nil {
			return page.Scheme + ":" + trimmed
		}
		return "https:" + trimmed
	case strings.HasPrefix(raw, "/"):
		if page != nil {
			return pageOrigin(page) + trimmed
		}
		return LocalBackend + trimmed
	default:
		if page != nil {
			return page.Scheme + "://" + trimmed
		}
		return "https://" + trimmed
	}
}

func fromPage(page *url.URL, apiPort string) string {
	port := strings.TrimSpace(apiPort)
	if port == "" {
		if p := page.Port(); p != "" && p != FrontendDevPort {
			port = p
		} else {
			port = DefaultBackendPort
		}
	}
	return page.Scheme + "://" + joinHostPort(page.Scheme, page.Hostname(), port) + APIPrefix
}

// pageOrigin mirrors a browser's location.origin: scheme, host and a port
// only when it is not the scheme default.
func pageOrigin(page *url.URL) string {
	return page.Scheme + "://" + joinHostPort(page.Scheme, page.Hostname(), page.Port())
}

func joinHostPort(scheme, hostname, port string) string {
	if port == "" || isDefaultPort(scheme, port) {
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]"
		}
		return hostname
	}
	return net.JoinHostPort(hostname, port)
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
