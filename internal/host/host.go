// Package host describes the execution context a client runs in.
//
// A client either runs behind a page, which has a current location and can be
// navigated, or headless, where there is no location at all. Session renewal
// and cookie handling only apply to the page case.
package host

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Context is the capability the API client needs from its host.
type Context interface {
	// Location returns a copy of the current page location and true, or
	// nil and false when there is no page.
	Location() (*url.URL, bool)
	// Navigate moves the page to path. Headless hosts ignore it.
	Navigate(path string)
}

// Headless is a Context without a page.
type Headless struct{}

// Location always reports that there is no page.
func (Headless) Location() (*url.URL, bool) { return nil, false }

// Navigate does nothing.
func (Headless) Navigate(string) {}

// Page is a Context backed by a mutable page location.
type Page struct {
	mu         sync.Mutex
	current    url.URL
	onNavigate func(path string)
}

// NewPage returns a page positioned at location. onNavigate may be nil.
func NewPage(location *url.URL, onNavigate func(path string)) *Page {
	p := &Page{onNavigate: onNavigate}
	if location != nil {
		p.current = *location
	}
	return p
}

// ParsePage parses raw as an absolute http(s) URL and returns a page positioned there.
func ParsePage(raw string, onNavigate func(path string)) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid page URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid page URL %q: missing host", raw)
	}
	return NewPage(u, onNavigate), nil
}

// Location returns a copy of the current location.
func (p *Page) Location() (*url.URL, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	loc := p.current
	return &loc, true
}

// Navigate resolves path against the current location, moves the page there
// and then notifies the navigate callback.
func (p *Page) Navigate(path string) {
	ref, err := url.Parse(path)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.current = *p.current.ResolveReference(ref)
	cb := p.onNavigate
	p.mu.Unlock()

	if cb != nil {
		cb(path)
	}
}

// Route returns the path of the current page location, "/" for an empty path.
// It returns "" for a headless context.
func Route(ctx Context) string {
	loc, ok := ctx.Location()
	if !ok {
		return ""
	}
	if loc.Path == "" {
		return "/"
	}
	return loc.Path
}
