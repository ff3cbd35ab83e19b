package api

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SavedCookie is one persisted cookie: the URL it was set from and its
// Set-Cookie serialization.
type SavedCookie struct {
	URL       string `json:"url"`
	SetCookie string `json:"set_cookie"`
}

// CookieStore is a cookie jar that also records what it has been given so the
// session can be saved and restored between processes.
type CookieStore struct {
	mu       sync.Mutex
	jar      *cookiejar.Jar
	recorded map[string]SavedCookie
	now      func() time.Time
}

var _ http.CookieJar = (*CookieStore)(nil)

// NewCookieJar returns an empty CookieStore using the public suffix list.
func NewCookieJar() *CookieStore {
	return &CookieStore{
		jar:      newJar(),
		recorded: make(map[string]SavedCookie),
		now:      time.Now,
	}
}

func newJar() *cookiejar.Jar {
	// cookiejar.New never fails.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Cookies implements http.CookieJar.
func (s *CookieStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	return jar.Cookies(u)
}

// SetCookies implements http.CookieJar.
func (s *CookieStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)
	for _, c := range cookies {
		key := cookieKey(u, c)
		if s.expired(c) {
			delete(s.recorded, key)
			continue
		}
		stored := *c
		if stored.MaxAge > 0 {
			stored.Expires = s.now().Add(time.Duration(stored.MaxAge) * time.Second)
			stored.MaxAge = 0
		}
		s.recorded[key] = SavedCookie{URL: originOf(u), SetCookie: stored.String()}
	}
}

// Snapshot returns the live cookies in a stable order.
func (s *CookieStore) Snapshot() []SavedCookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.recorded))
	for k := range s.recorded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SavedCookie, 0, len(keys))
	for _, k := range keys {
		saved := s.recorded[k]
		if c, err := http.ParseSetCookie(saved.SetCookie); err == nil && s.expired(c) {
			continue
		}
		out = append(out, saved)
	}
	return out
}

// Restore loads cookies produced by Snapshot. Entries that fail to parse are
// skipped and reported in the returned error.
func (s *CookieStore) Restore(saved []SavedCookie) error {
	var skipped int
	for _, entry := range saved {
		u, err := url.Parse(entry.URL)
		if err != nil || u.Host == "" {
			skipped++
			continue
		}
		c, err := http.ParseSetCookie(entry.SetCookie)
		if err != nil {
			skipped++
			continue
		}
		s.SetCookies(u, []*http.Cookie{c})
	}
	if skipped > 0 {
		return fmt.Errorf("skipped %d invalid saved cookies", skipped)
	}
	return nil
}

// Clear drops every cookie.
func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = newJar()
	s.recorded = make(map[string]SavedCookie)
}

// Len returns the number of recorded cookies, expired ones included.
func (s *CookieStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recorded)
}

func (s *CookieStore) expired(c *http.Cookie) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(s.now())
}

func cookieKey(u *url.URL, c *http.Cookie) string {
	domain := c.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	return domain + "|" + c.Path + "|" + c.Name
}

// originOf keeps scheme, host and path. The path matters for cookies that
// carry no Path attribute.
func originOf(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}
