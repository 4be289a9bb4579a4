// internal/scraper/auth.go
package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoCredentials    = errors.New("no cookies found: provide a cookies file or set the cookies environment variable")
	ErrNotAuthenticated = errors.New("not logged in properly, check your cookies")
)

// SameSite policies accepted by the browser drivers.
const (
	SameSiteNone   = "None"
	SameSiteLax    = "Lax"
	SameSiteStrict = "Strict"
)

// Cookie is a browser session cookie as exported by common cookie-editor
// extensions.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Secure   bool    `json:"secure"`
	HttpOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expirationDate,omitempty"`
}

// ExpiresAt returns the expiry as a time, or the zero time for session
// cookies.
func (c Cookie) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// CookieSource says where session cookies come from. The file wins over the
// environment variable when both are present.
type CookieSource struct {
	File          string
	EnvVar        string
	DefaultDomain string
}

// Load reads, parses and normalizes the cookies.
func (cs CookieSource) Load(logger *logrus.Logger) ([]Cookie, error) {
	data, origin, err := cs.read()
	if err != nil {
		return nil, err
	}
	logger.Infof("Loading cookies from %s", origin)

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookies from %s: %w", origin, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: %s holds an empty cookie list", ErrNoCredentials, origin)
	}

	for i := range cookies {
		cookies[i] = NormalizeCookie(cookies[i], cs.DefaultDomain)
	}

	logger.Infof("Loaded %d cookies", len(cookies))
	return cookies, nil
}

func (cs CookieSource) read() ([]byte, string, error) {
	if cs.File != "" {
		data, err := os.ReadFile(cs.File)
		if err == nil {
			return data, "file " + cs.File, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read cookies file: %w", err)
		}
	}

	if cs.EnvVar != "" {
		if value := os.Getenv(cs.EnvVar); strings.TrimSpace(value) != "" {
			return []byte(value), "environment variable " + cs.EnvVar, nil
		}
	}

	return nil, "", ErrNoCredentials
}

// NormalizeCookie fills a missing domain and path and maps sameSite onto
// None, Lax or Strict.
func NormalizeCookie(c Cookie, defaultDomain string) Cookie {
	if c.Domain == "" {
		c.Domain = defaultDomain
	}
	if c.Path == "" {
		c.Path = "/"
	}
	c.SameSite = NormalizeSameSite(c.SameSite)
	return c
}

func NormalizeSameSite(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "lax":
		return SameSiteLax
	case "strict":
		return SameSiteStrict
	default:
		// no_restriction, none, unspecified and missing all map to None
		return SameSiteNone
	}
}

// CheckAuthenticated inspects page HTML for the login marker.
func CheckAuthenticated(html, loginMarker string) error {
	if loginMarker == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(html), strings.ToLower(loginMarker)) {
		return ErrNotAuthenticated
	}
	return nil
}

// ExtractCookiesFromBrowser prints instructions for exporting session cookies.
func ExtractCookiesFromBrowser() {
	fmt.Println(`
To export cookies from your browser:

1. Open x.com in your browser and log in
2. Install a cookie export extension (e.g. Cookie-Editor)
3. Open the extension on x.com and export cookies as JSON
4. Save the JSON array as cookies.json next to the binary,
   or put it into the X_COOKIES environment variable

Required cookies:
- auth_token: Session token
- ct0: CSRF token`)
}
