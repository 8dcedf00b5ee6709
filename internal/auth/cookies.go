package auth

import (
	"net/http"
	"time"

	"myapp.dev/internal/idp"
)

const (
	DefaultAccessCookie  = "sb-access-token"
	DefaultRefreshCookie = "sb-refresh-token"

	// RefreshCookieTTL is the lifetime given to the refresh cookie on rotation.
	RefreshCookieTTL = 7 * 24 * time.Hour
)

// CookieConfig controls cookie names and attributes.
type CookieConfig struct {
	AccessName      string
	RefreshName     string
	Domain          string
	Path            string
	Secure          bool
	AccessSameSite  http.SameSite
	RefreshSameSite http.SameSite
}

// DefaultCookieConfig returns cross-site access cookies and lax refresh cookies, both Secure.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		AccessName:      DefaultAccessCookie,
		RefreshName:     DefaultRefreshCookie,
		Path:            "/",
		Secure:          true,
		AccessSameSite:  http.SameSiteNoneMode,
		RefreshSameSite: http.SameSiteLaxMode,
	}
}

// CookieIssuer builds session cookies.
type CookieIssuer struct {
	cfg CookieConfig
}

// NewCookieIssuer fills blank fields from DefaultCookieConfig.
func NewCookieIssuer(cfg CookieConfig) CookieIssuer {
	def := DefaultCookieConfig()
	if cfg.AccessName == "" {
		cfg.AccessName = def.AccessName
	}
	if cfg.RefreshName == "" {
		cfg.RefreshName = def.RefreshName
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.AccessSameSite == 0 {
		cfg.AccessSameSite = def.AccessSameSite
	}
	if cfg.RefreshSameSite == 0 {
		cfg.RefreshSameSite = def.RefreshSameSite
	}
	return CookieIssuer{cfg: cfg}
}

func (c CookieIssuer) AccessName() string  { return c.cfg.AccessName }
func (c CookieIssuer) RefreshName() string { return c.cfg.RefreshName }

// Issue returns the access and refresh cookies for s. The access cookie lives until
// the session expires. refreshTTL <= 0 leaves the refresh cookie as a browser-session cookie.
func (c CookieIssuer) Issue(s *idp.Session, now time.Time, refreshTTL time.Duration) []*http.Cookie {
	expiry := s.Expiry(now)
	maxAge := int(expiry.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	access := &http.Cookie{
		Name:     c.cfg.AccessName,
		Value:    s.AccessToken,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Expires:  expiry.UTC(),
		MaxAge:   maxAge,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.AccessSameSite,
	}
	refresh := &http.Cookie{
		Name:     c.cfg.RefreshName,
		Value:    s.RefreshToken,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.RefreshSameSite,
	}
	if refreshTTL > 0 {
		refresh.MaxAge = int(refreshTTL.Seconds())
		refresh.Expires = now.Add(refreshTTL).UTC()
	}
	return []*http.Cookie{access, refresh}
}

// Clear returns expired cookies for both names.
func (c CookieIssuer) Clear() []*http.Cookie {
	out := make([]*http.Cookie, 0, 2)
	for _, name := range []string{c.cfg.AccessName, c.cfg.RefreshName} {
		out = append(out, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.cfg.Path,
			Domain:   c.cfg.Domain,
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			Secure:   c.cfg.Secure,
			HttpOnly: true,
		})
	}
	return out
}
