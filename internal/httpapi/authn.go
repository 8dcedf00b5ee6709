package httpapi

import (
	"net/http"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/auth"
	"myapp.dev/internal/obs"
)

// RequirePermissions admits a request only when the subject behind the access-token
// cookie holds every code. With no codes it only authenticates.
// A missing cookie is the same 401 as an unreadable token.
func RequirePermissions(sessions *auth.SessionManager, codes ...string) func(http.Handler) http.Handler {
	required := append([]string(nil), codes...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := sessions.Authenticate(ctx, accessToken(r, sessions))
			if err != nil {
				obs.AccessDecision("unauthenticated")
				writeError(w, r, err)
				return
			}
			ok, err := sessions.Resolver().HasAll(ctx, claims.Subject, required)
			if err != nil {
				obs.AccessDecision("error")
				writeError(w, r, err)
				return
			}
			if !ok {
				obs.AccessDecision("deny")
				writeError(w, r, apperr.Forbidden())
				return
			}
			obs.AccessDecision("allow")
			ctx = auth.ContextWithClaims(ctx, claims)
			ctx = obs.ToContext(ctx, obs.From(ctx).With(obs.UserID(claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request, sessions *auth.SessionManager) string {
	return cookieValue(r, sessions.Cookies().AccessName())
}

func refreshToken(r *http.Request, sessions *auth.SessionManager) string {
	return cookieValue(r, sessions.Cookies().RefreshName())
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func setCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
}
