package auth

import (
	"log/slog"
	"net/http"
)

// TokenFromRequest returns the session token carried by the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ExpireCookie tells the client to drop the named session cookie.
func ExpireCookie(w http.ResponseWriter, cookieName string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware resolves the session cookie before any handler runs and injects
// the user into the request context. A cookie that no longer resolves
// (revoked, expired, forged) is expired on the client and the request goes on
// anonymous; a resolver failure is logged and answered with a generic 500.
func Middleware(resolver Resolver, cookieName string, secureCookie bool, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				log.ErrorContext(r.Context(), "resolve session", "err", err, "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if u == nil {
				ExpireCookie(w, cookieName, secureCookie)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireLogin guards a route: anonymous requests are redirected to loginURL.
func RequireLogin(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireUser(r.Context()); err != nil {
				http.Redirect(w, r, loginURL, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
