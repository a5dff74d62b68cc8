package httputil

import (
	"errors"
	"net/http"
	"strings"
)

const AccessCookieName = "access_token"

// GetAccessToken extracts the access token from the Authorization header,
// falling back to the access cookie for browser clients.
func GetAccessToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer "), nil
		}
		return authHeader, nil
	}

	cookie, err := r.Cookie(AccessCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	return "", errors.New("no access token in header or cookie")
}

// SetAccessCookie mirrors the access token into an HttpOnly cookie so the
// browser frontend does not have to keep it in script-reachable storage.
func SetAccessCookie(w http.ResponseWriter, token string, maxAgeSeconds int, secure bool) {
	cookie := &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, cookie)
}

// ClearAccessCookie removes the access cookie on logout.
func ClearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
