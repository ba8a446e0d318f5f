package middleware

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie the refresh token travels in. The access
// token never touches a cookie.
const RefreshCookieName = "refreshToken"

// SetRefreshCookie attaches the refresh token to the response: httpOnly,
// same-site strict, path "/", expiring with the token. Secure should be
// true everywhere except local development over plain HTTP.
func SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearRefreshCookie expires the refresh cookie. Logout always clears it,
// even when no valid token was presented.
func ClearRefreshCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// RefreshTokenFromRequest extracts the refresh token from the request
// cookie. Missing cookie returns ok=false; the engine treats that the same
// as an invalid token.
func RefreshTokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
