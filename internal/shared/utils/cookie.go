package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaxspot/billing/internal/shared/config"
)

// MemberCookie holds the session token of a member logged in by this service.
const MemberCookie = "jaxspot_member"

// SetMemberCookie stores the session token in an HttpOnly cookie.
func SetMemberCookie(c *gin.Context, cfg config.ServerConfig, token string, maxAge int) {
	c.SetSameSite(parseSameSite(cfg.CookieSameSite))
	c.SetCookie(
		MemberCookie,
		token,
		maxAge,
		"/",
		cfg.CookieDomain,
		cfg.CookieSecure,
		true, // HttpOnly
	)
}

// GetTokenFromCookie returns the named cookie value, or "" when absent.
func GetTokenFromCookie(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return value
}

// parseSameSite converts string to http.SameSite
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
