package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/service"
)

const (
	AuthHeaderKey  = "Authorization"
	AuthTypeBearer = "bearer"

	RefreshCookieName    = "refresh_token"
	NewAccessTokenHeader = "X-New-Access-Token"

	GinContextUserIDKey  = "userID"
	GinContextSessionKey = "session"
	GinContextAuthKey    = "requestAuth"
)

// AuthMiddleware authenticates requests with the bearer access token and the
// refresh cookie, transparently rotating the pair when the access token has
// expired. Rotated credentials ride back on the response: the access token in
// a header, the refresh token in the HttpOnly cookie.
//
// Every rejection collapses to one generic 401 body so callers cannot probe
// which check failed.
func AuthMiddleware(tokens *service.TokenService, serverCfg config.ServerConfig, refreshTTL time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID, ok := DeviceID(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		accessToken := bearerToken(c)
		refreshToken, err := c.Cookie(RefreshCookieName)
		if err != nil {
			refreshToken = ""
		}

		auth, outcome, err := tokens.VerifyRequest(c.Request.Context(), accessToken, refreshToken, deviceID)
		if err != nil {
			logger.Debug("Request authentication failed",
				zap.String("outcome", outcome.String()),
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			abortUnauthorized(c)
			return
		}

		if outcome == models.OutcomeNeedsRotation && auth.Rotated != nil {
			c.Header(NewAccessTokenHeader, auth.Rotated.AccessToken)
			setRefreshCookie(c, serverCfg, auth.Rotated.RefreshToken, refreshTTL)
		}

		c.Set(GinContextAuthKey, auth)
		c.Set(GinContextUserIDKey, auth.UserID)
		c.Set(GinContextSessionKey, auth.Session)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader(AuthHeaderKey)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != AuthTypeBearer {
		return ""
	}
	return parts[1]
}

func setRefreshCookie(c *gin.Context, cfg config.ServerConfig, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, token, int(ttl.Seconds()), "/", cfg.CookieDomain, cfg.CookieSecure, true)
}

// SetRefreshCookie exposes the cookie writer to handlers that establish a
// session outside the middleware, i.e. login.
func SetRefreshCookie(c *gin.Context, cfg config.ServerConfig, token string, ttl time.Duration) {
	setRefreshCookie(c, cfg, token, ttl)
}

// ClearRefreshCookie expires the refresh cookie on logout.
func ClearRefreshCookie(c *gin.Context, cfg config.ServerConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", cfg.CookieDomain, cfg.CookieSecure, true)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "invalid or expired credentials",
		"code":  "unauthorized",
	})
}

// UserID returns the authenticated user id stored by AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(GinContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
