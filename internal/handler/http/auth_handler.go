package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	"github.com/arcadia-online/auth-service/internal/handler/http/middleware"
	"github.com/arcadia-online/auth-service/internal/service"
)

// AuthHandler serves the login, logout and session-listing endpoints.
type AuthHandler struct {
	authService *service.AuthService
	siblings    *service.SiblingClient // nil outside multi-instance mode
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandler(authService *service.AuthService, siblings *service.SiblingClient, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, siblings: siblings, cfg: cfg, logger: logger}
}

// LoginRequest is the login payload. The device id comes from the header,
// never the body.
type LoginRequest struct {
	Identifier string  `json:"identifier" binding:"required"`
	Password   string  `json:"password" binding:"required"`
	TwoFACode  *string `json:"two_fa_code,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
	DeviceType *string `json:"device_type,omitempty"`
}

// Login authenticates credentials and establishes the (user, device) session.
// The refresh token travels back only in the HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request payload", "bad_request", h.logger)
		return
	}

	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, "device id required", "device_id_required", h.logger)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		TwoFACode:  req.TwoFACode,
		DeviceID:   deviceID,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
	})
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}

	middleware.SetRefreshCookie(c, h.cfg.Server, result.Tokens.RefreshToken, h.cfg.Tokens.RefreshTTL)
	RespondWithData(c, http.StatusOK, gin.H{
		"access_token": result.Tokens.AccessToken,
		"expires_in":   result.Tokens.ExpiresIn,
		"token_type":   result.Tokens.TokenType,
		"user_id":      result.User.ID,
	})
}

// Logout revokes the session for the calling device.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", h.logger)
		return
	}
	deviceID, _ := middleware.DeviceID(c)

	if err := h.authService.Logout(c.Request.Context(), userID, deviceID); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	middleware.ClearRefreshCookie(c, h.cfg.Server)
	RespondWithMessage(c, http.StatusOK, "logged out")
}

// LogoutAll revokes every session the user holds, on every device.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", h.logger)
		return
	}

	cleared, err := h.authService.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}

	// Fan the revocation out so sibling instances drop their mirrors too.
	// Local revocation already succeeded; sibling failures are reported, not
	// fatal.
	if h.siblings != nil {
		if err := h.siblings.BroadcastUserRevocation(c.Request.Context(), userID); err != nil {
			h.logger.Error("Sibling revocation fan-out incomplete",
				zap.Error(err),
				zap.String("user_id", userID.String()),
			)
		}
	}

	middleware.ClearRefreshCookie(c, h.cfg.Server)
	RespondWithData(c, http.StatusOK, gin.H{"sessions_cleared": cleared})
}

// ListSessions returns the caller's session history across devices.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", h.logger)
		return
	}
	deviceID, _ := middleware.DeviceID(c)

	sessions, err := h.authService.ListSessions(c.Request.Context(), userID, deviceID, h.cfg.Tokens.RefreshTTL)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"sessions": sessions})
}
