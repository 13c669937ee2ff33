package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
)

// ResponseError is the error body shape for every API error.
type ResponseError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RespondWithError sends an error body and logs it with request context.
func RespondWithError(c *gin.Context, statusCode int, message, errorCode string, logger *zap.Logger) {
	logger.Warn("API error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", errorCode),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ResponseError{Error: message, Code: errorCode})
}

// RespondWithDomainError maps a domain error to its HTTP shape. The whole
// unauthorized class collapses to one generic message so a caller cannot
// distinguish a bad password from a revoked session.
func RespondWithDomainError(c *gin.Context, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, domainErrors.Err2FARequired):
		RespondWithError(c, http.StatusUnauthorized, "two-factor code required", "2fa_required", logger)
	case errors.Is(err, domainErrors.ErrInvalid2FACode):
		RespondWithError(c, http.StatusUnauthorized, "invalid two-factor code", "2fa_invalid", logger)
	case errors.Is(err, domainErrors.ErrUserBlocked):
		RespondWithError(c, http.StatusForbidden, "account is blocked", "user_blocked", logger)
	case errors.Is(err, domainErrors.ErrDeviceBlocked):
		RespondWithError(c, http.StatusForbidden, "device is blocked", "device_blocked", logger)
	case errors.Is(err, domainErrors.ErrContactNotVerified):
		RespondWithError(c, http.StatusForbidden, "contact identifier not verified", "contact_not_verified", logger)
	case domainErrors.IsPolicyRejection(err):
		RespondWithError(c, http.StatusConflict, "login limit reached", "login_limit_reached", logger)
	case domainErrors.IsVerificationFailure(err):
		RespondWithError(c, http.StatusUnprocessableEntity, "verification code invalid or expired", "verification_failed", logger)
	case domainErrors.IsConflict(err):
		RespondWithError(c, http.StatusConflict, "already exists", "conflict", logger)
	case domainErrors.IsUnauthorized(err):
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", logger)
	case domainErrors.IsNotFound(err):
		RespondWithError(c, http.StatusNotFound, "resource not found", "not_found", logger)
	default:
		logger.Error("Unhandled domain error", zap.Error(err), zap.String("path", c.Request.URL.Path))
		RespondWithError(c, http.StatusInternalServerError, "internal server error", "internal_error", logger)
	}
}

// RespondWithData sends a success body.
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondWithMessage sends a message-only success body.
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"message": message})
}
