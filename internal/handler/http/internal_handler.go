package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/service"
)

// InternalHandler serves the instance-to-instance endpoints behind the
// service-token gate.
type InternalHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

func NewInternalHandler(authService *service.AuthService, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{authService: authService, logger: logger}
}

type revokeSessionsRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// RevokeSessions clears every session of a user on this instance. Siblings
// call it after a security event so revocation takes effect cluster-wide
// without waiting for cache expiry.
func (h *InternalHandler) RevokeSessions(c *gin.Context) {
	var req revokeSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request payload", "bad_request", h.logger)
		return
	}

	cleared, err := h.authService.LogoutAll(c.Request.Context(), req.UserID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}

	h.logger.Info("Revoked user sessions on internal request",
		zap.String("user_id", req.UserID.String()),
		zap.Int64("cleared", cleared),
	)
	RespondWithData(c, http.StatusOK, gin.H{"sessions_cleared": cleared})
}
