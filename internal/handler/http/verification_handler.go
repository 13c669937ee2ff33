package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
	"github.com/arcadia-online/auth-service/internal/handler/http/middleware"
	"github.com/arcadia-online/auth-service/internal/service"
)

// VerificationHandler serves the one-time-code endpoints.
type VerificationHandler struct {
	verification *service.VerificationService
	users        repository.UserRepository
	logger       *zap.Logger
}

func NewVerificationHandler(verification *service.VerificationService, users repository.UserRepository, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{verification: verification, users: users, logger: logger}
}

type requestCodeRequest struct {
	Purpose string `json:"purpose" binding:"required"`
}

type verifyCodeRequest struct {
	Purpose string `json:"purpose" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

type verifyLinkRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Token  string    `json:"token" binding:"required"`
}

// parsePurpose maps the wire value; unknown purposes are a client error.
func parsePurpose(raw string) (models.VerificationPurpose, bool) {
	switch models.VerificationPurpose(raw) {
	case models.PurposeDeviceTrust, models.PurposeEmailVerify, models.PurposePhoneVerify, models.PurposePasswordless:
		return models.VerificationPurpose(raw), true
	}
	return "", false
}

// RequestCode issues a code for the authenticated user. The delivery channel
// follows the purpose: phone verification goes to the phone, email
// verification to the email, everything else to the primary contact.
func (h *VerificationHandler) RequestCode(c *gin.Context) {
	var req requestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request payload", "bad_request", h.logger)
		return
	}
	purpose, ok := parsePurpose(req.Purpose)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, "unknown verification purpose", "bad_request", h.logger)
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", h.logger)
		return
	}
	deviceID, _ := middleware.DeviceID(c)

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}

	channel, ok := channelForPurpose(user, purpose)
	if !ok {
		RespondWithError(c, http.StatusUnprocessableEntity, "no contact identifier for this purpose", "no_contact", h.logger)
		return
	}

	scope := scopeDevice(purpose, deviceID)
	issued, err := h.verification.Issue(c.Request.Context(), user, scope, purpose, channel)
	if err != nil {
		if issued != nil && issued.Reused {
			// Idempotent resend: report the pending record instead of failing.
			RespondWithData(c, http.StatusOK, gin.H{
				"status":     "already_issued",
				"expires_at": issued.Record.ExpiresAt,
			})
			return
		}
		RespondWithDomainError(c, err, h.logger)
		return
	}

	RespondWithData(c, http.StatusAccepted, gin.H{
		"status":     "sent",
		"channel":    channel,
		"kind":       issued.Record.Kind,
		"expires_at": issued.Record.ExpiresAt,
	})
}

// VerifyCode consumes an OTP for the authenticated user.
func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request payload", "bad_request", h.logger)
		return
	}
	purpose, ok := parsePurpose(req.Purpose)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, "unknown verification purpose", "bad_request", h.logger)
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "invalid or expired credentials", "unauthorized", h.logger)
		return
	}
	deviceID, _ := middleware.DeviceID(c)

	scope := scopeDevice(purpose, deviceID)
	if err := h.verification.Validate(c.Request.Context(), userID, scope, purpose, req.Code); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "verified")
}

// VerifyLink consumes an emailed link token. Links arrive out of session, so
// the user id rides in the link payload rather than the auth context.
func (h *VerificationHandler) VerifyLink(c *gin.Context) {
	var req verifyLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "invalid request payload", "bad_request", h.logger)
		return
	}

	if err := h.verification.Validate(c.Request.Context(), req.UserID, nil, models.PurposeEmailVerify, req.Token); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "verified")
}

func channelForPurpose(user *models.User, purpose models.VerificationPurpose) (models.ContactChannel, bool) {
	switch purpose {
	case models.PurposeEmailVerify:
		if user.Email == nil || *user.Email == "" {
			return "", false
		}
		return models.ContactChannelEmail, true
	case models.PurposePhoneVerify:
		if user.Phone == nil || *user.Phone == "" {
			return "", false
		}
		return models.ContactChannelPhone, true
	default:
		channel, _, ok := user.PrimaryContact()
		return channel, ok
	}
}

// scopeDevice binds device-scoped purposes to the calling device; contact
// verification is device-independent.
func scopeDevice(purpose models.VerificationPurpose, deviceID uuid.UUID) *uuid.UUID {
	switch purpose {
	case models.PurposeDeviceTrust, models.PurposePasswordless:
		id := deviceID
		return &id
	}
	return nil
}
