package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	DeviceIDHeader        = "X-Device-ID"
	GinContextDeviceIDKey = "deviceID"
)

// DeviceMiddleware requires a client-generated v4 device UUID on every
// request. The id is the session key half the client controls; a missing or
// malformed one never reaches a handler.
func DeviceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(DeviceIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "X-Device-ID header required",
				"code":  "device_id_required",
			})
			return
		}

		deviceID, err := uuid.Parse(raw)
		if err != nil || deviceID.Version() != 4 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "X-Device-ID must be a v4 UUID",
				"code":  "device_id_invalid",
			})
			return
		}

		c.Set(GinContextDeviceIDKey, deviceID)
		c.Next()
	}
}

// DeviceID returns the device id DeviceMiddleware stored on the context.
func DeviceID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(GinContextDeviceIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
