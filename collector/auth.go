// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Airport-Feedback/service-feedback/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// DeviceAuth validates kiosk device tokens. Tokens are HS256 JWTs whose
// "did" claim carries the device id; they are minted during kiosk
// provisioning and handed to the queue's token callback.
type DeviceAuth struct {
	secret []byte
}

// NewDeviceAuth creates a device authenticator with the shared secret.
func NewDeviceAuth(secret string) *DeviceAuth {
	return &DeviceAuth{secret: []byte(secret)}
}

// DeviceClaims represents JWT claims for a provisioned kiosk device.
type DeviceClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// GenerateToken mints a device token used by kiosks to authenticate
// submissions.
func (a *DeviceAuth) GenerateToken(deviceID string, expiration time.Duration) (string, error) {
	claims := &DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "service-feedback",
			Subject:   deviceID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates a device token and returns its claims.
func (a *DeviceAuth) ValidateToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*DeviceClaims); ok && token.Valid {
		if claims.DeviceID == "" {
			return nil, fmt.Errorf("missing did (device ID) in token")
		}
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// Middleware returns a gin middleware that requires a valid bearer device
// token and stores the authenticated device id on the request context.
func (a *DeviceAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication_failed", "message": "authorization header required",
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication_failed", "message": "bearer token required",
			})
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication_failed", "message": "invalid token",
			})
			return
		}

		c.Request = c.Request.WithContext(auth.SetDeviceID(c.Request.Context(), claims.DeviceID))
		c.Next()
	}
}
