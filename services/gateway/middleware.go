// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey is the gin context key holding the request id.
const requestIDKey = "request_id"

// RequestIDMiddleware echoes the caller's X-Request-ID or mints a fresh
// UUID, and sets it on the response so every reply is correlatable.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestID returns the id set by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// CORSMiddleware admits dashboard origins. An empty allowlist admits
// every origin.
func CORSMiddleware(allowOrigins map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := origin
		if len(allowOrigins) == 0 {
			if origin == "" {
				allowed = "*"
			}
		} else if !allowOrigins[origin] {
			allowed = ""
		}
		if allowed != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowed)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// clientInfo extracts the request metadata attached to filter contexts
// and log lines. Message content never goes in here.
func clientInfo(c *gin.Context) map[string]string {
	return map[string]string{
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
		"origin":     c.GetHeader("Origin"),
	}
}
