// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the support service.
//
// This package contains middleware for authentication and authorization.
// It integrates with the extensions package so that deployments can swap
// in their own identity providers.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it using the configured AuthProvider, and stores the resulting
// AuthInfo in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       RequireAdmin / Handler (retrieves via GetAuthInfo)
//
// # Default Behavior
//
// When using NopAuthProvider (default), all requests are authenticated
// as "local-admin" with admin privileges. This keeps a single-operator
// deployment functional without any authentication infrastructure.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a dedicated key prevents collisions with other context values.
const authInfoKey = "support_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user info in the Gin context.
//
// # Description
//
// Called by AuthMiddleware after successful authentication.
// The stored AuthInfo can be retrieved by handlers via GetAuthInfo.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - info: Authenticated user information. May be nil.
//
// # Outputs
//
// None.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin context.
//
// # Description
//
// Called by handlers to access the authenticated user's identity.
// Returns nil if no AuthInfo is present (request not authenticated).
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - *extensions.AuthInfo: User info, or nil if not authenticated
//
// # Examples
//
//	func handle(c *gin.Context) {
//	    authInfo := middleware.GetAuthInfo(c)
//	    if authInfo == nil {
//	        c.JSON(401, gin.H{"error": "not authenticated"})
//	        return
//	    }
//	    // Use authInfo.UserID, authInfo.Roles, etc.
//	}
//
// # Limitations
//
//   - Returns nil if SetAuthInfo was not called or called with nil
//   - Returns nil if stored value is wrong type
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// using the provided AuthProvider, and stores the resulting AuthInfo
// in the context for downstream handlers.
//
// # Token Extraction
//
// The middleware expects tokens in the Authorization header:
//
//	Authorization: Bearer <token>
//
// If the header is missing or malformed, the token passed to Validate
// will be empty string. NopAuthProvider accepts this and returns local-admin.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	support := router.Group("/support")
//	support.Use(middleware.AuthMiddleware(provider))
//
// # Limitations
//
//   - Only supports Bearer token authentication
//   - Does not cache validation results (validates every request)
//
// # Assumptions
//
//   - Provider is non-nil and ready for use
//   - Provider.Validate is safe for concurrent calls
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			// Provider failures, network issues, etc.
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)

		c.Next()
	}
}

// RequireAdmin creates a Gin middleware that gates routes behind the
// admin role.
//
// # Description
//
// Support bundles expose environment variables, log files, and runtime
// internals, so every bundle route is restricted to administrators.
// The middleware must run after AuthMiddleware; a request without
// AuthInfo or without the admin role is rejected with 403.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	support := router.Group("/support")
//	support.Use(middleware.AuthMiddleware(provider), middleware.RequireAdmin())
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil || !info.HasRole(extensions.AdminRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "administrator access required",
			})
			return
		}
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// # Description
//
// Parses the Authorization header expecting format: "Bearer <token>"
// Returns empty string if header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - string: The extracted token, or empty string if not found
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
