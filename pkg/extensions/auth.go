// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the authentication extension points for the
// support bundle service.
//
// The open source build ships with no-op defaults: every request is
// authenticated as "local-admin" with the admin role, which lets the
// service run standalone without any identity infrastructure. Enterprise
// deployments swap in a real AuthProvider (Okta, Auth0, Azure AD) without
// touching the core service.
//
// # Requester Propagation
//
// Bundle generation runs on a worker goroutine long after the triggering
// HTTP request has returned, so the requester's identity cannot be read
// from ambient request state. The trigger handler captures the AuthInfo
// once and threads it through the worker's context via WithRequester;
// components read it back with RequesterFrom. The identity lives exactly
// as long as that context and never leaks into other tasks.
package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Enterprise implementations should wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AdminRole is the role required to trigger, download, or delete support
// bundles. Diagnostic content routinely includes environment variables and
// runtime internals, so the whole surface is admin-gated.
const AdminRole = "admin"

// AuthInfo contains identity information returned after successful
// authentication.
//
// Required fields (always populated):
//   - UserID: unique identifier for the user
//
// Optional fields (may be empty):
//   - Email: user's email address
//   - Roles: list of roles/groups the user belongs to
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// Roles contains the user's role memberships for authorization
	// decisions. Common roles: "admin", "viewer", "auditor".
	Roles []string
}

// HasRole checks if the user has a specific role.
//
// This is a convenience method for authorization checks:
//
//	if !authInfo.HasRole(extensions.AdminRole) {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider always returns a valid "local-admin" user
// with admin privileges. This allows the service to function without any
// authentication infrastructure.
//
// # Enterprise Implementation
//
// Enterprise versions implement this interface to validate tokens against
// identity providers like Okta, Auth0, or Azure AD:
//
//	func (p *OktaAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.client.VerifyToken(ctx, token)
//	    if err != nil {
//	        return nil, fmt.Errorf("okta validation failed: %w", ErrUnauthorized)
//	    }
//	    return &AuthInfo{UserID: claims.Subject, Email: claims.Email, Roles: claims.Groups}, nil
//	}
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's
	// identity. Returns ErrUnauthorized (or a wrapped form) if invalid.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider authenticates every request as a local admin.
//
// This is the open source default: a single-operator deployment where the
// person running the service is implicitly trusted. Any token, including
// the empty string, is accepted.
type NopAuthProvider struct{}

// Validate always succeeds with the local admin identity.
func (p *NopAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-admin",
		Roles:  []string{AdminRole},
	}, nil
}

// Ensure NopAuthProvider implements AuthProvider.
var _ AuthProvider = (*NopAuthProvider)(nil)

// =============================================================================
// Requester Context
// =============================================================================

// requesterKey is the context key type for the captured requester identity.
// An unexported struct type prevents collisions with other packages.
type requesterKey struct{}

// WithRequester returns a context carrying the identity of the user who
// triggered an asynchronous operation.
//
// The trigger path captures the AuthInfo while the HTTP request is still
// live and attaches it here; the worker goroutine applies it for the
// duration of bundle writing via this context and nothing else. Cancelling
// or abandoning the context discards the identity.
func WithRequester(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, requesterKey{}, info)
}

// RequesterFrom returns the requester identity attached by WithRequester,
// or nil if the context carries none.
func RequesterFrom(ctx context.Context) *AuthInfo {
	if info, ok := ctx.Value(requesterKey{}).(*AuthInfo); ok {
		return info
	}
	return nil
}
