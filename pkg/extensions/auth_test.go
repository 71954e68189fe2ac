// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopAuthProvider_AcceptsAnyToken(t *testing.T) {
	provider := &NopAuthProvider{}

	for _, token := range []string{"", "anything", "Bearer junk"} {
		info, err := provider.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "local-admin", info.UserID)
		assert.True(t, info.HasRole(AdminRole))
	}
}

func TestAuthInfo_HasRole(t *testing.T) {
	info := &AuthInfo{UserID: "u1", Roles: []string{"viewer", "auditor"}}

	assert.True(t, info.HasRole("viewer"))
	assert.False(t, info.HasRole(AdminRole))
	assert.False(t, (&AuthInfo{UserID: "u2"}).HasRole("viewer"))
}

func TestRequesterContext_RoundTrip(t *testing.T) {
	info := &AuthInfo{UserID: "trigger-user", Roles: []string{AdminRole}}
	ctx := WithRequester(context.Background(), info)

	got := RequesterFrom(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "trigger-user", got.UserID)
}

func TestRequesterContext_MissingReturnsNil(t *testing.T) {
	assert.Nil(t, RequesterFrom(context.Background()))
}

func TestRequesterContext_DoesNotLeakAcrossContexts(t *testing.T) {
	// Two tasks triggered by different users must each observe only
	// their own captured identity.
	ctxA := WithRequester(context.Background(), &AuthInfo{UserID: "alice"})
	ctxB := WithRequester(context.Background(), &AuthInfo{UserID: "bob"})

	assert.Equal(t, "alice", RequesterFrom(ctxA).UserID)
	assert.Equal(t, "bob", RequesterFrom(ctxB).UserID)
}
