// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testDeps(t *testing.T) (Deps, func()) {
	t.Helper()
	store, err := bundle.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry := task.NewRegistry(t.TempDir())
	sweeper := task.NewSweeper(registry, time.Hour)
	deps := Deps{
		AuthProvider: &extensions.NopAuthProvider{},
		Registry:     registry,
		Sweeper:      sweeper,
		Store:        store,
		Catalog:      bundle.DefaultComponents("test", ""),
	}
	return deps, sweeper.Stop
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	deps, stop := testDeps(t)
	t.Cleanup(stop)
	router := gin.New()
	SetupRoutes(router, deps)
	return router
}

// ============================================================================
// Route Registration Tests
// ============================================================================

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	router := newRouter(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/support/components"},
		{"POST", "/support/generateAll"},
		{"POST", "/support/generateBundle"},
		{"GET", "/support/progress"},
		{"GET", "/support/download"},
		{"GET", "/support/bundles"},
		{"POST", "/support/deleteBundles"},
		{"POST", "/support/downloadBundles"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", want.method, want.path)
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	// Should return prometheus format
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

func TestSetupRoutes_SupportGroupIsAdminGated(t *testing.T) {
	deps, stop := testDeps(t)
	t.Cleanup(stop)
	deps.AuthProvider = nonAdminProvider{}

	router := gin.New()
	SetupRoutes(router, deps)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/support/components", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Support route without admin role returned %d, want %d", w.Code, http.StatusForbidden)
	}

	// Health stays open regardless of authorization.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_SupportGroupAllowsAdmin(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/support/components", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Support route with admin role returned %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSetupRoutes_GenerateBundleRequiresPOST(t *testing.T) {
	router := newRouter(t)

	// Generation creates server-side state, so a plain GET (a crawler,
	// a link preloader) must not be able to trigger it.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/support/generateBundle?components=AboutService", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET generateBundle returned %d, want %d", w.Code, http.StatusNotFound)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/support/generateBundle?components=AboutService", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Errorf("POST generateBundle returned %d, want %d", w.Code, http.StatusSeeOther)
	}
}

// nonAdminProvider authenticates everyone as a role-less user.
type nonAdminProvider struct{}

func (nonAdminProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	return &extensions.AuthInfo{UserID: "guest"}, nil
}
