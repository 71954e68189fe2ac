// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// stubComponent is a minimal catalog entry for handler tests.
type stubComponent struct {
	id        string
	category  bundle.Category
	enabled   bool
	byDefault bool
}

func (s stubComponent) ID() string                { return s.id }
func (s stubComponent) DisplayName() string       { return "Stub " + s.id }
func (s stubComponent) Category() bundle.Category { return s.category }
func (s stubComponent) Enabled() bool             { return s.enabled }
func (s stubComponent) SelectedByDefault() bool   { return s.byDefault }

func (s stubComponent) Collect(_ context.Context, container bundle.Container) error {
	return container.Add(s.id+".txt", func(w io.Writer) error {
		_, err := io.WriteString(w, "collected "+s.id)
		return err
	})
}

func testCatalog() []bundle.Component {
	return []bundle.Component{
		stubComponent{id: "About", category: bundle.CategoryPlatform, enabled: true, byDefault: true},
		stubComponent{id: "LogFiles", category: bundle.CategoryLogs, enabled: true, byDefault: true},
		stubComponent{id: "EnvVars", category: bundle.CategoryPlatform, enabled: true, byDefault: false},
	}
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

// post sends a bodyless POST, for triggers that take query parameters.
func post(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", path, nil))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

// waitForCompletion polls the registry until the task finishes.
func waitForCompletion(t *testing.T, reg *task.Registry, id uuid.UUID) task.Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		status, err := reg.Status(id)
		require.NoError(t, err)
		if status.IsCompleted || status.State == task.StateFailed {
			return status
		}
		select {
		case <-deadline:
			t.Fatal("task never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// =============================================================================
// HealthCheck / ListComponents
// =============================================================================

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck())

	w := get(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestListComponents_GroupsByCategory(t *testing.T) {
	router := gin.New()
	router.GET("/support/components", ListComponents(testCatalog()))

	w := get(router, "/support/components")
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	categories, ok := payload["categories"].([]any)
	require.True(t, ok)
	require.Len(t, categories, 2)

	first := categories[0].(map[string]any)
	assert.Equal(t, string(bundle.CategoryLogs), first["category"])

	second := categories[1].(map[string]any)
	assert.Equal(t, string(bundle.CategoryPlatform), second["category"])
	platform := second["components"].([]any)
	require.Len(t, platform, 2)

	about := platform[0].(map[string]any)
	assert.Equal(t, "About", about["id"])
	assert.Equal(t, "Stub About", about["name"])
	assert.Equal(t, true, about["selected"])

	envVars := platform[1].(map[string]any)
	assert.Equal(t, "EnvVars", envVars["id"])
	assert.Equal(t, false, envVars["selected"], "opt-in components start unchecked")
}

// =============================================================================
// GenerateBundle (inclusive)
// =============================================================================

func TestGenerateBundle_LaunchesTaskAndRedirects(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	router := gin.New()
	router.POST("/support/generateBundle", GenerateBundle(reg, testCatalog()))

	w := post(router, "/support/generateBundle?components=About,LogFiles")

	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "progress?taskId="))

	id, err := uuid.Parse(strings.TrimPrefix(location, "progress?taskId="))
	require.NoError(t, err)
	assert.Equal(t, id.String(), decodeBody(t, w)["taskId"])

	status := waitForCompletion(t, reg, id)
	assert.True(t, status.IsCompleted)
	assert.Equal(t, reg.BundlePath(id), status.PathToBundle)
}

func TestGenerateBundle_MissingParameter(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	router := gin.New()
	router.POST("/support/generateBundle", GenerateBundle(reg, testCatalog()))

	w := post(router, "/support/generateBundle")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, reg.Len())
}

func TestGenerateBundle_NoKnownComponents(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	router := gin.New()
	router.POST("/support/generateBundle", GenerateBundle(reg, testCatalog()))

	w := post(router, "/support/generateBundle?components=Bogus,AlsoBogus")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, reg.Len())
}

// =============================================================================
// GenerateAll (exclusion based)
// =============================================================================

func TestGenerateAll_ExcludesUncheckedComponents(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())

	collected := make(chan []string, 1)
	reg.SetWriter(func(_ context.Context, components []bundle.Component, _ io.Writer) error {
		ids := make([]string, 0, len(components))
		for _, c := range components {
			ids = append(ids, c.ID())
		}
		collected <- ids
		return nil
	})

	router := gin.New()
	router.POST("/support/generateAll", GenerateAll(reg, testCatalog()))

	w := postJSON(router, "/support/generateAll", GenerateRequest{Components: []bundle.Selection{
		{Name: "About", Selected: true},
		{Name: "LogFiles", Selected: false},
		{Name: "EnvVars", Selected: true},
	}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	select {
	case ids := <-collected:
		assert.Equal(t, []string{"About", "EnvVars"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("writer was never invoked")
	}
}

func TestGenerateAll_InvalidBody(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	router := gin.New()
	router.POST("/support/generateAll", GenerateAll(reg, testCatalog()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/support/generateAll", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, reg.Len())
}

// =============================================================================
// Progress
// =============================================================================

func TestProgress_CompletedTask(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	created := reg.Create([]bundle.Component{stubComponent{id: "About", enabled: true}})
	reg.Execute(context.Background(), created, nil)

	router := gin.New()
	router.GET("/support/progress", Progress(reg))

	w := get(router, "/support/progress?taskId="+created.ID().String())
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	assert.Equal(t, true, payload["isCompleted"])
	assert.Equal(t, reg.BundlePath(created.ID()), payload["pathToBundle"])
	assert.Equal(t, float64(1), payload["status"])
	assert.Equal(t, created.ID().String(), payload["taskId"])
}

func TestProgress_PendingTask(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	created := reg.Create(nil)

	router := gin.New()
	router.GET("/support/progress", Progress(reg))

	w := get(router, "/support/progress?taskId="+created.ID().String())
	require.Equal(t, http.StatusOK, w.Code)

	payload := decodeBody(t, w)
	assert.Equal(t, false, payload["isCompleted"])
}

func TestProgress_BadTaskID(t *testing.T) {
	router := gin.New()
	router.GET("/support/progress", Progress(task.NewRegistry(t.TempDir())))

	assert.Equal(t, http.StatusBadRequest, get(router, "/support/progress?taskId=garbage").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/support/progress").Code)
}

func TestProgress_UnknownTask(t *testing.T) {
	router := gin.New()
	router.GET("/support/progress", Progress(task.NewRegistry(t.TempDir())))

	w := get(router, "/support/progress?taskId="+uuid.NewString())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// DownloadTaskBundle
// =============================================================================

func TestDownloadTaskBundle_StreamsArchiveAndArmsCleanup(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	created := reg.Create([]bundle.Component{stubComponent{id: "About", enabled: true}})
	reg.Execute(context.Background(), created, nil)

	sweeper := task.NewSweeper(reg, 20*time.Millisecond)
	defer sweeper.Stop()

	router := gin.New()
	router.GET("/support/download", DownloadTaskBundle(reg, sweeper))

	w := get(router, "/support/download?taskId="+created.ID().String())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), task.BundleFileName)
	assert.Positive(t, w.Body.Len())

	// Download arms the retention sweeper; the task disappears after
	// the delay elapses.
	deadline := time.After(2 * time.Second)
	for {
		if _, err := reg.Status(created.ID()); err != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("task was never cleaned up after download")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDownloadTaskBundle_NotReady(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	created := reg.Create(nil)

	sweeper := task.NewSweeper(reg, time.Hour)
	defer sweeper.Stop()

	router := gin.New()
	router.GET("/support/download", DownloadTaskBundle(reg, sweeper))

	w := get(router, "/support/download?taskId="+created.ID().String())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadTaskBundle_UnknownOrInvalid(t *testing.T) {
	reg := task.NewRegistry(t.TempDir())
	sweeper := task.NewSweeper(reg, time.Hour)
	defer sweeper.Stop()

	router := gin.New()
	router.GET("/support/download", DownloadTaskBundle(reg, sweeper))

	assert.Equal(t, http.StatusBadRequest, get(router, "/support/download?taskId=nope").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/support/download?taskId="+uuid.NewString()).Code)
}
