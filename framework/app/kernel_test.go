package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-persistence/framework/app"
	"github.com/km-arc/go-persistence/framework/config"
	"github.com/km-arc/go-persistence/framework/container"
)

func testConfig(t *testing.T, persistence string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Name: "persistence", Env: "testing", Port: "0", Path: t.TempDir()},
		DB:  config.DBConfig{Driver: "sqlite3", Database: ":memory:"},
	}
	if persistence != "" {
		cfg.PersistenceFile = filepath.Join(t.TempDir(), "persistence.yaml")
		require.NoError(t, os.WriteFile(cfg.PersistenceFile, []byte(persistence), 0o644))
	}
	return cfg
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestNew_FromDBSettings(t *testing.T) {
	a, err := app.New(testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Container.Close() })

	assert.Equal(t, []string{"default"}, a.Container.ConnectionNames())
	assert.Equal(t, []string{"default"}, a.Container.CacheInstanceNames())

	conn, err := a.Container.Connection(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", conn.Driver())
}

func TestNew_FromPersistenceFile(t *testing.T) {
	a, err := app.New(testConfig(t, `
cache:
  defaultCacheInstance: main
  instances:
    main:
      adapter: memory
`))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Container.Close() })

	assert.Equal(t, "main", a.Container.DefaultName(container.CacheCategory))
	assert.Empty(t, a.Container.ConnectionNames())
}

func TestNew_BadPersistenceFile(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.PersistenceFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := app.New(cfg)
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	a, err := app.New(testConfig(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Container.Close() })

	rr := get(t, a.Router, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"persistence"`)

	rr = get(t, a.Router, http.MethodPost, "/container/cache/default")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = get(t, a.Router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `persistence_container_builds_total{category="cache",outcome="success"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := app.New(testConfig(t, ""))
	require.NoError(t, err)

	_, err = a.Container.CacheInstance(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.Container.Loaded(container.CacheCategory, "default"))
}
