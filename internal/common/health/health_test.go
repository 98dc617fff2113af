package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func() error

func (f checkerFunc) Check() error { return f() }

func TestMultiChecker(t *testing.T) {
	mc := NewMultiChecker(checkerFunc(func() error { return nil }))
	assert.NoError(t, mc.Check())

	mc.Add(checkerFunc(func() error { return errors.New("redis down") }))
	mc.Add(checkerFunc(func() error { return errors.New("postgres down") }))
	assert.EqualError(t, mc.Check(), "redis down\npostgres down")
}

func TestHealthCheckHttpHandler(t *testing.T) {
	startup := &StartupCompleteChecker{}
	mux := http.NewServeMux()
	SetupHttpMux(mux, startup)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable", "error": "startup is not complete"}`, rec.Body.String())

	startup.MarkComplete()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestRedisChecker(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	assert.NoError(t, checker.Check())

	db.Close()
	assert.Error(t, checker.Check())
}
