package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zamanix/dailycoins/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Port:          0,
		DBPath:        ":memory:",
		JWTSecret:     "server-test-secret-0123456789",
		TokenTTL:      time.Hour,
		BcryptCost:    4,
		AdminEmail:    "ops@example.com",
		AdminPassword: "operator-pass",
		AdminName:     "Ops",
		CORSOrigins:   []string{"*"},
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(s.close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type apiResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Error   string         `json:"error"`
	Field   string         `json:"field"`
	Data    map[string]any `json:"data"`
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	// List endpoints return an array in data; those tests decode raw themselves.
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestServer_RegisterLoginProfileFlow(t *testing.T) {
	ts := newTestServer(t)

	status, reg := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ayesha", "email": "Ayesha@Example.com", "password": "secret123", "phone": "123",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "success", reg.Status)
	assert.Equal(t, float64(5), reg.Data["coins"])
	assert.Equal(t, float64(1), reg.Data["loginStreak"])
	assert.Equal(t, "ayesha@example.com", reg.Data["email"])

	status, dup := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Again", "email": "ayesha@example.com", "password": "secret123", "phone": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "duplicate", dup.Error)

	// Same calendar day as registration: nothing more to collect.
	status, login := call(t, ts, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ayesha@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), login.Data["coins"])
	assert.Equal(t, "Welcome back! You already collected today's reward.", login.Message)
	token, _ := login.Data["token"].(string)
	require.NotEmpty(t, token)

	status, _ = call(t, ts, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ayesha@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, profile := call(t, ts, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ayesha", profile.Data["name"])
	assert.Equal(t, "user", profile.Data["role"])

	status, updated := call(t, ts, http.MethodPut, "/api/users/profile", token, map[string]string{"phone": "999"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "999", updated.Data["phone"])
	assert.NotEmpty(t, updated.Data["token"])
}

func TestServer_MultibytePasswordOverByteLimit(t *testing.T) {
	ts := newTestServer(t)
	// 40 runes, 80 bytes.
	long := strings.Repeat("é", 40)

	status, res := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ayesha", "email": "ayesha@example.com", "password": long, "phone": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", res.Error)
	assert.Equal(t, "password", res.Field)

	_, reg := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ayesha", "email": "ayesha@example.com", "password": "secret123", "phone": "123",
	})
	token, _ := reg.Data["token"].(string)
	require.NotEmpty(t, token)

	status, res = call(t, ts, http.MethodPut, "/api/users/profile", token, map[string]string{"password": long})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", res.Error)
	assert.Equal(t, "password", res.Field)
}

func TestServer_EventsAndAuth(t *testing.T) {
	ts := newTestServer(t)

	_, reg := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ayesha", "email": "ayesha@example.com", "password": "secret123", "phone": "123",
	})
	token, _ := reg.Data["token"].(string)
	require.NotEmpty(t, token)

	status, _ := call(t, ts, http.MethodGet, "/api/users/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, created := call(t, ts, http.MethodPost, "/api/users/events", token, map[string]string{
		"date": "2024-07-04", "name": "Dad", "occasion": "birthday", "recurrence": "yearly",
	})
	require.Equal(t, http.StatusCreated, status)
	eventID, _ := created.Data["id"].(string)
	require.NotEmpty(t, eventID)

	status, bad := call(t, ts, http.MethodPost, "/api/users/events", token, map[string]string{
		"date": "2024-07-04", "name": "Dad", "recurrence": "daily",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", bad.Error)

	status, profile := call(t, ts, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	events, _ := profile.Data["events"].([]any)
	assert.Len(t, events, 1)

	status, _ = call(t, ts, http.MethodDelete, "/api/users/events/"+eventID, token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, ts, http.MethodDelete, "/api/users/events/"+eventID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_AdminListing(t *testing.T) {
	ts := newTestServer(t)

	_, reg := call(t, ts, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ayesha", "email": "ayesha@example.com", "password": "secret123", "phone": "123",
	})
	userToken, _ := reg.Data["token"].(string)

	status, _ := call(t, ts, http.MethodGet, "/api/users/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, opLogin := call(t, ts, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ops@example.com", "password": "operator-pass",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", opLogin.Data["role"])
	opToken, _ := opLogin.Data["token"].(string)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/users/admin/users", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+opToken)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list.Data, 2)
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, ts, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body.Status)
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/users/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
