package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ignition/internal/config"
	"ignition/internal/runner"
	"ignition/pkg/runtime"
)

type fakeRunner struct {
	received []runtime.ContainerConfig
	err      error
}

func (f *fakeRunner) RunContainer(ctx context.Context, conf runtime.ContainerConfig) error {
	f.received = append(f.received, conf)
	return f.err
}

type fakeEngine struct {
	pingErr error
}

func (f *fakeEngine) ListContainers(ctx context.Context, all bool) ([]runtime.Container, error) {
	return nil, nil
}

func (f *fakeEngine) CreateContainer(ctx context.Context, conf runtime.ContainerConfig) (string, error) {
	return "", nil
}

func (f *fakeEngine) StartContainer(ctx context.Context, containerID string) error { return nil }
func (f *fakeEngine) Ping(ctx context.Context) error                               { return f.pingErr }
func (f *fakeEngine) Close() error                                                 { return nil }

func newTestServer(t *testing.T, r ContainerRunner, engine runtime.Engine) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:3030", Platform: "docker"},
	}
	return New(cfg, r, engine)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeRunResponse(t *testing.T, rec *httptest.ResponseRecorder) RunResponse {
	t.Helper()
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleRun_Success(t *testing.T) {
	fr := &fakeRunner{}
	s := newTestServer(t, fr, &fakeEngine{})

	rec := doRequest(s, http.MethodPost, "/run", `{
		"image": "nginx:latest",
		"name": "web",
		"hostname": "web-1",
		"domain": "internal",
		"ports": [80],
		"storage": [{"host": "/data", "local": "/app/data", "ro": true}],
		"environment": {"A": "1"}
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeRunResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Started successfully", resp.Message)

	require.Len(t, fr.received, 1)
	conf := fr.received[0]
	assert.Equal(t, "nginx:latest", conf.Image)
	assert.Equal(t, "web", conf.Name)
	assert.Equal(t, "web-1", conf.Hostname)
	assert.Equal(t, "internal", conf.Domain)
	assert.Equal(t, []int{80}, conf.Ports)
	assert.Equal(t, []runtime.StorageMount{{Host: "/data", Local: "/app/data", RO: true}}, conf.Storage)
	assert.Equal(t, map[string]string{"A": "1"}, conf.Environment)
}

func TestHandleRun_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no name", body: `{"image": "nginx:latest"}`},
		{name: "no image", body: `{"name": "web"}`},
		{name: "empty body", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{}
			s := newTestServer(t, fr, &fakeEngine{})

			rec := doRequest(s, http.MethodPost, "/run", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, fr.received)
		})
	}
}

func TestHandleRun_MalformedBody(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, &fakeEngine{})

	rec := doRequest(s, http.MethodPost, "/run", `{"image": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeRunResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestHandleRun_ReasonStatusMapping(t *testing.T) {
	tests := []struct {
		reason runner.StartFailureReason
		status int
	}{
		{reason: runner.ImageDoesNotExist, status: http.StatusNotFound},
		{reason: runner.StoragePathDoesNotExist, status: http.StatusUnprocessableEntity},
		{reason: runner.PortBindFailure, status: http.StatusConflict},
		{reason: runner.PermissionDenied, status: http.StatusBadGateway},
		{reason: runner.Other, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			fr := &fakeRunner{err: &runner.RunError{Reason: tt.reason, Message: "engine said no"}}
			s := newTestServer(t, fr, &fakeEngine{})

			rec := doRequest(s, http.MethodPost, "/run", `{"image": "nginx:latest", "name": "web"}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeRunResponse(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, string(tt.reason), resp.Reason)
			assert.Equal(t, "engine said no", resp.Message)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, &fakeEngine{})

	rec := doRequest(s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHandleHealth_EngineDown(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, &fakeEngine{pingErr: context.DeadlineExceeded})

	rec := doRequest(s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, &fakeEngine{})

	// Generate one request so the counters exist.
	doRequest(s, http.MethodGet, "/healthz", "")

	rec := doRequest(s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignition")
}
