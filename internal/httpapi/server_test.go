package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llamad/internal/supervise"
	"llamad/pkg/types"
)

type mockService struct {
	models    []types.ModelDescriptor
	status    types.StatusResponse
	running   bool
	startRes  supervise.StartResult
	startErr  error
	stopErr   error
	genErr    error
	genChunks []string
}

func (m *mockService) Models() []types.ModelDescriptor { return append([]types.ModelDescriptor(nil), m.models...) }
func (m *mockService) Status(context.Context) types.StatusResponse { return m.status }
func (m *mockService) Running(context.Context) bool                { return m.running }
func (m *mockService) StartServer(context.Context, string) (supervise.StartResult, error) {
	return m.startRes, m.startErr
}
func (m *mockService) StopServer(context.Context) error { return m.stopErr }
func (m *mockService) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	if m.genErr != nil {
		return m.genErr
	}
	enc := json.NewEncoder(w)
	for _, c := range m.genChunks {
		_ = enc.Encode(map[string]any{"chunk": c})
		if flush != nil {
			flush()
		}
	}
	_ = enc.Encode(map[string]any{"done": true, "content": strings.Join(m.genChunks, "")})
	if flush != nil {
		flush()
	}
	return nil
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.ModelDescriptor{{Name: "a"}, {Name: "b"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestModelsHandlerEmptyIsArray(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if !strings.Contains(w.Body.String(), `"models":[]`) {
		t.Fatalf("empty list must encode as [], got %q", w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Running: true, State: "running", Port: 8080}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !body.Running || body.Port != 8080 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStartHandler(t *testing.T) {
	svc := &mockService{startRes: supervise.StartResult{Status: supervise.StatusStarted, Message: "server started"}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/server/start", bytes.NewBufferString(`{"model":"/m/x.gguf"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.StartResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Status != "started" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStartHandlerNoBody(t *testing.T) {
	svc := &mockService{startRes: supervise.StartResult{Status: supervise.StatusAlreadyRunning}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/server/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestStopHandler(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/server/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "stopped") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestGenerateStreams(t *testing.T) {
	svc := &mockService{genChunks: []string{"hi ", "there"}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"hi","stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Fatalf("content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 2 chunks + terminal, got %d: %q", len(lines), w.Body.String())
	}
}

func TestGenerateValidation(t *testing.T) {
	r := NewMux(&mockService{})

	// missing content type
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"x"}`)))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}

	// bad json
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}

	// empty prompt
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{running: true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	NewMux(&mockService{running: false}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
