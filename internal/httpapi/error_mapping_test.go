package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llamad/internal/llm"
)

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

// unreachableErr produces a real server-unreachable error from the client.
func unreachableErr(t *testing.T) error {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	_, err = llm.New("http://" + addr).Generate(context.Background(), "x", 1, 0)
	if !llm.IsServerUnreachable(err) {
		t.Fatalf("setup: expected unreachable, got %v", err)
	}
	return err
}

// timeoutErr produces a real request-timeout error from the client.
func timeoutErr(t *testing.T) error {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	_, err := llm.New(srv.URL, llm.WithRequestTimeout(20*time.Millisecond)).Generate(context.Background(), "x", 1, 0)
	if !llm.IsRequestTimeout(err) {
		t.Fatalf("setup: expected timeout, got %v", err)
	}
	return err
}

func TestErrorStatusMapping(t *testing.T) {
	if got := errorStatus(unreachableErr(t)); got != http.StatusServiceUnavailable {
		t.Fatalf("unreachable -> %d", got)
	}
	if got := errorStatus(timeoutErr(t)); got != http.StatusGatewayTimeout {
		t.Fatalf("timeout -> %d", got)
	}
	if got := errorStatus(mockHTTPError{msg: "teapot", code: http.StatusTeapot}); got != http.StatusTeapot {
		t.Fatalf("HTTPError -> %d", got)
	}
	if got := errorStatus(errors.New("anything else")); got != http.StatusInternalServerError {
		t.Fatalf("default -> %d", got)
	}
}

func TestGenerateHandlerMapsClientErrors(t *testing.T) {
	svc := &mockService{genErr: unreachableErr(t)}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"prompt":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
