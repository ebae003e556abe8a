package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/describer"
	"github.com/sweetpotato0/tripflow/message"
	"github.com/sweetpotato0/tripflow/orchestrator"
	"github.com/sweetpotato0/tripflow/session"
	"github.com/sweetpotato0/tripflow/session/store"
)

type stubExtractor struct {
	urls []string
}

func (s *stubExtractor) ExtractImageURLs(ctx context.Context, source string, limit int) ([]string, error) {
	return s.urls, nil
}

type stubSynthesizer struct {
	plan *analysis.TravelPlan
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, analyses []*analysis.ImageAnalysis) (*analysis.TravelPlan, error) {
	return s.plan, nil
}

type stubResponder struct {
	reply string
}

func (s *stubResponder) Reply(ctx context.Context, turns []*message.Message) (string, error) {
	return s.reply, nil
}

func newTestServer(urls []string) *httptest.Server {
	d := describer.Func(func(ctx context.Context, url string) *analysis.ImageAnalysis {
		return &analysis.ImageAnalysis{URL: url, OK: true, Description: "a mountain lake"}
	})
	orch := orchestrator.New(
		orchestrator.WithSessions(session.NewManager(session.WithStore(store.NewInMemoryStore()))),
		orchestrator.WithExtractor(&stubExtractor{urls: urls}),
		orchestrator.WithAnalyzer(orchestrator.NewAnalyzer(d, 4, time.Second)),
		orchestrator.WithSynthesizer(&stubSynthesizer{plan: &analysis.TravelPlan{Summary: "you like lakes"}}),
		orchestrator.WithResponder(&stubResponder{reply: "happy to help"}),
	)
	return httptest.NewServer(New(":0", orch).Handler())
}

func postJSON(t *testing.T, url string, payload any, out any) int {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestChatGeneratesSessionID(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	var resp ChatResponse
	status := postJSON(t, srv.URL+"/chat", ChatRequest{Message: "hello"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session_id")
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.Response != "happy to help" {
		t.Errorf("unexpected response: %s", resp.Response)
	}
}

func TestChatProfileFlow(t *testing.T) {
	srv := newTestServer([]string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"})
	defer srv.Close()

	var resp ChatResponse
	postJSON(t, srv.URL+"/chat",
		ChatRequest{SessionID: "s1", Message: "Here's my profile: https://example.com/gallery"}, &resp)

	if resp.Status != "profile_generated" {
		t.Errorf("expected status profile_generated, got %s", resp.Status)
	}
	if resp.Response == "" {
		t.Error("expected a non-empty summary")
	}
	if resp.SessionID != "s1" {
		t.Errorf("expected session s1, got %s", resp.SessionID)
	}
}

func TestClearEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	postJSON(t, srv.URL+"/chat", ChatRequest{SessionID: "s1", Message: "hello"}, nil)

	var resp ClearResponse
	status := postJSON(t, srv.URL+"/clear", ClearRequest{SessionID: "s1"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Status != "cleared" {
		t.Errorf("expected cleared, got %s", resp.Status)
	}

	// Idempotent: clearing again reports not_found but still succeeds.
	status = postJSON(t, srv.URL+"/clear", ClearRequest{SessionID: "s1"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if resp.Status != "not_found" {
		t.Errorf("expected not_found, got %s", resp.Status)
	}
}

func TestClearRequiresSessionID(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	status := postJSON(t, srv.URL+"/clear", ClearRequest{}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestSessionIDEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/session_id")
	if err != nil {
		t.Fatalf("GET /session_id failed: %v", err)
	}
	defer resp.Body.Close()

	var payload SessionIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.SessionID == "" {
		t.Error("expected a session_id")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	postJSON(t, srv.URL+"/chat", ChatRequest{SessionID: "s1", Message: "hello"}, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	var payload HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" {
		t.Errorf("expected ok, got %s", payload.Status)
	}
	if payload.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", payload.ActiveSessions)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	postJSON(t, srv.URL+"/chat", ChatRequest{SessionID: "s1", Message: "hello"}, nil)
	postJSON(t, srv.URL+"/chat", ChatRequest{SessionID: "s1", Message: "more"}, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	var payload MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ChatRequests != 2 {
		t.Errorf("expected 2 chat requests, got %d", payload.ChatRequests)
	}
}

func TestChatRejectsBadBody(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatRejectsGet(t *testing.T) {
	srv := newTestServer(nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}
