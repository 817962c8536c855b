package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brandscaling/coachflow/internal/classifier"
	"github.com/brandscaling/coachflow/internal/flow"
	"github.com/brandscaling/coachflow/internal/models"
	"github.com/brandscaling/coachflow/internal/store"
)

// mockModel implements genai.ClientInterface for handler tests.
type mockModel struct {
	response string
	err      error
	calls    int
}

func (m *mockModel) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	return m.response, m.err
}

func newTestServer(t *testing.T, model *mockModel) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	responder := flow.NewPersonaResponder(model, classifier.New())
	engine := flow.NewEngine(st, responder)
	srv := NewServer(st, engine, responder, WithUploadDir(t.TempDir()))
	return srv, st
}

func doRequest(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func postJSON(t *testing.T, srv *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return doRequest(srv, r)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response failed: %v (body %s)", err, w.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t, &mockModel{})

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := doRequest(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
		var body map[string]string
		decodeBody(t, w, &body)
		if body["status"] != "healthy" {
			t.Errorf("GET %s: expected healthy status, got %q", path, body["status"])
		}
	}
}

func TestIndexHandler(t *testing.T) {
	srv, _ := newTestServer(t, &mockModel{})

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Endpoints map[string]string `json:"endpoints"`
	}
	decodeBody(t, w, &body)
	if body.Endpoints["chat_architect"] != "/api/v1/chat/architect" {
		t.Errorf("unexpected endpoint map: %+v", body.Endpoints)
	}

	w = doRequest(srv, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", w.Code)
	}
}

func TestChatHandlerValidation(t *testing.T) {
	srv, _ := newTestServer(t, &mockModel{})

	w := postJSON(t, srv, "/api/v1/chat/architect", models.ChatRequest{Message: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat/architect", strings.NewReader("{not json"))
	if w := doRequest(srv, r); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}

	if w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/chat/architect", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}
}

func TestChatHandlerWithoutUploadReturnsOnboarding(t *testing.T) {
	model := &mockModel{err: errors.New("should not be called")}
	srv, _ := newTestServer(t, model)

	w := postJSON(t, srv, "/api/v1/chat/alchemist", models.ChatRequest{Message: "Hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp models.ChatResponse
	decodeBody(t, w, &resp)
	if !resp.NeedsPDFUpload {
		t.Error("expected needs_pdf_upload true before any upload")
	}
	if resp.PersonaUsed != models.AgentAlchemist {
		t.Errorf("expected alchemist, got %s", resp.PersonaUsed)
	}
	if !strings.Contains(resp.Response, "Fariza Javed") {
		t.Errorf("expected alchemist onboarding, got %q", resp.Response)
	}
	if resp.Redirected {
		t.Error("onboarding is not a redirect")
	}
	if model.calls != 0 {
		t.Errorf("expected no model call without a profile, got %d", model.calls)
	}
}

func TestChatHandlerWithSession(t *testing.T) {
	model := &mockModel{response: "Strategic advice."}
	srv, st := newTestServer(t, model)

	p := models.Profile{Type: models.ProfileTypeArchitect, Confidence: 0.9}
	if err := st.SaveSession(models.UserSession{UserID: "u1", Profile: &p, HasUpload: true}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	w := postJSON(t, srv, "/api/v1/chat/architect", models.ChatRequest{Message: "Hello", UserID: "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp models.ChatResponse
	decodeBody(t, w, &resp)
	if resp.NeedsPDFUpload {
		t.Error("expected needs_pdf_upload false with an uploaded session")
	}
	if resp.Response != "Strategic advice." || resp.Redirected {
		t.Errorf("unexpected response %+v", resp)
	}
	if model.calls != 1 {
		t.Errorf("expected one model call, got %d", model.calls)
	}
}

func TestChatHandlerRedirectFlag(t *testing.T) {
	model := &mockModel{err: errors.New("should not be called")}
	srv, st := newTestServer(t, model)

	p := models.Profile{Type: models.ProfileTypeArchitect, Confidence: 0.9}
	st.SaveSession(models.UserSession{UserID: "u1", Profile: &p, HasUpload: true})

	w := postJSON(t, srv, "/api/v1/chat/architect", models.ChatRequest{
		Message: "I want to build my personal brand",
		UserID:  "u1",
	})
	var resp models.ChatResponse
	decodeBody(t, w, &resp)
	if !resp.Redirected {
		t.Errorf("expected redirect flag for branding question to architect, got %+v", resp)
	}
	if !strings.Contains(resp.Response, "AI Alchemist") {
		t.Errorf("expected response to name the AI Alchemist, got %q", resp.Response)
	}
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file failed: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file failed: %v", err)
	}
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUploadHandlerRejectsNonPDF(t *testing.T) {
	srv, st := newTestServer(t, &mockModel{})

	w := doRequest(srv, multipartUpload(t, "/api/v1/upload", "results.txt", "text"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-PDF upload, got %d", w.Code)
	}

	// Rejected uploads must not create a session.
	sess, _ := st.GetSession(models.AnonymousUserID)
	if sess != nil {
		t.Errorf("expected no session after rejected upload, got %+v", sess)
	}
}

func TestUploadHandlerMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, &mockModel{})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(""))
	r.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	if w := doRequest(srv, r); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing file, got %d", w.Code)
	}
}

func TestOrchestratorHealthHandler(t *testing.T) {
	srv, st := newTestServer(t, &mockModel{})
	st.CreateConversation("")
	st.CreateConversation("")

	w := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/health/orchestrator", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Status              string `json:"status"`
		ActiveConversations int    `json:"active_conversations"`
	}
	decodeBody(t, w, &body)
	if body.Status != "healthy" {
		t.Errorf("expected healthy, got %q", body.Status)
	}
	if body.ActiveConversations != 2 {
		t.Errorf("expected 2 active conversations, got %d", body.ActiveConversations)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &mockModel{})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/chat/architect", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := doRequest(srv, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}
}

func TestCORSOriginAllowList(t *testing.T) {
	st := store.NewInMemoryStore()
	responder := flow.NewPersonaResponder(&mockModel{}, classifier.New())
	engine := flow.NewEngine(st, responder)
	srv := NewServer(st, engine, responder,
		WithUploadDir(t.TempDir()),
		WithAllowedOrigins([]string{"https://allowed.example.com"}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://denied.example.com")
	w := doRequest(srv, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for denied origin, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://allowed.example.com")
	w = doRequest(srv, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
}
