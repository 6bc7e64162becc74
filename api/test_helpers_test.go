package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/prompt-registry/internal/config"
	"github.com/stellarlinkco/prompt-registry/internal/llm"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	complete func(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return p.complete(ctx, req)
}

func jsonProvider(text string) *fakeProvider {
	return &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Content:    []llm.ContentBlock{{Type: "text", Text: text}},
			StopReason: "end_turn",
		}, nil
	}}
}

func newTestServer(t *testing.T, provider llm.Provider) *Server {
	t.Helper()

	t.Setenv("PROMPT_REGISTRY_API_KEY", "")
	t.Setenv("PROMPT_REGISTRY_DISABLE_AUTH", "true")

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"), template.DefaultLimits())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	s, err := NewServer(&config.Config{}, st, provider)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-User", "tester")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func rawRequest(t *testing.T, method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Unmarshal %q: %v", w.Body.String(), err)
	}
}

func createBody() map[string]any {
	return map[string]any{
		"service_code":         "SVC1",
		"doc_type":             "DOC1",
		"name":                 "summarizer",
		"system_prompt":        "You summarize.",
		"user_prompt_template": "Summarize: {{INPUT_DATA_JSON}}",
		"temperature":          0.7,
		"max_tokens":           256,
		"output_schema": map[string]any{
			"schema_version": 1,
			"root_type":      "object",
			"fields": []map[string]any{
				{"field_name": "summary", "field_type": "string", "required": true},
			},
		},
	}
}

func createTemplate(t *testing.T, s *Server) *template.PromptTemplate {
	t.Helper()

	w := doJSON(t, s, http.MethodPost, "/admin/prompts", createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var tpl template.PromptTemplate
	decodeBody(t, w, &tpl)
	return &tpl
}

func promoteTemplate(t *testing.T, s *Server, id string) {
	t.Helper()

	w := doJSON(t, s, http.MethodPost, "/admin/prompts/"+id+"/test", map[string]any{
		"input_data": map[string]any{"title": "doc"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("test: status %d body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/admin/prompts/"+id+"/mark-tested", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("mark-tested: status %d body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/admin/prompts/"+id+"/activate", map[string]any{
		"reason": "initial rollout of this template",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("activate: status %d body %s", w.Code, w.Body.String())
	}
}
