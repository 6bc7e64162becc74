package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stellarlinkco/prompt-registry/internal/llm"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

type fakeProvider struct {
	name     string
	complete func(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

func (p *fakeProvider) Name() string {
	if p.name != "" {
		return p.name
	}
	return "fake"
}

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return p.complete(ctx, req)
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"), template.DefaultLimits())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func seedTemplate(t *testing.T, st store.Store) *template.PromptTemplate {
	t.Helper()

	tpl, err := st.Create(context.Background(), store.CreateRequest{
		ServiceCode:        "SVC1",
		DocType:            "DOC1",
		Name:               "summarizer",
		SystemPrompt:       "You summarize.",
		UserPromptTemplate: "Summarize: {{INPUT_DATA_JSON}}",
		Temperature:        0.7,
		MaxTokens:          256,
		OutputSchema: &template.OutputSchema{
			SchemaVersion: 1,
			RootType:      "object",
			Fields: []template.SchemaField{
				{FieldName: "summary", FieldType: "string", Required: true},
			},
		},
		CreatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tpl
}

func TestRunTest_Guards(t *testing.T) {
	t.Parallel()

	var rnil *Runner
	if _, err := rnil.RunTest(context.Background(), &RunRequest{TemplateID: "x"}); err == nil {
		t.Fatalf("RunTest(nil runner): expected error")
	}

	st := newTestStore(t)
	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		return textResponse("{}"), nil
	}}
	r := NewRunner(st, p, Config{})

	if _, err := r.RunTest(nil, &RunRequest{TemplateID: "x"}); err == nil {
		t.Fatalf("RunTest(nil ctx): expected error")
	}
	if _, err := r.RunTest(context.Background(), nil); err == nil {
		t.Fatalf("RunTest(nil req): expected error")
	}
	if _, err := r.RunTest(context.Background(), &RunRequest{TemplateID: " "}); err == nil {
		t.Fatalf("RunTest(empty id): expected error")
	}
	if _, err := r.RunTest(context.Background(), &RunRequest{TemplateID: "missing"}); !template.IsNotFound(err) {
		t.Fatalf("RunTest(missing): got %v, want NotFoundError", err)
	}
}

func TestRunTest_PassingRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	var gotReq *llm.Request
	p := &fakeProvider{complete: func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		gotReq = req
		return textResponse(`{"summary":"a fine document"}`), nil
	}}
	r := NewRunner(st, p, Config{Timeout: 5 * time.Second, Concurrency: 2})

	res, err := r.RunTest(context.Background(), &RunRequest{
		TemplateID: tpl.ID,
		InputData:  map[string]any{"title": "doc"},
		Actor:      "alice",
	})
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if res.Status != template.TestStatusPassed {
		t.Fatalf("Status: got %s, errors %v", res.Status, res.SchemaValidationErrors)
	}
	if !res.SchemaValidationPassed {
		t.Fatalf("SchemaValidationPassed: false, errors %v", res.SchemaValidationErrors)
	}
	if res.ParsedOutput["summary"] != "a fine document" {
		t.Fatalf("ParsedOutput: %v", res.ParsedOutput)
	}

	if gotReq == nil {
		t.Fatal("provider was not called")
	}
	if gotReq.System != "You summarize." || gotReq.MaxTokens != 256 || gotReq.Temperature != 0.7 {
		t.Fatalf("request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || !strings.Contains(gotReq.Messages[0].Content, `"title":"doc"`) {
		t.Fatalf("rendered message: %+v", gotReq.Messages)
	}
	if strings.Contains(gotReq.Messages[0].Content, template.PlaceholderToken) {
		t.Fatalf("placeholder left unrendered: %q", gotReq.Messages[0].Content)
	}

	// The result was persisted and refreshed the template bookkeeping.
	last, err := st.LastTestResult(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("LastTestResult: %v", err)
	}
	if last == nil || last.Status != template.TestStatusPassed {
		t.Fatalf("LastTestResult: %+v", last)
	}
	row, err := st.Get(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.LastTestStatus != template.TestStatusPassed {
		t.Fatalf("LastTestStatus: %s", row.LastTestStatus)
	}
}

func TestRunTest_TemperatureOverride(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	var gotTemp float64
	p := &fakeProvider{complete: func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		gotTemp = req.Temperature
		return textResponse(`{"summary":"x"}`), nil
	}}
	r := NewRunner(st, p, Config{})

	over := 0.1
	if _, err := r.RunTest(context.Background(), &RunRequest{
		TemplateID:          tpl.ID,
		TemperatureOverride: &over,
	}); err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if gotTemp != 0.1 {
		t.Fatalf("Temperature: got %g want 0.1", gotTemp)
	}
}

func TestRunTest_SchemaViolations(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		return textResponse(`{"summary": 42}`), nil
	}}
	r := NewRunner(st, p, Config{})

	res, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID})
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if res.Status != template.TestStatusFailed || res.SchemaValidationPassed {
		t.Fatalf("result: %+v", res)
	}
	if len(res.SchemaValidationErrors) != 1 || !strings.Contains(res.SchemaValidationErrors[0], "expected string") {
		t.Fatalf("SchemaValidationErrors: %v", res.SchemaValidationErrors)
	}
}

func TestRunTest_NonJSONOutput(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		return textResponse("I am not JSON at all"), nil
	}}
	r := NewRunner(st, p, Config{})

	res, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID})
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if res.Status != template.TestStatusFailed {
		t.Fatalf("Status: %s", res.Status)
	}
	if len(res.SchemaValidationErrors) != 1 || res.SchemaValidationErrors[0] != "output is not valid structured data" {
		t.Fatalf("SchemaValidationErrors: %v", res.SchemaValidationErrors)
	}
	if res.RawOutput != "I am not JSON at all" {
		t.Fatalf("RawOutput: %q", res.RawOutput)
	}
}

func TestRunTest_ExecutorFailure(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		return nil, errors.New("boom")
	}}
	r := NewRunner(st, p, Config{})

	res, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID, Actor: "alice"})
	if err != nil {
		t.Fatalf("RunTest: executor failure should yield a result, got %v", err)
	}
	if res.Status != template.TestStatusFailed {
		t.Fatalf("Status: %s", res.Status)
	}
	if !strings.Contains(res.Error, "boom") {
		t.Fatalf("Error: %q", res.Error)
	}

	// The failure was recorded like any other outcome.
	last, err := st.LastTestResult(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("LastTestResult: %v", err)
	}
	if last == nil || last.Status != template.TestStatusFailed {
		t.Fatalf("LastTestResult: %+v", last)
	}
}

func TestRunTest_Timeout(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	p := &fakeProvider{complete: func(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := NewRunner(st, p, Config{Timeout: 10 * time.Millisecond})

	res, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID})
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if res.Status != template.TestStatusFailed {
		t.Fatalf("Status: %s", res.Status)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("Error: %q", res.Error)
	}
}

func TestRunTest_ArchivedRejected(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)
	if err := st.Archive(context.Background(), tpl.ID, "alice"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		t.Error("provider should not be called")
		return nil, nil
	}}
	r := NewRunner(st, p, Config{})

	_, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID})
	var pe *template.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("RunTest(archived): got %v, want PreconditionError", err)
	}
}

func TestRunTest_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	var inFlight, maxInFlight int32
	p := &fakeProvider{complete: func(context.Context, *llm.Request) (*llm.Response, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return textResponse(`{"summary":"x"}`), nil
	}}
	r := NewRunner(st, p, Config{Concurrency: 2})

	done := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := r.RunTest(context.Background(), &RunRequest{TemplateID: tpl.ID})
			done <- err
		}()
	}
	for i := 0; i < 6; i++ {
		if err := <-done; err != nil {
			t.Fatalf("RunTest: %v", err)
		}
	}
	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Fatalf("max in-flight executions: got %d want <= 2", got)
	}
}

func TestRunTest_ArchivedMidRun(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	tpl := seedTemplate(t, st)

	// The row is archived while the provider call is in flight. The result
	// and audit entry are still recorded, but the row must stay ARCHIVED.
	p := &fakeProvider{complete: func(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
		if err := st.Archive(ctx, tpl.ID, "alice"); err != nil {
			t.Errorf("Archive: %v", err)
		}
		return textResponse(`{"summary":"ok"}`), nil
	}}
	r := NewRunner(st, p, Config{})

	result, err := r.RunTest(context.Background(), &RunRequest{
		TemplateID: tpl.ID,
		InputData:  map[string]any{"title": "doc"},
		Actor:      "alice",
	})
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if result.Status != template.TestStatusPassed {
		t.Fatalf("result status = %s, want PASSED", result.Status)
	}

	got, err := st.Get(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != template.StatusArchived {
		t.Errorf("status = %s, want ARCHIVED", got.Status)
	}
	if got.LastTestStatus != template.TestStatusPassed {
		t.Errorf("LastTestStatus = %s, want PASSED", got.LastTestStatus)
	}

	entries, err := st.ListAudit(context.Background(), store.AuditFilter{
		TemplateID: tpl.ID,
		Action:     template.ActionTestPassed,
	})
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("TEST_PASSED audit entries = %d, want 1", len(entries))
	}
}
