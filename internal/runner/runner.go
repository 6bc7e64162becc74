package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellarlinkco/prompt-registry/internal/llm"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

var timeNow = time.Now

// Runner executes template tests against an LLM provider and records the
// outcome. The provider call happens outside any store transaction, so slow
// model responses never block lifecycle operations.
type Runner struct {
	store    store.Store
	provider llm.Provider
	cfg      Config

	sem chan struct{}
}

// NewRunner creates a Runner with defaults applied to the config.
func NewRunner(st store.Store, provider llm.Provider, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Runner{
		store:    st,
		provider: provider,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// RunTest renders the template against the given input, executes it, validates
// the output against the template's schema, and persists the result. Executor
// failures and timeouts are reported as a FAILED result, not an error; an error
// return means the test could not be attempted at all.
func (r *Runner) RunTest(ctx context.Context, req *RunRequest) (*template.TestResult, error) {
	if r == nil {
		return nil, errors.New("runner: nil runner")
	}
	if ctx == nil {
		return nil, errors.New("runner: nil context")
	}
	if r.provider == nil {
		return nil, errors.New("runner: nil llm provider")
	}
	if r.store == nil {
		return nil, errors.New("runner: nil store")
	}
	if req == nil {
		return nil, errors.New("runner: nil request")
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		return nil, errors.New("runner: missing template id")
	}

	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	tpl, err := r.store.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl.Status == template.StatusArchived {
		return nil, &template.PreconditionError{
			Op:     "run_test",
			Reason: "cannot test an archived template",
		}
	}

	rendered, err := template.Render(tpl.UserPromptTemplate, req.InputData)
	if err != nil {
		// The placeholder is validated on every write, so a stored row that
		// fails to render indicates corruption rather than a failed test.
		return nil, fmt.Errorf("runner: render template %s: %w", tpl.ID, err)
	}

	temp := tpl.Temperature
	if req.TemperatureOverride != nil {
		temp = *req.TemperatureOverride
	}

	llmReq := &llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: rendered}},
		System:      tpl.SystemPrompt,
		MaxTokens:   tpl.MaxTokens,
		Temperature: temp,
	}

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := timeNow()
	resp, execErr := r.provider.Complete(execCtx, llmReq)
	elapsed := timeNow().Sub(start).Milliseconds()

	result := &template.TestResult{
		TemplateID:      tpl.ID,
		ExecutionTimeMs: elapsed,
	}

	switch {
	case execErr != nil:
		result.Status = template.TestStatusFailed
		if errors.Is(execErr, context.DeadlineExceeded) {
			result.Error = fmt.Sprintf("execution timed out after %s", r.cfg.Timeout)
		} else {
			result.Error = fmt.Sprintf("executor: %v", execErr)
		}
	case resp == nil:
		result.Status = template.TestStatusFailed
		result.Error = "executor: empty response"
	default:
		raw := llm.Text(resp)
		result.RawOutput = raw

		var parsed map[string]any
		if err := llm.ParseJSON(raw, &parsed); err != nil {
			result.Status = template.TestStatusFailed
			result.SchemaValidationErrors = []string{"output is not valid structured data"}
		} else {
			result.ParsedOutput = parsed
			ok, verrs := template.ValidateOutput(tpl.OutputSchema, parsed)
			result.SchemaValidationPassed = ok
			result.SchemaValidationErrors = verrs
			if ok {
				result.Status = template.TestStatusPassed
			} else {
				result.Status = template.TestStatusFailed
			}
		}
	}

	if err := r.store.RecordTestResult(ctx, result, req.Actor); err != nil {
		return nil, fmt.Errorf("runner: record test result: %w", err)
	}

	return result, nil
}

func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) release() {
	<-r.sem
}
