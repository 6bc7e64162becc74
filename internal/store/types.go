package store

import (
	"context"
	"time"

	"github.com/stellarlinkco/prompt-registry/internal/template"
)

// CreateRequest carries the fields for a new DRAFT template at version 1.
type CreateRequest struct {
	ServiceCode        string                 `json:"service_code"`
	DocType            string                 `json:"doc_type"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	SystemPrompt       string                 `json:"system_prompt"`
	UserPromptTemplate string                 `json:"user_prompt_template"`
	Temperature        float64                `json:"temperature"`
	MaxTokens          int                    `json:"max_tokens"`
	Tags               []string               `json:"tags"`
	OutputSchema       *template.OutputSchema `json:"output_schema"`
	CreatedBy          string                 `json:"created_by"`
}

// UpdateRequest is a partial edit. Nil fields are left unchanged. Applied in
// place on a DRAFT row; on a TESTED, ACTIVE or DEPRECATED row it forks a new
// DRAFT at max(version)+1 instead.
type UpdateRequest struct {
	Name               *string                `json:"name,omitempty"`
	Description        *string                `json:"description,omitempty"`
	SystemPrompt       *string                `json:"system_prompt,omitempty"`
	UserPromptTemplate *string                `json:"user_prompt_template,omitempty"`
	Temperature        *float64               `json:"temperature,omitempty"`
	MaxTokens          *int                   `json:"max_tokens,omitempty"`
	Tags               *[]string              `json:"tags,omitempty"`
	OutputSchema       *template.OutputSchema `json:"output_schema,omitempty"`
	UpdatedBy          string                 `json:"-"`
}

// TemplateFilter narrows template listings. ARCHIVED rows are excluded unless
// IncludeArchived is set or Status names them explicitly.
type TemplateFilter struct {
	ServiceCode     string
	DocType         string
	Status          template.Status
	IncludeArchived bool
	Limit           int
	Offset          int
}

// AuditFilter narrows audit listings; results are newest first.
type AuditFilter struct {
	TemplateID string
	Action     template.Action
	Limit      int
	Offset     int
}

// Stats aggregates registry counts for the overview endpoint.
type Stats struct {
	Total        int                     `json:"total"`
	ByStatus     map[template.Status]int `json:"by_status"`
	LogicalKeys  int                     `json:"logical_keys"`
	TestsLast24h int                     `json:"tests_last_24h"`
}

// TemplateWriter defines the mutating template operations. Every mutation
// appends its audit entry in the same transaction.
type TemplateWriter interface {
	Create(ctx context.Context, req CreateRequest) (*template.PromptTemplate, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*template.PromptTemplate, error)
	MarkTested(ctx context.Context, id, actor string) (*template.PromptTemplate, error)
	Activate(ctx context.Context, id, reason, actor string) (*template.PromptTemplate, error)
	Archive(ctx context.Context, id, actor string) error
	RecordTestResult(ctx context.Context, result *template.TestResult, actor string) error
}

// TemplateReader defines read access to template rows.
type TemplateReader interface {
	Get(ctx context.Context, id string) (*template.PromptTemplate, error)
	GetActive(ctx context.Context, serviceCode, docType string) (*template.PromptTemplate, error)
	List(ctx context.Context, filter TemplateFilter) ([]*template.PromptTemplate, error)
	LastTestResult(ctx context.Context, templateID string) (*template.TestResult, error)
}

// AuditReader defines read access to the append-only audit trail.
type AuditReader interface {
	ListAudit(ctx context.Context, filter AuditFilter) ([]*template.AuditEntry, error)
	Overview(ctx context.Context, now time.Time) (*Stats, error)
}

// Store is the sole shared resource of the engine; all cross-operation
// coordination flows through it.
type Store interface {
	TemplateWriter
	TemplateReader
	AuditReader
	Close() error
}
