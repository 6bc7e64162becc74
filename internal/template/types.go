package template

import "time"

// Status is the lifecycle state of a prompt template version.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusTested     Status = "TESTED"
	StatusActive     Status = "ACTIVE"
	StatusDeprecated Status = "DEPRECATED"
	StatusArchived   Status = "ARCHIVED"
)

// TestStatus is the outcome of the most recent test execution.
type TestStatus string

const (
	TestStatusPassed  TestStatus = "PASSED"
	TestStatusFailed  TestStatus = "FAILED"
	TestStatusPending TestStatus = "PENDING"
	TestStatusRunning TestStatus = "RUNNING"
)

// Action identifies a mutating operation in the audit trail.
type Action string

const (
	ActionCreated      Action = "CREATED"
	ActionEdited       Action = "EDITED"
	ActionTestPassed   Action = "TEST_PASSED"
	ActionTestFailed   Action = "TEST_FAILED"
	ActionMarkedTested Action = "MARKED_TESTED"
	ActionActivated    Action = "ACTIVATED"
	ActionArchived     Action = "ARCHIVED"
)

// PromptTemplate is one immutable version of a prompt for a logical key
// (service_code, doc_type). Content fields are mutable only while the row
// is in DRAFT; any later edit forks a new version.
type PromptTemplate struct {
	ID          string `json:"id"`
	ServiceCode string `json:"service_code"`
	DocType     string `json:"doc_type"`
	Version     int    `json:"version"`

	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	SystemPrompt       string        `json:"system_prompt,omitempty"`
	UserPromptTemplate string        `json:"user_prompt_template"`
	Temperature        float64       `json:"temperature"`
	MaxTokens          int           `json:"max_tokens"`
	Tags               []string      `json:"tags,omitempty"`
	OutputSchema       *OutputSchema `json:"output_schema,omitempty"`

	Status Status `json:"status"`

	LastTestStatus TestStatus `json:"last_test_status,omitempty"`
	LastTestAt     *time.Time `json:"last_test_at,omitempty"`

	// Lineage back-reference, set on rows created by a fork.
	ParentID      string `json:"parent_id,omitempty"`
	ParentVersion int    `json:"parent_version,omitempty"`

	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedBy string     `json:"activated_by,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// Key returns the logical key the template belongs to.
func (t *PromptTemplate) Key() (string, string) {
	if t == nil {
		return "", ""
	}
	return t.ServiceCode, t.DocType
}

// OutputSchema declares the contract for the executor's structured output.
type OutputSchema struct {
	SchemaVersion    int           `json:"schema_version"`
	RootType         string        `json:"root_type"`
	StrictValidation bool          `json:"strict_validation"`
	Fields           []SchemaField `json:"fields"`
}

// SchemaField declares one field of the expected output object.
type SchemaField struct {
	FieldName   string `json:"field_name"`
	FieldType   string `json:"field_type"` // string, number, boolean, array, object
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// TestResult records a single test execution against a template version.
type TestResult struct {
	ID                     string         `json:"id"`
	TemplateID             string         `json:"template_id"`
	Status                 TestStatus     `json:"status"`
	ExecutionTimeMs        int64          `json:"execution_time_ms"`
	SchemaValidationPassed bool           `json:"schema_validation_passed"`
	SchemaValidationErrors []string       `json:"schema_validation_errors,omitempty"`
	RawOutput              string         `json:"raw_output,omitempty"`
	ParsedOutput           map[string]any `json:"parsed_output,omitempty"`
	Error                  string         `json:"error,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
}

// AuditEntry is one append-only record of a mutating action.
type AuditEntry struct {
	ID             string    `json:"audit_id"`
	TemplateID     string    `json:"template_id"`
	Version        int       `json:"version"`
	Action         Action    `json:"action"`
	ChangesSummary string    `json:"changes_summary,omitempty"`
	PerformedBy    string    `json:"performed_by"`
	PerformedAt    time.Time `json:"performed_at"`
}

// Limits bounds user-supplied template fields. Values come from config, not
// per-call arguments.
type Limits struct {
	TemperatureMin      float64
	TemperatureMax      float64
	MaxTokensMin        int
	MaxTokensMax        int
	ActivationReasonMin int
}

// DefaultLimits returns the bounds used when config leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		TemperatureMin:      0,
		TemperatureMax:      2,
		MaxTokensMin:        1,
		MaxTokensMax:        16384,
		ActivationReasonMin: 10,
	}
}
