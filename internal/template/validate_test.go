package template

import (
	"strings"
	"testing"
)

func validTemplate() *PromptTemplate {
	return &PromptTemplate{
		ServiceCode:        "SVC1",
		DocType:            "DOC1",
		Name:               "summarizer",
		UserPromptTemplate: "Summarize: {{INPUT_DATA_JSON}}",
		Temperature:        0.7,
		MaxTokens:          1024,
	}
}

func TestValidateContent_OK(t *testing.T) {
	t.Parallel()

	if v := ValidateContent(validTemplate(), DefaultLimits()); len(v) != 0 {
		t.Fatalf("ValidateContent: %v", v)
	}
}

func TestValidateContent_CollectsAllViolations(t *testing.T) {
	t.Parallel()

	tmpl := &PromptTemplate{
		UserPromptTemplate: "no placeholder",
		Temperature:        5,
		MaxTokens:          0,
	}
	violations := ValidateContent(tmpl, DefaultLimits())
	if len(violations) != 6 {
		t.Fatalf("ValidateContent: got %d violations: %v", len(violations), violations)
	}
	joined := strings.Join(violations, "\n")
	for _, want := range []string{
		"name is required",
		"service_code is required",
		"doc_type is required",
		PlaceholderToken,
		"temperature",
		"max_tokens",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("ValidateContent: missing %q in %v", want, violations)
		}
	}
}

func TestValidateContent_PlaceholderCountInMessage(t *testing.T) {
	t.Parallel()

	tmpl := validTemplate()
	tmpl.UserPromptTemplate = "{{INPUT_DATA_JSON}} twice {{INPUT_DATA_JSON}}"
	violations := ValidateContent(tmpl, DefaultLimits())
	if len(violations) != 1 || !strings.Contains(violations[0], "found 2") {
		t.Fatalf("ValidateContent: %v", violations)
	}
}

func TestValidateContent_SchemaFields(t *testing.T) {
	t.Parallel()

	tmpl := validTemplate()
	tmpl.OutputSchema = &OutputSchema{
		RootType: "object",
		Fields: []SchemaField{
			{FieldName: "", FieldType: "string"},
			{FieldName: "x", FieldType: "integer"},
		},
	}
	violations := ValidateContent(tmpl, DefaultLimits())
	if len(violations) != 2 {
		t.Fatalf("ValidateContent: %v", violations)
	}
	if !strings.Contains(violations[1], `unknown type "integer"`) {
		t.Fatalf("ValidateContent: %v", violations)
	}
}

func TestValidateActivationReason(t *testing.T) {
	t.Parallel()

	lim := DefaultLimits()
	if err := ValidateActivationReason("rolling out v2", lim); err != nil {
		t.Fatalf("ValidateActivationReason: %v", err)
	}
	err := ValidateActivationReason("short", lim)
	if err == nil {
		t.Fatal("ValidateActivationReason: expected error")
	}
	if !IsValidation(err) {
		t.Fatalf("ValidateActivationReason: got %T, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "at least 10 characters") {
		t.Fatalf("ValidateActivationReason: %v", err)
	}
	// Whitespace padding does not count toward the minimum.
	if err := ValidateActivationReason("   short    ", lim); err == nil {
		t.Fatal("ValidateActivationReason: expected error for padded reason")
	}
}

func TestErrorStrings(t *testing.T) {
	t.Parallel()

	ve := NewValidationError("a", "b")
	if got := ve.Error(); !strings.Contains(got, "a; b") {
		t.Fatalf("ValidationError: %q", got)
	}

	pe := &PreconditionError{Op: "activate", Reason: "template must be status=TESTED to activate, currently DRAFT"}
	if got := pe.Error(); !strings.Contains(got, "currently DRAFT") {
		t.Fatalf("PreconditionError: %q", got)
	}

	ne := &NotFoundError{ID: "tpl_123"}
	if got := ne.Error(); !strings.Contains(got, "tpl_123") {
		t.Fatalf("NotFoundError: %q", got)
	}
}
