package template

import (
	"fmt"
	"strings"
)

// ValidateContent collects every constraint violated by the template's
// user-supplied fields. An empty result means the row may be saved.
func ValidateContent(t *PromptTemplate, lim Limits) []string {
	if t == nil {
		return []string{"template is required"}
	}

	var violations []string
	if strings.TrimSpace(t.Name) == "" {
		violations = append(violations, "name is required")
	}
	if strings.TrimSpace(t.ServiceCode) == "" {
		violations = append(violations, "service_code is required")
	}
	if strings.TrimSpace(t.DocType) == "" {
		violations = append(violations, "doc_type is required")
	}

	if strings.TrimSpace(t.UserPromptTemplate) == "" {
		violations = append(violations, "user_prompt_template is required")
	} else if n := PlaceholderCount(t.UserPromptTemplate); n != 1 {
		violations = append(violations,
			fmt.Sprintf("user_prompt_template must contain the placeholder %s exactly once, found %d", PlaceholderToken, n))
	}

	if t.Temperature < lim.TemperatureMin || t.Temperature > lim.TemperatureMax {
		violations = append(violations,
			fmt.Sprintf("temperature must be between %g and %g", lim.TemperatureMin, lim.TemperatureMax))
	}
	if t.MaxTokens < lim.MaxTokensMin || t.MaxTokens > lim.MaxTokensMax {
		violations = append(violations,
			fmt.Sprintf("max_tokens must be between %d and %d", lim.MaxTokensMin, lim.MaxTokensMax))
	}

	if t.OutputSchema != nil {
		for _, f := range t.OutputSchema.Fields {
			if strings.TrimSpace(f.FieldName) == "" {
				violations = append(violations, "output_schema field name is required")
				continue
			}
			if !ValidFieldType(f.FieldType) {
				violations = append(violations,
					fmt.Sprintf("output_schema field %s has unknown type %q", f.FieldName, f.FieldType))
			}
		}
	}

	return violations
}

// ValidateActivationReason enforces the audit-trail policy that every
// activation carries a meaningful reason. Enforced server-side.
func ValidateActivationReason(reason string, lim Limits) error {
	min := lim.ActivationReasonMin
	if min <= 0 {
		min = DefaultLimits().ActivationReasonMin
	}
	if len(strings.TrimSpace(reason)) < min {
		return NewValidationError(fmt.Sprintf("activation_reason must be at least %d characters", min))
	}
	return nil
}
