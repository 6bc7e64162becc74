package runner

import "time"

// Config defines test execution behavior.
type Config struct {
	Timeout     time.Duration // Per-execution budget for the model call
	Concurrency int           // Max concurrent test executions
}

// RunRequest describes a single template test execution.
type RunRequest struct {
	TemplateID          string         `json:"template_id"`
	InputData           map[string]any `json:"input_data"`
	TemperatureOverride *float64       `json:"temperature_override,omitempty"`
	Actor               string         `json:"-"`
}
