package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PlaceholderToken is the single reserved injection point in a user prompt
// template. Callers' input data is serialized to JSON and substituted here.
const PlaceholderToken = "{{INPUT_DATA_JSON}}"

// PlaceholderCount returns the number of placeholder occurrences in text.
func PlaceholderCount(text string) int {
	return strings.Count(text, PlaceholderToken)
}

// CheckPlaceholder enforces the save-time invariant that the placeholder
// appears exactly once.
func CheckPlaceholder(text string) error {
	if PlaceholderCount(text) != 1 {
		return ErrMalformedTemplate
	}
	return nil
}

// Render substitutes the placeholder with the canonical JSON form of input.
// It is pure and holds no state. A missing or duplicated placeholder here
// means the save-time invariant was bypassed.
func Render(templateText string, input any) (string, error) {
	if err := CheckPlaceholder(templateText); err != nil {
		return "", err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("template: encode input data: %w", err)
	}

	return strings.Replace(templateText, PlaceholderToken, string(payload), 1), nil
}
