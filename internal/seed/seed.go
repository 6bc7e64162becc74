// Package seed loads template definitions from YAML files so a fresh
// registry can be populated without driving the HTTP API.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

// Definition is the on-disk form of a template. It mirrors the create
// request; every import produces a new DRAFT version.
type Definition struct {
	ServiceCode        string     `yaml:"service_code"`
	DocType            string     `yaml:"doc_type"`
	Name               string     `yaml:"name"`
	Description        string     `yaml:"description,omitempty"`
	SystemPrompt       string     `yaml:"system_prompt,omitempty"`
	UserPromptTemplate string     `yaml:"user_prompt_template"`
	Temperature        float64    `yaml:"temperature"`
	MaxTokens          int        `yaml:"max_tokens"`
	Tags               []string   `yaml:"tags,omitempty"`
	OutputSchema       *SchemaDef `yaml:"output_schema,omitempty"`
}

// SchemaDef is the YAML form of an output schema.
type SchemaDef struct {
	SchemaVersion    int        `yaml:"schema_version"`
	RootType         string     `yaml:"root_type"`
	StrictValidation bool       `yaml:"strict_validation,omitempty"`
	Fields           []FieldDef `yaml:"fields"`
}

// FieldDef is the YAML form of one schema field.
type FieldDef struct {
	FieldName   string `yaml:"field_name"`
	FieldType   string `yaml:"field_type"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

// LoadFromFile loads a single template definition from a YAML file.
func LoadFromFile(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %q: %w", path, err)
	}

	var d Definition
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("seed: parse %q: %w", path, err)
	}
	return &d, nil
}

// LoadFromDir loads all template definitions from a directory, in file
// name order.
func LoadFromDir(dir string) ([]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("seed: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]*Definition, 0, len(paths))
	for _, path := range paths {
		d, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ToCreateRequest converts a definition to a store create request.
func (d *Definition) ToCreateRequest(actor string) store.CreateRequest {
	if d == nil {
		return store.CreateRequest{}
	}

	req := store.CreateRequest{
		ServiceCode:        d.ServiceCode,
		DocType:            d.DocType,
		Name:               d.Name,
		Description:        d.Description,
		SystemPrompt:       d.SystemPrompt,
		UserPromptTemplate: d.UserPromptTemplate,
		Temperature:        d.Temperature,
		MaxTokens:          d.MaxTokens,
		Tags:               d.Tags,
		CreatedBy:          actor,
	}
	if d.OutputSchema != nil {
		schema := &template.OutputSchema{
			SchemaVersion:    d.OutputSchema.SchemaVersion,
			RootType:         d.OutputSchema.RootType,
			StrictValidation: d.OutputSchema.StrictValidation,
		}
		for _, f := range d.OutputSchema.Fields {
			schema.Fields = append(schema.Fields, template.SchemaField{
				FieldName:   f.FieldName,
				FieldType:   f.FieldType,
				Description: f.Description,
				Required:    f.Required,
			})
		}
		req.OutputSchema = schema
	}
	return req
}

// Result reports the outcome of importing one definition.
type Result struct {
	ServiceCode string
	DocType     string
	Name        string
	TemplateID  string
	Version     int
	Err         error
}

// Import creates a DRAFT version for every definition. Definitions that
// fail validation are reported in their Result and do not stop the rest.
func Import(ctx context.Context, st store.TemplateWriter, defs []*Definition, actor string) ([]Result, error) {
	if st == nil {
		return nil, fmt.Errorf("seed: nil store")
	}

	results := make([]Result, 0, len(defs))
	for _, d := range defs {
		if d == nil {
			continue
		}
		res := Result{
			ServiceCode: d.ServiceCode,
			DocType:     d.DocType,
			Name:        d.Name,
		}
		tpl, err := st.Create(ctx, d.ToCreateRequest(actor))
		if err != nil {
			res.Err = err
		} else {
			res.TemplateID = tpl.ID
			res.Version = tpl.Version
		}
		results = append(results, res)
	}
	return results, nil
}
