package analyzer

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://todotagger.local/schemas/"

// SchemaError describes the first violation found in a model reply.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid reply: " + e.Message
	}
	return fmt.Sprintf("invalid reply at %s: %s", e.Path, e.Message)
}

var (
	analysisSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("analysis.schema.json")
	})
	workPlanSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("workplan.schema.json")
	})
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	url := schemaBaseURL + name
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}

	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// ValidateAnalysis checks a raw JSON analysis reply.
func ValidateAnalysis(raw []byte) error {
	return validate(analysisSchema, raw)
}

// ValidateWorkPlan checks a raw JSON work plan reply.
func ValidateWorkPlan(raw []byte) error {
	return validate(workPlanSchema, raw)
}

func validate(load func() (*jsonschema.Schema, error), raw []byte) error {
	schema, err := load()
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &SchemaError{Message: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &SchemaError{Message: err.Error()}
		}
		leaf := firstLeaf(ve)
		return &SchemaError{Path: jsonPointerToPath(leaf.InstanceLocation), Message: leaf.Message}
	}
	return nil
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// jsonPointerToPath turns "/required_skills/0" into "required_skills.0".
func jsonPointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
