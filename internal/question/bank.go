package question

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// bankSchema validates question-bank import files before anything touches
// the database. CorrectIndex bounds are checked separately because they
// depend on the options length.
const bankSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["text", "options", "correct_index", "category", "chapter"],
		"properties": {
			"id": {"type": "integer"},
			"text": {"type": "string", "minLength": 1},
			"options": {
				"type": "array",
				"items": {"type": "string", "minLength": 1},
				"minItems": 2,
				"maxItems": 4
			},
			"correct_index": {"type": "integer", "minimum": 0},
			"category": {"type": "string", "minLength": 1},
			"chapter": {"type": "string", "minLength": 1},
			"explanation": {"type": "string"},
			"media_url": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

// ParseBank parses and validates a question-bank import file.
func ParseBank(data []byte) ([]Question, error) {
	compiled, err := compileBankSchema()
	if err != nil {
		return nil, fmt.Errorf("compile bank schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiled.Validate(inst); err != nil {
		return nil, fmt.Errorf("bank validation failed: %w", err)
	}

	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}

	for i, q := range qs {
		if q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct_index %d out of range for %d options",
				i, q.CorrectIndex, len(q.Options))
		}
	}
	return qs, nil
}

func compileBankSchema() (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(bankSchema)))
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema://question-bank.json", parsed); err != nil {
		return nil, err
	}
	return c.Compile("schema://question-bank.json")
}
