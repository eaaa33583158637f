package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidRequest = errors.New("invalid run request")

const runRequestSchemaURL = "run-request.schema.json"

const runRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "option":         {"type": "string"},
    "deviceID":       {"type": "string", "minLength": 1},
    "deviceIDs":      {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "groupID":        {"type": "string", "minLength": 1},
    "driverID":       {"type": "string", "minLength": 1},
    "timeStart":      {"type": "integer", "minimum": 0},
    "timeEnd":        {"type": "integer", "minimum": 0},
    "includeColumns": {"type": "array", "items": {"type": "string"}},
    "excludeColumns": {"type": "array", "items": {"type": "string"}},
    "filename":       {"type": "string", "pattern": "^[A-Za-z0-9._-]+$"}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func runSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(runRequestSchemaURL, strings.NewReader(runRequestSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(runRequestSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseRunRequest validates a run or export body against the request schema
// and decodes it. An empty body is a request with no overrides.
func ParseRunRequest(raw []byte) (RunRequest, error) {
	var req RunRequest
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}
	schema, err := runSchema()
	if err != nil {
		return req, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := schema.Validate(payload); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.TimeStart > 0 && req.TimeEnd > 0 && req.TimeEnd < req.TimeStart {
		return req, fmt.Errorf("%w: timeEnd is before timeStart", ErrInvalidRequest)
	}
	return req, nil
}
