package output

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/flow.schema.json
var flowSchemaJSON []byte

const flowSchemaURL = "flow.schema.json"

var (
	flowSchemaOnce sync.Once
	flowSchema     *jsonschema.Schema
	flowSchemaErr  error
)

func compiledFlowSchema() (*jsonschema.Schema, error) {
	flowSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(flowSchemaJSON))
		if err != nil {
			flowSchemaErr = fmt.Errorf("failed to read flow schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(flowSchemaURL, doc); err != nil {
			flowSchemaErr = fmt.Errorf("failed to add flow schema: %w", err)
			return
		}
		flowSchema, flowSchemaErr = c.Compile(flowSchemaURL)
	})
	return flowSchema, flowSchemaErr
}

// FlowSchema returns the JSON schema of analysis reports.
func FlowSchema() []byte { return flowSchemaJSON }

// ValidateJSON checks an encoded analysis report against the flow schema.
func ValidateJSON(data []byte) error {
	sch, err := compiledFlowSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}
	return nil
}
