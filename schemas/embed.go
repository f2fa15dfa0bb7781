// Package schemas holds the JSON Schema documents for request bodies.
package schemas

import _ "embed"

// PipelineDefinition is the schema for pipeline create and update bodies.
//
//go:embed pipeline_definition.schema.json
var PipelineDefinition string
