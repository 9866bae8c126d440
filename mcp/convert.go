package mcp

import (
	"encoding/json"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// ToOllamaTools converts MCP tool definitions to the Ollama API tool format.
func ToOllamaTools(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]api.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaToParameters(t.InputSchema),
			},
		})
	}
	return out
}

func schemaToParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schema.Type,
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty),
	}
	if schema.Defs != nil {
		params.Defs = schema.Defs
	}
	for name, value := range schema.Properties {
		params.Properties[name] = toToolProperty(value)
	}
	return params
}

func toToolProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}

	propMap, ok := value.(map[string]any)
	if !ok {
		// Not a plain map; round-trip through JSON to normalize.
		raw, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return prop
		}
		propMap = m
	}

	// "type" may be a single string or a list of strings.
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			prop.Type = api.PropertyType{t}
		case []string:
			prop.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			prop.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enumVal, ok := propMap["enum"].([]any); ok {
		prop.Enum = enumVal
	}
	if items, ok := propMap["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := propMap["anyOf"].([]any); ok {
		props := make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			props = append(props, toToolProperty(item))
		}
		prop.AnyOf = props
	}

	return prop
}

// ToOpenAITools converts MCP tool definitions to the OpenAI chat-completions
// tool format, as accepted by OpenAI-compatible local servers. Both sides are
// JSON Schema, so the input schema maps through directly.
func ToOpenAITools(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		params := openai.FunctionParameters{
			"type":       t.InputSchema.Type,
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			params["required"] = t.InputSchema.Required
		}
		if t.InputSchema.Defs != nil {
			params["$defs"] = t.InputSchema.Defs
		}

		out[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		)
	}
	return out
}
