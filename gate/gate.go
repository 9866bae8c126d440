// Package gate decides which tool definitions may be attached to a
// generation request for a given model, and synthesizes a human-readable
// notice for tools withheld because of missing permissions or model
// incompatibility.
package gate

import (
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"blackia/ollama"
)

// maxListedTools caps how many disabled tools the notice enumerates. The cap
// bounds prompt size: the remainder is summarized as a count.
const maxListedTools = 10

// CatalogEntry is one tool from the permission-checked catalog.
type CatalogEntry struct {
	Tool               mcptypes.Tool
	Enabled            bool
	MissingPermissions []string
}

// Gate evaluates tool attachability per request.
type Gate struct {
	// AllowedFamilies overrides the built-in model-family allow-list when
	// non-empty. Family prefixes are matched against the normalized model id
	// (tag suffix stripped).
	AllowedFamilies []string
}

// Evaluate partitions the catalog into tools attachable to the request and a
// notice describing the rest. With tooling disabled globally, nothing is
// attached and no notice is produced.
func (g *Gate) Evaluate(modelID string, catalog []CatalogEntry, toolingEnabled bool) ([]mcptypes.Tool, string) {
	if !toolingEnabled {
		return nil, ""
	}

	if !g.modelSupportsTools(modelID) {
		return nil, fmt.Sprintf("Note: tools are unavailable because the model %q does not support tool calling.", modelID)
	}

	var attachable []mcptypes.Tool
	var disabled []CatalogEntry
	for _, entry := range catalog {
		if entry.Enabled && len(entry.MissingPermissions) == 0 {
			attachable = append(attachable, entry.Tool)
		} else {
			disabled = append(disabled, entry)
		}
	}

	return attachable, disabledNotice(disabled)
}

func (g *Gate) modelSupportsTools(modelID string) bool {
	if len(g.AllowedFamilies) == 0 {
		return ollama.ModelSupportsToolCalling(modelID)
	}

	normalized := ollama.NormalizeModelID(modelID)
	for _, family := range g.AllowedFamilies {
		if strings.HasPrefix(normalized, strings.ToLower(family)) {
			return true
		}
	}
	return false
}

// disabledNotice lists up to maxListedTools withheld tools with their missing
// permissions, summarizing any remainder as a count.
func disabledNotice(disabled []CatalogEntry) string {
	if len(disabled) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Note: the following tools are unavailable:")

	listed := disabled
	if len(listed) > maxListedTools {
		listed = listed[:maxListedTools]
	}
	for _, entry := range listed {
		b.WriteString("\n- ")
		b.WriteString(entry.Tool.Name)
		if len(entry.MissingPermissions) > 0 {
			fmt.Fprintf(&b, " (missing permissions: %s)", strings.Join(entry.MissingPermissions, ", "))
		}
	}
	if rest := len(disabled) - len(listed); rest > 0 {
		fmt.Fprintf(&b, "\n...and %d others", rest)
	}

	return b.String()
}
