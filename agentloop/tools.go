package agentloop

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hatchpad/agentcore/modelgw"
)

// ToolName enumerates the callable tools. Dispatch over tool names is an
// exhaustive switch so adding or removing a tool is a compile-time-checked
// change; an unknown name is a defined failure, not an accident.
type ToolName string

const (
	ToolReadFile   ToolName = "read_file"
	ToolWriteFile  ToolName = "write_file"
	ToolEditFile   ToolName = "edit_file"
	ToolListFiles  ToolName = "list_files"
	ToolSearchCode ToolName = "search_code"
	ToolRunCommand ToolName = "run_command"
)

// AllTools lists every tool name in catalog order.
var AllTools = []ToolName{
	ToolReadFile,
	ToolWriteFile,
	ToolEditFile,
	ToolListFiles,
	ToolSearchCode,
	ToolRunCommand,
}

// ParseToolName maps a string to a known ToolName.
func ParseToolName(s string) (ToolName, bool) {
	for _, name := range AllTools {
		if string(name) == s {
			return name, true
		}
	}
	return "", false
}

// ToolCall is a model-initiated tool invocation. Immutable once received.
type ToolCall struct {
	ID    string            `json:"id"`
	Name  ToolName          `json:"name"`
	Input map[string]string `json:"input"`
}

// Arg returns the named input value, or empty string when absent.
func (c ToolCall) Arg(key string) string {
	return c.Input[key]
}

// ToolResult is the uniform outcome shape produced by the executor. Failures
// are values, never escaping errors, so the loop's control flow stays
// linear.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns the result as the string fed back into the model's context.
func (r ToolResult) Text() string {
	if r.Success {
		return r.Output
	}
	return "Error: " + r.Error
}

func successResult(output string) ToolResult {
	return ToolResult{Success: true, Output: output}
}

func failureResult(format string, args ...interface{}) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ParseToolCall converts a gateway tool call into the loop's ToolCall shape.
// Argument values that are not strings are rendered as compact JSON so the
// executor sees a uniform string mapping. An unknown tool name still parses;
// the executor turns it into a failed result.
func ParseToolCall(tc modelgw.ToolCall) ToolCall {
	input := map[string]string{}
	var raw map[string]interface{}
	if err := json.Unmarshal(tc.Arguments, &raw); err == nil {
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				input[k] = val
			default:
				b, err := json.Marshal(val)
				if err != nil {
					continue
				}
				input[k] = string(b)
			}
		}
	}
	name, _ := ParseToolName(tc.Name)
	if name == "" {
		name = ToolName(tc.Name)
	}
	return ToolCall{ID: tc.ID, Name: name, Input: input}
}

// Signature computes a deterministic identity for loop detection: tool name
// plus inputs in sorted key order.
func (c ToolCall) Signature() string {
	keys := make([]string, 0, len(c.Input))
	for k := range c.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sig := string(c.Name)
	for _, k := range keys {
		sig += "|" + k + "=" + c.Input[k]
	}
	return sig
}

// marshalInput renders a tool input mapping as JSON for gateway messages.
func marshalInput(input map[string]string) json.RawMessage {
	b, err := json.Marshal(input)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func stringParam(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Catalog returns the tool definitions presented to the model.
func Catalog() []modelgw.ToolDefinition {
	return []modelgw.ToolDefinition{
		{
			Name:        string(ToolReadFile),
			Description: "Read the full contents of a file. The path is relative to the project root.",
			Parameters: objectSchema([]string{"path"}, map[string]interface{}{
				"path": stringParam("Path of the file to read, relative to the project root."),
			}),
		},
		{
			Name:        string(ToolWriteFile),
			Description: "Create or overwrite a file with the given content. Parent directories are created as needed.",
			Parameters: objectSchema([]string{"path", "content"}, map[string]interface{}{
				"path":    stringParam("Path of the file to write, relative to the project root."),
				"content": stringParam("Complete file content to write."),
			}),
		},
		{
			Name:        string(ToolEditFile),
			Description: "Replace the first occurrence of a search string in a file. Fails if the search string is not found. Prefer read_file first so the search string matches exactly.",
			Parameters: objectSchema([]string{"path", "search", "replace"}, map[string]interface{}{
				"path":    stringParam("Path of the file to edit, relative to the project root."),
				"search":  stringParam("Exact text to find. Include enough context to be unique."),
				"replace": stringParam("Replacement text."),
			}),
		},
		{
			Name:        string(ToolListFiles),
			Description: "Recursively list files under a directory. Directories are suffixed with '/'. Output is capped; narrow the path for large trees.",
			Parameters: objectSchema(nil, map[string]interface{}{
				"path": stringParam("Directory to list, relative to the project root. Defaults to the root."),
			}),
		},
		{
			Name:        string(ToolSearchCode),
			Description: "Search source files for a text pattern and return matching lines with file locations.",
			Parameters: objectSchema([]string{"query"}, map[string]interface{}{
				"query": stringParam("Text or regular expression to search for."),
			}),
		},
		{
			Name:        string(ToolRunCommand),
			Description: "Run a shell command in the project root. Output is combined stdout and stderr. Commands time out after 30 seconds.",
			Parameters: objectSchema([]string{"command"}, map[string]interface{}{
				"command": stringParam("Shell command to execute."),
			}),
		},
	}
}
