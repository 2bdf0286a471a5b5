// tools.go is the tool registry. Tools are the only
// way the model causes side effects: it picks one, supplies arguments
// and a confirmation sentence, and the handler does the work.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultToolTimeout bounds a single tool execution. Transfers override
// it with the chain confirm timeout.
const DefaultToolTimeout = 30 * time.Second

// Tool names.
const (
	ToolChangeEmail          = "change-email"
	ToolChangeDisplayName    = "change-display-name"
	ToolGetBalance           = "get-balance"
	ToolSendMoney            = "send-money"
	ToolContinueConversation = "continue-conversation"
)

// ToolOutcome carries the values a handler produced for placeholder
// substitution in the confirmation template.
type ToolOutcome struct {
	Values map[string]string
}

// ToolHandlerFunc executes a tool. The actor handle travels in ctx.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (*ToolOutcome, error)

type registeredTool struct {
	Definition ToolDefinition
	Required   []string
	Timeout    time.Duration
	Handler    ToolHandlerFunc
}

// Registry holds the tool catalog and executes invocations.
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]*registeredTool
	toolDefsCache []ToolDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register adds a tool. Re-registering a name replaces it.
func (r *Registry) Register(def ToolDefinition, required []string, timeout time.Duration, handler ToolHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	r.tools[def.Function.Name] = &registeredTool{
		Definition: def,
		Required:   required,
		Timeout:    timeout,
		Handler:    handler,
	}
	r.toolDefsCache = nil
}

// Tools returns the tool definitions for the model, cached until the
// registry changes.
func (r *Registry) Tools() []ToolDefinition {
	r.mu.RLock()
	if r.toolDefsCache != nil {
		defer r.mu.RUnlock()
		return r.toolDefsCache
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.toolDefsCache == nil {
		defs := make([]ToolDefinition, 0, len(r.tools))
		for _, t := range r.tools {
			defs = append(defs, t.Definition)
		}
		r.toolDefsCache = defs
	}
	return r.toolDefsCache
}

// Execute runs a tool call end to end: argument parsing, required-field
// validation, bounded execution, and confirmation rendering. The
// returned string is the user-facing message.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[call.Function.Name]
	r.mu.RUnlock()
	if !ok {
		return "", &ValidationError{Field: "tool", Reason: fmt.Sprintf("unknown tool %q", call.Function.Name)}
	}

	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		return "", err
	}

	for _, field := range tool.Required {
		if !hasArg(args, field) {
			return "", &ValidationError{Field: field, Reason: "required argument missing or empty"}
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, tool.Timeout)
	defer cancel()

	outcome, err := tool.Handler(toolCtx, args)
	if err != nil {
		return "", err
	}

	confirmation, _ := args["confirmation"].(string)
	if outcome == nil {
		return confirmation, nil
	}
	return FormatConfirmation(confirmation, outcome.Values), nil
}

// parseToolArgs decodes raw JSON arguments. Empty input is an empty map.
func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, &SchemaViolationError{Detail: fmt.Sprintf("malformed tool arguments: %v", err)}
	}
	return args, nil
}

// hasArg reports whether a field is present and non-blank. Dotted paths
// ("recipient.handle") descend into nested objects.
func hasArg(args map[string]any, field string) bool {
	cur := any(args)
	for _, key := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return false
		}
	}
	if s, ok := cur.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// MakeToolDefinition builds a function-format tool definition from a
// parameter schema expressed as a plain map.
func MakeToolDefinition(name, description string, params map[string]any) ToolDefinition {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(`{"type":"object","properties":{}}`)
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  raw,
		},
	}
}

// ---------- Context plumbing ----------

type actorKey struct{}

// ContextWithActor attaches the acting user's handle to ctx.
func ContextWithActor(ctx context.Context, handle string) context.Context {
	return context.WithValue(ctx, actorKey{}, handle)
}

// ActorFromContext returns the acting user's handle, if set.
func ActorFromContext(ctx context.Context) (string, bool) {
	handle, ok := ctx.Value(actorKey{}).(string)
	return handle, ok
}
