// llm.go is the OpenAI-compatible chat completion
// client used for intent resolution. Works with any provider exposing
// the /chat/completions shape (OpenAI, OpenRouter, local gateways).
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one turn of a model conversation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a callable tool in OpenAI function format.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is the function portion of a tool definition.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResponseFormat requests structured output from the model.
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat names a strict output schema.
type JSONSchemaFormat struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// LLMResponse is the distilled result of a completion call.
type LLMResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
	ModelUsed    string
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ---------- Wire types ----------

type chatRequest struct {
	Model          string           `json:"model"`
	Messages       []ChatMessage    `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
	MaxTokens      *int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat  `json:"response_format,omitempty"`
	Stream         bool             `json:"stream"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ---------- Error classification ----------

// LLMErrorKind buckets API failures for logging and retry decisions.
type LLMErrorKind int

const (
	ErrKindUnknown LLMErrorKind = iota
	ErrKindAuth
	ErrKindBadRequest
	ErrKindContextLength
	ErrKindQuota
	ErrKindRateLimit
	ErrKindOverloaded
	ErrKindTimeout
	ErrKindRetryable
)

func (k LLMErrorKind) String() string {
	switch k {
	case ErrKindAuth:
		return "auth"
	case ErrKindBadRequest:
		return "bad_request"
	case ErrKindContextLength:
		return "context_length"
	case ErrKindQuota:
		return "quota"
	case ErrKindRateLimit:
		return "rate_limit"
	case ErrKindOverloaded:
		return "overloaded"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

type apiError struct {
	statusCode    int
	body          string
	retryAfterSec int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.statusCode, e.body)
}

// classifyAPIError maps a status code and body to an error kind.
func classifyAPIError(statusCode int, body string) LLMErrorKind {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "context_length_exceeded"),
		strings.Contains(lower, "maximum context length"):
		return ErrKindContextLength
	case strings.Contains(lower, "billing"), strings.Contains(lower, "quota"):
		return ErrKindQuota
	case statusCode == 429, strings.Contains(lower, "rate_limit"):
		return ErrKindRateLimit
	case statusCode == 529, strings.Contains(lower, "overloaded"):
		return ErrKindOverloaded
	case strings.Contains(lower, "timeout"):
		return ErrKindTimeout
	case statusCode == 401, statusCode == 403:
		return ErrKindAuth
	case statusCode == 400:
		return ErrKindBadRequest
	case statusCode >= 500:
		return ErrKindRetryable
	default:
		return ErrKindUnknown
	}
}

// ---------- Client ----------

// LLMConfig holds model provider settings.
type LLMConfig struct {
	// BaseURL of the OpenAI-compatible API.
	BaseURL string `yaml:"base_url"`

	// APIKey authorizes requests. Usually resolved from keyring or env.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier sent with each request.
	Model string `yaml:"model"`

	// Temperature, when set, overrides the provider default.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultLLMConfig returns provider defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
	}
}

// LLMClient calls an OpenAI-compatible chat completion API.
type LLMClient struct {
	cfg        LLMConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a client. Timeouts live on the transport, not the
// client, so long completions are bounded per phase rather than overall.
func NewLLMClient(cfg LLMConfig, logger *slog.Logger) *LLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClient{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       120 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 180 * time.Second,
			},
		},
		logger: logger.With("component", "llm"),
	}
}

// CompleteWithTools runs one completion with the tool catalog attached.
func (c *LLMClient) CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*LLMResponse, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = &c.cfg.MaxTokens
	}
	return c.completeOnce(ctx, req)
}

// CompleteStructured runs one completion constrained to a JSON schema
// and returns the raw JSON content.
func (c *LLMClient) CompleteStructured(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (string, error) {
	req := chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    c.cfg.Temperature,
		ResponseFormat: format,
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = &c.cfg.MaxTokens
	}
	resp, err := c.completeOnce(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// completeOnce performs a single request with no internal retries.
func (c *LLMClient) completeOnce(ctx context.Context, req chatRequest) (*LLMResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &apiError{statusCode: httpResp.StatusCode, body: string(respBody)}
		if httpResp.StatusCode == 429 {
			if ra := httpResp.Header.Get("Retry-After"); ra != "" {
				if sec, convErr := strconv.Atoi(ra); convErr == nil {
					apiErr.retryAfterSec = sec
				}
			}
		}
		c.logger.Warn("llm request failed",
			"status", httpResp.StatusCode,
			"kind", classifyAPIError(httpResp.StatusCode, string(respBody)).String(),
			"duration_ms", time.Since(start).Milliseconds())
		return nil, apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (%s)", chatResp.Error.Message, chatResp.Error.Type)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := chatResp.Choices[0]
	c.logger.Info("llm completion",
		"model", chatResp.Model,
		"finish_reason", choice.FinishReason,
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return &LLMResponse{
		Content:      choice.Message.Content,
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage:        chatResp.Usage,
		ModelUsed:    chatResp.Model,
	}, nil
}
