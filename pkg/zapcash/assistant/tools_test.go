package assistant

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistryRegisterAndCache(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
		return nil, nil
	}

	r.Register(MakeToolDefinition("a", "first", nil), nil, 0, handler)
	r.Register(MakeToolDefinition("b", "second", nil), nil, 0, handler)

	first := r.Tools()
	if len(first) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(first))
	}

	t.Run("cache invalidated on register", func(t *testing.T) {
		r.Register(MakeToolDefinition("c", "third", nil), nil, 0, handler)
		if got := len(r.Tools()); got != 3 {
			t.Errorf("expected 3 definitions after register, got %d", got)
		}
	})

	t.Run("re-register replaces", func(t *testing.T) {
		r.Register(MakeToolDefinition("a", "replaced", nil), nil, 0, handler)
		if got := len(r.Tools()); got != 3 {
			t.Errorf("expected 3 definitions after replace, got %d", got)
		}
	})
}

func TestRegistryExecuteConfirmation(t *testing.T) {
	r := NewRegistry()
	r.Register(MakeToolDefinition("echo", "", nil), []string{"confirmation"}, 0,
		func(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
			return &ToolOutcome{Values: map[string]string{"amount": "42.00"}}, nil
		})

	t.Run("substitutes outcome values", func(t *testing.T) {
		out, err := r.Execute(context.Background(), ToolCall{Function: FunctionCall{
			Name:      "echo",
			Arguments: `{"confirmation":"Balance: %amount%"}`,
		}})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if out != "Balance: 42.00" {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("nil outcome passes confirmation through", func(t *testing.T) {
		r.Register(MakeToolDefinition("noop", "", nil), nil, 0,
			func(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
				return nil, nil
			})
		out, err := r.Execute(context.Background(), ToolCall{Function: FunctionCall{
			Name:      "noop",
			Arguments: `{"confirmation":"Keep %this% as is"}`,
		}})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if out != "Keep %this% as is" {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestRegistryExecuteTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register(MakeToolDefinition("slow", "", nil), nil, 50*time.Millisecond,
		func(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, nil
			}
		})

	_, err := r.Execute(context.Background(), ToolCall{Function: FunctionCall{Name: "slow", Arguments: "{}"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestParseToolArgs(t *testing.T) {
	t.Run("empty string is empty map", func(t *testing.T) {
		args, err := parseToolArgs("")
		if err != nil {
			t.Fatalf("parseToolArgs failed: %v", err)
		}
		if len(args) != 0 {
			t.Errorf("expected empty map, got %v", args)
		}
	})

	t.Run("invalid JSON is a schema violation", func(t *testing.T) {
		_, err := parseToolArgs(`{"a":`)
		var sv *SchemaViolationError
		if !errors.As(err, &sv) {
			t.Errorf("expected SchemaViolationError, got %v", err)
		}
	})

	t.Run("nested objects survive", func(t *testing.T) {
		args, err := parseToolArgs(`{"recipient":{"handle":"5511"}}`)
		if err != nil {
			t.Fatalf("parseToolArgs failed: %v", err)
		}
		m, ok := args["recipient"].(map[string]any)
		if !ok || m["handle"] != "5511" {
			t.Errorf("nested object lost: %v", args)
		}
	})
}

func TestActorContext(t *testing.T) {
	ctx := ContextWithActor(context.Background(), "5511999999999@s.whatsapp.net")
	handle, ok := ActorFromContext(ctx)
	if !ok || handle != "5511999999999@s.whatsapp.net" {
		t.Errorf("actor round trip failed: %q %v", handle, ok)
	}

	if _, ok := ActorFromContext(context.Background()); ok {
		t.Error("expected no actor on bare context")
	}
}
