package middleware

import (
	"context"
	"errors"
	"testing"
)

type recording struct {
	name  string
	calls *[]string
}

func (m *recording) Name() string { return m.name }

func (m *recording) Execute(ctx *Context, next Handler) error {
	*m.calls = append(*m.calls, m.name+":before")
	err := next(ctx)
	*m.calls = append(*m.calls, m.name+":after")
	return err
}

func TestChainOrder(t *testing.T) {
	var calls []string
	chain := NewChain(
		&recording{name: "a", calls: &calls},
		&recording{name: "b", calls: &calls},
	)

	ctx := NewContext(context.Background())
	err := chain.Execute(ctx, func(c *Context) error {
		calls = append(calls, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{"a:before", "b:before", "handler", "b:after", "a:after"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestEmptyChainCallsHandler(t *testing.T) {
	chain := NewChain()
	called := false

	err := chain.Execute(NewContext(context.Background()), func(c *Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !called {
		t.Error("expected final handler to run")
	}
}

func TestInputValidatorAllowsEmpty(t *testing.T) {
	chain := NewChain(NewInputValidator(0))

	ctx := NewContext(context.Background())
	ctx.Input = ""

	called := false
	err := chain.Execute(ctx, func(c *Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !called {
		t.Error("empty input is a normal turn and must reach the handler")
	}
}

func TestInputValidatorRejectsInvalidEncoding(t *testing.T) {
	chain := NewChain(NewInputValidator(0))

	ctx := NewContext(context.Background())
	ctx.Input = string([]byte{0xff, 0xfe})

	err := chain.Execute(ctx, func(c *Context) error { return nil })
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestInputValidatorRejectsTooLong(t *testing.T) {
	chain := NewChain(NewInputValidator(5))

	ctx := NewContext(context.Background())
	ctx.Input = "more than five bytes"

	err := chain.Execute(ctx, func(c *Context) error { return nil })
	if !errors.Is(err, ErrInputTooLong) {
		t.Errorf("expected ErrInputTooLong, got %v", err)
	}
}

func TestRecovererConvertsPanic(t *testing.T) {
	chain := NewChain(NewRecoverer(nil))

	err := chain.Execute(NewContext(context.Background()), func(c *Context) error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}
