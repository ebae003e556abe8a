// Package middleware provides a composable interception chain that wraps
// turn processing. Middlewares see the raw user input on the way in and the
// finished reply on the way out.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Context represents the state flowing through the middleware chain for one
// turn.
type Context struct {
	// SessionID identifies the session this turn belongs to
	SessionID string

	// Input is the raw user message
	Input string

	// Response is the reply produced by the final handler
	Response string

	// Status is the turn outcome tag set by the final handler
	Status string

	// Metadata for passing data between middlewares
	Metadata map[string]any

	// Internal state
	context context.Context
}

// NewContext creates a new middleware context.
func NewContext(ctx context.Context) *Context {
	return &Context{
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.context
}

// Middleware defines the interface for turn interceptors.
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string

	// Execute runs the middleware logic. It receives the current context and
	// a next handler to continue the chain. Returning an error stops the
	// chain.
	Execute(ctx *Context, next Handler) error
}

// Handler is the function called to pass control to the next middleware.
type Handler func(*Context) error

// Chain represents a sequence of middleware to be executed.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Add appends a middleware to the chain.
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Execute runs all middlewares in the chain, ending at finalHandler.
func (c *Chain) Execute(ctx *Context, finalHandler Handler) error {
	return c.execute(ctx, 0, finalHandler)
}

func (c *Chain) execute(ctx *Context, index int, finalHandler Handler) error {
	if index >= len(c.middlewares) {
		return finalHandler(ctx)
	}

	next := func(ctx *Context) error {
		return c.execute(ctx, index+1, finalHandler)
	}

	return c.middlewares[index].Execute(ctx, next)
}

// TurnLogger logs the input, outcome and duration of each turn.
type TurnLogger struct {
	logger *slog.Logger
}

// NewTurnLogger creates a turn logging middleware.
func NewTurnLogger(logger *slog.Logger) *TurnLogger {
	return &TurnLogger{logger: logger}
}

// Name returns the middleware name.
func (m *TurnLogger) Name() string {
	return "TurnLogger"
}

// Execute logs the turn around the rest of the chain.
func (m *TurnLogger) Execute(ctx *Context, next Handler) error {
	start := time.Now()
	if m.logger != nil {
		m.logger.Info("turn started", "session_id", ctx.SessionID, "input_len", len(ctx.Input))
	}
	err := next(ctx)
	if m.logger != nil {
		m.logger.Info("turn finished",
			"session_id", ctx.SessionID,
			"status", ctx.Status,
			"duration", time.Since(start),
			"error", err)
	}
	return err
}

// InputValidator rejects turns whose input cannot be processed. An empty
// message is not rejected here; it flows through as a normal conversational
// turn with no extractable source.
type InputValidator struct {
	maxLen int
}

// NewInputValidator creates an input validation middleware. maxLen <= 0
// disables the length check.
func NewInputValidator(maxLen int) *InputValidator {
	return &InputValidator{maxLen: maxLen}
}

// Name returns the middleware name.
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute validates the input before the turn runs.
func (m *InputValidator) Execute(ctx *Context, next Handler) error {
	if !utf8.ValidString(ctx.Input) {
		return ErrInvalidEncoding
	}
	if m.maxLen > 0 && len(ctx.Input) > m.maxLen {
		return fmt.Errorf("%w: input exceeds %d bytes", ErrInputTooLong, m.maxLen)
	}
	return next(ctx)
}

// Recoverer converts panics downstream in the chain into errors so one bad
// turn cannot take the process down.
type Recoverer struct {
	logger *slog.Logger
}

// NewRecoverer creates a panic recovery middleware.
func NewRecoverer(logger *slog.Logger) *Recoverer {
	return &Recoverer{logger: logger}
}

// Name returns the middleware name.
func (m *Recoverer) Name() string {
	return "Recoverer"
}

// Execute recovers panics from downstream handlers.
func (m *Recoverer) Execute(ctx *Context, next Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.Error("turn panicked", "session_id", ctx.SessionID, "panic", r)
			}
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()
	return next(ctx)
}
