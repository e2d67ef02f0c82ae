// Package llm is the boundary to the hosted language model: a small
// Generator interface, a Gemini implementation, and a retry decorator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one prompt to the model.
type Request struct {
	System string // system instruction
	Prompt string
	JSON   bool // ask for an application/json response
}

// Generator returns the model's text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// TransientError marks a failure worth retrying: rate limits, server errors,
// timeouts.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient model error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from model")

// CleanJSON strips Markdown fences and surrounding prose from a model reply,
// keeping the outermost JSON array or object.
func CleanJSON(raw string) string {
	s := stripFences(raw)

	open := strings.IndexAny(s, "[{")
	if open == -1 {
		return s
	}
	closer := "]"
	if s[open] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end > open {
		s = s[open : end+1]
	}
	return strings.TrimSpace(s)
}

// CleanSQL strips Markdown fences and a leading "sql" language tag.
func CleanSQL(raw string) string {
	return stripFences(raw)
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		// Drop the opening line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
