package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey            string
	Model             string
	Temperature       float32
	RequestsPerMinute int           // 0 disables pacing
	Timeout           time.Duration // per call; 0 means none
}

// Gemini calls the Gemini API through google.golang.org/genai.
type Gemini struct {
	client  *genai.Client
	model   string
	temp    float32
	limiter *rate.Limiter
	timeout time.Duration
}

// NewGemini creates a client for the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini: model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   cfg.Model,
		temp:    cfg.Temperature,
		limiter: newLimiter(cfg.RequestsPerMinute),
		timeout: cfg.Timeout,
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// Generate sends one request. Rate-limit, server and timeout failures come
// back as *TransientError.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: waiting for rate limiter: %w", err)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	temp := g.temp
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyError(ctx, fmt.Errorf("gemini: generate content: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}

// classifyError wraps retryable failures in TransientError. A cancelled
// parent context is never retryable.
func classifyError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if isTransient(err) {
		return &TransientError{Err: err}
	}
	return err
}

func isTransient(err error) bool {
	if code, ok := apiErrorCode(err); ok {
		return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
