// Package judge produces water-quality decision records. It wraps the
// external analysis engine (an OpenAI-style chat-completions API) behind a
// narrow interface, falls back to a conservative rule-based assessment when
// the engine is unreachable, and maps engine output into the closed
// DecisionRecord structure the attestation pipeline signs.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Assessment is the structured result the analysis engine is asked to return.
type Assessment struct {
	HealthPercentage         int    `json:"health_percentage"`
	CurrentSafetyAnalysis    string `json:"current_safety_analysis"`
	RiskAnalysis             string `json:"risk_analysis"`
	PurificationInstructions string `json:"purification_instructions"`
}

// Engine turns combined sample input into an assessment. Implementations are
// black boxes from the attestation pipeline's point of view.
type Engine interface {
	Analyze(ctx context.Context, input, useCase string) (*Assessment, error)
}

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.4
	maxEngineRetries   = 2
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

const systemPrompt = "You are a water quality expert. Analyze the SPECIFIC data provided and give tailored " +
	"responses that vary based on the actual contaminants and values detected. Never give generic responses."

// ChatEngine calls a chat-completions HTTP API and extracts the assessment
// JSON from the model's reply.
type ChatEngine struct {
	url    string
	apiKey string
	model  string
	client *http.Client
	logger *zap.Logger
}

type ChatEngineOpts struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewChatEngine(opts ChatEngineOpts) (*ChatEngine, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("engine URL is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("engine model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatEngine{
		url:    opts.URL,
		apiKey: opts.APIKey,
		model:  opts.Model,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
	Temperature         float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze asks the engine for the four assessment fields. Transient transport
// failures are retried with exponential backoff; a malformed reply is not
// retried, it is an error the caller handles (typically via the fallback).
func (e *ChatEngine) Analyze(ctx context.Context, input, useCase string) (*Assessment, error) {
	prompt := buildPrompt(input, useCase)

	var content string
	operation := func() error {
		var err error
		content, err = e.complete(ctx, prompt)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxEngineRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errors.Wrap(err, "analysis engine request")
	}

	assessment, err := parseAssessment(content)
	if err != nil {
		e.logger.Warn("engine returned unparseable assessment", zap.Error(err))
		return nil, err
	}
	return assessment, nil
}

func (e *ChatEngine) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxCompletionTokens: defaultMaxTokens,
		Temperature:         defaultTemperature,
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("engine returned status %d: %s", resp.StatusCode, truncate(string(payload), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "decode engine response"))
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("engine response has no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseAssessment extracts the JSON object from the model reply. Models wrap
// the object in prose or reasoning traces; take the outermost braces.
func parseAssessment(content string) (*Assessment, error) {
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in engine reply")
	}
	var a Assessment
	if err := json.Unmarshal([]byte(match), &a); err != nil {
		return nil, errors.Wrap(err, "decode assessment JSON")
	}
	return &a, nil
}

func buildPrompt(input, useCase string) string {
	return fmt.Sprintf(`You are a water quality expert. Analyze the SPECIFIC water data provided and give a tailored assessment.

WATER DATA: %s
USE CASE: %s

Reference ranges for strip analytes:
%s

IMPORTANT: Base your analysis on the ACTUAL values and parameters in the water data above. Do NOT give generic responses.

Return ONLY valid JSON with exactly these 4 fields:

{
    "health_percentage": <number 0-100 based on the specific contaminants and values in the data>,
    "current_safety_analysis": "<1-2 sentences SPECIFIC to the %s use and the actual data provided>",
    "risk_analysis": "<1-2 sentences about the SPECIFIC dangers based on the actual contaminants detected>",
    "purification_instructions": "<2-3 concise steps SPECIFICALLY tailored to treat the contaminants in this water>"
}

Analyze the actual data values and give responses that vary based on what's detected. Be very specific.`,
		input, useCase, ReferenceRangesText(), useCase)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
