// Package gemini implements expense categorization on top of the Gemini
// generateContent API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"roomsplit/internal/categorize"
	"roomsplit/internal/core"
)

const DefaultModel = "gemini-1.5-flash"

const systemPrompt = `You are an expense categorization assistant for people sharing a flat.
Given a shop name and a description of the purchased items, answer with the single
most appropriate spending category (for example Groceries, Utilities, Household,
Transport, Dining, Entertainment, Health). Respond only with JSON of the form
{"category": "<category>", "confidence": <number between 0 and 1>}.`

// Client calls the Gemini API once per categorization request.
type Client struct {
	svc     *genai.Service
	model   string
	timeout time.Duration
	hasKey  bool
}

// Options configures the client. Extra client options are appended after
// the API key, which lets tests point the client at a local server.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Extra   []option.ClientOption
}

// New builds a client. A missing API key is not an error here: every
// Categorize call then fails with an authorization CategorizationError.
func New(ctx context.Context, opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	clientOpts := make([]option.ClientOption, 0, len(opts.Extra)+1)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	} else {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	clientOpts = append(clientOpts, opts.Extra...)

	svc, err := genai.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &Client{
		svc:     svc,
		model:   model,
		timeout: opts.Timeout,
		hasKey:  opts.APIKey != "",
	}, nil
}

type modelOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Categorize implements categorize.Categorizer.
func (c *Client) Categorize(ctx context.Context, shop, items string) (categorize.Result, error) {
	if !c.hasKey {
		return categorize.Result{}, &core.CategorizationError{Auth: true, Err: errors.New("API key is not set")}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &genai.GenerateContentRequest{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Contents: []*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{{Text: fmt.Sprintf("Shop: %s\nItems: %s", shop, items)}},
		}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseMimeType: "application/json",
		},
	}

	start := time.Now()
	resp, err := c.svc.Models.GenerateContent("models/"+c.model, req).Context(ctx).Do()
	if err != nil {
		slog.WarnContext(ctx, "Categorization request failed",
			"model", c.model, "duration", time.Since(start), "error", err)
		return categorize.Result{}, classify(err)
	}

	text := responseText(resp)
	if text == "" {
		return categorize.Result{}, &core.CategorizationError{Err: errors.New("empty response from model")}
	}
	out, err := parseOutput(text)
	if err != nil {
		return categorize.Result{}, &core.CategorizationError{Err: err}
	}
	slog.DebugContext(ctx, "Expense categorized",
		"model", c.model, "category", out.Category, "confidence", out.Confidence, "duration", time.Since(start))
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s
		}
	}
	return ""
}

// parseOutput decodes the model's JSON answer. Markdown code fences around
// the object are tolerated.
func parseOutput(text string) (categorize.Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var out modelOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return categorize.Result{}, fmt.Errorf("malformed model output: %w", err)
	}
	cat := strings.TrimSpace(out.Category)
	if cat == "" {
		return categorize.Result{}, errors.New("model output has no category")
	}
	conf := out.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return categorize.Result{Category: cat, Confidence: conf}, nil
}

// classify maps transport and API errors onto CategorizationError,
// flagging credential problems.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		auth := false
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			auth = true
		case http.StatusBadRequest:
			msg := strings.ToLower(gerr.Message)
			auth = strings.Contains(msg, "api key") || strings.Contains(msg, "api_key")
		}
		return &core.CategorizationError{Auth: auth, Err: fmt.Errorf("%s: %w", statusBucket(gerr.Code), err)}
	}
	return &core.CategorizationError{Err: err}
}

func statusBucket(code int) string {
	switch {
	case code == 400:
		return "bad_request"
	case code == 401:
		return "unauthorized"
	case code == 403:
		return "forbidden"
	case code == 404:
		return "not_found"
	case code == 429:
		return "rate_limited"
	case code >= 500:
		return "server_error"
	default:
		return "unknown_error"
	}
}
