package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// GrokScorer asks an OpenAI-compatible chat completion endpoint (xAI Grok)
// to rate a lead. It is a refinement layer on top of the point table, never
// a requirement: callers fall back to Score on any error.
type GrokScorer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGrokScorer creates a scorer against the given OpenAI-compatible API.
func NewGrokScorer(apiKey, baseURL, model string) *GrokScorer {
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	if model == "" {
		model = "grok-3-mini"
	}
	return &GrokScorer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

const grokSystemPrompt = `You are a lead qualification assistant for a granite and stone countertop company.
Rate the sales readiness of the lead described by the user on a scale from 0 to 100.
Consider project type, budget, timeline, and how concrete the description is.
Respond with ONLY the integer score, nothing else.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Score asks the model for a 0-100 rating of the lead.
func (g *GrokScorer) Score(ctx context.Context, in Input) (int, error) {
	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: grokSystemPrompt},
			{Role: "user", Content: describeLead(in)},
		},
		Temperature: 0,
		MaxTokens:   10,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("grok scoring failed: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	if parsed.Error != nil {
		return 0, fmt.Errorf("grok scoring failed: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return 0, fmt.Errorf("grok scoring failed: empty response")
	}

	return parseScore(parsed.Choices[0].Message.Content)
}

func describeLead(in Input) string {
	var b strings.Builder
	write := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Project type", in.ProjectType)
	write("Budget range", in.BudgetRange)
	write("Timeline", in.Timeline)
	write("Address", in.Address)
	write("Description", in.ProjectDescription)
	if b.Len() == 0 {
		return "No project details provided."
	}
	return b.String()
}

func parseScore(raw string) (int, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, ".")
	score, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("grok returned non-numeric score %q", raw)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}
