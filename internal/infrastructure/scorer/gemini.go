package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient scores through the generateContent REST endpoint.
type GeminiClient struct {
	http   *resty.Client
	apiKey string
	model  string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		apiKey: apiKey,
		model:  model,
	}
}

func (c *GeminiClient) Name() string { return "gemini:" + c.model }

func (c *GeminiClient) Score(ctx context.Context, in Input) (Result, error) {
	var out geminiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: Prompt(in)}}}}}).
		SetResult(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.model))
	if err != nil {
		return Result{}, fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("gemini error: status %d body: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var text strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	narrative := strings.TrimSpace(text.String())
	if narrative == "" {
		return Result{}, fmt.Errorf("gemini: empty response")
	}
	score, err := ParseScore(narrative)
	if err != nil {
		return Result{}, err
	}
	return Result{Score: score, Narrative: narrative, Scorer: c.Name()}, nil
}
