// Package coach turns a learner's recent attempt history into short,
// concrete study advice using an OpenAI-compatible chat model.
package coach

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/retry"
)

const (
	defaultModel     = openai.GPT4oMini
	defaultMaxTokens = 400
)

const systemPrompt = `You are a driving-theory study coach. You are given a summary of a
learner's recent quiz attempts for the official driving theory exam,
which has two categories: "Rules of the Road" and "Road Signs". A pass
requires 80% in practice, and 80% in each category of a full simulation.
Reply with 3 short, specific study recommendations based on their weak
areas. Plain text, no markdown.`

// ChatClient is the slice of the OpenAI client the coach uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ErrNoHistory is returned by Advise when there are no attempts to
// summarize; advice without data would be generic filler.
var ErrNoHistory = errors.New("coach: no attempts to analyze")

// ErrUnavailable indicates the model endpoint could not serve the
// request after retries.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coach unavailable: %v", e.Err)
	}
	return "coach unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// Coach generates study advice from attempt history.
type Coach struct {
	client ChatClient
	model  string
	policy retry.Policy
}

// Option configures a Coach.
type Option func(*Coach)

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(c *Coach) { c.model = model }
}

// WithRetryPolicy overrides the default retry behavior.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Coach) { c.policy = p }
}

// New creates a Coach over the given client.
func New(client ChatClient, opts ...Option) *Coach {
	c := &Coach{
		client: client,
		model:  defaultModel,
		policy: retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromAPIKey creates a Coach backed by the OpenAI API.
func NewFromAPIKey(apiKey string, opts ...Option) (*Coach, error) {
	if apiKey == "" {
		return nil, errors.New("coach: API key is required")
	}
	return New(openai.NewClient(apiKey), opts...), nil
}

// Advise summarizes the records and asks the model for recommendations.
// Transient provider failures are retried; client-side errors are not.
func (c *Coach) Advise(ctx context.Context, records []history.Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNoHistory
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Summarize(records)},
		},
	}

	var content string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return mapError(err)
		}
		if len(resp.Choices) == 0 {
			return retry.Stop(errors.New("empty completion"))
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", &ErrUnavailable{Err: err}
	}
	return content, nil
}

// mapError marks non-retryable API failures as permanent so the retry
// loop gives up immediately on bad requests and auth problems.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return err
		}
		return retry.Stop(err)
	}
	return err
}

// Summarize renders the records as the compact plain-text digest sent to
// the model. Exported so the digest can be previewed without an API call.
func Summarize(records []history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent attempts (%d):\n", len(records))

	type agg struct {
		attempts int
		passed   int
		score    int
	}
	byCategory := make(map[string]*agg)

	for _, r := range records {
		fmt.Fprintf(&b, "- %s %s", r.CreatedAt.Format(time.DateOnly), r.Mode)
		if r.Category != "" {
			fmt.Fprintf(&b, " (%s)", r.Category)
		}
		fmt.Fprintf(&b, ": %d%%", r.TotalScore)
		if r.Passed {
			b.WriteString(" pass")
		} else {
			b.WriteString(" fail")
		}
		b.WriteString("\n")

		for cat, score := range r.CategoryScores {
			a := byCategory[cat]
			if a == nil {
				a = &agg{}
				byCategory[cat] = a
			}
			a.attempts++
			a.score += score
			if score >= 80 {
				a.passed++
			}
		}
	}

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	b.WriteString("\nPer-category averages:\n")
	for _, cat := range cats {
		a := byCategory[cat]
		fmt.Fprintf(&b, "- %s: %d%% average over %d attempts\n",
			cat, a.score/a.attempts, a.attempts)
	}
	return b.String()
}
