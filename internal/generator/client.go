package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/config"
	"github.com/studysage/backend/internal/models"
)

const untitledDocument = "Untitled Document"

// Service produces study material from document text. Every failure wraps
// apperr.ErrUpstreamGeneration.
type Service interface {
	GenerateFlashcards(ctx context.Context, text string, count int) ([]GeneratedFlashcard, error)
	GenerateQuiz(ctx context.Context, text string, count int) ([]models.QuizQuestion, error)
	ExtractTitle(ctx context.Context, text string) (string, error)
}

// LLMClient is the interface every model backend satisfies.
type LLMClient interface {
	Generate(ctx context.Context, req Request) (*LLMResponse, error)
}

// Request is one system+user prompt exchange.
type Request struct {
	System    string
	User      string
	MaxTokens int
	// JSON asks the backend for a JSON object when it supports that mode.
	JSON bool
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// Generator wraps an LLMClient with the study-material prompts and parsers.
type Generator struct {
	llm     LLMClient
	model   string
	timeout time.Duration
}

// NewGenerator picks a backend from cfg: CLI, mock, OpenAI or Anthropic.
func NewGenerator(cfg *config.Config) *Generator {
	var llm LLMClient
	model := "mock"

	switch {
	case cfg.UseCLIGenerator:
		llm = NewCLIClient(cfg.ClaudeCLIPath)
		model = "claude-cli"
		log.Info("[generator] using Claude CLI")
	case cfg.MockGenerator:
		llm = NewMockClient()
		log.Info("[generator] using mock data")
	case strings.EqualFold(cfg.AIProvider, "openai"):
		model = cfg.OpenAIModel
		llm = NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model, cfg.AITimeout)
		log.WithField("model", model).Info("[generator] using OpenAI API")
	default:
		model = cfg.AnthropicModel
		llm = NewAPIClient(cfg.AnthropicAPIKey, model)
		log.WithField("model", model).Info("[generator] using Anthropic API")
	}

	return New(llm, model, cfg.AITimeout)
}

// New wraps an explicit client. A zero timeout means no per-call deadline.
func New(llm LLMClient, model string, timeout time.Duration) *Generator {
	return &Generator{llm: llm, model: model, timeout: timeout}
}

func (g *Generator) call(ctx context.Context, req Request) (*LLMResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"model":         g.model,
		"prompt_tokens": resp.PromptTokens,
		"output_tokens": resp.OutputTokens,
	}).Debug("[generator] completion received")
	return resp, nil
}

func (g *Generator) GenerateFlashcards(ctx context.Context, text string, count int) ([]GeneratedFlashcard, error) {
	resp, err := g.call(ctx, Request{
		System:    FlashcardSystemPrompt(),
		User:      BuildFlashcardUserPrompt(text, count),
		MaxTokens: 4096,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate flashcards: %v", apperr.ErrUpstreamGeneration, err)
	}

	cards, err := ParseFlashcards(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: parse flashcards: %v", apperr.ErrUpstreamGeneration, err)
	}
	return cards, nil
}

func (g *Generator) GenerateQuiz(ctx context.Context, text string, count int) ([]models.QuizQuestion, error) {
	resp, err := g.call(ctx, Request{
		System:    QuizSystemPrompt(),
		User:      BuildQuizUserPrompt(text, count),
		MaxTokens: 4096,
		JSON:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate quiz: %v", apperr.ErrUpstreamGeneration, err)
	}

	questions, err := ParseQuiz(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: parse quiz: %v", apperr.ErrUpstreamGeneration, err)
	}
	return questions, nil
}

// ExtractTitle returns a short title for text, or "Untitled Document" when
// the model answers with nothing usable.
func (g *Generator) ExtractTitle(ctx context.Context, text string) (string, error) {
	resp, err := g.call(ctx, Request{
		System:    TitleSystemPrompt(),
		User:      BuildTitleUserPrompt(text),
		MaxTokens: 50,
	})
	if err != nil {
		return "", fmt.Errorf("%w: extract title: %v", apperr.ErrUpstreamGeneration, err)
	}
	return cleanTitle(resp.Content), nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(stripCodeFences(s))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if r := []rune(s); len(r) > maxTitleRunes {
		s = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	if s == "" {
		return untitledDocument
	}
	return s
}

// ── APIClient: Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(apiKey, model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: param.NewOpt(0.7),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.WithFields(log.Fields{"attempt": attempt + 1, "delay": sleepDuration}).Warn("[generator] retrying Anthropic API call")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.WithError(err).WithField("attempt", attempt+1).Warn("[generator] Anthropic API attempt failed")
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient: Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var content string
	switch req.System {
	case FlashcardSystemPrompt():
		content = buildMockFlashcards(promptCount(req.User))
	case QuizSystemPrompt():
		content = buildMockQuiz(promptCount(req.User))
	default:
		content = "[Mock] Study Notes"
	}
	return &LLMResponse{
		Content:      content,
		PromptTokens: len(req.User) / 4,
		OutputTokens: len(content) / 4,
	}, nil
}

// promptCount reads the leading "Generate N" of a user prompt.
func promptCount(userPrompt string) int {
	var n int
	if _, err := fmt.Sscanf(userPrompt, "Generate %d", &n); err != nil || n <= 0 {
		return 5
	}
	return n
}

func buildMockFlashcards(count int) string {
	topics := []string{"photosynthesis", "cell division", "supply and demand", "the French Revolution", "Newton's laws"}

	var b strings.Builder
	b.WriteString(`{"flashcards":[`)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		topic := topics[i%len(topics)]
		fmt.Fprintf(&b, `{"front":"[Mock] Card %d: what is the key idea of %s?","back":"[Mock] A concise summary of %s.","explanation":"[Mock] Remember %s by linking it to an example."}`,
			i+1, topic, topic, topic)
	}
	b.WriteString("]}")
	return b.String()
}

func buildMockQuiz(count int) string {
	var b strings.Builder
	b.WriteString(`{"questions":[`)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		switch i % 3 {
		case 0:
			fmt.Fprintf(&b, `{"type":"multiple_choice","question":"[Mock] Question %d: which option is correct?","options":["Alpha","Beta","Gamma","Delta"],"correctAnswer":"Alpha","explanation":"[Mock] Alpha is the documented answer."}`, i+1)
		case 1:
			fmt.Fprintf(&b, `{"type":"true_false","question":"[Mock] Statement %d is true.","correctAnswer":"True","explanation":"[Mock] The material states this directly."}`, i+1)
		default:
			fmt.Fprintf(&b, `{"type":"fill_blank","question":"[Mock] Complete %d: the ____ stores energy.","correctAnswer":"battery","explanation":"[Mock] A battery stores energy."}`, i+1)
		}
	}
	b.WriteString("]}")
	return b.String()
}
