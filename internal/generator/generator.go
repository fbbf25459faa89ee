// Package generator synthesizes answers from retrieved contexts through an
// OpenAI-compatible chat completions endpoint (Groq by default). Answers are
// grounded: the prompt instructs the model to use only the supplied contexts.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/pkg/types"
)

// Defaults for the Groq endpoint.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-70b-versatile"

	temperature = 0.2
	maxTokens   = 800

	// Answers shorter than this are treated as a failed synthesis.
	minAnswerLen = 15
)

// User-facing degraded messages. Retrieval quality issues and upstream
// failures surface as answers, not transport errors.
const (
	NotFoundAnswer = "Não encontrei essa informação no acervo, entre em contato com o administrador da plataforma."

	rateLimitedAnswer = "Limite de requisições atingido. Por favor, aguarde um minuto e tente novamente. Perguntas já feitas recentemente são respondidas instantaneamente do cache."

	missingKeyAnswer = "Erro de configuração: chave de API do gerador não definida. Contate o administrador da plataforma."
)

// Turn is one past question/answer pair of the conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Generator produces a grounded answer for a question given retrieved
// contexts and optional conversation history.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []types.SearchResult, history []Turn) (string, error)
}

// RetryPolicy bounds retries around the completion call. Only retryable
// failures (rate limit, server error, network error) consume attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the upstream rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Config configures the Groq client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Retry   RetryPolicy
}

// GroqClient is the production Generator over Groq's OpenAI-compatible API.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	retry      RetryPolicy
	httpClient *http.Client
}

// NewGroqClient creates a Groq-backed generator. A missing API key is not an
// error here; Generate reports it as a degraded answer so the pipeline keeps
// serving cached and retrieved content.
func NewGroqClient(cfg Config) *GroqClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}

	return &GroqClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		retry:      retry,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate synthesizes an answer from the contexts. Callers must
// short-circuit empty contexts before calling; an empty slice here returns
// the canonical not-found answer defensively.
func (g *GroqClient) Generate(ctx context.Context, question string, contexts []types.SearchResult, history []Turn) (string, error) {
	if len(contexts) == 0 {
		return NotFoundAnswer, nil
	}
	if g.apiKey == "" {
		log.Error().Msg("generator API key not configured")
		return missingKeyAnswer, nil
	}

	prompt := BuildPrompt(question, contexts, history)

	var answer string
	delay := g.retry.BaseDelay
	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		got, err := g.complete(ctx, prompt)
		if err == nil {
			answer = got
			break
		}

		var apiErr *apiError
		rateLimited := errors.As(err, &apiErr) && apiErr.statusCode == http.StatusTooManyRequests

		if !retryable(err) {
			log.Error().Err(err).Msg("generation failed with fatal error")
			return fmt.Sprintf("Erro ao gerar resposta: %v", err), nil
		}
		if attempt == g.retry.MaxAttempts-1 {
			log.Error().Err(err).Int("attempts", g.retry.MaxAttempts).Msg("generation retries exhausted")
			if rateLimited {
				return rateLimitedAnswer, nil
			}
			return fmt.Sprintf("Erro ao gerar resposta: %v", err), nil
		}

		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("retrying generation")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if rateLimited {
			delay *= 2
		}
	}

	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) < minAnswerLen {
		log.Warn().Int("len", len(answer)).Msg("generated answer too short, falling back to not-found")
		return NotFoundAnswer, nil
	}
	return answer, nil
}

// Rewrite sends a bare prompt and returns the raw completion. Used by query
// expansion, which degrades on its own; no retry and no degraded answers.
func (g *GroqClient) Rewrite(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("generator API key not configured")
	}
	return g.complete(ctx, prompt)
}

func (g *GroqClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model":       g.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &apiError{statusCode: resp.StatusCode, body: string(b)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &malformedError{cause: err}
	}
	if len(out.Choices) == 0 {
		return "", &malformedError{cause: errors.New("no choices in response")}
	}
	return out.Choices[0].Message.Content, nil
}

// BuildPrompt assembles the grounded prompt: optional last turns of history,
// then every context with its document title, page range and relevance score,
// then the question and the grounding instructions.
func BuildPrompt(question string, contexts []types.SearchResult, history []Turn) string {
	var b strings.Builder

	b.WriteString("Com base nos documentos abaixo, responda a pergunta de forma clara e objetiva.\n\n")

	if len(history) > 0 {
		last := history
		if len(last) > 3 {
			last = last[len(last)-3:]
		}
		b.WriteString("HISTÓRICO DA CONVERSA (para contexto):\n\n")
		for i, turn := range last {
			fmt.Fprintf(&b, "Pergunta %d: %s\n", i+1, turn.Question)
			fmt.Fprintf(&b, "Resposta %d: %s\n\n", i+1, turn.Answer)
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("DOCUMENTOS:\nCONTEXTOS RELEVANTES DO ACERVO:\n\n")
	for _, ctx := range contexts {
		fmt.Fprintf(&b, "[DOCUMENTO] %s (pp. %d-%d) | Relevância: %.2f\n%s\n\n",
			ctx.Title, ctx.PageStart, ctx.PageEnd, ctx.BestScore(), strings.TrimSpace(ctx.Content))
	}

	fmt.Fprintf(&b, "PERGUNTA ATUAL: %s\n\n", question)

	b.WriteString(`INSTRUÇÕES IMPORTANTES:
- Responda em português, de forma educativa e respeitosa
- Use **negrito** para termos importantes
- Base sua resposta APENAS nas informações presentes nos documentos acima
- Se houver histórico de conversa, use-o para entender o contexto (ex: "aprofunde", "explique melhor", etc.)
- NÃO mencione "Contexto X", "Documento X" ou numeração na resposta ao usuário
- Se a informação não estiver nos documentos, responda: "Os documentos disponíveis tratam de [temas principais], mas não abordam especificamente [tema perguntado]."
- Seja claro, didático e fiel ao conteúdo dos documentos`)

	return b.String()
}

type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.statusCode, e.body)
}

type malformedError struct {
	cause error
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.cause)
}

// retryable classifies errors for the backoff loop. Rate limits, API errors
// and network failures are transient; a malformed response body is fatal.
func retryable(err error) bool {
	var malformed *malformedError
	return !errors.As(err, &malformed)
}
