package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_duration_seconds",
		Help:      "Duration of AI grading requests including retries",
	}, []string{"model", "mode"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_failures_total",
		Help:      "Number of AI grading requests that failed after retries",
	}, []string{"model"})

	aiEmptyAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_empty_answers_total",
		Help:      "Number of AI grading responses without content",
	}, []string{"model"})

	aiRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_retries_total",
		Help:      "Number of retried AI grading attempts",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	tracer := otel.Tracer("github.com/noah-isme/gema-grading-go/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Grade sends the grading request to OpenAI and returns the raw answer.
// Transient failures (rate limits, 5xx, transport errors) are retried.
func (g *OpenAIGrader) Grade(parent context.Context, req GradeRequest) (GradeResponse, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("grading.mode", req.Mode),
		attribute.Int("grading.criteria", len(req.CriteriaCodes)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: graderSystemPrompt(),
			},
			buildUserMessage(req),
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	var resp openai.ChatCompletionResponse
	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = g.client.CreateChatCompletion(ctx, request)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(g.cfg.MaxRetries)+1),
		retry.Delay(g.cfg.RetryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			aiRetries.WithLabelValues(g.cfg.Model).Inc()
			g.logger.Warn().Err(err).Uint("attempt", attempt+1).Msg("retrying grading request")
		}),
	)
	aiDuration.WithLabelValues(g.cfg.Model, req.Mode).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradeResponse{}, fmt.Errorf("openai grade: %w", err)
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))

	model := resp.Model
	if model == "" {
		model = g.cfg.Model
	}

	// An empty answer is still an answer; the decision validator rejects it.
	var raw []byte
	if len(resp.Choices) > 0 {
		if content := strings.TrimSpace(resp.Choices[0].Message.Content); content != "" {
			raw = []byte(content)
		}
	}
	if raw == nil {
		aiEmptyAnswers.WithLabelValues(model).Inc()
		span.SetAttributes(attribute.Bool("grading.empty_answer", true))
		g.logger.Warn().Str("model", model).Msg("grader returned no content")
	}

	return GradeResponse{
		Raw:      raw,
		Provider: providerOpenAI,
		Model:    model,
	}, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	return true
}

func graderSystemPrompt() string {
	return "You are an assessment moderator grading a vocational submission against a fixed list of criteria codes. " +
		"Respond with one JSON object: overallGrade (REFER, PASS, PASS_ON_RESUBMISSION, MERIT or DISTINCTION), " +
		"resubmissionRequired (boolean), feedbackSummary (string), feedbackBullets (array of strings), " +
		"criterionChecks (one entry per criteria code with code, decision ACHIEVED|NOT_ACHIEVED|UNCLEAR, rationale, " +
		"evidence as an array of {page, quote} or {page, visualDescription}, confidence 0-1) and confidence (0-1). " +
		"Every ACHIEVED decision must cite evidence from the submission. Page numbers start at 1."
}

func buildUserMessage(req GradeRequest) openai.ChatCompletionMessage {
	if req.Mode == ModeRawPageImages && len(req.PageImageURLs) > 0 {
		parts := make([]openai.ChatMessagePart, 0, len(req.PageImageURLs)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: buildUserPrompt(req),
		})
		for _, url := range req.PageImageURLs {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    url,
					Detail: openai.ImageURLDetailHigh,
				},
			})
		}
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
	}

	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)}
}

func buildUserPrompt(req GradeRequest) string {
	builder := strings.Builder{}
	builder.WriteString("# Assignment\n")
	builder.WriteString(req.AssignmentTitle)
	if strings.TrimSpace(req.Brief) != "" {
		builder.WriteString("\n\n## Brief\n")
		builder.WriteString(req.Brief)
	}
	builder.WriteString("\n\n## Criteria Codes\n")
	builder.WriteString(strings.Join(req.CriteriaCodes, ", "))
	builder.WriteString("\n\n## Submission\n")
	if req.Mode == ModeRawPageImages && len(req.PageImageURLs) > 0 {
		builder.WriteString(fmt.Sprintf("The submission is attached as %d page images in page order.", len(req.PageImageURLs)))
	} else {
		builder.WriteString(req.ExtractedText)
	}
	builder.WriteString("\n\nReturn JSON with exactly one criterion check per criteria code.")
	return builder.String()
}
