package commendation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/adamscao/certvault/internal/models"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, prompt string) (string, error)

// GenAIGenerator writes commendations with the Gemini API
type GenAIGenerator struct {
	generate generateFunc
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGenAIGenerator creates a generator backed by a Gemini client
func NewGenAIGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}

	return newGenerator(generate, timeout, logger), nil
}

func newGenerator(generate generateFunc, timeout time.Duration, logger *zap.Logger) *GenAIGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenAIGenerator{generate: generate, timeout: timeout, logger: logger}
}

// Generate asks the model for a commendation. Errors fall back to the
// category sentence and an empty reply to EmptyReplyFallback.
func (g *GenAIGenerator) Generate(ctx context.Context, req Request) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.generate(ctx, Prompt(req))
	if err != nil {
		g.logger.Warn("commendation generation failed",
			zap.String("type", string(req.Type)),
			zap.Error(err))
		return Fallback(req.Type)
	}

	if text = Clean(text); text == "" {
		return EmptyReplyFallback
	}
	return text
}

// Prompt returns the instruction sent to the model for req
func Prompt(req Request) string {
	switch req.Type {
	case models.TypePatientCompletion:
		return fmt.Sprintf("Write a short, heart-centered, and encouraging commendation (max 2 sentences) for a patient named %s who has successfully completed the program %q. Focus on wellness, resilience, and the strength it takes to prioritize mental health.", req.RecipientName, req.ProgramName)
	case models.TypeTherapistTraining:
		return fmt.Sprintf("Write a professional, high-standard commendation (max 2 sentences) for a therapist named %s who has completed the advanced certification %q. Focus on clinical excellence, ethical dedication, and the impact on their community.", req.RecipientName, req.ProgramName)
	case models.TypeCoachTraining:
		return fmt.Sprintf("Write a dynamic, powerful, and inspiring commendation (max 2 sentences) for a coach named %s who has achieved the milestone %q. Focus on leadership, transformative impact, and their ability to unlock potential in others.", req.RecipientName, req.ProgramName)
	default:
		return fmt.Sprintf("Write a short commendation (max 2 sentences) for %s who has completed %q.", req.RecipientName, req.ProgramName)
	}
}
