package responder

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// GeminiResponder generates agent replies with Google's Gemini API instead
// of the canned catalog text. It keeps the session engine's contract:
// exactly one reply per accepted user turn.
type GeminiResponder struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGeminiResponder creates a Gemini-backed responder. GEMINI_API_KEY must
// be set.
func NewGeminiResponder(logger *zap.Logger) (*GeminiResponder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiResponder{
		client: client,
		logger: logger,
		model:  "gemini-2.0-flash",
	}, nil
}

// Opening keeps the catalog opening line so transcripts start the same way
// regardless of backend.
func (r *GeminiResponder) Opening(role entities.Role) string {
	return role.Opening
}

// Reply asks Gemini for a single in-persona response.
func (r *GeminiResponder) Reply(ctx context.Context, binding entities.PersonaBinding, role entities.Role, message string) (string, error) {
	prompt := fmt.Sprintf("你正在扮演「%s」（%s）。请以这个角色的口吻，用一段简短的中文回复下面的消息。\n\n%s",
		role.Name, role.Description, message)

	result, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := result.Text()
	if text == "" {
		r.logger.Warn("Gemini returned empty response, falling back to canned reply",
			zap.String("role", role.ID))
		return role.Reply, nil
	}
	return text, nil
}
