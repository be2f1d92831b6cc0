package gateway

import (
	"context"
	"fmt"
	"strings"

	"chatwidget/models"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const assistantPreamble = "You are a friendly booking assistant embedded in a website chat widget. " +
	"Answer briefly. If the visitor wants to book an appointment, ask for any missing booking details."

// GeminiChat generates assistant replies with the Gemini API. It satisfies
// ChatBackend.
type GeminiChat struct {
	model *genai.GenerativeModel
}

func NewGeminiChat(apiKey string) (*GeminiChat, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiChat{model: client.GenerativeModel("models/gemini-1.5-pro")}, nil
}

func (g *GeminiChat) GenerateReply(ctx context.Context, text string, history []models.ChatMessage) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(assistantPreamble)
	prompt.WriteString("\n\n")
	for _, msg := range history {
		if msg.Type != models.MessageText {
			continue
		}
		prompt.WriteString(string(msg.Sender))
		prompt.WriteString(": ")
		prompt.WriteString(msg.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("user: ")
	prompt.WriteString(text)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}
