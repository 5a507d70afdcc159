package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gwi.com/chatsync/internal/model"
)

const (
	defaultChatModelName = "gemini-1.5-flash-latest"

	chatSystemInstruction = "You are a helpful assistant in a chat application. " +
		"Answer the user's latest message, using earlier turns of the conversation as context. " +
		"Keep answers concise. Do not make up information."
)

var ErrEmptyResponse = errors.New("model returned no text")

// Responder produces the answer to query given the finished turns before it.
type Responder interface {
	Respond(ctx context.Context, history []model.Message, query string) (string, error)
}

type LLMService struct {
	client    *genai.Client
	modelName string
	log       *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, log *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LLMService{client: client, modelName: modelName, log: log}, nil
}

func (s *LLMService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.log.Warn("genai_client_close_failed", zap.Error(err))
	}
}

func (s *LLMService) Respond(ctx context.Context, history []model.Message, query string) (string, error) {
	gm := s.client.GenerativeModel(s.modelName)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	chatSession := gm.StartChat()
	chatSession.History = toContents(history)

	resp, err := chatSession.SendMessage(ctx, genai.Text(query))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.log.Debug("gemini_non_text_part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if responseText.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return responseText.String(), nil
}

// toContents turns finished turns into alternating user/model contents.
func toContents(history []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, 2*len(history))
	for _, m := range history {
		if m.Response == "" {
			continue
		}
		contents = append(contents,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Query)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Response)}},
		)
	}
	return contents
}

// EchoResponder answers without a model. It is used when no API key is
// configured.
type EchoResponder struct{}

func (EchoResponder) Respond(ctx context.Context, history []model.Message, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("You said: %s (turn %d)", query, len(history)+1), nil
}
