package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/sakif/repochat/internal/apperror"
	"github.com/sakif/repochat/internal/model"
)

const systemPrompt = "You are a helpful assistant that answers questions about source code repositories. " +
	"Be concise and cite file paths when you refer to code."

// ChatCompleter is the chat completion API. *openai.Client implements it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatRequest is one question from a signed-in user.
type ChatRequest struct {
	Email      string
	Question   string
	Repository string // optional "owner/name" the question is about
}

// ChatAnswer carries the assistant reply. Logged is false when the question
// could not be written to the activity log; the answer is returned anyway.
type ChatAnswer struct {
	Answer string
	Logged bool
}

// ChatService answers repository questions and logs every question asked.
type ChatService struct {
	client   ChatCompleter
	model    string
	activity ActivityLogger
	logger   *slog.Logger
}

// NewChatService creates a ChatService. client may be nil when no API key is
// configured; Ask then fails with a configuration error.
func NewChatService(client ChatCompleter, modelName string, activity ActivityLogger, logger *slog.Logger) *ChatService {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &ChatService{
		client:   client,
		model:    modelName,
		activity: activity,
		logger:   logger,
	}
}

// Ask logs the question, then asks the model.
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) (*ChatAnswer, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Question = strings.TrimSpace(req.Question)
	if req.Email == "" || req.Question == "" {
		return nil, apperror.ValidationFailed("question", "Email and question are required")
	}
	if s.client == nil {
		return nil, apperror.Configuration("Chat is not configured")
	}

	logged := false
	if s.activity != nil {
		res := s.activity.Log(ctx, model.Event{
			Kind:     model.EventChatQuestion,
			Email:    req.Email,
			Question: req.Question,
		})
		if !res.Success {
			s.logger.Warn("chat question not logged", slog.String("email", req.Email), slog.Any("error", res.Err))
		}
		logged = res.Success
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if req.Repository != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("The user is asking about the repository %s.", req.Repository),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Question})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("service/chat: completion for %s: %w", req.Email, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("service/chat: completion for %s returned no choices", req.Email)
	}

	return &ChatAnswer{Answer: resp.Choices[0].Message.Content, Logged: logged}, nil
}
