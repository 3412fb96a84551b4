package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"deskbot/app/config"
	"deskbot/app/util/fault"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

const requestTimeout = 30 * time.Second

// Completer is the reasoning collaborator. It may be slow and may return
// malformed text; callers own the degradation policy.
type Completer interface {
	Complete(ctx context.Context, instruction, input string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

var _ Completer = (*Client)(nil)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	clientConfig := openai.DefaultConfig(cfg.OpenAI.Token)
	clientConfig.BaseURL = cfg.OpenAI.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAI.Model,
	}, nil
}

func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	return c.createCompletion(ctx, messages, nil)
}

// CompleteJSON asks for a JSON-object response and strips the code fences
// some models wrap around it anyway.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	result, err := c.createCompletion(ctx,
		[]openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		&openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	)
	if err != nil {
		return "", err
	}

	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")

	return strings.TrimSpace(result), nil
}

func (c *Client) createCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
	format *openai.ChatCompletionResponseFormat,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	response, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: 1000,
		ResponseFormat:      format,
	})
	if err != nil {
		return "", fault.Collaborator().Errorf("failed to create chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fault.Collaborator().Errorf("no chat completion found")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
