package conversation

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	resp    openai.ChatCompletionResponse
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func TestOpenAIClientComplete(t *testing.T) {
	fake := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"ok": true}`}},
		},
	}}
	client := NewOpenAIClientWith(fake, "gpt-4o-mini")

	resp, err := client.Complete(context.Background(), LLMRequest{
		Messages:  []ChatMessage{{Role: ChatRoleUser, Content: "classify this"}},
		MaxTokens: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp.Text)
	assert.Equal(t, "gpt-4o-mini", fake.lastReq.Model)
	require.Len(t, fake.lastReq.Messages, 1)
	assert.Equal(t, "classify this", fake.lastReq.Messages[0].Content)
}

func TestOpenAIClientPerRequestModelOverride(t *testing.T) {
	fake := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hi"}}},
	}}
	client := NewOpenAIClientWith(fake, "gpt-4o-mini")

	_, err := client.Complete(context.Background(), LLMRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", fake.lastReq.Model)
}

func TestOpenAIClientPropagatesError(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("quota exceeded")}
	client := NewOpenAIClientWith(fake, "")

	_, err := client.Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}},
	})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	fake := &fakeChatClient{}
	client := NewOpenAIClientWith(fake, "")

	_, err := client.Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}},
	})
	assert.Error(t, err)
}
