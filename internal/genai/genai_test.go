package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	lastIn openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.lastIn = body
	if m.err != nil {
		return nil, m.err
	}
	return &m.resp, nil
}

func TestGenerate_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Hello World"}},
		},
	}
	client := &Client{chat: &mockChatService{resp: mockResp}, model: openai.ChatModelGPT4oMini}
	out, err := client.Generate(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: openai.ChatModelGPT4oMini}
	_, err := client.Generate(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}, model: openai.ChatModelGPT4oMini}
	_, err := client.Generate(context.Background(), "sys", "usr")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestClassify_UsesLowTemperature(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "troubleshoot"}},
		},
	}}
	client := &Client{chat: mock, model: openai.ChatModelGPT4oMini}
	out, err := client.Classify(context.Background(), "classifier", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "troubleshoot" {
		t.Errorf("expected 'troubleshoot', got '%s'", out)
	}
	if got := mock.lastIn.Temperature.Or(1); got != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", got)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Error("expected client instance, got nil")
	}
}

func TestNewClient_ModelOverride(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cli.model != "gpt-4o" {
		t.Errorf("expected model override gpt-4o, got %s", cli.model)
	}
}
