package thread

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const (
	opListMessages  = "list messages"
	opCreateMessage = "create message"
	opCreateRun     = "create run"
	opRetrieveRun   = "retrieve run"
)

// AssistantAPI is the part of *openai.Client the orchestrator uses.
type AssistantAPI interface {
	ListMessage(
		ctx context.Context,
		threadID string,
		limit *int,
		order *string,
		after *string,
		before *string,
		runID *string,
	) (openai.MessagesList, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
}

// APIFactory builds a client for the given credential. It is called once
// per operation so a settings change applies to the next call.
type APIFactory func(credential string) AssistantAPI

// NewOpenAIFactory returns a factory for real clients against baseURL.
// httpClient may be nil.
func NewOpenAIFactory(baseURL string, assistantVersion string, httpClient openai.HTTPDoer) APIFactory {
	return func(credential string) AssistantAPI {
		clientConfig := openai.DefaultConfig(credential)
		if baseURL != "" {
			clientConfig.BaseURL = baseURL
		}
		if assistantVersion != "" {
			clientConfig.AssistantVersion = assistantVersion
		}
		if httpClient != nil {
			clientConfig.HTTPClient = httpClient
		}
		return openai.NewClientWithConfig(clientConfig)
	}
}
