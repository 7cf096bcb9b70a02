package client

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// placeholderAPIKey satisfies the SDK when the server does not check keys,
// as is the case for Ollama's compatibility surface.
const placeholderAPIKey = "ollama"

// OpenAITransport sends the same chat request through the OpenAI-compatible
// /v1/chat/completions surface of the endpoint.
type OpenAITransport struct {
	apiKey string
	logger *log.Logger
	opts   []option.RequestOption
}

// NewOpenAITransport creates a transport authenticating with apiKey. Extra
// request options are appended to every client it builds.
func NewOpenAITransport(apiKey string, logger *log.Logger, opts ...option.RequestOption) *OpenAITransport {
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OpenAITransport{apiKey: apiKey, logger: logger, opts: opts}
}

func (t *OpenAITransport) Open(ctx context.Context, endpoint Endpoint, req ChatRequest) (Stream, error) {
	opts := append([]option.RequestOption{
		option.WithBaseURL(endpoint.BaseURL() + "/v1/"),
		option.WithAPIKey(t.apiKey),
		option.WithMaxRetries(0),
	}, t.opts...)
	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: openai.Float(req.Options.Temperature),
	})
	if err := stream.Err(); err != nil {
		stream.Close()
		t.logger.Error("OpenAI-compatible request failed",
			"error", err,
			"url", endpoint.BaseURL(),
			"model", req.Model,
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]

	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (s *openAIStream) Fragments() iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		defer s.Close()

		if !s.started.CompareAndSwap(false, true) {
			return
		}

		for s.stream.Next() {
			chunk := s.stream.Current()
			for _, choice := range chunk.Choices {
				frag := Fragment{
					Content: choice.Delta.Content,
					Done:    choice.FinishReason != "",
				}
				if !yield(frag, nil) {
					return
				}
			}
		}

		if err := s.stream.Err(); err != nil {
			yield(Fragment{}, fmt.Errorf("read stream: %w", err))
		}
	}
}

func (s *openAIStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stream.Close()
	})
	return s.closeErr
}
