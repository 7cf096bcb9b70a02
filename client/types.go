package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"strconv"
)

const chatPath = "/api/chat"

// Endpoint locates a generation service.
type Endpoint struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// DefaultEndpoint is the address a local Ollama listens on.
var DefaultEndpoint = Endpoint{Host: "localhost", Port: 11434}

// BaseURL returns the scheme, host and port without a path.
func (e Endpoint) BaseURL() string {
	return "http://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the chat endpoint of the service.
func (e Endpoint) URL() string {
	return e.BaseURL() + chatPath
}

// Message is one entry of the chat message sequence.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options holds the decoding options sent with every request.
type Options struct {
	Temperature float64 `json:"temperature"`
}

// ChatRequest is the JSON body posted to /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Options  Options   `json:"options"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

// Fragment is one decoded delta of a streaming response.
type Fragment struct {
	Content string
	Done    bool
}

// Stream is a single-pass sequence of fragments backed by an open connection.
//
// Fragments closes the stream when iteration ends for any reason, including
// an early break by the consumer. Close is idempotent; callers that never
// iterate must call it themselves.
type Stream interface {
	Fragments() iter.Seq2[Fragment, error]
	Close() error
}

// Transport opens streaming chat requests against an endpoint.
type Transport interface {
	Open(ctx context.Context, endpoint Endpoint, req ChatRequest) (Stream, error)
}

// ErrStatus is matched by errors.Is for every *StatusError.
var ErrStatus = errors.New("unexpected status")

// StatusError reports a non-success response from the generation service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// DecodeError reports a stream line that could not be decoded. It never ends
// the stream.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode stream line: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
