// Package client streams chat requests to a text-generation service and
// exposes the response as a sequence of decoded fragments.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"summarizer-agents/ratelimiter"

	"github.com/charmbracelet/log"
)

const (
	DefaultRequestsPerMinute = 60

	maxErrorBody = 4 << 10
	maxLineSize  = 1 << 20
)

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// HTTPClient speaks the newline-delimited JSON chat protocol served at
// /api/chat.
type HTTPClient struct {
	http           *http.Client
	logger         *log.Logger
	requestLimiter *ratelimiter.Keyed
}

// NewHTTPClient creates an HTTPClient, filling unset config fields with
// defaults. The default http.Client has no overall timeout because responses
// are streamed; bound requests with the context instead.
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	return &HTTPClient{
		http:           config.HTTPClient,
		logger:         config.Logger,
		requestLimiter: ratelimiter.NewKeyed(config.RequestsPerMinute),
	}
}

// Open posts req to the endpoint and returns the streaming response. A
// non-success status is returned as a *StatusError; no request is retried.
func (c *HTTPClient) Open(ctx context.Context, endpoint Endpoint, req ChatRequest) (Stream, error) {
	startTime := time.Now()
	url := endpoint.URL()

	if err := c.requestLimiter.Wait(ctx, endpoint.BaseURL()); err != nil {
		return nil, fmt.Errorf("request rate limit exceeded: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("Request failed",
			"error", err,
			"url", url,
			"model", req.Model,
			"duration", time.Since(startTime),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		statusErr := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
		c.logger.Error("API error",
			"status", statusErr.Code,
			"body", statusErr.Body,
			"url", url,
			"model", req.Model,
		)
		return nil, statusErr
	}

	c.logger.Debug("Stream opened",
		"url", url,
		"model", req.Model,
		"messages", len(req.Messages),
		"duration", time.Since(startTime),
	)

	return newLineStream(resp.Body, c.logger), nil
}

// Close stops the request limiter.
func (c *HTTPClient) Close() {
	if c.requestLimiter != nil {
		c.requestLimiter.Stop()
	}
}

// AvailableRequests reports how many requests to endpoint may start without
// waiting. Each endpoint has its own budget.
func (c *HTTPClient) AvailableRequests(endpoint Endpoint) int {
	return c.requestLimiter.Available(endpoint.BaseURL())
}

// chatChunk is one line of the /api/chat response.
type chatChunk struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Decode parses one response line. A line carrying an "error" field decodes
// to an error as well.
func Decode(line []byte) (Fragment, error) {
	var chunk chatChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return Fragment{}, &DecodeError{Line: string(line), Err: err}
	}
	if chunk.Error != "" {
		return Fragment{}, &DecodeError{Line: string(line), Err: errors.New(chunk.Error)}
	}

	frag := Fragment{Done: chunk.Done}
	if chunk.Message != nil {
		frag.Content = chunk.Message.Content
	}
	return frag, nil
}

// lineStream decodes a newline-delimited JSON body.
type lineStream struct {
	body   io.ReadCloser
	logger *log.Logger

	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newLineStream(body io.ReadCloser, logger *log.Logger) *lineStream {
	return &lineStream{body: body, logger: logger}
}

func (s *lineStream) Fragments() iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		defer s.Close()

		if !s.started.CompareAndSwap(false, true) {
			return
		}

		scanner := bufio.NewScanner(s.body)
		scanner.Buffer(make([]byte, 64<<10), maxLineSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			frag, err := Decode(line)
			if err != nil {
				s.logger.Warn("Skipping stream line", "error", err)
				if !yield(Fragment{}, err) {
					return
				}
				continue
			}

			if !yield(frag, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Fragment{}, fmt.Errorf("read stream: %w", err))
		}
	}
}

func (s *lineStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
