package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"summarizer-agents/history"
	"summarizer-agents/segment"
	"summarizer-agents/summarizer"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// session returns the caller's session id, issuing a new cookie when the
// request has none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// rejection maps a validation error to its status and message.
func rejection(err error, agent string) (int, string) {
	switch {
	case errors.Is(err, summarizer.ErrNoText):
		return http.StatusBadRequest, "No text provided"
	case errors.Is(err, summarizer.ErrNoAgent):
		return http.StatusBadRequest, "No agent selected"
	case errors.Is(err, summarizer.ErrAgentNotFound):
		return http.StatusNotFound, fmt.Sprintf("Agent %s not found", agent)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (SummarizeRequest, bool) {
	var req SummarizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	req.Text = strings.TrimSpace(req.Text)
	return req, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, map[string]any{"Agents": s.service.Agents()}); err != nil {
		s.logger.Error("Failed to render index", "error", err)
	}
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"agents": s.service.Agents()})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.Write(s.schema)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.Validate(req.Agent, req.Text); err != nil {
		code, msg := rejection(err, req.Agent)
		writeError(w, code, msg)
		return
	}

	sessionID := s.session(w, r)
	requestID := uuid.NewString()
	startTime := time.Now()

	summary := s.service.Summarize(r.Context(), req.Agent, req.Text)
	tokens := s.service.CountTokens(req.Text)

	s.logger.Info("Summarized",
		"agent", req.Agent,
		"request_id", requestID,
		"input_tokens", tokens,
		"duration", time.Since(startTime),
	)

	s.record(r.Context(), history.Entry{
		ID:           requestID,
		SessionID:    sessionID,
		Agent:        req.Agent,
		OriginalText: req.Text,
		Summary:      summary,
		InputTokens:  tokens,
	})

	writeJSON(w, http.StatusOK, SummarizeResponse{
		Success:     true,
		Summary:     summary,
		Agent:       req.Agent,
		RequestID:   requestID,
		TextLength:  utf8.RuneCountInString(req.Text),
		InputTokens: tokens,
	})
}

func (s *Server) record(ctx context.Context, e history.Entry) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Append(ctx, e); err != nil {
		s.logger.Error("Failed to record history", "error", err, "request_id", e.ID)
	}
}

// writeEvent writes one server-sent event, one data line per text line.
func writeEvent(w http.ResponseWriter, event, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (s *Server) handleSummarizeStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	segs, err := s.service.Stream(r.Context(), req.Agent, req.Text)
	if err != nil {
		code, msg := rejection(err, req.Agent)
		writeError(w, code, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sessionID := s.session(w, r)
	requestID := uuid.NewString()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var sent []segment.Segment
	for seg := range segs {
		event := ""
		if seg.IsError() {
			event = "error"
		}
		writeEvent(w, event, seg.String())
		flusher.Flush()
		sent = append(sent, seg)
	}
	writeEvent(w, "done", "[DONE]")
	flusher.Flush()

	if r.Context().Err() != nil {
		return
	}
	s.record(r.Context(), history.Entry{
		ID:           requestID,
		SessionID:    sessionID,
		Agent:        req.Agent,
		OriginalText: req.Text,
		Summary:      segment.Join(slices.Values(sent)),
		InputTokens:  s.service.CountTokens(req.Text),
	})
}

// wsSegment is one WebSocket message of a streamed summary.
type wsSegment struct {
	Text      string `json:"text,omitempty"`
	Paragraph bool   `json:"paragraph,omitempty"`
	LineStart bool   `json:"line_start,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

func (s *Server) handleSummarizeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(maxRequestBody)
	defer conn.CloseNow()

	ctx := r.Context()
	writeFn := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, data)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}

	var req SummarizeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	req.Text = strings.TrimSpace(req.Text)

	// Only close frames are expected from here on; the returned context ends
	// when the peer goes away, which stops the upstream request.
	ctx = conn.CloseRead(ctx)

	segs, err := s.service.Stream(ctx, req.Agent, req.Text)
	if err != nil {
		_, msg := rejection(err, req.Agent)
		writeFn(map[string]string{"error": msg})
		conn.Close(websocket.StatusPolicyViolation, msg)
		return
	}

	for seg := range segs {
		msg := wsSegment{Text: seg.String(), Paragraph: seg.Paragraph, LineStart: seg.LineStart, Error: seg.IsError()}
		if err := writeFn(msg); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("WebSocket write failed", "error", err)
			}
			return
		}
	}
	writeFn(wsSegment{Done: true})
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	if s.history == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}

	entries, err := s.history.List(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("Failed to list history", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := s.session(w, r)
	if s.history != nil {
		if err := s.history.Clear(r.Context(), sessionID); err != nil {
			s.logger.Error("Failed to clear history", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to clear history")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
