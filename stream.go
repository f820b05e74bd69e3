package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is the payload for the streaming chat endpoint.
type ChatRequest struct {
	SalonID  string        `json:"salon_id"`
	Messages []ChatMessage `json:"messages"`
}

// ChatStream opens the streaming chat endpoint and returns the reply
// as a lazy sequence of text fragments. The stream is finite and
// read-once: both channels close when the response body ends. Errors,
// including a local rate-limit denial, arrive on the error channel.
// Cancellation is cooperative through ctx; an abandoned stream simply
// runs to completion and is discarded.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if !c.limiter.Allow() {
			errs <- &RateLimitError{RetryAfter: c.limiter.ResetAfter()}
			return
		}
		c.limiter.Record()

		raw, err := json.Marshal(req)
		if err != nil {
			errs <- errors.Wrap(err, "marshal chat request")
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/stream", bytes.NewReader(raw))
		if err != nil {
			errs <- errors.Wrap(err, "build chat request")
			return
		}
		requestID := uuid.NewString()
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-Request-Id", requestID)
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		start := time.Now()
		resp, err := c.hc.Do(httpReq)
		if err != nil {
			errs <- errors.Wrap(err, "chat request")
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			errs <- newAPIError(resp)
			return
		}

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case chunks <- string(buf[:n]):
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				c.logger.Debug("chat stream complete",
					"request_id", requestID,
					"duration_ms", time.Since(start).Milliseconds())
				return
			}
			if err != nil {
				errs <- errors.Wrap(err, "read chat stream")
				return
			}
		}
	}()

	return chunks, errs
}
