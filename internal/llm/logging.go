package llm

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/abhisek/codetutor/internal/store"
)

// maxLoggedResponse caps the response text kept in the event log.
const maxLoggedResponse = 16 * 1024

// LoggingStreamer is a decorator that records every model request as an
// event once its stream ends.
type LoggingStreamer struct {
	inner     Streamer
	provider  string
	eventRepo store.EventRepo
}

// WithLogging wraps a Streamer with event logging.
func WithLogging(s Streamer, provider string, repo store.EventRepo) Streamer {
	return &LoggingStreamer{inner: s, provider: provider, eventRepo: repo}
}

func (l *LoggingStreamer) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		start := time.Now()
		var (
			resp    strings.Builder
			chunks  int
			lastErr error
			stopped bool
		)

		for chunk, err := range l.inner.Stream(ctx, req) {
			if err != nil {
				lastErr = err
			} else {
				chunks++
				if resp.Len() < maxLoggedResponse {
					resp.WriteString(chunk.Text)
				}
			}
			if !yield(chunk, err) {
				stopped = true
				break
			}
		}
		if stopped && lastErr == nil {
			lastErr = context.Canceled
		}

		data := store.LLMRequestEventData{
			Provider:     l.provider,
			Model:        modelFor(req, l.inner.ModelID()),
			Purpose:      PurposeFrom(ctx),
			Chunks:       chunks,
			LatencyMs:    time.Since(start).Milliseconds(),
			Success:      lastErr == nil,
			RequestBody:  serializeRequest(req),
			ResponseBody: resp.String(),
		}
		if lastErr != nil {
			data.ErrorMessage = lastErr.Error()
		}

		if l.eventRepo == nil {
			return
		}
		// Log the event but don't fail the request if logging fails. The
		// request context may already be cancelled.
		if logErr := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to log model request event: %v\n", logErr)
		}
	}
}

func (l *LoggingStreamer) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *LoggingStreamer) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}
