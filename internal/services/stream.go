package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/foliochat/folio-chat-ui/internal/models"
)

// Content-bearing records in the streamed reply carry this prefix followed by a JSON string
// literal. Records with any other prefix belong to protocol surface this widget does not consume
// and are ignored.
const contentFramePrefix = "0:"

// DecodeStream converts a chat response body framed as newline-separated records into a sequence of
// stream events. Each content frame's fragment is appended to a running accumulator, and every
// chunk event reports the whole message decoded so far. frameDelay is slept between frames so
// consumers perceive incremental typing.
//
// The stop predicate is checked before each read; once it reports true the body is closed to
// release the connection and the sequence ends with a complete event carrying the accumulated
// content. A stopped stream is a successful partial completion, never a failure. Frames that fail
// JSON decoding are logged and skipped, while a failure reading the body itself ends the sequence
// with an error.
func DecodeStream(
	body io.ReadCloser,
	stop func() bool,
	frameDelay time.Duration,
	logger *slog.Logger,
) iter.Seq2[models.StreamEvent, error] {
	return func(yield func(models.StreamEvent, error) bool) {
		var accumulated strings.Builder
		scanner := bufio.NewScanner(body)

		for {
			if stop != nil && stop() {
				_ = body.Close()
				yield(models.StreamEvent{Kind: models.StreamEventComplete, Content: accumulated.String()}, nil)
				return
			}

			if !scanner.Scan() {
				break
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			payload, ok := strings.CutPrefix(line, contentFramePrefix)
			if !ok || payload == "" {
				continue
			}

			var fragment string
			if err := json.Unmarshal([]byte(payload), &fragment); err != nil {
				logger.Error("Failed to decode stream frame",
					slog.String("line", line),
					slog.String("error", err.Error()))
				continue
			}

			accumulated.WriteString(fragment)
			if !yield(models.StreamEvent{Kind: models.StreamEventChunk, Content: accumulated.String()}, nil) {
				return
			}

			if frameDelay > 0 {
				time.Sleep(frameDelay)
			}
		}

		if err := scanner.Err(); err != nil {
			yield(models.StreamEvent{}, fmt.Errorf("error reading response stream: %w", err))
			return
		}

		yield(models.StreamEvent{Kind: models.StreamEventComplete, Content: accumulated.String()}, nil)
	}
}
