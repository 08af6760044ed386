package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harun/mcplink/internal/observability"
	"github.com/harun/mcplink/pkg/conversation"
	"github.com/harun/mcplink/pkg/stream"
	"github.com/harun/mcplink/pkg/toolcall"
	"github.com/tidwall/gjson"
)

// errSkipRequested aborts stream consumption when the command is being skipped.
var errSkipRequested = errors.New("skip requested")

// chatTurn is the outcome of one chat round.
type chatTurn struct {
	Text      string
	ToolCalls []toolcall.Ref
	Skipped   bool
}

// chat posts one round to the chat endpoint and collects text and tool calls.
func (c *Client) chat(ctx context.Context, cfg Config, messages []conversation.Message) (chatTurn, error) {
	startTime := time.Now()
	turn, err := c.doChat(ctx, cfg, messages)
	observability.RecordChatRequest(c.variant, time.Since(startTime), err == nil)
	return turn, err
}

func (c *Client) doChat(ctx context.Context, cfg Config, messages []conversation.Message) (chatTurn, error) {
	body := ChatRequest{
		Model:    cfg.Model,
		Messages: messages,
		Stream:   cfg.Stream,
		Tools:    ToolSpecs(c.Tools()),
	}

	req, err := c.provider.BuildRequest(ctx, cfg, body)
	if err != nil {
		return chatTurn{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatTurn{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.provider.CheckResponseStatus(resp); err != nil {
		return chatTurn{}, err
	}

	if !cfg.Stream {
		return c.readMessage(resp)
	}
	return c.readStream(ctx, resp)
}

// readStream consumes an SSE response line by line.
func (c *Client) readStream(ctx context.Context, resp *http.Response) (chatTurn, error) {
	acc := toolcall.NewAccumulator()
	var text strings.Builder

	err := stream.Scan(ctx, resp.Body, func(res stream.Result) error {
		observability.RecordStreamLine(c.variant, res.Kind.String())

		if c.channel.ShouldSkip() {
			return errSkipRequested
		}

		switch res.Kind {
		case stream.KindNoop:
			return nil
		case stream.KindError:
			c.logger.Error().Err(res.Err).Msg("Upstream reported a stream error")
			return res.Err
		case stream.KindParseError:
			c.logger.Warn().Err(res.Err).Msg("Skipping unparseable stream line")
			return nil
		}

		if msg := ErrorMessage(res.Raw); msg != "" {
			c.logger.Error().Str("message", msg).Msg("Upstream returned an error payload")
			return &stream.UpstreamStreamError{Line: msg}
		}

		delta := gjson.GetBytes(res.Raw, "choices.0.delta")
		if content := delta.Get("content").String(); content != "" {
			text.WriteString(content)
			c.emit(Event{Type: EventText, Text: content})
		}
		delta.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
			acc.Ingest(toolcall.Delta{
				Index:     int(call.Get("index").Int()),
				ID:        call.Get("id").String(),
				Name:      call.Get("function.name").String(),
				Arguments: call.Get("function.arguments").String(),
			})
			return true
		})
		return nil
	})

	if errors.Is(err, errSkipRequested) {
		return chatTurn{Text: text.String(), Skipped: true}, nil
	}
	if err != nil {
		return chatTurn{}, err
	}

	return chatTurn{Text: text.String(), ToolCalls: c.drainCalls(acc)}, nil
}

// readMessage decodes a non-streamed completion.
func (c *Client) readMessage(resp *http.Response) (chatTurn, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chatTurn{}, fmt.Errorf("failed to read chat response: %w", err)
	}
	if msg := ErrorMessage(data); msg != "" {
		return chatTurn{}, &stream.UpstreamStreamError{Line: msg}
	}
	if !gjson.ValidBytes(data) {
		return chatTurn{}, &stream.UpstreamParseError{Line: string(data), Err: errors.New("invalid JSON")}
	}

	message := gjson.GetBytes(data, "choices.0.message")
	content := message.Get("content").String()
	if content != "" {
		c.emit(Event{Type: EventText, Text: content})
	}

	acc := toolcall.NewAccumulator()
	position := 0
	message.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		index := position
		if idx := call.Get("index"); idx.Exists() {
			index = int(idx.Int())
		}
		acc.Ingest(toolcall.Delta{
			Index:     index,
			ID:        call.Get("id").String(),
			Name:      call.Get("function.name").String(),
			Arguments: call.Get("function.arguments").String(),
		})
		position++
		return true
	})

	return chatTurn{Text: content, ToolCalls: c.drainCalls(acc)}, nil
}

// drainCalls empties acc. Calls that are not ready are still returned; the
// dispatch turns their parse failure into an error result.
func (c *Client) drainCalls(acc *toolcall.Accumulator) []toolcall.Ref {
	for _, idx := range acc.Indices() {
		if acc.Ready(idx) {
			continue
		}
		ref, _ := acc.Pending(idx)
		c.logger.Warn().
			Int("index", idx).
			Str("tool", ref.Function.Name).
			Msg("Tool call incomplete at end of stream")
	}
	return acc.Drain()
}
