package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/namikmesic/boardmate-chat/internal/stream"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCanceled is the cancellation cause used by Handle.Cancel.
	ErrCanceled = errors.New("stream canceled")
	// ErrIdleTimeout is the cause used when a stream goes quiet for too long.
	ErrIdleTimeout = errors.New("stream idle timeout")
)

// Request is one chat exchange: a JSON body posted to Path.
type Request struct {
	Path string
	Body any
}

// Callbacks receive the stream's output. OnEvent is never called after a terminal
// event or after cancellation. OnEnd is called exactly once, last.
type Callbacks struct {
	OnEvent func(stream.Event)
	OnEnd   func(stream.Summary)
}

// Handle controls one in-flight stream.
type Handle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Cancel aborts the stream. It is safe to call more than once and on a nil Handle.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancel(ErrCanceled)
}

// Done is closed after OnEnd has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stream opens a streaming chat request and consumes it in the background.
// Failures are delivered as error events; nothing is returned synchronously.
func (c *Client) Stream(ctx context.Context, req Request, cb Callbacks) *Handle {
	ctx, cancel := context.WithCancelCause(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel(nil)

		sum := c.run(ctx, cancel, req, cb.OnEvent)
		if cb.OnEnd != nil {
			cb.OnEnd(sum)
		}
	}()
	return h
}

func (c *Client) run(ctx context.Context, cancel context.CancelCauseFunc, req Request, onEvent func(stream.Event)) (sum stream.Summary) {
	d := stream.NewDispatcher(func(ev stream.Event) {
		if canceled(ctx) || onEvent == nil {
			return
		}
		onEvent(ev)
	})
	defer func() {
		sum.Terminated = d.Terminated()
		sum.Canceled = !sum.Terminated && canceled(ctx)
		sum.Frames = d.Frames()
		sum.Dropped = d.Dropped()
	}()

	body, err := json.Marshal(req.Body)
	if err != nil {
		sum.Err = fmt.Errorf("encode request: %w", err)
		d.Emit(stream.ErrorEvent(stream.CodeNetwork, sum.Err.Error()))
		return sum
	}

	target := buildURL(c.baseURL, req.Path, nil)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		sum.Err = fmt.Errorf("create request: %w", err)
		d.Emit(stream.ErrorEvent(stream.CodeNetwork, sum.Err.Error()))
		return sum
	}
	httpReq.Header = c.headers("text/event-stream")
	// Compressed responses would be buffered before we see any frame.
	httpReq.Header.Set("Accept-Encoding", "identity")

	var timer *idleTimer
	if c.idleTimeout > 0 {
		timer = newIdleTimer(c.idleTimeout, func() { cancel(ErrIdleTimeout) })
		defer timer.stop()
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		sum.Err = err
		c.fail(ctx, d, err)
		return sum
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	sum.Status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.Emit(stream.ErrorEvent(stream.CodeHTTP, fmt.Sprintf("HTTP %d", resp.StatusCode)))
		return sum
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		d.Emit(stream.DoneEvent(""))
		return sum
	}

	var r io.Reader = resp.Body
	if timer != nil {
		r = timer.reader(resp.Body)
	}

	sum.Bytes, err = stream.Consume(ctx, r, d)
	if err != nil {
		sum.Err = err
		c.fail(ctx, d, err)
	}
	return sum
}

func (c *Client) fail(ctx context.Context, d *stream.Dispatcher, err error) {
	switch {
	case errors.Is(context.Cause(ctx), ErrIdleTimeout):
		d.Emit(stream.ErrorEvent(stream.CodeIdleTimeout,
			fmt.Sprintf("no data received for %s", c.idleTimeout)))
	case ctx.Err() != nil:
		log.Debug().Err(context.Cause(ctx)).Msg("stream aborted")
	default:
		d.Emit(stream.ErrorEvent(stream.CodeNetwork, err.Error()))
	}
}

// canceled reports a deliberate stop. An idle timeout also cancels the context but
// must still surface as an error.
func canceled(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), ErrIdleTimeout)
}
