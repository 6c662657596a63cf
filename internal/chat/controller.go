package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/boardmate-chat/internal/stream"
	"github.com/namikmesic/boardmate-chat/internal/transport"
	"github.com/rs/zerolog/log"
)

// StreamHandle cancels an in-flight stream. *transport.Handle implements it.
type StreamHandle interface {
	Cancel()
}

// Backend is one assistant endpoint. Stream must deliver callbacks from another
// goroutine, never before it returns.
type Backend interface {
	Name() string
	Session() string
	Stream(ctx context.Context, message string, cb transport.Callbacks) StreamHandle
	History(ctx context.Context) ([]Message, error)
	ClearHistory(ctx context.Context) error
}

type Options struct {
	Observer Observer
	// OnUpdate is called after every state change, in order. It must not call
	// methods that change the controller's state.
	OnUpdate       func(State)
	HistoryTimeout time.Duration
	Now            func() time.Time
}

// Controller owns one conversation and at most one active stream.
//
// Every stream callback carries the generation it was started with; a callback
// whose generation is no longer current belongs to a cancelled or finished
// stream and is dropped. Cancelling discards the partial reply.
type Controller struct {
	backend  Backend
	observer Observer
	onUpdate func(State)
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}

	pubMu sync.Mutex

	mu        sync.Mutex
	messages  []Message
	content   string
	streaming bool
	closed    bool
	gen       uint64
	epoch     uint64 // bumped by Clear so late history cannot resurrect a cleared transcript
	active    *activeStream
	last      *activeStream
}

type activeStream struct {
	gen    uint64
	info   StreamInfo
	handle StreamHandle
	done   chan struct{}

	canceled bool
	outcome  Outcome
}

// NewController starts loading the backend's history in the background; see Ready.
func NewController(backend Backend, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:  backend,
		observer: opts.Observer,
		onUpdate: opts.OnUpdate,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	timeout := opts.HistoryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	go c.hydrate(timeout)
	return c
}

// Ready is closed once history loading has finished, successfully or not.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// SendMessage appends text as a user message and starts streaming the reply.
// It returns false without doing anything if text is blank, a stream is already
// running or the controller is closed.
func (c *Controller) SendMessage(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.streaming || c.closed {
		c.mu.Unlock()
		return false
	}
	c.gen++
	s := &activeStream{
		gen:  c.gen,
		done: make(chan struct{}),
		info: StreamInfo{
			ID:        uuid.New(),
			Assistant: c.backend.Name(),
			Session:   c.backend.Session(),
			StartedAt: c.now(),
		},
	}
	c.messages = append(c.messages, newMessage(RoleUser, text, s.info.StartedAt))
	c.content = ""
	c.streaming = true
	c.active = s
	c.last = s
	c.unlockAndPublish()

	c.observer.StreamStarted(s.info)

	h := c.backend.Stream(c.ctx, text, transport.Callbacks{
		OnEvent: func(ev stream.Event) { c.handleEvent(s, ev) },
		OnEnd:   func(sum stream.Summary) { c.handleEnd(s, sum) },
	})

	c.mu.Lock()
	s.handle = h
	stale := s.canceled
	c.mu.Unlock()
	if stale {
		h.Cancel()
	}
	return true
}

// Cancel aborts the active stream and drops its partial reply. It is a no-op
// when nothing is streaming.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.streaming || c.active == nil {
		c.mu.Unlock()
		return
	}
	s := c.active
	c.abandonLocked(s)
	h := s.handle
	c.unlockAndPublish()

	if h != nil {
		h.Cancel()
	}
}

// Clear empties the local transcript. It does not touch an active stream; call
// Cancel first if the in-flight reply should not land in the cleared transcript.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.epoch++
	c.unlockAndPublish()
}

// Reset cancels any active stream, deletes the server side history and clears
// the transcript. The local transcript is cleared even if the server call fails.
func (c *Controller) Reset(ctx context.Context) error {
	c.Cancel()
	err := c.backend.ClearHistory(ctx)
	c.Clear()
	if err != nil {
		return fmt.Errorf("clear %s history: %w", c.backend.Name(), err)
	}
	return nil
}

// Wait blocks until the most recent stream has delivered its last callback.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the active stream and history loading. Further sends are rejected.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) hydrate(timeout time.Duration) {
	defer close(c.ready)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	history, err := c.backend.History(ctx)
	if err != nil {
		log.Warn().Err(err).
			Str("assistant", c.backend.Name()).
			Str("session", c.backend.Session()).
			Msg("failed to load chat history")
		return
	}
	if len(history) == 0 {
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	merged := make([]Message, 0, len(history)+len(c.messages))
	merged = append(merged, history...)
	c.messages = append(merged, c.messages...)
	c.unlockAndPublish()

	log.Debug().Str("assistant", c.backend.Name()).Int("messages", len(history)).Msg("chat history loaded")
}

func (c *Controller) handleEvent(s *activeStream, ev stream.Event) {
	c.mu.Lock()
	if !c.isCurrentLocked(s) {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case stream.KindContent:
		c.content += ev.Text
	case stream.KindDone:
		c.finishLocked(s, OutcomeCompleted, nil)
	case stream.KindError:
		c.finishLocked(s, OutcomeFailed, ev.Err)
	}
	c.unlockAndPublish()

	c.observer.StreamEvent(s.info, ev)
}

func (c *Controller) handleEnd(s *activeStream, sum stream.Summary) {
	defer close(s.done)

	c.mu.Lock()
	current := c.isCurrentLocked(s)
	if current {
		if sum.Canceled {
			c.abandonLocked(s)
		} else {
			// The body ended without a done or error record.
			c.finishLocked(s, OutcomeEnded, nil)
		}
	}
	s.outcome.Summary = sum
	if s.outcome.Status == "" {
		s.outcome.Status = OutcomeCanceled
	}
	out := s.outcome
	if current {
		c.unlockAndPublish()
	} else {
		c.mu.Unlock()
	}

	c.observer.StreamEnded(s.info, out)
}

func (c *Controller) isCurrentLocked(s *activeStream) bool {
	return c.streaming && s.gen == c.gen
}

func (c *Controller) finishLocked(s *activeStream, status string, apiErr *stream.APIError) {
	reply := c.content
	s.outcome.Status = status
	s.outcome.ContentLength = len(c.content)
	s.outcome.FinishedAt = c.now()

	if apiErr != nil {
		s.outcome.ErrorCode = apiErr.Code
		s.outcome.ErrorMessage = apiErr.Message
		log.Warn().
			Str("assistant", s.info.Assistant).
			Str("stream_id", s.info.ID.String()).
			Str("code", apiErr.Code).
			Str("reason", apiErr.Reason).
			Str("message", apiErr.Message).
			Int("partial_len", len(reply)).
			Msg("chat stream failed")
		if reply == "" {
			reply = ErrorReply
		}
	}

	if reply != "" {
		c.messages = append(c.messages, newMessage(RoleAssistant, reply, s.outcome.FinishedAt))
	}
	c.content = ""
	c.streaming = false
	c.active = nil
}

func (c *Controller) abandonLocked(s *activeStream) {
	s.canceled = true
	s.outcome.Status = OutcomeCanceled
	s.outcome.ContentLength = len(c.content)
	s.outcome.FinishedAt = c.now()

	c.gen++
	c.content = ""
	c.streaming = false
	c.active = nil
}

func (c *Controller) stateLocked() State {
	return State{
		Messages:         append([]Message(nil), c.messages...),
		Streaming:        c.streaming,
		StreamingContent: c.content,
	}
}

// unlockAndPublish releases mu and hands the new state to OnUpdate. pubMu is
// taken before mu is released so updates reach OnUpdate in mutation order.
func (c *Controller) unlockAndPublish() {
	if c.onUpdate == nil {
		c.mu.Unlock()
		return
	}
	state := c.stateLocked()
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	c.onUpdate(state)
}
