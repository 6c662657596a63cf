package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/namikmesic/boardmate-chat/internal/stream"
	"github.com/namikmesic/boardmate-chat/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	ctx      context.Context
	message  string
	cb       transport.Callbacks
	canceled atomic.Bool
}

func (s *fakeStream) Cancel() { s.canceled.Store(true) }

func (s *fakeStream) content(text string) { s.cb.OnEvent(stream.ContentEvent(text)) }

func (s *fakeStream) done() { s.cb.OnEvent(stream.DoneEvent("")) }

func (s *fakeStream) fail(code, msg string) { s.cb.OnEvent(stream.ErrorEvent(code, msg)) }

func (s *fakeStream) end(sum stream.Summary) { s.cb.OnEnd(sum) }

type fakeBackend struct {
	mu      sync.Mutex
	streams []*fakeStream

	history     []Message
	historyErr  error
	historyGate chan struct{}
	clearErr    error
	clears      int
}

func (b *fakeBackend) Name() string    { return "fake" }
func (b *fakeBackend) Session() string { return "session-1" }

func (b *fakeBackend) Stream(ctx context.Context, message string, cb transport.Callbacks) StreamHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeStream{ctx: ctx, message: message, cb: cb}
	b.streams = append(b.streams, s)
	return s
}

func (b *fakeBackend) History(ctx context.Context) ([]Message, error) {
	if b.historyGate != nil {
		select {
		case <-b.historyGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return b.history, b.historyErr
}

func (b *fakeBackend) ClearHistory(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	return b.clearErr
}

func (b *fakeBackend) stream(t *testing.T, i int) *fakeStream {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Greater(t, len(b.streams), i)
	return b.streams[i]
}

type recordingObserver struct {
	mu      sync.Mutex
	started []StreamInfo
	events  []stream.Event
	ended   []Outcome
}

func (o *recordingObserver) StreamStarted(info StreamInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, info)
}

func (o *recordingObserver) StreamEvent(_ StreamInfo, ev stream.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) StreamEnded(_ StreamInfo, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, out)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T, b *fakeBackend, opts Options) *Controller {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	c := NewController(b, opts)
	t.Cleanup(c.Close)
	if b.historyGate == nil {
		waitReady(t, c)
	}
	return c
}

func waitReady(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("history never loaded")
	}
}

func contents(ms []Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m.Role) + ":" + m.Content
	}
	return out
}

func TestSendMessageCompletes(t *testing.T) {
	b := &fakeBackend{}
	obs := &recordingObserver{}
	c := newTestController(t, b, Options{Observer: obs})

	require.True(t, c.SendMessage("hello"))

	st := c.State()
	assert.True(t, st.Streaming)
	assert.Equal(t, []string{"user:hello"}, contents(st.Messages))
	assert.Equal(t, "2026-03-01T12:00:00Z", st.Messages[0].Timestamp)

	s := b.stream(t, 0)
	assert.Equal(t, "hello", s.message)
	s.content("Hi")
	assert.Equal(t, "Hi", c.State().StreamingContent)
	s.content(" there")
	s.done()
	s.end(stream.Summary{Terminated: true})

	require.NoError(t, c.Wait(context.Background()))
	st = c.State()
	assert.False(t, st.Streaming)
	assert.Empty(t, st.StreamingContent)
	assert.Equal(t, []string{"user:hello", "assistant:Hi there"}, contents(st.Messages))

	require.Len(t, obs.started, 1)
	assert.Equal(t, "fake", obs.started[0].Assistant)
	assert.Len(t, obs.events, 3)
	require.Len(t, obs.ended, 1)
	assert.Equal(t, OutcomeCompleted, obs.ended[0].Status)
	assert.Equal(t, len("Hi there"), obs.ended[0].ContentLength)
}

func TestSendMessageGuards(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	assert.False(t, c.SendMessage(""))
	assert.False(t, c.SendMessage("  \n\t"))
	assert.Empty(t, c.State().Messages)

	require.True(t, c.SendMessage("first"))
	assert.False(t, c.SendMessage("second"))
	assert.Len(t, c.State().Messages, 1)
	assert.Len(t, b.streams, 1)
}

func TestHTTPErrorAppendsApology(t *testing.T) {
	b := &fakeBackend{}
	obs := &recordingObserver{}
	c := newTestController(t, b, Options{Observer: obs})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.fail(stream.CodeHTTP, "HTTP 500")
	s.end(stream.Summary{Terminated: true, Status: 500})

	st := c.State()
	assert.False(t, st.Streaming)
	assert.Equal(t, []string{"user:hello", "assistant:" + ErrorReply}, contents(st.Messages))
	require.Len(t, obs.ended, 1)
	assert.Equal(t, OutcomeFailed, obs.ended[0].Status)
	assert.Equal(t, stream.CodeHTTP, obs.ended[0].ErrorCode)
}

func TestErrorKeepsPartialContent(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.True(t, c.SendMessage("rules?"))
	s := b.stream(t, 0)
	s.content("Each player")
	s.fail(stream.CodeAPI, "model overloaded")
	s.content("ignored")
	s.end(stream.Summary{Terminated: true})

	assert.Equal(t, []string{"user:rules?", "assistant:Each player"}, contents(c.State().Messages))
}

func TestCancelDiscardsPartialContent(t *testing.T) {
	b := &fakeBackend{}
	obs := &recordingObserver{}
	var updates atomic.Int32
	c := newTestController(t, b, Options{Observer: obs, OnUpdate: func(State) { updates.Add(1) }})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("Hi")

	c.Cancel()
	assert.True(t, s.canceled.Load())
	st := c.State()
	assert.False(t, st.Streaming)
	assert.Empty(t, st.StreamingContent)

	// the aborted stream keeps draining
	s.content(" there")
	s.done()
	s.end(stream.Summary{Canceled: true})

	require.NoError(t, c.Wait(context.Background()))
	assert.Equal(t, []string{"user:hello"}, contents(c.State().Messages))
	require.Len(t, obs.ended, 1)
	assert.Equal(t, OutcomeCanceled, obs.ended[0].Status)
	assert.Equal(t, 2, obs.ended[0].ContentLength)
	assert.Len(t, obs.events, 1)

	before := updates.Load()
	c.Cancel()
	assert.Equal(t, before, updates.Load())
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	var updates atomic.Int32
	c := newTestController(t, &fakeBackend{}, Options{OnUpdate: func(State) { updates.Add(1) }})

	c.Cancel()
	c.Cancel()

	assert.Zero(t, updates.Load())
	assert.False(t, c.Streaming())
	assert.Empty(t, c.State().Messages)
}

func TestDuplicateDoneFinalizesOnce(t *testing.T) {
	b := &fakeBackend{}
	obs := &recordingObserver{}
	c := newTestController(t, b, Options{Observer: obs})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("answer")
	s.done()
	s.done()
	s.end(stream.Summary{Terminated: true})

	assert.Equal(t, []string{"user:hello", "assistant:answer"}, contents(c.State().Messages))
	assert.Len(t, obs.ended, 1)
}

func TestNaturalEndFinalizes(t *testing.T) {
	t.Run("with content", func(t *testing.T) {
		b := &fakeBackend{}
		obs := &recordingObserver{}
		c := newTestController(t, b, Options{Observer: obs})

		require.True(t, c.SendMessage("hi"))
		s := b.stream(t, 0)
		s.content("partial")
		s.end(stream.Summary{})

		st := c.State()
		assert.False(t, st.Streaming)
		assert.Equal(t, []string{"user:hi", "assistant:partial"}, contents(st.Messages))
		require.Len(t, obs.ended, 1)
		assert.Equal(t, OutcomeEnded, obs.ended[0].Status)
	})

	t.Run("empty", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Options{})

		require.True(t, c.SendMessage("hi"))
		b.stream(t, 0).end(stream.Summary{})

		st := c.State()
		assert.False(t, st.Streaming)
		assert.Equal(t, []string{"user:hi"}, contents(st.Messages))
	})

	t.Run("done without content", func(t *testing.T) {
		b := &fakeBackend{}
		c := newTestController(t, b, Options{})

		require.True(t, c.SendMessage("hi"))
		s := b.stream(t, 0)
		s.done()
		s.end(stream.Summary{Terminated: true})

		assert.Equal(t, []string{"user:hi"}, contents(c.State().Messages))
	})
}

func TestStaleStreamCannotWrite(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.True(t, c.SendMessage("one"))
	old := b.stream(t, 0)
	c.Cancel()

	require.True(t, c.SendMessage("two"))
	cur := b.stream(t, 1)

	old.content("stale")
	old.done()
	cur.content("fresh")
	old.end(stream.Summary{Canceled: true})

	assert.True(t, c.Streaming())
	assert.Equal(t, "fresh", c.State().StreamingContent)

	cur.done()
	cur.end(stream.Summary{Terminated: true})
	assert.Equal(t, []string{"user:one", "user:two", "assistant:fresh"}, contents(c.State().Messages))
}

func TestContentConcatenatesInOrder(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.True(t, c.SendMessage("list"))
	s := b.stream(t, 0)
	var want strings.Builder
	for _, frag := range []string{"카", "탄", " ", "is", " a ", "game", "\n", "🎲"} {
		s.content(frag)
		want.WriteString(frag)
	}
	s.done()
	s.end(stream.Summary{Terminated: true})

	msgs := c.State().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, want.String(), msgs[1].Content)
}

func TestClearKeepsStreamRunning(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("Hi")
	c.Clear()

	st := c.State()
	assert.Empty(t, st.Messages)
	assert.True(t, st.Streaming)

	s.done()
	s.end(stream.Summary{Terminated: true})
	assert.Equal(t, []string{"assistant:Hi"}, contents(c.State().Messages))
}

func TestOnUpdateSeesEveryChange(t *testing.T) {
	b := &fakeBackend{}
	var mu sync.Mutex
	var seen []string
	c := newTestController(t, b, Options{OnUpdate: func(st State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st.StreamingContent)
	}})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("a")
	s.content("b")
	s.done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "a", "ab", ""}, seen)
}

func TestHistoryHydration(t *testing.T) {
	t.Run("loaded before send", func(t *testing.T) {
		b := &fakeBackend{history: []Message{
			{Role: RoleUser, Content: "old q", Timestamp: "2026-02-01T10:00:00"},
			{Role: RoleAssistant, Content: "old a", Timestamp: "2026-02-01T10:00:01"},
		}}
		c := newTestController(t, b, Options{})

		assert.Equal(t, []string{"user:old q", "assistant:old a"}, contents(c.State().Messages))
	})

	t.Run("failure yields empty transcript", func(t *testing.T) {
		b := &fakeBackend{historyErr: errors.New("502 bad gateway")}
		c := newTestController(t, b, Options{})

		assert.Empty(t, c.State().Messages)
		assert.True(t, c.SendMessage("still works"))
	})

	t.Run("late history goes first", func(t *testing.T) {
		b := &fakeBackend{
			history:     []Message{{Role: RoleAssistant, Content: "earlier"}},
			historyGate: make(chan struct{}),
		}
		c := newTestController(t, b, Options{})

		require.True(t, c.SendMessage("now"))
		close(b.historyGate)
		waitReady(t, c)

		assert.Equal(t, []string{"assistant:earlier", "user:now"}, contents(c.State().Messages))
	})

	t.Run("clear wins over late history", func(t *testing.T) {
		b := &fakeBackend{
			history:     []Message{{Role: RoleAssistant, Content: "earlier"}},
			historyGate: make(chan struct{}),
		}
		c := newTestController(t, b, Options{})

		c.Clear()
		close(b.historyGate)
		waitReady(t, c)

		assert.Empty(t, c.State().Messages)
	})

	t.Run("timeout", func(t *testing.T) {
		b := &fakeBackend{historyGate: make(chan struct{})}
		c := newTestController(t, b, Options{HistoryTimeout: 20 * time.Millisecond})

		waitReady(t, c)
		assert.Empty(t, c.State().Messages)
	})
}

func TestReset(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("Hi")

	require.NoError(t, c.Reset(context.Background()))
	assert.True(t, s.canceled.Load())
	assert.Equal(t, 1, b.clears)
	st := c.State()
	assert.Empty(t, st.Messages)
	assert.False(t, st.Streaming)

	b.clearErr = errors.New("HTTP 500")
	require.True(t, c.SendMessage("again"))
	err := c.Reset(context.Background())
	assert.ErrorContains(t, err, "clear fake history")
	assert.Empty(t, c.State().Messages)
}

func TestCloseCancelsActiveStream(t *testing.T) {
	b := &fakeBackend{}
	obs := &recordingObserver{}
	c := newTestController(t, b, Options{Observer: obs})

	require.True(t, c.SendMessage("hello"))
	s := b.stream(t, 0)
	s.content("Hi")

	c.Close()
	assert.Error(t, s.ctx.Err())
	s.end(stream.Summary{Canceled: true})

	st := c.State()
	assert.False(t, st.Streaming)
	assert.Equal(t, []string{"user:hello"}, contents(st.Messages))
	require.Len(t, obs.ended, 1)
	assert.Equal(t, OutcomeCanceled, obs.ended[0].Status)
	assert.False(t, c.SendMessage("after close"))
}

func TestWaitHonorsContext(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(t, b, Options{})

	require.NoError(t, c.Wait(context.Background()))

	require.True(t, c.SendMessage("hello"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Wait(ctx), context.DeadlineExceeded)
}
