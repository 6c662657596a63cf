package transport

import (
	"io"
	"time"
)

type idleTimer struct {
	d time.Duration
	t *time.Timer
}

func newIdleTimer(d time.Duration, fire func()) *idleTimer {
	return &idleTimer{d: d, t: time.AfterFunc(d, fire)}
}

func (t *idleTimer) touch() { t.t.Reset(t.d) }

func (t *idleTimer) stop() { t.t.Stop() }

func (t *idleTimer) reader(r io.Reader) io.Reader {
	return &idleReader{r: r, timer: t}
}

// idleReader pushes the deadline back every time bytes arrive.
type idleReader struct {
	r     io.Reader
	timer *idleTimer
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.touch()
	}
	return n, err
}
