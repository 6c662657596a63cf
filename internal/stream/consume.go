package stream

import (
	"context"
	"errors"
	"io"
)

const readBufferSize = 32 * 1024

// Consume reads r chunk by chunk until a terminal event, end of input, a read
// error or cancellation of ctx. Frames are dispatched in arrival order; nothing
// is dispatched once ctx is done. A read error is returned as is and the caller
// decides how to surface it.
func Consume(ctx context.Context, r io.Reader, d *Dispatcher) (int64, error) {
	dec := NewDecoder()
	buf := make([]byte, readBufferSize)
	var total int64
	discarded := 0

	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			frames := dec.Feed(buf[:n])
			for ; discarded < dec.Discarded(); discarded++ {
				d.Drop()
			}
			for _, f := range frames {
				if ctx.Err() != nil {
					return total, context.Cause(ctx)
				}
				if d.Dispatch(f) {
					return total, nil
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return total, err
			}
			if f, ok := dec.Flush(); ok && ctx.Err() == nil {
				d.Dispatch(f)
			}
			return total, nil
		}
	}
}
