package stream

// Dispatcher feeds classified frames to a single consumer and stops at the first
// terminal event.
type Dispatcher struct {
	onEvent    func(Event)
	terminated bool
	frames     int
	dropped    int
}

func NewDispatcher(onEvent func(Event)) *Dispatcher {
	return &Dispatcher{onEvent: onEvent}
}

// Dispatch classifies f and delivers it. It returns true once the stream has
// reached its logical end; frames after that point are ignored.
func (d *Dispatcher) Dispatch(f Frame) bool {
	if d.terminated {
		return true
	}
	d.frames++

	ev, ok := Classify(f.Data)
	if !ok {
		d.dropped++
		return false
	}
	d.Emit(ev)
	return d.terminated
}

// Drop counts a frame that was lost before it could be classified.
func (d *Dispatcher) Drop() {
	if d.terminated {
		return
	}
	d.frames++
	d.dropped++
}

// Emit delivers an event produced outside the frame path, such as a transport
// error. It is ignored after termination.
func (d *Dispatcher) Emit(ev Event) {
	if d.terminated {
		return
	}
	if ev.Terminal() {
		d.terminated = true
	}
	if d.onEvent != nil {
		d.onEvent(ev)
	}
}

func (d *Dispatcher) Terminated() bool { return d.terminated }

func (d *Dispatcher) Frames() int { return d.frames }

func (d *Dispatcher) Dropped() int { return d.dropped }
