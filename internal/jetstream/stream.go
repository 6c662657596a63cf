package jetstream

import (
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "BOARDMATE"
	SubjectPrefix = "boardmate.chat."

	DefaultMaxAge = 24 * time.Hour
)

// StreamLimits bound the BOARDMATE stream. A zero MaxAge means DefaultMaxAge;
// a zero MaxBytes leaves the stream unbounded by size.
type StreamLimits struct {
	MaxAge   time.Duration
	MaxBytes int64
}

func (l StreamLimits) config() *nats.StreamConfig {
	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"boardmate.>"},
		Storage:   nats.FileStorage,
		MaxAge:    l.MaxAge,
		Retention: nats.LimitsPolicy,
		Discard:   nats.DiscardOld,
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if l.MaxBytes > 0 {
		cfg.MaxBytes = l.MaxBytes
	}
	return cfg
}

// EnsureStream creates the BOARDMATE stream, or brings an existing one up to
// the given limits. Old telemetry is discarded first when a limit is hit.
func EnsureStream(js nats.JetStreamContext, limits StreamLimits) error {
	cfg := limits.config()
	_, err := js.AddStream(cfg)
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		_, err = js.UpdateStream(cfg)
	}
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// EventSubject carries every event of one chat stream.
func EventSubject(streamID string) string {
	return SubjectPrefix + streamID
}

// DoneSubject carries the single outcome message of one chat stream.
func DoneSubject(streamID string) string {
	return SubjectPrefix + streamID + ".done"
}
