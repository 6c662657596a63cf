package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	APIBaseURL  string `env:"BOARDMATE_API_URL" envDefault:"http://localhost:8080/api"`
	AccessToken string `env:"BOARDMATE_ACCESS_TOKEN"`

	// Empty means a fresh id per process, like a per-tab session.
	SommelierSessionID string `env:"BOARDMATE_SOMMELIER_SESSION"`

	StreamIdleTimeout time.Duration `env:"STREAM_IDLE_TIMEOUT" envDefault:"60s"`
	HistoryTimeout    time.Duration `env:"HISTORY_TIMEOUT" envDefault:"10s"`

	// REPL input history. Empty means history in the user config directory.
	InputHistoryFile string `env:"BOARDMATE_INPUT_HISTORY"`

	// Telemetry sinks; both optional.
	DatabaseURL      string        `env:"DATABASE_URL"`
	NATSStoreDir     string        `env:"NATS_STORE_DIR"`
	NATSMaxAge       time.Duration `env:"NATS_MAX_AGE" envDefault:"24h"`
	NATSMaxStore     int64         `env:"NATS_MAX_STORE" envDefault:"268435456"`
	NATSMaxMemory    int64         `env:"NATS_MAX_MEMORY" envDefault:"33554432"`
	WriterBufferSize int           `env:"WRITER_BUFFER_SIZE" envDefault:"1000"`
	WriterBatchSize  int           `env:"WRITER_BATCH_SIZE" envDefault:"50"`
	WriterFlushMs    int           `env:"WRITER_FLUSH_MS" envDefault:"200"`

	DevServerPort  int           `env:"DEVSERVER_PORT" envDefault:"8080"`
	DevServerDelay time.Duration `env:"DEVSERVER_DELAY" envDefault:"10ms"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
