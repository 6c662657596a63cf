package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namikmesic/boardmate-chat/internal/chat"
	"github.com/namikmesic/boardmate-chat/internal/config"
	"github.com/namikmesic/boardmate-chat/internal/jetstream"
	"github.com/namikmesic/boardmate-chat/internal/processor"
	"github.com/namikmesic/boardmate-chat/internal/storage"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// telemetry owns the optional sinks behind the stream processor.
type telemetry struct {
	pool       *pgxpool.Pool
	natsServer *jetstream.Server
	nc         *nats.Conn
	writer     *storage.BatchWriter
	proc       *processor.Processor
}

func startTelemetry(ctx context.Context, cfg *config.Config) (*telemetry, error) {
	t := &telemetry{}
	var js nats.JetStreamContext

	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		t.pool = pool
		if err := storage.RunMigrations(ctx, pool); err != nil {
			t.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		t.writer = storage.NewBatchWriter(pool, cfg.WriterBufferSize, cfg.WriterBatchSize,
			time.Duration(cfg.WriterFlushMs)*time.Millisecond)
	}

	if cfg.NATSStoreDir != "" {
		srv, err := jetstream.NewServer(jetstream.Options{
			StoreDir:  cfg.NATSStoreDir,
			MaxStore:  cfg.NATSMaxStore,
			MaxMemory: cfg.NATSMaxMemory,
		})
		if err != nil {
			t.close()
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		t.natsServer = srv

		nc, err := srv.Connect()
		if err != nil {
			t.close()
			return nil, err
		}
		t.nc = nc

		js, err = nc.JetStream()
		if err != nil {
			t.close()
			return nil, fmt.Errorf("get JetStream context: %w", err)
		}
		limits := jetstream.StreamLimits{MaxAge: cfg.NATSMaxAge, MaxBytes: cfg.NATSMaxStore}
		if err := jetstream.EnsureStream(js, limits); err != nil {
			t.close()
			return nil, err
		}
	}

	if t.writer != nil || js != nil {
		t.proc = processor.New(js, t.writer)
		log.Info().
			Bool("postgres", t.writer != nil).
			Bool("jetstream", js != nil).
			Msg("stream telemetry enabled")
	}
	return t, nil
}

func (t *telemetry) observer() chat.Observer {
	if t.proc == nil {
		return nil
	}
	return t.proc
}

func (t *telemetry) close() {
	if t.proc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.proc.Drain(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry not fully published")
		}
		cancel()
	}
	// Drain above already waited for acks; Drain on the conn would return before
	// flushing and race the server shutdown.
	if t.nc != nil {
		t.nc.Close()
	}
	if t.natsServer != nil {
		t.natsServer.Shutdown()
	}
	if t.writer != nil {
		t.writer.Shutdown()
	}
	if t.pool != nil {
		t.pool.Close()
	}
}
