package jetstream

import (
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
)

const readyTimeout = 5 * time.Second

// Options configure the embedded broker. Zero limits leave the server's own
// defaults in place.
type Options struct {
	StoreDir  string
	MaxStore  int64
	MaxMemory int64
}

func (o Options) serverOptions() *server.Options {
	return &server.Options{
		ServerName:         "boardmate",
		DontListen:         true,
		NoSigs:             true,
		JetStream:          true,
		StoreDir:           o.StoreDir,
		JetStreamMaxStore:  o.MaxStore,
		JetStreamMaxMemory: o.MaxMemory,
	}
}

// Server is an in-process NATS server used only by this process; it opens no
// ports and clients reach it through Connect.
type Server struct {
	ns   *server.Server
	opts Options
}

func NewServer(opts Options) (*Server, error) {
	if opts.StoreDir == "" {
		return nil, fmt.Errorf("nats store dir is required")
	}
	ns, err := server.NewServer(opts.serverOptions())
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready after %s", readyTimeout)
	}
	return &Server{ns: ns, opts: opts}, nil
}

// Connect opens a client connection to the embedded server.
func (s *Server) Connect() (*nats.Conn, error) {
	nc, err := nats.Connect(s.ns.ClientURL(),
		nats.InProcessServer(s.ns),
		nats.Name("boardmate-telemetry"),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to embedded nats: %w", err)
	}
	return nc, nil
}

func (s *Server) StoreDir() string { return s.opts.StoreDir }

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
