// Package server hosts the three logical gRPC services a node exposes over
// a single listener on listen_addr: KV, Coprocessor, and Raft. It also owns
// the Transport object handed to the Node Registry for outbound Raft
// traffic, so the Network Server must start before the Node.
package server

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/cuemby/stratakv/pkg/config"
	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/raftrouter"
	"github.com/cuemby/stratakv/pkg/storage"
)

// CoprocessorHandler executes one pushdown task and returns its raw result
// bytes. The pushdown compute logic itself is referenced only by interface;
// Server only wires the handler onto a bounded thread pool.
type CoprocessorHandler func(ctx context.Context, regionID uint64, task []byte) ([]byte, error)

// Server owns the listener and the gRPC server instance for the node's
// inbound RPC surface.
type Server struct {
	listenAddr    string
	advertiseAddr string

	grpcServer *grpc.Server
	listener   net.Listener

	kv           *kvService
	coprocessor  *coprocessorService
	raft         *raftService
	serveErrCh   chan error
}

// New constructs a Server bound to cfg's listen/advertise addresses, routing
// KV requests to facade, Coprocessor requests to copHandler, and Raft
// messages onto router. It does not start listening; call Start for that.
func New(cfg config.Config, facade *storage.Facade, router *raftrouter.ServerRaftStoreRouter, copHandler CoprocessorHandler) *Server {
	grpcServer := grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPCConcurrency)),
		grpc.InitialWindowSize(int32(cfg.Server.GRPCStreamWindowSize)),
	)

	s := &Server{
		listenAddr:    cfg.ListenAddr,
		advertiseAddr: cfg.AdvertiseAddr,
		grpcServer:    grpcServer,
		kv:            &kvService{facade: facade},
		coprocessor:   newCoprocessorService(cfg.Server.EndPointConcurrency, copHandler),
		raft:          &raftService{router: router},
		serveErrCh:    make(chan error, 1),
	}

	kvDesc := s.kv.serviceDesc()
	grpcServer.RegisterService(&kvDesc, s.kv)
	copDesc := s.coprocessor.serviceDesc()
	grpcServer.RegisterService(&copDesc, s.coprocessor)
	raftDesc := s.raft.serviceDesc()
	grpcServer.RegisterService(&raftDesc, s.raft)

	return s
}

// Start binds listen_addr and begins serving in the background. It returns
// once the listener is open; Serve errors can be observed with Err.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.listenAddr, err)
	}
	s.listener = lis

	go func() {
		s.serveErrCh <- s.grpcServer.Serve(lis)
	}()

	log.Logger.Info().
		Str("listen_addr", s.listenAddr).
		Str("advertise_addr", s.advertiseAddr).
		Msg("network server listening")
	return nil
}

// Err returns immediately with the error Serve exited with, or nil if it is
// still running. Intended for readiness probes, not for blocking.
func (s *Server) Err() error {
	select {
	case err := <-s.serveErrCh:
		s.serveErrCh <- err
		return err
	default:
		return nil
	}
}

// Stop rejects new requests and drains in-flight streams before returning.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
	log.Logger.Info().Msg("network server stopped")
}

// Addr returns the address the listener actually bound, useful in tests
// where listen_addr is "127.0.0.1:0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listenAddr
	}
	return s.listener.Addr().String()
}
