package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/stratakv/pkg/raftrouter"
	"github.com/cuemby/stratakv/pkg/resolver"
	"github.com/cuemby/stratakv/pkg/wire"
)

var raftStreamDesc = grpc.StreamDesc{
	StreamName:    raftStreamName,
	ServerStreams: true,
	ClientStreams: true,
}

// Transport is the outbound half of the Raft service: it resolves peer
// store ids to addresses via the Address Resolver Worker, then keeps
// connNum long-lived streams open to each peer, round-robining sends across
// them. The Node hands this to the raftstore loop for all outbound Raft
// traffic.
type Transport struct {
	resolve func(ctx context.Context, storeID uint64) (string, error)
	connNum int

	mu    sync.Mutex
	peers map[uint64]*peerConn
}

type peerConn struct {
	conn    *grpc.ClientConn
	streams []grpc.ClientStream
	next    atomic.Uint32
}

// NewTransport constructs a Transport resolving addresses through worker.
// connNum <= 0 selects a single stream per peer.
func NewTransport(worker *resolver.Worker, connNum int) *Transport {
	if connNum <= 0 {
		connNum = 1
	}
	return &Transport{
		resolve: worker.Resolve,
		connNum: connNum,
		peers:   make(map[uint64]*peerConn),
	}
}

// Send forwards msg to toStoreID over one of its long-lived Raft streams,
// dialing and establishing the pool on first use.
func (t *Transport) Send(ctx context.Context, toStoreID uint64, msg raftrouter.RaftMessage) error {
	pc, err := t.peerConnFor(ctx, toStoreID)
	if err != nil {
		return fmt.Errorf("server: transport dial store %d: %w", toStoreID, err)
	}

	idx := pc.next.Add(1) % uint32(len(pc.streams))
	env := &raftEnvelope{
		RegionID:  msg.RegionID,
		FromPeer:  msg.FromPeer,
		ToPeer:    msg.ToPeer,
		Term:      msg.Term,
		EntryData: msg.EntryData,
	}
	if err := pc.streams[idx].SendMsg(env); err != nil {
		return fmt.Errorf("server: transport send to store %d: %w", toStoreID, err)
	}
	return nil
}

func (t *Transport) peerConnFor(ctx context.Context, storeID uint64) (*peerConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pc, ok := t.peers[storeID]; ok {
		return pc, nil
	}

	addr, err := t.resolve(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	fullMethod := fmt.Sprintf("/%s/%s", raftServiceName, raftStreamName)
	streams := make([]grpc.ClientStream, t.connNum)
	for i := 0; i < t.connNum; i++ {
		stream, err := conn.NewStream(context.Background(), &raftStreamDesc, fullMethod)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open raft stream %d/%d: %w", i+1, t.connNum, err)
		}
		streams[i] = stream
	}

	pc := &peerConn{conn: conn, streams: streams}
	t.peers[storeID] = pc
	return pc, nil
}

// Close tears down every peer connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for storeID, pc := range t.peers {
		if err := pc.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("server: close transport to store %d: %w", storeID, err)
		}
	}
	t.peers = make(map[uint64]*peerConn)
	return firstErr
}
