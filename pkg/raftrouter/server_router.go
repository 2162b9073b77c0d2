package raftrouter

import "fmt"

// RaftMessage is the shape the Network Server's Raft service hands the
// router: a raw consensus message plus the region it belongs to. Its
// contents (term, index, entries) are the Raft state machine's concern,
// referenced only by interface here.
type RaftMessage struct {
	RegionID  uint64
	FromPeer  uint64
	ToPeer    uint64
	Term      uint64
	EntryData []byte
}

// ServerRaftStoreRouter adapts server-side Raft messages (as received over
// the gRPC Raft streams) into the raftstore's internal Message variant and
// forwards them onto a Router: a thin adapter sitting between the
// wire-facing server and the internal event bus.
type ServerRaftStoreRouter struct {
	router *Router
}

// NewServerRaftStoreRouter wraps router for use by the Network Server's Raft
// service.
func NewServerRaftStoreRouter(router *Router) *ServerRaftStoreRouter {
	return &ServerRaftStoreRouter{router: router}
}

// SendRaftMessage converts msg into the router's Message envelope and
// enqueues it. It returns ErrQueueFull unchanged so the gRPC handler can
// decide whether to retry or push back on the stream.
func (s *ServerRaftStoreRouter) SendRaftMessage(msg RaftMessage) error {
	return s.router.Send(Message{
		RegionID: msg.RegionID,
		Payload:  msg,
	})
}

// SendCommand enqueues an arbitrary raftstore command (region split, conf
// change, tick) addressed to regionID.
func (s *ServerRaftStoreRouter) SendCommand(regionID uint64, command any) error {
	return s.router.Send(Message{RegionID: regionID, Payload: command})
}

func (s *ServerRaftStoreRouter) String() string {
	return fmt.Sprintf("ServerRaftStoreRouter{queued=%d/%d}", s.router.Len(), s.router.Cap())
}
