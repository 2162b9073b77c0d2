package server

import (
	"errors"
	"io"

	"google.golang.org/grpc"

	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/raftrouter"
)

const raftServiceName = "stratakv.Raft"
const raftStreamName = "Stream"

// raftService is the inbound half of the Raft gRPC service: one bidirectional
// stream per long-lived peer connection, feeding every message it receives
// onto the raftstore router. Consensus semantics (term, index, entry
// interpretation) are referenced only by interface; this service only
// ferries bytes off the wire and onto the router's queue.
type raftService struct {
	router *raftrouter.ServerRaftStoreRouter
}

func (s *raftService) serviceDesc() grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: raftServiceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    raftStreamName,
				Handler:       s.handleStream,
				ServerStreams: true,
				ClientStreams: true,
			},
		},
	}
}

func (s *raftService) handleStream(_ any, stream grpc.ServerStream) error {
	for {
		var msg raftEnvelope
		if err := stream.RecvMsg(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		err := s.router.SendRaftMessage(raftrouter.RaftMessage{
			RegionID:  msg.RegionID,
			FromPeer:  msg.FromPeer,
			ToPeer:    msg.ToPeer,
			Term:      msg.Term,
			EntryData: msg.EntryData,
		})
		if err != nil {
			log.WithRegionID(msg.RegionID).Warn().Err(err).Msg("dropped inbound raft message")
		}
	}
}
