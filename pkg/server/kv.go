package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/stratakv/pkg/storage"
)

const kvServiceName = "stratakv.KV"

// kvService adapts incoming KV RPCs onto the transactional storage facade.
type kvService struct {
	facade *storage.Facade
}

func (s *kvService) serviceDesc() grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: kvServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Get", Handler: s.handleGet},
			{MethodName: "Prewrite", Handler: s.handlePrewrite},
			{MethodName: "Commit", Handler: s.handleCommit},
			{MethodName: "Rollback", Handler: s.handleRollback},
			{MethodName: "Scan", Handler: s.handleScan},
			{MethodName: "GC", Handler: s.handleGC},
		},
	}
}

func (s *kvService) handleGet(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req getRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	v, err := s.facade.Get(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	return &getResponse{Value: v}, nil
}

func (s *kvService) handlePrewrite(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req prewriteRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	mutations := make([]storage.Mutation, len(req.Mutations))
	for i, m := range req.Mutations {
		mutations[i] = storage.Mutation{Key: m.Key, Value: m.Value}
	}
	if err := s.facade.Prewrite(ctx, mutations); err != nil {
		return nil, err
	}
	return &prewriteResponse{}, nil
}

func (s *kvService) handleCommit(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req commitRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	if err := s.facade.Commit(ctx, req.Keys, req.CommitTS); err != nil {
		return nil, err
	}
	return &commitResponse{}, nil
}

func (s *kvService) handleRollback(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req rollbackRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	if err := s.facade.Rollback(ctx, req.Keys); err != nil {
		return nil, err
	}
	return &rollbackResponse{}, nil
}

func (s *kvService) handleScan(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req scanRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	rows, err := s.facade.Scan(ctx, req.StartKey, req.EndKey, req.Limit)
	if err != nil {
		return nil, err
	}
	wireRows := make([]wireKV, len(rows))
	for i, r := range rows {
		wireRows[i] = wireKV{Key: r.Key, Value: r.Value}
	}
	return &scanResponse{Rows: wireRows}, nil
}

func (s *kvService) handleGC(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req gcRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	if err := s.facade.GC(ctx, req.SafePoint); err != nil {
		return nil, err
	}
	return &gcResponse{}, nil
}
