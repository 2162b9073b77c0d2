package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const coprocessorServiceName = "stratakv.Coprocessor"

// coprocessorService routes pushdown compute requests onto a thread pool
// sized by end_point_concurrency. The pushdown compute logic itself (the
// coprocessor subsystem) is referenced only by interface; this service
// hands the task to a handler function and returns what it produces.
type coprocessorService struct {
	sem     chan struct{}
	handler func(ctx context.Context, regionID uint64, task []byte) ([]byte, error)
}

func newCoprocessorService(concurrency int, handler func(ctx context.Context, regionID uint64, task []byte) ([]byte, error)) *coprocessorService {
	if concurrency <= 0 {
		concurrency = 1
	}
	if handler == nil {
		handler = func(context.Context, uint64, []byte) ([]byte, error) {
			return nil, fmt.Errorf("coprocessor: no handler registered")
		}
	}
	return &coprocessorService{sem: make(chan struct{}, concurrency), handler: handler}
}

func (s *coprocessorService) serviceDesc() grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: coprocessorServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Handle", Handler: s.handleRequest},
		},
	}
}

func (s *coprocessorService) handleRequest(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req coprocessorRequest
	if err := dec(&req); err != nil {
		return nil, err
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	result, err := s.handler(ctx, req.RegionID, req.Task)
	if err != nil {
		return nil, err
	}
	return &coprocessorResponse{Result: result}, nil
}
