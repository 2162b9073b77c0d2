package pdclient

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/stratakv/pkg/wire"
)

// fakePD implements just enough of the PD service, via a hand-built
// grpc.ServiceDesc, to exercise Client against a real in-process gRPC
// connection.
type fakePD struct {
	clusterID  uint64
	storeID    uint64
	address    string
	requestIDs []string
}

func (f *fakePD) serviceDesc() grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GetClusterID", Handler: f.handleGetClusterID},
			{MethodName: "RegisterStore", Handler: f.handleRegisterStore},
			{MethodName: "AllocID", Handler: f.handleAllocID},
			{MethodName: "GetStore", Handler: f.handleGetStore},
		},
	}
}

func (f *fakePD) handleGetClusterID(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req getClusterIDRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	return &getClusterIDResponse{ClusterID: f.clusterID}, nil
}

func (f *fakePD) handleRegisterStore(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req registerStoreRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	f.address = req.Address
	f.requestIDs = append(f.requestIDs, req.RequestID)
	return &registerStoreResponse{StoreID: f.storeID}, nil
}

func (f *fakePD) handleAllocID(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req allocIDRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	return &allocIDResponse{ID: 42}, nil
}

func (f *fakePD) handleGetStore(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req resolveRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	return &resolveResponse{Address: "10.0.0.9:20160"}, nil
}

func newTestClient(t *testing.T, fake *fakePD) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	srv := grpc.NewServer()
	desc := fake.serviceDesc()
	srv.RegisterService(&desc, fake)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
	)
	require.NoError(t, err)

	return &Client{conn: conn, endpoint: "bufnet"}, func() {
		conn.Close()
		srv.Stop()
	}
}

func TestClientClusterID(t *testing.T) {
	fake := &fakePD{clusterID: 7}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	id, err := client.ClusterID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestClientRegisterStore(t *testing.T) {
	fake := &fakePD{storeID: 5}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	id, err := client.RegisterStore(context.Background(), "10.0.0.1:20160", map[string]string{"zone": "a"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)
	assert.Equal(t, "10.0.0.1:20160", fake.address)
}

func TestClientRegisterStoreSendsFreshRequestIDEachCall(t *testing.T) {
	fake := &fakePD{storeID: 5}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	_, err := client.RegisterStore(context.Background(), "10.0.0.1:20160", nil)
	require.NoError(t, err)
	_, err = client.RegisterStore(context.Background(), "10.0.0.1:20160", nil)
	require.NoError(t, err)

	require.Len(t, fake.requestIDs, 2)
	assert.NotEmpty(t, fake.requestIDs[0])
	assert.NotEmpty(t, fake.requestIDs[1])
	assert.NotEqual(t, fake.requestIDs[0], fake.requestIDs[1])
}

func TestClientAllocID(t *testing.T) {
	fake := &fakePD{}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	id, err := client.AllocID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestClientResolveStoreAddress(t *testing.T) {
	fake := &fakePD{}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	addr, err := client.ResolveStoreAddress(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:20160", addr)
}

func TestConnectFailsOnNoEndpoints(t *testing.T) {
	_, err := Connect(nil)
	assert.Error(t, err)
}
