package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/stratakv/pkg/config"
	"github.com/cuemby/stratakv/pkg/engine"
	"github.com/cuemby/stratakv/pkg/raftrouter"
	"github.com/cuemby/stratakv/pkg/storage"
	"github.com/cuemby/stratakv/pkg/wire"
)

func testFacade(t *testing.T) *storage.Facade {
	t.Helper()
	cf := config.CFOptions{BlockCacheBytes: 8 * 1024 * 1024, BloomFilterBitsPerKey: 10, WholeKeyFiltering: true}
	e, err := engine.Open(config.RocksDBConfig{
		CreateIfMissing: true,
		MaxOpenFiles:    256,
		DefaultCF:       cf,
		WriteCF:         cf,
		LockCF:          cf,
		RaftCF:          cf,
	}, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	f := storage.New(e, config.StorageConfig{SchedulerQueueCapacity: 64, SchedulerWorkerPoolSize: 2})
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(func() { f.Stop() })
	return f
}

func dialBufconn(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestKVServiceGetAfterPrewriteCommit(t *testing.T) {
	facade := testFacade(t)
	router := raftrouter.NewServerRaftStoreRouter(raftrouter.New(16))

	kv := &kvService{facade: facade}
	desc := kv.serviceDesc()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&desc, kv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	_ = router

	conn := dialBufconn(t, lis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, conn.Invoke(ctx, "/"+kvServiceName+"/Prewrite",
		&prewriteRequest{Mutations: []wireMutation{{Key: []byte("k"), Value: []byte("v")}}}, &prewriteResponse{}))
	require.NoError(t, conn.Invoke(ctx, "/"+kvServiceName+"/Commit",
		&commitRequest{Keys: [][]byte{[]byte("k")}, CommitTS: 10}, &commitResponse{}))

	var resp getResponse
	require.NoError(t, conn.Invoke(ctx, "/"+kvServiceName+"/Get", &getRequest{Key: []byte("k")}, &resp))
	assert.Equal(t, []byte("v"), resp.Value)
}

func TestCoprocessorServiceRunsHandler(t *testing.T) {
	var sawRegion uint64
	cop := newCoprocessorService(2, func(_ context.Context, regionID uint64, task []byte) ([]byte, error) {
		sawRegion = regionID
		return append([]byte("echo:"), task...), nil
	})
	desc := cop.serviceDesc()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&desc, cop)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn := dialBufconn(t, lis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var resp coprocessorResponse
	require.NoError(t, conn.Invoke(ctx, "/"+coprocessorServiceName+"/Handle",
		&coprocessorRequest{RegionID: 7, Task: []byte("hi")}, &resp))
	assert.Equal(t, "echo:hi", string(resp.Result))
	assert.Equal(t, uint64(7), sawRegion)
}

func TestRaftStreamForwardsToRouter(t *testing.T) {
	router := raftrouter.New(16)
	raftSvc := &raftService{router: raftrouter.NewServerRaftStoreRouter(router)}
	desc := raftSvc.serviceDesc()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&desc, raftSvc)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn := dialBufconn(t, lis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := conn.NewStream(ctx, &raftStreamDesc, "/"+raftServiceName+"/"+raftStreamName)
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&raftEnvelope{RegionID: 3, FromPeer: 1, ToPeer: 2, Term: 5}))

	select {
	case msg := <-router.Messages():
		assert.Equal(t, uint64(3), msg.RegionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded raft message")
	}
}
