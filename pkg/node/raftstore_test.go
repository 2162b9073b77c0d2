package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stratakv/pkg/config"
)

const (
	testLeaderTimeout = 2 * time.Second
	testLeaderTick    = 10 * time.Millisecond
)

func TestOpenRaftHandleBootstrapsSingleMemberCluster(t *testing.T) {
	dir := t.TempDir()

	h, err := openRaftHandle(dir, 9, "10.0.0.1:20160")
	require.NoError(t, err)
	defer h.close()

	assert.Eventually(t, func() bool {
		return h.raft.State().String() == "Leader"
	}, testLeaderTimeout, testLeaderTick, "single-member cluster must elect itself leader")
}

func TestOpenRaftHandleRecoversExistingStateOnRestart(t *testing.T) {
	dir := t.TempDir()

	first, err := openRaftHandle(dir, 9, "10.0.0.1:20160")
	require.NoError(t, err)
	require.NoError(t, first.close())

	second, err := openRaftHandle(dir, 9, "10.0.0.1:20160")
	require.NoError(t, err)
	defer second.close()

	assert.Eventually(t, func() bool {
		return second.raft.State().String() == "Leader"
	}, testLeaderTimeout, testLeaderTick, "restart against existing raft state must not fail bootstrap")
}

func TestRegistryLeaderReflectsRaftState(t *testing.T) {
	pd := newTestPDClient(t, &fakePD{storeID: 3})
	cfg := config.Config{ClusterID: 1, AdvertiseAddr: "10.0.0.1:20160"}

	reg, err := Open(context.Background(), t.TempDir(), cfg, pd)
	require.NoError(t, err)
	defer reg.Close()

	assert.Eventually(t, reg.Leader, testLeaderTimeout, testLeaderTick,
		"a freshly-bootstrapped single-member store must become leader")
}
