package raftrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterSendAndReceive(t *testing.T) {
	r := New(4)
	defer r.Close()

	require.NoError(t, r.Send(Message{RegionID: 1, Payload: "a"}))
	msg := <-r.Messages()
	assert.Equal(t, uint64(1), msg.RegionID)
	assert.Equal(t, "a", msg.Payload)
}

func TestRouterQueueFull(t *testing.T) {
	r := New(2)
	defer r.Close()

	require.NoError(t, r.Send(Message{RegionID: 1}))
	require.NoError(t, r.Send(Message{RegionID: 1}))
	err := r.Send(Message{RegionID: 1})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRouterCloneSharesChannel(t *testing.T) {
	r := New(4)
	clone := r.Clone()
	defer r.Close()

	require.NoError(t, clone.Send(Message{RegionID: 7}))
	msg := <-r.Messages()
	assert.Equal(t, uint64(7), msg.RegionID)
}

func TestRouterSendAfterClose(t *testing.T) {
	r := New(1)
	clone := r.Clone()
	r.Close()

	err := clone.Send(Message{RegionID: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRouterCloseIsIdempotent(t *testing.T) {
	r := New(1)
	assert.NotPanics(t, func() {
		r.Close()
		r.Close()
	})
}

func TestServerRaftStoreRouterAdapter(t *testing.T) {
	r := New(4)
	defer r.Close()
	adapter := NewServerRaftStoreRouter(r)

	require.NoError(t, adapter.SendRaftMessage(RaftMessage{RegionID: 3, FromPeer: 1, ToPeer: 2}))
	msg := <-r.Messages()
	assert.Equal(t, uint64(3), msg.RegionID)
	raftMsg, ok := msg.Payload.(RaftMessage)
	require.True(t, ok)
	assert.Equal(t, uint64(1), raftMsg.FromPeer)
}
