// Package raftrouter presents a typed, cloneable send-channel fronting the
// raftstore event loop: a single-consumer MPSC channel where many producers
// (gRPC Raft streams, the ticker, storage callbacks) enqueue messages that
// the raftstore loop drains in order.
package raftrouter

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned when a message cannot be enqueued because the
// router's bounded channel is saturated. It is a transient condition; the
// router itself never retries.
var ErrQueueFull = errors.New("raftrouter: notify queue full")

// ErrClosed is returned when Send is called after Close.
var ErrClosed = errors.New("raftrouter: router closed")

// Message is the envelope carried on the router. RegionID is used by the
// raftstore loop to dispatch to the correct per-region state machine; Payload
// is opaque to the router itself (it is a collaborator's concern, referenced
// only by interface here).
type Message struct {
	RegionID uint64
	Payload  any
}

// Router is a cloneable handle onto one underlying bounded channel. All
// clones of a Router share the same channel and the same closed state, so
// closing one clone closes every other.
type Router struct {
	ch     chan Message
	closed *atomic.Bool
	once   *sync.Once
}

// New creates a router whose underlying channel holds at most notifyCapacity
// messages before Send starts returning ErrQueueFull.
func New(notifyCapacity int) *Router {
	if notifyCapacity <= 0 {
		notifyCapacity = 1
	}
	return &Router{
		ch:     make(chan Message, notifyCapacity),
		closed: new(atomic.Bool),
		once:   new(sync.Once),
	}
}

// Clone returns a handle sharing this router's channel. Clones are cheap and
// safe to hand to independent producers (one per gRPC Raft stream, for
// example); none of them owns the channel exclusively.
func (r *Router) Clone() *Router {
	return &Router{ch: r.ch, closed: r.closed, once: r.once}
}

// Send enqueues msg without blocking. A full queue returns ErrQueueFull
// immediately rather than applying backpressure to the caller's goroutine.
// The gRPC Raft service handler does not retry: it logs and drops a message
// that Send rejects.
func (r *Router) Send(msg Message) error {
	if r.closed.Load() {
		return ErrClosed
	}
	select {
	case r.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Messages returns the receive side of the channel for the raftstore loop's
// single consumer. Only one goroutine may range over this channel.
func (r *Router) Messages() <-chan Message {
	return r.ch
}

// Close closes the underlying channel; safe to call from any clone, and safe
// to call more than once.
func (r *Router) Close() {
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.ch)
	})
}

// Len reports the number of messages currently queued, as shown by
// ServerRaftStoreRouter's String.
func (r *Router) Len() int {
	return len(r.ch)
}

// Cap reports the router's configured notify capacity.
func (r *Router) Cap() int {
	return cap(r.ch)
}
