package clock

import (
	"sync"
	"time"

	"github.com/cuemby/stratakv/pkg/log"
)

// defaultWaitInterval is how long the watchdog sleeps between wall-clock
// samples.
const defaultWaitInterval = 100 * time.Millisecond

// NowFunc supplies the wall-clock sample a Monitor polls. Tests inject a
// fake one to simulate a backward jump without sleeping real wall time.
type NowFunc func() time.Time

// Monitor is a background watchdog that samples the wall clock twice around
// a sleep and calls onJumped whenever the second sample precedes the first.
// The constructor spawns the worker; Stop sends a quit signal and joins it.
type Monitor struct {
	onJumped func()
	now      NowFunc
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor constructs and starts a Monitor immediately.
func NewMonitor(onJumped func(), now NowFunc) *Monitor {
	if now == nil {
		now = time.Now
	}
	m := &Monitor{
		onJumped: onJumped,
		now:      now,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Monitor) run() {
	defer close(m.done)
	for {
		select {
		case <-m.quit:
			return
		default:
		}

		before := m.now()
		select {
		case <-m.quit:
			return
		case <-time.After(defaultWaitInterval):
		}
		after := m.now()

		if after.Before(before) {
			log.Logger.Warn().
				Time("before", before).
				Time("after", after).
				Msg("system time jumped back")
			m.onJumped()
		}
	}
}

// Stop sends the quit signal and blocks until the worker goroutine exits.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
	})
	<-m.done
}
