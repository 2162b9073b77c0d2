// Package lifecycle drives the node's startup and shutdown ordering: each
// component registers a stop function as it comes up, and Supervisor tears
// them down in reverse after SIGTERM, SIGINT, or SIGHUP. SIGUSR1 dumps an
// engine backup and does not shut anything down.
package lifecycle

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/stratakv/pkg/log"
)

type component struct {
	name string
	stop func() error
}

// Supervisor accumulates components in startup order and stops them in the
// reverse order on shutdown, logging (but not propagating) any error a stop
// function returns: a failure partway through shutdown must not prevent the
// rest of the node from also stopping.
type Supervisor struct {
	components []component
	backup     func() error
}

// New returns an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{}
}

// Register appends a component, to be stopped before every component
// registered ahead of it.
func (s *Supervisor) Register(name string, stop func() error) {
	s.components = append(s.components, component{name: name, stop: stop})
}

// OnBackupSignal sets the handler Wait runs each time SIGUSR1 arrives; Wait
// then keeps waiting for a shutdown signal. fn is expected to dump an engine
// backup into backup_dir; a nil fn makes SIGUSR1 a no-op.
func (s *Supervisor) OnBackupSignal(fn func() error) {
	s.backup = fn
}

// Wait blocks until a termination signal arrives, running the SIGUSR1
// backup handler (if any) without shutting down, then returns once a
// shutdown signal (SIGTERM, SIGINT, or SIGHUP) is received.
func (s *Supervisor) Wait() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			if s.backup != nil {
				if err := s.backup(); err != nil {
					log.Logger.Error().Err(err).Msg("engine backup failed")
				}
			}
			continue
		}
		log.Logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		return
	}
}

// Shutdown stops every registered component in reverse registration order.
func (s *Supervisor) Shutdown() {
	for i := len(s.components) - 1; i >= 0; i-- {
		c := s.components[i]
		if err := c.stop(); err != nil {
			log.Logger.Error().Str("component", c.name).Err(err).Msg("component stop returned an error")
		} else {
			log.Logger.Info().Str("component", c.name).Msg("component stopped")
		}
	}
}
