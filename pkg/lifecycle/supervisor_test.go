package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownStopsComponentsInReverseOrder(t *testing.T) {
	s := New()
	var order []string

	s.Register("engine", func() error { order = append(order, "engine"); return nil })
	s.Register("server", func() error { order = append(order, "server"); return nil })
	s.Register("node", func() error { order = append(order, "node"); return nil })

	s.Shutdown()

	assert.Equal(t, []string{"node", "server", "engine"}, order)
}

func TestShutdownSwallowsComponentErrors(t *testing.T) {
	s := New()
	var ranAfterError bool

	s.Register("first", func() error { ranAfterError = true; return nil })
	s.Register("second", func() error { return errors.New("boom") })

	assert.NotPanics(t, func() { s.Shutdown() })
	assert.True(t, ranAfterError, "stop functions registered before a failing one must still run")
}

func TestShutdownWithNoComponentsIsSafe(t *testing.T) {
	s := New()
	assert.NotPanics(t, func() { s.Shutdown() })
}
