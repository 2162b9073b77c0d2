package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/cuemby/stratakv/pkg/log"
)

// PusherConfig configures periodic metrics push: if Interval is non-zero
// and Address is non-empty the pusher pushes this process's metrics under a
// job name suffixed with the store id.
type PusherConfig struct {
	Interval time.Duration
	Address  string
	Job      string
}

// Pusher periodically pushes the default Prometheus registry's metrics to a
// remote endpoint via a ticker-driven background worker.
type Pusher struct {
	cfg    PusherConfig
	jobURL string
	client *http.Client
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPusher constructs a pusher for storeID. It returns nil if the config
// disables pushing (Interval <= 0 or Address empty), in which case Start is a
// no-op: callers can unconditionally call Start/Stop without branching.
func NewPusher(cfg PusherConfig, storeID uint64) *Pusher {
	if cfg.Interval <= 0 || cfg.Address == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "stratakv"
	}
	return &Pusher{
		cfg:    cfg,
		jobURL: fmt.Sprintf("%s/metrics/job/%s_%d", cfg.Address, job, storeID),
		client: &http.Client{Timeout: 10 * time.Second},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the push loop. Safe to call on a nil *Pusher.
func (p *Pusher) Start() {
	if p == nil {
		return
	}
	go p.run()
}

// Stop halts the push loop and waits for it to exit. Safe to call on a nil
// *Pusher.
func (p *Pusher) Stop() {
	if p == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
}

func (p *Pusher) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.pushOnce(); err != nil {
				log.Logger.Warn().Err(err).Msg("metrics push failed")
			}
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pusher) pushOnce() error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Interval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.jobURL, &buf)
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("metrics push returned status %d", resp.StatusCode)
	}
	return nil
}
