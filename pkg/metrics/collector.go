package metrics

import (
	"context"
	"time"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
)

// BacklogSampler reports how many drained-but-unacknowledged keys a
// namespace is holding. Both counter store implementations satisfy it.
type BacklogSampler interface {
	ProcessingBacklog(ctx context.Context, ns counterstore.Namespace) (int64, error)
}

// Collector periodically samples counter-store backlog into gauges
type Collector struct {
	sampler    BacklogSampler
	namespaces []counterstore.Namespace
	stopCh     chan struct{}
}

// NewCollector creates a new backlog collector
func NewCollector(sampler BacklogSampler, namespaces []counterstore.Namespace) *Collector {
	return &Collector{
		sampler:    sampler,
		namespaces: namespaces,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ns := range c.namespaces {
		n, err := c.sampler.ProcessingBacklog(ctx, ns)
		if err != nil {
			continue
		}
		ProcessingBacklog.WithLabelValues(string(ns)).Set(float64(n))
	}
}
