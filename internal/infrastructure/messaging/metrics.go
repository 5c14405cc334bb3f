package messaging

import "sync/atomic"

// Metrics counts the saga's silent-stall signals. Dead-lettered messages and
// breaker drops represent saga steps that stopped making progress, so they
// are exposed as counts, not just log lines.
type Metrics struct {
	published        atomic.Int64
	publishFailures  atomic.Int64
	publisherDropped atomic.Int64
	consumed         atomic.Int64
	skipped          atomic.Int64
	deadLettered     atomic.Int64
	webhookUnmatched atomic.Int64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) IncPublished() {
	if m != nil {
		m.published.Add(1)
	}
}

func (m *Metrics) IncPublishFailures() {
	if m != nil {
		m.publishFailures.Add(1)
	}
}

func (m *Metrics) IncPublisherDropped() {
	if m != nil {
		m.publisherDropped.Add(1)
	}
}

func (m *Metrics) IncConsumed() {
	if m != nil {
		m.consumed.Add(1)
	}
}

func (m *Metrics) IncSkipped() {
	if m != nil {
		m.skipped.Add(1)
	}
}

func (m *Metrics) IncDeadLettered() {
	if m != nil {
		m.deadLettered.Add(1)
	}
}

func (m *Metrics) IncWebhookUnmatched() {
	if m != nil {
		m.webhookUnmatched.Add(1)
	}
}

func (m *Metrics) DeadLettered() int64 { return m.deadLettered.Load() }

func (m *Metrics) PublisherDropped() int64 { return m.publisherDropped.Load() }

// Snapshot returns the current counter values for the monitoring endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"published":         m.published.Load(),
		"publish_failures":  m.publishFailures.Load(),
		"publisher_dropped": m.publisherDropped.Load(),
		"consumed":          m.consumed.Load(),
		"skipped":           m.skipped.Load(),
		"dead_lettered":     m.deadLettered.Load(),
		"webhook_unmatched": m.webhookUnmatched.Load(),
	}
}
