package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/arbovirus-dashboard/internal/domain"
)

// publishGate remembers the latest week published per disease and state so
// a snapshot goes out once per new epidemiological week.
type publishGate struct {
	mu     sync.Mutex
	latest map[string]time.Time
}

func newPublishGate() *publishGate {
	return &publishGate{latest: make(map[string]time.Time)}
}

// claim reports whether week is newer than the last published week for key
// and, if so, records it.
func (g *publishGate) claim(key string, week time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.latest[key]; ok && !week.After(prev) {
		return false
	}
	g.latest[key] = week
	return true
}

// release forgets a claimed week so a failed publish is retried.
func (g *publishGate) release(key string, week time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latest[key].Equal(week) {
		delete(g.latest, key)
	}
}

func latestWeek(s domain.Snapshot) time.Time {
	var latest time.Time
	for _, r := range s.Records {
		if r.WeekStart.After(latest) {
			latest = r.WeekStart
		}
	}
	return latest
}

// publish hands the snapshot to the publisher when it carries a newer week.
// Failures are logged and do not affect the dashboard.
func (p *Pipeline) publish(ctx context.Context, disease domain.Disease, s domain.Snapshot) {
	if p.publisher == nil || s.Len() == 0 || s.Approximate {
		return
	}
	week := latestWeek(s)
	if week.IsZero() {
		return
	}

	key := string(disease) + "/" + p.stateCode
	if !p.published.claim(key, week) {
		return
	}
	if err := p.publisher.PublishSnapshot(ctx, disease, p.stateCode, s); err != nil {
		p.published.release(key, week)
		p.logger.Warn("snapshot publish failed", "error", err, "disease", disease, "week", week.Format("2006-01-02"))
		return
	}
	p.metrics.SnapshotsPublished.Inc()
	p.logger.Info("snapshot published", "disease", disease, "uf", p.stateCode, "week", week.Format("2006-01-02"), "municipalities", s.Len())
}
