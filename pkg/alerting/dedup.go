package alerting

import (
	"sync"
)

// DefaultMaxAlertsPerJob caps how many alerts a single job may trigger.
const DefaultMaxAlertsPerJob = 1

// defaultCapacity bounds how many jobs the dedup store remembers. The store
// is working memory for a polling loop, not durable state; on restart every
// still-failing job may alert once more.
const defaultCapacity = 10000

// Deduper decides whether a job may still alert. Safe for concurrent use.
type Deduper struct {
	mu         sync.Mutex
	counts     map[string]int
	order      []string
	maxPerJob  int
	maxTracked int
}

func NewDeduper(maxPerJob int) *Deduper {
	if maxPerJob <= 0 {
		maxPerJob = DefaultMaxAlertsPerJob
	}
	return &Deduper{
		counts:     make(map[string]int),
		maxPerJob:  maxPerJob,
		maxTracked: defaultCapacity,
	}
}

// ShouldAlert reports whether the job is still under its alert budget and, if
// so, consumes one alert from it.
func (d *Deduper) ShouldAlert(jobKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.counts[jobKey] >= d.maxPerJob {
		return false
	}

	if _, tracked := d.counts[jobKey]; !tracked {
		if len(d.order) >= d.maxTracked {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.counts, oldest)
		}
		d.order = append(d.order, jobKey)
	}
	d.counts[jobKey]++
	return true
}

// Forget drops a job's alert count, re-arming alerts for it. Used when a job
// recovers or is resubmitted.
func (d *Deduper) Forget(jobKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, tracked := d.counts[jobKey]; !tracked {
		return
	}
	delete(d.counts, jobKey)
	for i, key := range d.order {
		if key == jobKey {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Tracked returns how many jobs currently hold an alert count.
func (d *Deduper) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.counts)
}
