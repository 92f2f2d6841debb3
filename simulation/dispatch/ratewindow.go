package dispatch

import (
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// RateWindow is one sliding window of recent dispatch timestamps with a
// fixed ceiling. Entries older than the window length are purged before
// every admission check, so the in-window count never exceeds the ceiling.
//
// RateWindow is not safe for concurrent use on its own: the Dispatcher
// confines all writes to its single consumer goroutine and guards reads
// with its own mutex.
type RateWindow struct {
	length  time.Duration
	ceiling int
	stamps  []time.Time
}

// NewRateWindow creates a sliding window of the given length and ceiling.
func NewRateWindow(length time.Duration, ceiling int) (*RateWindow, error) {
	if length <= 0 || ceiling <= 0 {
		return nil, simulation.ErrInvalidRateLimit
	}

	return &RateWindow{
		length:  length,
		ceiling: ceiling,
		stamps:  make([]time.Time, 0, ceiling),
	}, nil
}

// HasCapacity purges expired entries and reports whether one more dispatch
// fits the window right now.
func (w *RateWindow) HasCapacity(now time.Time) bool {
	w.purge(now)

	return len(w.stamps) < w.ceiling
}

// Record adds a dispatch timestamp. The caller must have verified capacity;
// recording beyond the ceiling would break the window invariant.
func (w *RateWindow) Record(now time.Time) {
	w.stamps = append(w.stamps, now)
}

// Count purges expired entries and returns the in-window dispatch count.
func (w *RateWindow) Count(now time.Time) int {
	w.purge(now)

	return len(w.stamps)
}

// NextFree returns how long until the oldest in-window entry expires and a
// slot frees: length − (now − oldest). Returns zero when the window already
// has capacity.
func (w *RateWindow) NextFree(now time.Time) time.Duration {
	w.purge(now)

	if len(w.stamps) < w.ceiling {
		return 0
	}

	return w.length - now.Sub(w.stamps[0])
}

// purge drops entries that have slid out of the window.
func (w *RateWindow) purge(now time.Time) {
	cutoff := now.Add(-w.length)

	expired := 0
	for expired < len(w.stamps) && !w.stamps[expired].After(cutoff) {
		expired++
	}

	if expired > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[expired:]...)
	}
}
